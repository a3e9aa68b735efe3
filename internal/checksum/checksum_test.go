package checksum_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/islabooks/isla/internal/checksum"
	"github.com/stretchr/testify/require"
)

func TestFile_MatchesBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.txt")
	content := []byte("第一章 起点\n正文内容\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	fromFile, err := checksum.File(path)
	require.NoError(t, err)
	require.Equal(t, checksum.Bytes(content), fromFile)
	require.Len(t, fromFile, 64)
}

func TestFile_SameContentSameDigest(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("identical"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("identical"), 0o644))

	da, err := checksum.File(a)
	require.NoError(t, err)
	db, err := checksum.File(b)
	require.NoError(t, err)
	require.Equal(t, da, db)
}

func TestFile_Missing(t *testing.T) {
	_, err := checksum.File(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}
