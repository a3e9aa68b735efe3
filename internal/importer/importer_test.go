package importer_test

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/islabooks/isla/internal/domain"
	"github.com/islabooks/isla/internal/errors"
	"github.com/islabooks/isla/internal/importer"
	"github.com/islabooks/isla/internal/media/covers"
	"github.com/islabooks/isla/internal/store"
	"github.com/stretchr/testify/require"
)

func setupImporter(t *testing.T, maxSize int64) (*importer.Importer, *store.Store, string) {
	t.Helper()

	root := t.TempDir()
	s, err := store.New(filepath.Join(root, "library.db"), nil, store.NewNoopEmitter())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	coverStorage, err := covers.NewStorage(filepath.Join(root, "covers"), nil)
	require.NoError(t, err)

	booksPath := filepath.Join(root, "books")
	imp := importer.New(s, coverStorage, nil, store.NewNoopEmitter(), nil, importer.Options{
		BooksPath:         booksPath,
		MaxFileSize:       maxSize,
		FallbackLanguage:  "en",
		PlaceholderAuthor: "Unknown Author",
	})
	return imp, s, root
}

func writeFixture(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

const novelFixture = "雪夜奇缘\n作者：林晚\n\n第一章 雪夜\n北风卷地。\n\n第二章 客栈\n旅人满座。\n"

func TestValidate(t *testing.T) {
	imp, _, root := setupImporter(t, 1024)

	t.Run("missing file", func(t *testing.T) {
		err := imp.Validate(filepath.Join(root, "ghost.txt"))
		require.True(t, errors.Is(err, errors.FileNotFound("")))
	})

	t.Run("too large", func(t *testing.T) {
		path := writeFixture(t, root, "big.txt", bytes.Repeat([]byte("x"), 2048))
		err := imp.Validate(path)
		require.True(t, errors.Is(err, errors.FileTooLarge("")))
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := writeFixture(t, root, "paper.pdf", []byte("%PDF-1.4"))
		err := imp.Validate(path)
		require.True(t, errors.Is(err, errors.UnsupportedFileType("")))
	})

	t.Run("valid text file", func(t *testing.T) {
		path := writeFixture(t, root, "ok.txt", []byte("fine"))
		require.NoError(t, imp.Validate(path))
	})
}

func TestImport_TextBook(t *testing.T) {
	imp, s, root := setupImporter(t, 0)
	ctx := context.Background()

	path := writeFixture(t, root, "novel.txt", []byte(novelFixture))
	book, err := imp.Import(ctx, path)
	require.NoError(t, err)

	require.Equal(t, "雪夜奇缘", book.Title)
	require.Equal(t, []string{"林晚"}, book.Authors)
	require.Equal(t, "zh-Hans", book.Language)
	require.Equal(t, domain.FormatText, book.FileFormat)
	require.NotEmpty(t, book.FileChecksum)
	require.FileExists(t, book.FilePath)

	stored, err := s.Books.Get(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, book.Title, stored.Title)

	chapters, err := s.Chapters.FindByIndex(ctx, "book", book.ID)
	require.NoError(t, err)
	require.Len(t, chapters, 2)
}

func TestImport_DuplicateContentAllowed(t *testing.T) {
	imp, s, root := setupImporter(t, 0)
	ctx := context.Background()

	path := writeFixture(t, root, "novel.txt", []byte(novelFixture))

	first, err := imp.Import(ctx, path)
	require.NoError(t, err)
	second, err := imp.Import(ctx, path)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, first.FileChecksum, second.FileChecksum)

	matches, err := s.Books.FindByIndex(ctx, "checksum", first.FileChecksum)
	require.NoError(t, err)
	require.Len(t, matches, 2)
}

func epubFixture(t *testing.T, dir string) string {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"META-INF/container.xml": `<container><rootfiles><rootfile full-path="content.opf"/></rootfiles></container>`,
		"content.opf": `<package>
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Voyage</dc:title>
    <dc:creator>Ada Chen</dc:creator>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
    <item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine><itemref idref="ch1"/></spine>
</package>`,
		"ch1.xhtml": `<html><body><h1>Departure</h1><p>The ship left at dawn.</p></body></html>`,
	}
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return writeFixture(t, dir, "voyage.epub", buf.Bytes())
}

func TestImport_Epub(t *testing.T) {
	imp, s, root := setupImporter(t, 0)
	ctx := context.Background()

	book, err := imp.Import(ctx, epubFixture(t, root))
	require.NoError(t, err)
	require.Equal(t, "Voyage", book.Title)
	require.Equal(t, domain.FormatEPUB, book.FileFormat)

	chapters, err := s.Chapters.FindByIndex(ctx, "book", book.ID)
	require.NoError(t, err)
	require.Len(t, chapters, 1)
	require.Equal(t, "Departure", chapters[0].Title)
}

func TestImport_CorruptEpubLeavesNoTrace(t *testing.T) {
	imp, s, root := setupImporter(t, 0)
	ctx := context.Background()

	path := writeFixture(t, root, "broken.epub", []byte("not a zip at all"))
	_, err := imp.Import(ctx, path)
	require.True(t, errors.Is(err, errors.CorruptArchive("", nil)))

	count, err := s.Books.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	// Staging directory was cleaned up.
	entries, err := os.ReadDir(filepath.Join(root, "books"))
	if err == nil {
		require.Empty(t, entries)
	}
}

func TestWatcher_ImportsDroppedFile(t *testing.T) {
	imp, s, root := setupImporter(t, 0)

	inbox := filepath.Join(root, "inbox")
	w, err := importer.NewWatcher(imp, inbox, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = w.Close()
	})

	writeFixture(t, inbox, "dropped.txt", []byte(novelFixture))

	require.Eventually(t, func() bool {
		n, err := s.Books.Count(context.Background())
		return err == nil && n == 1
	}, 5*time.Second, 50*time.Millisecond)

	// The inbox file is removed after a successful import.
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(inbox, "dropped.txt"))
		return os.IsNotExist(err)
	}, 2*time.Second, 50*time.Millisecond)
}
