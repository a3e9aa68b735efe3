package covers_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/islabooks/isla/internal/media/covers"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSave_WritesCoverAndBlurHash(t *testing.T) {
	s, err := covers.NewStorage(t.TempDir(), nil)
	require.NoError(t, err)

	cover, err := s.Save("book-1", pngBytes(t, 120, 180), "image/png")
	require.NoError(t, err)

	require.FileExists(t, cover.Path)
	require.Equal(t, s.Path("book-1", "png"), cover.Path)
	require.Equal(t, 120, cover.Width)
	require.Equal(t, 180, cover.Height)
	require.NotEmpty(t, cover.BlurHash)
}

func TestSave_RejectsNonImage(t *testing.T) {
	s, err := covers.NewStorage(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = s.Save("book-1", []byte("not an image"), "image/jpeg")
	require.Error(t, err)
}

func TestSave_ExtensionFromMediaType(t *testing.T) {
	s, err := covers.NewStorage(t.TempDir(), nil)
	require.NoError(t, err)

	// PNG data declared as JPEG keeps the declared extension.
	cover, err := s.Save("book-1", pngBytes(t, 10, 10), "image/jpeg")
	require.NoError(t, err)
	require.Equal(t, s.Path("book-1", "jpg"), cover.Path)

	// Unknown media type falls back to the decoded format.
	cover, err = s.Save("book-2", pngBytes(t, 10, 10), "")
	require.NoError(t, err)
	require.Equal(t, s.Path("book-2", "png"), cover.Path)
}

func TestDelete_RemovesAllVariants(t *testing.T) {
	s, err := covers.NewStorage(t.TempDir(), nil)
	require.NoError(t, err)

	cover, err := s.Save("book-1", pngBytes(t, 10, 10), "image/png")
	require.NoError(t, err)

	require.NoError(t, s.Delete("book-1"))
	_, statErr := os.Stat(cover.Path)
	require.True(t, os.IsNotExist(statErr))

	// Deleting again is a no-op.
	require.NoError(t, s.Delete("book-1"))
}
