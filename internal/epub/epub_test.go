package epub_test

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/islabooks/isla/internal/archive"
	"github.com/islabooks/isla/internal/epub"
	"github.com/islabooks/isla/internal/errors"
	"github.com/stretchr/testify/require"
)

var testOpts = epub.Options{
	FallbackLanguage:  "en",
	PlaceholderAuthor: "Unknown Author",
}

func writeEpub(t *testing.T, files map[string]string) *archive.Reader {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "book.epub")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	r, err := archive.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

const containerXML = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

func TestExtract_FullBook(t *testing.T) {
	opf := `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>  The Long Voyage  </dc:title>
    <dc:creator>Ada Chen</dc:creator>
    <dc:creator>Li Wei</dc:creator>
    <dc:language>zh-Hans</dc:language>
    <meta name="cover" content="cover-img"/>
  </metadata>
  <manifest>
    <item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="ch2.xhtml" media-type="application/xhtml+xml"/>
    <item id="css" href="style.css" media-type="text/css"/>
    <item id="cover-img" href="cover.jpg" media-type="image/jpeg"/>
  </manifest>
  <spine>
    <itemref idref="ch1"/>
    <itemref idref="css"/>
    <itemref idref="ch2"/>
  </spine>
</package>`

	r := writeEpub(t, map[string]string{
		"META-INF/container.xml": containerXML,
		"OEBPS/content.opf":      opf,
		"OEBPS/ch1.xhtml":        `<html><body><h1>Departure</h1><p>The ship left at dawn.</p></body></html>`,
		"OEBPS/ch2.xhtml":        `<html><body><h1>Open Water</h1><p>Nothing but sea.</p></body></html>`,
		"OEBPS/style.css":        `body { margin: 0; }`,
		"OEBPS/cover.jpg":        "jpeg-bytes",
	})

	book, err := epub.Extract(r, testOpts)
	require.NoError(t, err)

	require.Equal(t, "The Long Voyage", book.Title)
	require.Equal(t, []string{"Ada Chen", "Li Wei"}, book.Creators)
	require.Equal(t, "zh-Hans", book.Language)

	require.Len(t, book.Chapters, 2)
	require.Equal(t, 1, book.Chapters[0].Number)
	require.Equal(t, "Departure", book.Chapters[0].Title)
	require.Contains(t, book.Chapters[0].Content, "The ship left at dawn.")
	require.Equal(t, 2, book.Chapters[1].Number)
	require.Equal(t, "Open Water", book.Chapters[1].Title)

	require.NotNil(t, book.Cover)
	require.Equal(t, "image/jpeg", book.Cover.MediaType)
	require.Equal(t, "jpeg-bytes", string(book.Cover.Data))
}

func TestExtract_MetadataDefaults(t *testing.T) {
	opf := `<package><metadata></metadata><manifest/><spine/></package>`

	r := writeEpub(t, map[string]string{
		"META-INF/container.xml": containerXML,
		"OEBPS/content.opf":      opf,
	})

	book, err := epub.Extract(r, testOpts)
	require.NoError(t, err)
	require.Equal(t, "Untitled", book.Title)
	require.Equal(t, []string{"Unknown Author"}, book.Creators)
	require.Equal(t, "en", book.Language)
	require.Empty(t, book.Chapters)
	require.Nil(t, book.Cover)
}

func TestExtract_MissingContainer(t *testing.T) {
	r := writeEpub(t, map[string]string{"mimetype": "application/epub+zip"})

	_, err := epub.Extract(r, testOpts)
	require.True(t, errors.Is(err, errors.MissingContainer("")))
}

func TestExtract_InvalidContainer(t *testing.T) {
	r := writeEpub(t, map[string]string{
		"META-INF/container.xml": `<container><rootfiles/></container>`,
	})

	_, err := epub.Extract(r, testOpts)
	require.True(t, errors.Is(err, errors.InvalidContainer("")))
}

func TestExtract_MissingPackageDoc(t *testing.T) {
	r := writeEpub(t, map[string]string{
		"META-INF/container.xml": containerXML,
	})

	_, err := epub.Extract(r, testOpts)
	require.True(t, errors.Is(err, errors.MissingPackageDoc("")))
}

func TestExtract_CoverByProperty(t *testing.T) {
	opf := `<package>
  <metadata><dc:title xmlns:dc="http://purl.org/dc/elements/1.1/">Book</dc:title></metadata>
  <manifest>
    <item id="img1" href="images/front.png" media-type="image/png" properties="cover-image"/>
  </manifest>
  <spine/>
</package>`

	r := writeEpub(t, map[string]string{
		"META-INF/container.xml": containerXML,
		"OEBPS/content.opf":      opf,
		"OEBPS/images/front.png": "png-bytes",
	})

	book, err := epub.Extract(r, testOpts)
	require.NoError(t, err)
	require.NotNil(t, book.Cover)
	require.Equal(t, "image/png", book.Cover.MediaType)
}
