// Package archive reads zip containers such as EPUB files.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"iter"
	"path"
	"strings"

	"github.com/islabooks/isla/internal/errors"
)

// Reader wraps an open zip archive.
type Reader struct {
	zr      *zip.ReadCloser
	entries map[string]*zip.File
}

// Entry is one file inside the archive.
type Entry struct {
	file *zip.File
}

// Open opens a zip archive for reading. A file that is not a valid zip
// container yields a CodeCorruptArchive error.
func Open(filePath string) (*Reader, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, errors.CorruptArchive(fmt.Sprintf("open archive %s", filePath), err)
	}

	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[normalizeEntryPath(f.Name)] = f
	}

	return &Reader{zr: zr, entries: entries}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.zr.Close()
}

// Lookup finds an entry by archive path. Lookups tolerate leading "./" and
// slash differences between archive writers.
func (r *Reader) Lookup(entryPath string) (*Entry, bool) {
	f, ok := r.entries[normalizeEntryPath(entryPath)]
	if !ok {
		return nil, false
	}
	return &Entry{file: f}, true
}

// Names returns the normalized paths of all entries.
func (r *Reader) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

// Name returns the entry's normalized archive path.
func (e *Entry) Name() string {
	return normalizeEntryPath(e.file.Name)
}

// Bytes reads the whole entry into memory.
func (e *Entry) Bytes() ([]byte, error) {
	rc, err := e.file.Open()
	if err != nil {
		return nil, errors.CorruptArchive(fmt.Sprintf("open entry %s", e.file.Name), err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.CorruptArchive(fmt.Sprintf("read entry %s", e.file.Name), err)
	}
	return data, nil
}

// Chunks streams the entry's contents in chunkSize pieces. The sequence is
// single-pass; breaking out of the loop closes the entry.
func (e *Entry) Chunks(chunkSize int) iter.Seq2[[]byte, error] {
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	return func(yield func([]byte, error) bool) {
		rc, err := e.file.Open()
		if err != nil {
			yield(nil, errors.CorruptArchive(fmt.Sprintf("open entry %s", e.file.Name), err))
			return
		}
		defer rc.Close()

		buf := make([]byte, chunkSize)
		for {
			n, err := rc.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				if !yield(chunk, nil) {
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, errors.CorruptArchive(fmt.Sprintf("read entry %s", e.file.Name), err))
				return
			}
		}
	}
}

// normalizeEntryPath canonicalizes archive paths so lookups match across
// writers that emit "./OEBPS/ch1.xhtml" or backslash separators.
func normalizeEntryPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(p)
	return strings.TrimPrefix(p, "/")
}
