// Package importer orchestrates bringing book files into the library:
// validation, staging, format dispatch, metadata extraction and persistence.
package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/islabooks/isla/internal/archive"
	"github.com/islabooks/isla/internal/checksum"
	"github.com/islabooks/isla/internal/domain"
	"github.com/islabooks/isla/internal/epub"
	"github.com/islabooks/isla/internal/errors"
	"github.com/islabooks/isla/internal/events"
	"github.com/islabooks/isla/internal/id"
	"github.com/islabooks/isla/internal/media/covers"
	"github.com/islabooks/isla/internal/search"
	"github.com/islabooks/isla/internal/store"
	"github.com/islabooks/isla/internal/textbook"
	"github.com/islabooks/isla/internal/textenc"
)

// Extension sets for file classification (package-level to avoid allocations).
var (
	epubExtensions = map[string]bool{
		".epub": true,
	}
	textExtensions = map[string]bool{
		".txt":  true,
		".text": true,
	}
)

// Options configures an Importer.
type Options struct {
	// BooksPath is the directory book files live under, one subdirectory
	// per book.
	BooksPath string
	// MaxFileSize is the upper bound in bytes for importable files.
	MaxFileSize int64
	// FallbackLanguage is used when a book declares no language.
	FallbackLanguage string
	// FallbackEncoding is the legacy decoder tried for text files after
	// UTF-8 and UTF-16. Zero value means GB18030.
	FallbackEncoding textenc.Fallback
	// PlaceholderAuthor is used when no author can be determined.
	PlaceholderAuthor string
}

// Importer brings book files into the library.
type Importer struct {
	store        *store.Store
	covers       *covers.Storage
	search       *search.Index
	eventEmitter store.EventEmitter
	logger       *slog.Logger
	opts         Options
}

// New creates an Importer. The search index may be nil when indexing is
// disabled.
func New(s *store.Store, coverStorage *covers.Storage, searchIndex *search.Index, emitter store.EventEmitter, logger *slog.Logger, opts Options) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PlaceholderAuthor == "" {
		opts.PlaceholderAuthor = "Unknown Author"
	}
	if opts.FallbackLanguage == "" {
		opts.FallbackLanguage = "en"
	}
	return &Importer{
		store:        s,
		covers:       coverStorage,
		search:       searchIndex,
		eventEmitter: emitter,
		logger:       logger,
		opts:         opts,
	}
}

// Validate prechecks a file without importing it: existence, size ceiling
// and the declared-type allow-list.
func (i *Importer) Validate(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return errors.FileNotFound(fmt.Sprintf("file does not exist: %s", path))
	}
	if err != nil {
		return errors.Internal("stat import candidate", err)
	}
	if info.IsDir() {
		return errors.UnsupportedFileType(fmt.Sprintf("%s is a directory", path))
	}
	if i.opts.MaxFileSize > 0 && info.Size() > i.opts.MaxFileSize {
		return errors.FileTooLarge(fmt.Sprintf("file is %d bytes, limit is %d", info.Size(), i.opts.MaxFileSize))
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !epubExtensions[ext] && !textExtensions[ext] {
		return errors.UnsupportedFileType(fmt.Sprintf("unsupported file type %q", ext))
	}
	return nil
}

// Import validates, stages and parses the file at sourcePath, persisting a
// new Book with its chapters. No partial book record survives a failure:
// the staging directory and any half-written records are removed on every
// exit path.
func (i *Importer) Import(ctx context.Context, sourcePath string) (*domain.Book, error) {
	if err := i.Validate(sourcePath); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Each import stages into its own directory keyed by the new book's ID,
	// so concurrent imports of same-named files cannot collide.
	bookID := uuid.NewString()
	stagingDir := filepath.Join(i.opts.BooksPath, bookID)
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, errors.CopyFailed("create staging directory", err)
	}

	keep := false
	defer func() {
		if !keep {
			_ = os.RemoveAll(stagingDir)
		}
	}()

	stagedPath := filepath.Join(stagingDir, filepath.Base(sourcePath))
	if err := copyFile(sourcePath, stagedPath); err != nil {
		return nil, errors.CopyFailed(fmt.Sprintf("copy %s into staging", sourcePath), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(sourcePath))
	var (
		book  *domain.Book
		parts []chapterPart
		cover *epub.Cover
		err   error
	)
	switch {
	case epubExtensions[ext]:
		book, parts, cover, err = i.parseEpub(stagedPath)
	default:
		book, parts, err = i.parseText(stagedPath)
	}
	if err != nil {
		return nil, err
	}

	sum, err := checksum.File(stagedPath)
	if err != nil {
		return nil, errors.Internal("checksum staged file", err)
	}

	now := time.Now().UTC()
	book.ID = bookID
	book.CreatedAt = now
	book.UpdatedAt = now
	book.Source = domain.SourceLocal
	book.FilePath = stagedPath
	book.FileChecksum = sum

	// Cover extraction is best-effort: a book without a cover is complete.
	if cover != nil && i.covers != nil {
		saved, coverErr := i.covers.Save(bookID, cover.Data, cover.MediaType)
		if coverErr != nil {
			i.logger.Warn("cover extraction failed", "book_id", bookID, "error", coverErr)
		} else {
			book.CoverImagePath = saved.Path
			book.CoverBlurHash = saved.BlurHash
		}
	}

	if err := i.persist(ctx, book, parts); err != nil {
		if i.covers != nil {
			_ = i.covers.Delete(bookID)
		}
		return nil, err
	}
	keep = true

	if i.search != nil {
		if err := i.search.IndexBook(ctx, book); err != nil {
			i.logger.Warn("search indexing failed", "book_id", bookID, "error", err)
		}
	}

	i.logger.Info("imported book",
		"book_id", book.ID,
		"title", book.Title,
		"format", book.FileFormat,
		"chapters", len(parts),
	)
	i.eventEmitter.Emit(events.Event{Type: events.TypeBookImported, Payload: book})

	return book, nil
}

// chapterPart is extracted chapter content awaiting persistence.
type chapterPart struct {
	title   string
	content string
}

func (i *Importer) parseEpub(stagedPath string) (*domain.Book, []chapterPart, *epub.Cover, error) {
	r, err := archive.Open(stagedPath)
	if err != nil {
		return nil, nil, nil, err
	}
	defer r.Close()

	extracted, err := epub.Extract(r, epub.Options{
		FallbackLanguage:  i.opts.FallbackLanguage,
		PlaceholderAuthor: i.opts.PlaceholderAuthor,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	book := &domain.Book{
		Title:      extracted.Title,
		Authors:    extracted.Creators,
		Language:   extracted.Language,
		FileFormat: domain.FormatEPUB,
	}
	parts := make([]chapterPart, 0, len(extracted.Chapters))
	for _, ch := range extracted.Chapters {
		parts = append(parts, chapterPart{title: ch.Title, content: ch.Content})
	}
	return book, parts, extracted.Cover, nil
}

func (i *Importer) parseText(stagedPath string) (*domain.Book, []chapterPart, error) {
	data, err := os.ReadFile(stagedPath)
	if err != nil {
		return nil, nil, errors.Internal("read staged text file", err)
	}

	stem := strings.TrimSuffix(filepath.Base(stagedPath), filepath.Ext(stagedPath))
	analysis, err := textbook.Analyze(data, textbook.Options{
		FilenameStem:     stem,
		FallbackEncoding: i.opts.FallbackEncoding,
	})
	if err != nil {
		return nil, nil, err
	}

	authors := []string{i.opts.PlaceholderAuthor}
	if analysis.Author != "" {
		authors = []string{analysis.Author}
	}
	book := &domain.Book{
		Title:      analysis.Title,
		Authors:    authors,
		Language:   analysis.Language,
		FileFormat: domain.FormatText,
	}
	parts := make([]chapterPart, 0, len(analysis.Chapters))
	for _, ch := range analysis.Chapters {
		parts = append(parts, chapterPart{title: ch.Title, content: ch.Content})
	}
	return book, parts, nil
}

// persist writes the book and its chapters. A chapter failure rolls the
// whole book back so no partial record remains.
func (i *Importer) persist(ctx context.Context, book *domain.Book, parts []chapterPart) error {
	if err := i.store.Books.Create(ctx, book.ID, book); err != nil {
		return errors.Persistence("create book record", err)
	}

	for n, part := range parts {
		ch := &domain.Chapter{
			ID:        id.MustGenerate(id.PrefixChapter),
			BookID:    book.ID,
			Number:    n + 1,
			Title:     part.title,
			Content:   part.content,
			CreatedAt: time.Now().UTC(),
		}
		if err := i.store.Chapters.Create(ctx, ch.ID, ch); err != nil {
			_ = i.store.DeleteBookCascade(context.WithoutCancel(ctx), book.ID)
			return errors.Persistence(fmt.Sprintf("create chapter %d", n+1), err)
		}
	}
	return nil
}

// copyFile copies src to dst, syncing the destination before returning.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
