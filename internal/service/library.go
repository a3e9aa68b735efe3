// Package service provides the business logic layer over the store: book
// listing, reading status, progress tracking and annotations.
package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/islabooks/isla/internal/domain"
	"github.com/islabooks/isla/internal/errors"
	"github.com/islabooks/isla/internal/id"
	"github.com/islabooks/isla/internal/search"
	"github.com/islabooks/isla/internal/store"
	"github.com/islabooks/isla/internal/validation"
)

// LocalUserID identifies the single local reader. Kept explicit so records
// stay attributable if multi-user support ever lands.
const LocalUserID = "local"

// Library exposes read and write operations over the book library.
type Library struct {
	store     *store.Store
	search    *search.Index
	validator *validation.Validator
	logger    *slog.Logger
	userID    string
}

// NewLibrary creates the library service. The search index may be nil.
func NewLibrary(s *store.Store, searchIndex *search.Index, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{
		store:     s,
		search:    searchIndex,
		validator: validation.New(),
		logger:    logger,
		userID:    LocalUserID,
	}
}

// ListBooks returns all books, most recently updated first.
func (l *Library) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	books, err := l.store.Books.All(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(books, func(i, j int) bool {
		return books[i].UpdatedAt.After(books[j].UpdatedAt)
	})
	return books, nil
}

// GetBook returns one book by ID.
func (l *Library) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	book, err := l.store.Books.Get(ctx, bookID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.NotFound("book not found")
	}
	return book, err
}

// GetChapters returns a book's chapters ordered by number.
func (l *Library) GetChapters(ctx context.Context, bookID string) ([]*domain.Chapter, error) {
	chapters, err := l.store.Chapters.FindByIndex(ctx, "book", bookID)
	if err != nil {
		return nil, err
	}
	sort.Slice(chapters, func(i, j int) bool {
		return chapters[i].Number < chapters[j].Number
	})
	return chapters, nil
}

// SearchBooks finds books matching the query by title or author.
func (l *Library) SearchBooks(ctx context.Context, query string, limit int) ([]*domain.Book, error) {
	if l.search == nil {
		return nil, errors.Internal("search index not configured", nil)
	}

	hits, err := l.search.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	books := make([]*domain.Book, 0, len(hits))
	for _, hit := range hits {
		book, err := l.store.Books.Get(ctx, hit.BookID)
		if errors.Is(err, store.ErrNotFound) {
			// Index lag after a delete. Skip the stale hit.
			continue
		}
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, nil
}

// ListByStatus returns books whose library item carries the given status.
func (l *Library) ListByStatus(ctx context.Context, status domain.ReadingStatus) ([]*domain.Book, error) {
	if !status.Valid() {
		return nil, errors.Validation("invalid reading status")
	}

	var books []*domain.Book
	for item, err := range l.store.LibraryItems.List(ctx) {
		if err != nil {
			return nil, err
		}
		if item.Status != status || item.UserID != l.userID {
			continue
		}
		book, err := l.store.Books.Get(ctx, item.BookID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	sort.Slice(books, func(i, j int) bool {
		return books[i].UpdatedAt.After(books[j].UpdatedAt)
	})
	return books, nil
}

// SetStatus sets a book's reading status, lazily creating its library item.
func (l *Library) SetStatus(ctx context.Context, bookID string, status domain.ReadingStatus) (*domain.LibraryItem, error) {
	if !status.Valid() {
		return nil, errors.Validation("invalid reading status")
	}
	if _, err := l.GetBook(ctx, bookID); err != nil {
		return nil, err
	}

	item, err := l.getOrCreateItem(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if item.Status == status {
		return item, nil
	}

	item.Status = status
	item.Touch()
	if err := l.store.LibraryItems.Update(ctx, item.ID, item); err != nil {
		return nil, errors.Persistence("update library item", err)
	}
	return item, nil
}

// UpdateProgress records a reading session: position within the book, the
// chapter being read and the elapsed seconds. Library item and progress
// records are created lazily on first read.
func (l *Library) UpdateProgress(ctx context.Context, bookID, chapterID string, position float64, deltaSeconds int64) (*domain.ReadingProgress, error) {
	if _, err := l.GetBook(ctx, bookID); err != nil {
		return nil, err
	}

	item, err := l.getOrCreateItem(ctx, bookID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	progress, err := l.store.Progress.GetByIndex(ctx, "library_item", item.ID)
	if errors.Is(err, store.ErrNotFound) {
		progress = &domain.ReadingProgress{
			LibraryItemID: item.ID,
			BookID:        bookID,
			UserID:        l.userID,
		}
		progress.ID = id.MustGenerate(id.PrefixProgress)
		progress.InitTimestamps()
		if err := l.store.Progress.Create(ctx, progress.ID, progress); err != nil {
			return nil, errors.Persistence("create reading progress", err)
		}
	} else if err != nil {
		return nil, err
	}

	progress.CurrentPosition = position
	progress.ClampPosition()
	progress.CurrentChapterID = chapterID
	progress.AddReadingTime(deltaSeconds)
	progress.LastReadAt = now
	progress.Touch()
	if err := l.store.Progress.Update(ctx, progress.ID, progress); err != nil {
		return nil, errors.Persistence("update reading progress", err)
	}

	item.LastReadAt = now
	item.Touch()
	if err := l.store.LibraryItems.Update(ctx, item.ID, item); err != nil {
		return nil, errors.Persistence("update library item", err)
	}

	return progress, nil
}

// GetProgress returns the reading progress for a book, or nil when the book
// has never been opened.
func (l *Library) GetProgress(ctx context.Context, bookID string) (*domain.ReadingProgress, error) {
	item, err := l.store.LibraryItems.GetByIndex(ctx, "book_user", bookID+":"+l.userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	progress, err := l.store.Progress.GetByIndex(ctx, "library_item", item.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return progress, err
}

func (l *Library) getOrCreateItem(ctx context.Context, bookID string) (*domain.LibraryItem, error) {
	item, err := l.store.LibraryItems.GetByIndex(ctx, "book_user", bookID+":"+l.userID)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	item = &domain.LibraryItem{
		BookID:  bookID,
		UserID:  l.userID,
		Status:  domain.StatusWantToRead,
		AddedAt: time.Now().UTC(),
	}
	item.ID = id.MustGenerate(id.PrefixLibrary)
	item.InitTimestamps()
	if err := l.store.LibraryItems.Create(ctx, item.ID, item); err != nil {
		return nil, errors.Persistence("create library item", err)
	}
	return item, nil
}

// HighlightInput is the payload for creating a highlight.
type HighlightInput struct {
	ChapterID  string `json:"chapter_id" validate:"required"`
	BookID     string `json:"book_id" validate:"required"`
	Text       string `json:"text" validate:"required"`
	RangeStart int    `json:"range_start" validate:"gte=0"`
	RangeEnd   int    `json:"range_end" validate:"gtfield=RangeStart"`
	Color      string `json:"color"`
	Note       string `json:"note"`
}

// CreateHighlight validates and stores a highlight.
func (l *Library) CreateHighlight(ctx context.Context, input HighlightInput) (*domain.Highlight, error) {
	if err := l.validator.Validate(input); err != nil {
		return nil, err
	}

	hl := &domain.Highlight{
		ChapterID:  input.ChapterID,
		BookID:     input.BookID,
		UserID:     l.userID,
		Text:       input.Text,
		RangeStart: input.RangeStart,
		RangeEnd:   input.RangeEnd,
		Color:      input.Color,
		Note:       input.Note,
	}
	hl.ID = id.MustGenerate(id.PrefixHighlight)
	hl.InitTimestamps()

	if err := l.store.Highlights.Create(ctx, hl.ID, hl); err != nil {
		return nil, errors.Persistence("create highlight", err)
	}
	return hl, nil
}

// ListHighlights returns a chapter's highlights ordered by range start.
func (l *Library) ListHighlights(ctx context.Context, chapterID string) ([]*domain.Highlight, error) {
	highlights, err := l.store.Highlights.FindByIndex(ctx, "chapter", chapterID)
	if err != nil {
		return nil, err
	}
	sort.Slice(highlights, func(i, j int) bool {
		return highlights[i].RangeStart < highlights[j].RangeStart
	})
	return highlights, nil
}

// DeleteHighlight removes a highlight.
func (l *Library) DeleteHighlight(ctx context.Context, highlightID string) error {
	return l.store.Highlights.Delete(ctx, highlightID)
}

// AnnotationInput is the payload for creating an annotation.
type AnnotationInput struct {
	ChapterID  string `json:"chapter_id" validate:"required"`
	BookID     string `json:"book_id" validate:"required"`
	Content    string `json:"content" validate:"required"`
	RangeStart int    `json:"range_start" validate:"gte=0"`
	RangeEnd   int    `json:"range_end" validate:"gtfield=RangeStart"`
}

// CreateAnnotation validates and stores an annotation.
func (l *Library) CreateAnnotation(ctx context.Context, input AnnotationInput) (*domain.Annotation, error) {
	if err := l.validator.Validate(input); err != nil {
		return nil, err
	}

	an := &domain.Annotation{
		ChapterID:  input.ChapterID,
		BookID:     input.BookID,
		UserID:     l.userID,
		Content:    input.Content,
		RangeStart: input.RangeStart,
		RangeEnd:   input.RangeEnd,
	}
	an.ID = id.MustGenerate(id.PrefixAnnotation)
	an.InitTimestamps()

	if err := l.store.Annotations.Create(ctx, an.ID, an); err != nil {
		return nil, errors.Persistence("create annotation", err)
	}
	return an, nil
}

// ListAnnotations returns a chapter's annotations ordered by range start.
func (l *Library) ListAnnotations(ctx context.Context, chapterID string) ([]*domain.Annotation, error) {
	annotations, err := l.store.Annotations.FindByIndex(ctx, "chapter", chapterID)
	if err != nil {
		return nil, err
	}
	sort.Slice(annotations, func(i, j int) bool {
		return annotations[i].RangeStart < annotations[j].RangeStart
	})
	return annotations, nil
}

// DeleteAnnotation removes an annotation.
func (l *Library) DeleteAnnotation(ctx context.Context, annotationID string) error {
	return l.store.Annotations.Delete(ctx, annotationID)
}
