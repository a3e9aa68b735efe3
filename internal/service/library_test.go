package service_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/islabooks/isla/internal/domain"
	"github.com/islabooks/isla/internal/errors"
	"github.com/islabooks/isla/internal/service"
	"github.com/islabooks/isla/internal/store"
	"github.com/stretchr/testify/require"
)

func setupLibrary(t *testing.T) (*service.Library, *store.Store) {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"), nil, store.NewNoopEmitter())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return service.NewLibrary(s, nil, nil), s
}

func createBook(t *testing.T, s *store.Store, title string) *domain.Book {
	t.Helper()

	book := &domain.Book{
		ID:         uuid.NewString(),
		Title:      title,
		Authors:    []string{"Author"},
		Language:   "en",
		Source:     domain.SourceLocal,
		FileFormat: domain.FormatText,
	}
	book.CreatedAt = time.Now().UTC()
	book.UpdatedAt = book.CreatedAt
	require.NoError(t, s.Books.Create(context.Background(), book.ID, book))
	return book
}

func TestSetStatus_LazilyCreatesLibraryItem(t *testing.T) {
	lib, s := setupLibrary(t)
	ctx := context.Background()

	book := createBook(t, s, "First")

	item, err := lib.SetStatus(ctx, book.ID, domain.StatusReading)
	require.NoError(t, err)
	require.Equal(t, domain.StatusReading, item.Status)
	require.Equal(t, book.ID, item.BookID)

	// Second call reuses the same item.
	again, err := lib.SetStatus(ctx, book.ID, domain.StatusFinished)
	require.NoError(t, err)
	require.Equal(t, item.ID, again.ID)
	require.Equal(t, domain.StatusFinished, again.Status)

	count, err := s.LibraryItems.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestSetStatus_UnknownBook(t *testing.T) {
	lib, _ := setupLibrary(t)

	_, err := lib.SetStatus(context.Background(), uuid.NewString(), domain.StatusReading)
	require.True(t, errors.Is(err, errors.NotFound("")))
}

func TestSetStatus_InvalidStatus(t *testing.T) {
	lib, s := setupLibrary(t)
	book := createBook(t, s, "First")

	_, err := lib.SetStatus(context.Background(), book.ID, domain.ReadingStatus("skimming"))
	require.True(t, errors.Is(err, errors.Validation("")))
}

func TestUpdateProgress_AccumulatesMonotonically(t *testing.T) {
	lib, s := setupLibrary(t)
	ctx := context.Background()

	book := createBook(t, s, "First")

	p1, err := lib.UpdateProgress(ctx, book.ID, "chap_1", 0.25, 60)
	require.NoError(t, err)
	require.Equal(t, int64(60), p1.TotalReadingTime)

	p2, err := lib.UpdateProgress(ctx, book.ID, "chap_2", 0.5, 90)
	require.NoError(t, err)
	require.Equal(t, p1.ID, p2.ID)
	require.Equal(t, int64(150), p2.TotalReadingTime)

	// Negative deltas are ignored, never subtracted.
	p3, err := lib.UpdateProgress(ctx, book.ID, "chap_2", 0.6, -500)
	require.NoError(t, err)
	require.Equal(t, int64(150), p3.TotalReadingTime)
}

func TestUpdateProgress_ClampsPosition(t *testing.T) {
	lib, s := setupLibrary(t)
	ctx := context.Background()

	book := createBook(t, s, "First")

	p, err := lib.UpdateProgress(ctx, book.ID, "chap_1", 1.7, 10)
	require.NoError(t, err)
	require.Equal(t, 1.0, p.CurrentPosition)

	p, err = lib.UpdateProgress(ctx, book.ID, "chap_1", -0.3, 10)
	require.NoError(t, err)
	require.Equal(t, 0.0, p.CurrentPosition)
}

func TestGetProgress_NilWhenNeverOpened(t *testing.T) {
	lib, s := setupLibrary(t)
	ctx := context.Background()

	book := createBook(t, s, "Unopened")

	p, err := lib.GetProgress(ctx, book.ID)
	require.NoError(t, err)
	require.Nil(t, p)

	_, err = lib.UpdateProgress(ctx, book.ID, "chap_1", 0.1, 5)
	require.NoError(t, err)

	p, err = lib.GetProgress(ctx, book.ID)
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestListByStatus(t *testing.T) {
	lib, s := setupLibrary(t)
	ctx := context.Background()

	reading := createBook(t, s, "Reading")
	finished := createBook(t, s, "Finished")
	createBook(t, s, "Untouched")

	_, err := lib.SetStatus(ctx, reading.ID, domain.StatusReading)
	require.NoError(t, err)
	_, err = lib.SetStatus(ctx, finished.ID, domain.StatusFinished)
	require.NoError(t, err)

	books, err := lib.ListByStatus(ctx, domain.StatusReading)
	require.NoError(t, err)
	require.Len(t, books, 1)
	require.Equal(t, reading.ID, books[0].ID)
}

func TestCreateHighlight_ValidatesRange(t *testing.T) {
	lib, s := setupLibrary(t)
	ctx := context.Background()

	book := createBook(t, s, "First")

	_, err := lib.CreateHighlight(ctx, service.HighlightInput{
		ChapterID:  "chap_1",
		BookID:     book.ID,
		Text:       "passage",
		RangeStart: 30,
		RangeEnd:   10,
	})
	require.True(t, errors.Is(err, errors.Validation("")))

	hl, err := lib.CreateHighlight(ctx, service.HighlightInput{
		ChapterID:  "chap_1",
		BookID:     book.ID,
		Text:       "passage",
		RangeStart: 10,
		RangeEnd:   30,
		Color:      "yellow",
	})
	require.NoError(t, err)
	require.True(t, hl.ValidRange())
}

func TestListHighlights_OrderedByRange(t *testing.T) {
	lib, s := setupLibrary(t)
	ctx := context.Background()

	book := createBook(t, s, "First")
	for _, start := range []int{40, 5, 20} {
		_, err := lib.CreateHighlight(ctx, service.HighlightInput{
			ChapterID:  "chap_1",
			BookID:     book.ID,
			Text:       "x",
			RangeStart: start,
			RangeEnd:   start + 10,
		})
		require.NoError(t, err)
	}

	highlights, err := lib.ListHighlights(ctx, "chap_1")
	require.NoError(t, err)
	require.Len(t, highlights, 3)
	require.Equal(t, 5, highlights[0].RangeStart)
	require.Equal(t, 20, highlights[1].RangeStart)
	require.Equal(t, 40, highlights[2].RangeStart)
}

func TestAnnotations_CRUD(t *testing.T) {
	lib, s := setupLibrary(t)
	ctx := context.Background()

	book := createBook(t, s, "First")

	an, err := lib.CreateAnnotation(ctx, service.AnnotationInput{
		ChapterID:  "chap_1",
		BookID:     book.ID,
		Content:    "margin note",
		RangeStart: 0,
		RangeEnd:   12,
	})
	require.NoError(t, err)

	list, err := lib.ListAnnotations(ctx, "chap_1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, lib.DeleteAnnotation(ctx, an.ID))
	list, err = lib.ListAnnotations(ctx, "chap_1")
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestListBooks_NewestFirst(t *testing.T) {
	lib, s := setupLibrary(t)
	ctx := context.Background()

	old := createBook(t, s, "Old")
	old.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, s.Books.Update(ctx, old.ID, old))
	fresh := createBook(t, s, "Fresh")

	books, err := lib.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
	require.Equal(t, fresh.ID, books[0].ID)
}
