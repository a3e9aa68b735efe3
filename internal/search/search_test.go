package search_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/islabooks/isla/internal/domain"
	"github.com/islabooks/isla/internal/search"
	"github.com/stretchr/testify/require"
)

func setupIndex(t *testing.T) *search.Index {
	t.Helper()

	idx, err := search.New(filepath.Join(t.TempDir(), "search.bleve"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func indexBook(t *testing.T, idx *search.Index, title string, authors ...string) *domain.Book {
	t.Helper()

	book := &domain.Book{
		ID:      uuid.NewString(),
		Title:   title,
		Authors: authors,
	}
	require.NoError(t, idx.IndexBook(context.Background(), book))
	return book
}

func TestSearch_ByTitle(t *testing.T) {
	idx := setupIndex(t)

	want := indexBook(t, idx, "The Long Voyage", "Ada Chen")
	indexBook(t, idx, "Mountain Paths", "Li Wei")

	hits, err := idx.Search(context.Background(), "voyage", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, want.ID, hits[0].BookID)
	require.Equal(t, "The Long Voyage", hits[0].Title)
}

func TestSearch_ByAuthor(t *testing.T) {
	idx := setupIndex(t)

	want := indexBook(t, idx, "Mountain Paths", "Li Wei")
	indexBook(t, idx, "The Long Voyage", "Ada Chen")

	hits, err := idx.Search(context.Background(), "Wei", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, want.ID, hits[0].BookID)
}

func TestSearch_ChineseTitle(t *testing.T) {
	idx := setupIndex(t)

	want := indexBook(t, idx, "雪夜奇缘", "林晚")
	indexBook(t, idx, "The Long Voyage", "Ada Chen")

	hits, err := idx.Search(context.Background(), "雪夜", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, want.ID, hits[0].BookID)
}

func TestSearch_EmptyQuery(t *testing.T) {
	idx := setupIndex(t)
	indexBook(t, idx, "Anything", "Anyone")

	hits, err := idx.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestDeleteBook_RemovesFromResults(t *testing.T) {
	idx := setupIndex(t)
	ctx := context.Background()

	book := indexBook(t, idx, "Ephemeral", "Nobody")
	require.NoError(t, idx.DeleteBook(ctx, book.ID))

	hits, err := idx.Search(ctx, "ephemeral", 10)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestRebuild(t *testing.T) {
	idx := setupIndex(t)
	ctx := context.Background()

	books := []*domain.Book{
		{ID: uuid.NewString(), Title: "Alpha Station", Authors: []string{"A"}},
		{ID: uuid.NewString(), Title: "Beta Crossing", Authors: []string{"B"}},
	}
	require.NoError(t, idx.Rebuild(ctx, books))

	hits, err := idx.Search(ctx, "beta", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, books[1].ID, hits[0].BookID)
}
