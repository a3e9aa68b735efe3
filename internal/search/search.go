// Package search maintains a Bleve full-text index over the library's books.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/islabooks/isla/internal/domain"
)

// Index wraps a Bleve index with book-specific operations.
//
// Thread safety: all public methods are safe for concurrent use.
type Index struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// document is the indexed representation of a book.
type document struct {
	Title    string `json:"title"`
	Authors  string `json:"authors"`
	Language string `json:"language"`
}

// Hit is a single search result.
type Hit struct {
	BookID string  `json:"book_id"`
	Score  float64 `json:"score"`
	Title  string  `json:"title"`
}

// New creates or opens the search index at path. A corrupted index is
// removed and recreated; the library is the source of truth, so losing the
// index only costs a rebuild.
func New(path string, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}

	index, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create search index: %w", err)
		}
		logger.Info("created new search index", "path", path)
	} else if err != nil {
		logger.Warn("failed to open existing search index, recreating", "path", path, "error", err)
		if removeErr := os.RemoveAll(path); removeErr != nil {
			return nil, fmt.Errorf("remove corrupted index: %w", removeErr)
		}
		index, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("recreate search index: %w", err)
		}
	} else {
		logger.Info("opened existing search index", "path", path)
	}

	return &Index{index: index, path: path, logger: logger}, nil
}

// buildIndexMapping creates the Bleve mapping for book documents. The CJK
// analyzer handles the mixed Chinese and English titles this library holds.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = cjk.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = cjk.AnalyzerName
	titleField.Store = true
	titleField.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("title", titleField)

	authorsField := bleve.NewTextFieldMapping()
	authorsField.Analyzer = cjk.AnalyzerName
	authorsField.Store = true
	docMapping.AddFieldMappingsAt("authors", authorsField)

	languageField := bleve.NewTextFieldMapping()
	languageField.Analyzer = keyword.Name
	languageField.Store = true
	docMapping.AddFieldMappingsAt("language", languageField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// Close closes the index and releases resources.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Close()
}

// IndexBook adds or updates a book in the index.
func (i *Index) IndexBook(ctx context.Context, book *domain.Book) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	doc := document{
		Title:    book.Title,
		Authors:  strings.Join(book.Authors, " "),
		Language: book.Language,
	}
	if err := i.index.Index(book.ID, doc); err != nil {
		return fmt.Errorf("index book %s: %w", book.ID, err)
	}
	return nil
}

// DeleteBook removes a book from the index. Deleting an unindexed book is
// not an error.
func (i *Index) DeleteBook(ctx context.Context, bookID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.Delete(bookID)
}

// Search finds books matching the query across title and authors.
func (i *Index) Search(ctx context.Context, queryText string, limit int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return nil, nil
	}

	titleMatch := bleve.NewMatchQuery(queryText)
	titleMatch.SetField("title")
	titleMatch.SetBoost(2.0)

	authorMatch := bleve.NewMatchQuery(queryText)
	authorMatch.SetField("authors")

	titlePrefix := bleve.NewPrefixQuery(strings.ToLower(queryText))
	titlePrefix.SetField("title")

	q := bleve.NewDisjunctionQuery([]query.Query{titleMatch, authorMatch, titlePrefix}...)

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"title"}

	i.mu.RLock()
	res, err := i.index.SearchInContext(ctx, req)
	i.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{BookID: h.ID, Score: h.Score}
		if title, ok := h.Fields["title"].(string); ok {
			hit.Title = title
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Rebuild reindexes the given books from scratch.
func (i *Index) Rebuild(ctx context.Context, books []*domain.Book) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	batch := i.index.NewBatch()
	for _, book := range books {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := document{
			Title:    book.Title,
			Authors:  strings.Join(book.Authors, " "),
			Language: book.Language,
		}
		if err := batch.Index(book.ID, doc); err != nil {
			return fmt.Errorf("batch index %s: %w", book.ID, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("apply batch: %w", err)
	}
	return nil
}
