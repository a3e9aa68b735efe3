// Package lifecycle manages destructive data operations: scoped and full
// deletion, and archive export.
package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/islabooks/isla/internal/domain"
	"github.com/islabooks/isla/internal/errors"
	"github.com/islabooks/isla/internal/events"
	"github.com/islabooks/isla/internal/media/covers"
	"github.com/islabooks/isla/internal/search"
	"github.com/islabooks/isla/internal/store"
	syncpkg "github.com/islabooks/isla/internal/sync"
)

// clearedPreferenceKeys are wiped by a full reset. Everything else —
// notably display preferences like font size and night mode — survives.
var clearedPreferenceKeys = []string{
	"user_properties",
	"stored_events",
	"anonymous_user_id",
	"last_sync_date",
	"ai_cache",
	"reading_statistics",
}

// Paths are the filesystem roots the manager owns.
type Paths struct {
	Books  string
	Covers string
	Cache  string
	Export string
}

// Manager performs data lifecycle operations.
type Manager struct {
	store        *store.Store
	covers       *covers.Storage
	search       *search.Index
	records      syncpkg.RecordStore
	eventEmitter store.EventEmitter
	logger       *slog.Logger
	paths        Paths
	appVersion   string
}

// New creates a lifecycle manager. covers, search and records may be nil
// when the corresponding subsystem is disabled.
func New(s *store.Store, coverStorage *covers.Storage, searchIndex *search.Index, records syncpkg.RecordStore, emitter store.EventEmitter, logger *slog.Logger, paths Paths, appVersion string) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:        s,
		covers:       coverStorage,
		search:       searchIndex,
		records:      records,
		eventEmitter: emitter,
		logger:       logger,
		paths:        paths,
		appVersion:   appVersion,
	}
}

// DeleteBook removes a book and everything hanging off it: store records,
// the book's file directory, its cover and its search entry.
func (m *Manager) DeleteBook(ctx context.Context, bookID string) error {
	book, err := m.store.Books.Get(ctx, bookID)
	if errors.Is(err, store.ErrNotFound) {
		return errors.NotFound("book not found")
	}
	if err != nil {
		return err
	}

	if err := m.store.DeleteBookCascade(ctx, bookID); err != nil {
		return errors.Persistence("delete book records", err)
	}

	// Store records are gone; filesystem and index cleanup is best-effort
	// from here, orphaned files are harmless.
	if book.FilePath != "" {
		if err := os.RemoveAll(filepath.Dir(book.FilePath)); err != nil {
			m.logger.Warn("remove book directory", "book_id", bookID, "error", err)
		}
	}
	if m.covers != nil {
		if err := m.covers.Delete(bookID); err != nil {
			m.logger.Warn("remove book cover", "book_id", bookID, "error", err)
		}
	}
	if m.search != nil {
		if err := m.search.DeleteBook(ctx, bookID); err != nil {
			m.logger.Warn("remove book from search index", "book_id", bookID, "error", err)
		}
	}

	m.eventEmitter.Emit(events.Event{Type: events.TypeBookDeleted, Payload: bookID})
	return nil
}

// DeleteReadingData removes a book's progress, highlights and annotations
// while keeping the book itself readable.
func (m *Manager) DeleteReadingData(ctx context.Context, bookID string) error {
	if err := m.store.DeleteReadingData(ctx, bookID); err != nil {
		return errors.Persistence("delete reading data", err)
	}
	return nil
}

// DeleteAllUserData performs a full reset: remote records (best-effort),
// all local entity records, book files, covers and caches, and the
// non-display preference keys. Display preferences survive so the app does
// not forget how the user reads.
//
// The store cascade is atomic; the filesystem steps after it are not, and a
// crash between them leaves only orphaned files.
func (m *Manager) DeleteAllUserData(ctx context.Context) error {
	if m.records != nil {
		for _, kind := range domain.SyncableKinds {
			if err := m.records.DeleteAll(ctx, kind); err != nil {
				m.logger.Warn("remote delete failed", "kind", kind, "error", err)
			}
		}
	}

	// Snapshot book IDs before the cascade so the search index can be
	// emptied afterwards.
	books, err := m.store.Books.All(ctx)
	if err != nil {
		return errors.Persistence("list books for reset", err)
	}

	if err := m.store.DeleteAllData(ctx); err != nil {
		return errors.Persistence("delete local records", err)
	}

	for _, dir := range []string{m.paths.Books, m.paths.Covers, m.paths.Cache} {
		if dir == "" {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			m.logger.Warn("remove data directory", "dir", dir, "error", err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			m.logger.Warn("recreate data directory", "dir", dir, "error", err)
		}
	}

	if err := m.store.DeletePreferences(clearedPreferenceKeys...); err != nil {
		return errors.Persistence("clear preferences", err)
	}

	if m.search != nil {
		for _, book := range books {
			if err := m.search.DeleteBook(ctx, book.ID); err != nil {
				m.logger.Warn("remove book from search index", "book_id", book.ID, "error", err)
			}
		}
	}

	m.logger.Info("all user data deleted")
	m.eventEmitter.Emit(events.Event{Type: events.TypeDataReset})
	return nil
}
