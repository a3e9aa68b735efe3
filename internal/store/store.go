package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/islabooks/isla/internal/domain"
)

// EventEmitter is the interface for broadcasting store changes.
// Store uses this to notify listeners without depending on the event bus.
type EventEmitter interface {
	Emit(event any)
}

// NoopEmitter is a no-op implementation of EventEmitter for testing.
type NoopEmitter struct{}

// Emit implements EventEmitter.Emit as a no-op.
func (NoopEmitter) Emit(_ any) {}

// NewNoopEmitter creates a new no-op emitter for testing.
func NewNoopEmitter() EventEmitter {
	return NoopEmitter{}
}

// BookDeleted is emitted after a book and its dependent records have been
// removed from the store.
type BookDeleted struct {
	BookID string
}

// ReadingDataDeleted is emitted after a book's reading data (progress,
// highlights, annotations) has been removed while the book itself remains.
type ReadingDataDeleted struct {
	BookID string
}

// prefPrefix namespaces preference keys away from entity records.
const prefPrefix = "pref:"

// Store wraps a Badger database instance holding all library records.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	eventEmitter EventEmitter

	// Generic entities
	Books        *Entity[domain.Book]
	Chapters     *Entity[domain.Chapter]
	LibraryItems *Entity[domain.LibraryItem]
	Progress     *Entity[domain.ReadingProgress]
	Highlights   *Entity[domain.Highlight]
	Annotations  *Entity[domain.Annotation]
}

// New creates a new Store instance with the given database path and event
// emitter. The emitter is required and used to broadcast store changes.
func New(path string, logger *slog.Logger, emitter EventEmitter) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	store := &Store{
		db:           db,
		logger:       logger,
		eventEmitter: emitter,
	}

	store.initBooks()
	store.initChapters()
	store.initLibraryItems()
	store.initProgress()
	store.initHighlights()
	store.initAnnotations()

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return store, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// initBooks initializes the Books entity on the store.
// The checksum index is non-unique: re-importing the same file produces a
// second, independent book.
func (s *Store) initBooks() {
	s.Books = NewEntity[domain.Book](s, "book:").
		WithMultiIndex("checksum", func(b *domain.Book) []string {
			return []string{b.FileChecksum}
		})
}

// initChapters initializes the Chapters entity on the store.
func (s *Store) initChapters() {
	s.Chapters = NewEntity[domain.Chapter](s, "chap:").
		WithMultiIndex("book", func(c *domain.Chapter) []string {
			return []string{c.BookID}
		})
}

// initLibraryItems initializes the LibraryItems entity on the store.
// One library item per (book, user) pair.
func (s *Store) initLibraryItems() {
	s.LibraryItems = NewEntity[domain.LibraryItem](s, "li:").
		WithIndex("book_user", func(li *domain.LibraryItem) []string {
			return []string{li.BookID + ":" + li.UserID}
		}).
		WithMultiIndex("book", func(li *domain.LibraryItem) []string {
			return []string{li.BookID}
		})
}

// initProgress initializes the Progress entity on the store.
// One progress record per library item; the remote index maps CloudKit-style
// record identifiers back to local records during sync.
func (s *Store) initProgress() {
	s.Progress = NewEntity[domain.ReadingProgress](s, "rp:").
		WithIndex("library_item", func(rp *domain.ReadingProgress) []string {
			return []string{rp.LibraryItemID}
		}).
		WithIndex("remote", func(rp *domain.ReadingProgress) []string {
			return []string{rp.RemoteRecordID}
		}).
		WithMultiIndex("book", func(rp *domain.ReadingProgress) []string {
			return []string{rp.BookID}
		})
}

// initHighlights initializes the Highlights entity on the store.
func (s *Store) initHighlights() {
	s.Highlights = NewEntity[domain.Highlight](s, "hl:").
		WithIndex("remote", func(h *domain.Highlight) []string {
			return []string{h.RemoteRecordID}
		}).
		WithMultiIndex("chapter", func(h *domain.Highlight) []string {
			return []string{h.ChapterID}
		}).
		WithMultiIndex("book", func(h *domain.Highlight) []string {
			return []string{h.BookID}
		})
}

// initAnnotations initializes the Annotations entity on the store.
func (s *Store) initAnnotations() {
	s.Annotations = NewEntity[domain.Annotation](s, "an:").
		WithIndex("remote", func(a *domain.Annotation) []string {
			return []string{a.RemoteRecordID}
		}).
		WithMultiIndex("chapter", func(a *domain.Annotation) []string {
			return []string{a.ChapterID}
		}).
		WithMultiIndex("book", func(a *domain.Annotation) []string {
			return []string{a.BookID}
		})
}

// Preferences

// SetPreference stores a named preference value.
func (s *Store) SetPreference(key, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefPrefix+key), []byte(value))
	})
}

// GetPreference returns a preference value, or ErrNotFound if unset.
func (s *Store) GetPreference(key string) (string, error) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	return value, err
}

// DeletePreferences removes the named preference keys. Missing keys are
// ignored.
func (s *Store) DeletePreferences(keys ...string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(prefPrefix + key)); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListPreferences returns all stored preferences as a key/value map.
func (s *Store) ListPreferences() (map[string]string, error) {
	prefs := make(map[string]string)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefPrefix)); it.ValidForPrefix([]byte(prefPrefix)); it.Next() {
			key := strings.TrimPrefix(string(it.Item().Key()), prefPrefix)
			if err := it.Item().Value(func(val []byte) error {
				prefs[key] = string(val)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prefs, nil
}

// Cascade deletes

// DeleteBookCascade removes a book together with its chapters, library items,
// reading progress, highlights and annotations. All deletions happen in a
// single transaction: either everything goes or nothing does.
func (s *Store) DeleteBookCascade(ctx context.Context, bookID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ids, err := s.collectBookRecordIDs(bookID)
	if err != nil {
		return err
	}
	ids[domain.EntityBook] = []string{bookID}

	err = s.db.Update(func(txn *badger.Txn) error {
		// Leaf records first, the book itself last.
		for _, kind := range domain.DeleteOrder {
			for _, id := range ids[kind] {
				if err := s.deleteEntityTxn(txn, kind, id); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.eventEmitter.Emit(BookDeleted{BookID: bookID})
	return nil
}

// DeleteReadingData removes a book's reading progress, highlights and
// annotations while keeping the book, its chapters and its library items.
func (s *Store) DeleteReadingData(ctx context.Context, bookID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ids, err := s.collectBookRecordIDs(bookID)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, kind := range readingDataKinds {
			for _, id := range ids[kind] {
				if err := s.deleteEntityTxn(txn, kind, id); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.eventEmitter.Emit(ReadingDataDeleted{BookID: bookID})
	return nil
}

// DeleteAllData removes every entity record from the store. Preferences are
// not touched; callers decide which preference keys survive a reset.
func (s *Store) DeleteAllData(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		for _, kind := range domain.DeleteOrder {
			prefix := entityPrefixes[kind]
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(prefix)
			opts.PrefetchValues = false

			it := txn.NewIterator(opts)
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// readingDataKinds is the subset of domain.DeleteOrder removed by
// DeleteReadingData, in the same leaf-first order.
var readingDataKinds = []domain.EntityType{
	domain.EntityReadingProgress,
	domain.EntityHighlight,
	domain.EntityAnnotation,
}

// entityPrefixes maps each entity type to its record key prefix.
var entityPrefixes = map[domain.EntityType]string{
	domain.EntityReadingProgress: "rp:",
	domain.EntityHighlight:       "hl:",
	domain.EntityAnnotation:      "an:",
	domain.EntityLibraryItem:     "li:",
	domain.EntityChapter:         "chap:",
	domain.EntityBook:            "book:",
}

// deleteEntityTxn dispatches one record deletion to the entity set for kind.
func (s *Store) deleteEntityTxn(txn *badger.Txn, kind domain.EntityType, id string) error {
	switch kind {
	case domain.EntityReadingProgress:
		return s.Progress.deleteTxn(txn, id)
	case domain.EntityHighlight:
		return s.Highlights.deleteTxn(txn, id)
	case domain.EntityAnnotation:
		return s.Annotations.deleteTxn(txn, id)
	case domain.EntityLibraryItem:
		return s.LibraryItems.deleteTxn(txn, id)
	case domain.EntityChapter:
		return s.Chapters.deleteTxn(txn, id)
	case domain.EntityBook:
		return s.Books.deleteTxn(txn, id)
	default:
		return fmt.Errorf("unknown entity type %q", kind)
	}
}

// collectBookRecordIDs resolves all dependent record IDs for a book through
// the per-entity book indexes, grouped by entity type.
func (s *Store) collectBookRecordIDs(bookID string) (map[domain.EntityType][]string, error) {
	ids := make(map[domain.EntityType][]string)
	ctx := context.Background()

	chapters, err := s.Chapters.FindByIndex(ctx, "book", bookID)
	if err != nil {
		return nil, fmt.Errorf("collect chapters: %w", err)
	}
	for _, c := range chapters {
		ids[domain.EntityChapter] = append(ids[domain.EntityChapter], c.ID)
	}

	items, err := s.LibraryItems.FindByIndex(ctx, "book", bookID)
	if err != nil {
		return nil, fmt.Errorf("collect library items: %w", err)
	}
	for _, li := range items {
		ids[domain.EntityLibraryItem] = append(ids[domain.EntityLibraryItem], li.ID)
	}

	progress, err := s.Progress.FindByIndex(ctx, "book", bookID)
	if err != nil {
		return nil, fmt.Errorf("collect progress: %w", err)
	}
	for _, rp := range progress {
		ids[domain.EntityReadingProgress] = append(ids[domain.EntityReadingProgress], rp.ID)
	}

	highlights, err := s.Highlights.FindByIndex(ctx, "book", bookID)
	if err != nil {
		return nil, fmt.Errorf("collect highlights: %w", err)
	}
	for _, h := range highlights {
		ids[domain.EntityHighlight] = append(ids[domain.EntityHighlight], h.ID)
	}

	annotations, err := s.Annotations.FindByIndex(ctx, "book", bookID)
	if err != nil {
		return nil, fmt.Errorf("collect annotations: %w", err)
	}
	for _, a := range annotations {
		ids[domain.EntityAnnotation] = append(ids[domain.EntityAnnotation], a.ID)
	}

	return ids, nil
}
