package sync_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/islabooks/isla/internal/domain"
	"github.com/islabooks/isla/internal/errors"
	"github.com/islabooks/isla/internal/id"
	"github.com/islabooks/isla/internal/store"
	"github.com/islabooks/isla/internal/sync"
	"github.com/stretchr/testify/require"
)

func setupEngine(t *testing.T, status sync.AccountStatus) (*sync.Engine, *store.Store, *sync.MemoryRecordStore) {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"), nil, store.NewNoopEmitter())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	records := sync.NewMemoryRecordStore()
	engine := sync.NewEngine(s, records, sync.StaticAccountProvider{AccountStatus: status}, nil)
	return engine, s, records
}

func newLibraryItem(t *testing.T, s *store.Store, bookID string) *domain.LibraryItem {
	t.Helper()

	item := &domain.LibraryItem{
		BookID: bookID,
		UserID: "local",
		Status: domain.StatusReading,
	}
	item.ID = id.MustGenerate(id.PrefixLibrary)
	item.InitTimestamps()
	require.NoError(t, s.LibraryItems.Create(context.Background(), item.ID, item))
	return item
}

func newProgress(t *testing.T, s *store.Store, position float64, readingTime int64) *domain.ReadingProgress {
	t.Helper()

	item := newLibraryItem(t, s, uuid.NewString())

	p := &domain.ReadingProgress{
		LibraryItemID:    item.ID,
		BookID:           item.BookID,
		UserID:           "local",
		CurrentPosition:  position,
		TotalReadingTime: readingTime,
		LastReadAt:       time.Now().UTC(),
	}
	p.ID = id.MustGenerate(id.PrefixProgress)
	p.InitTimestamps()
	require.NoError(t, s.Progress.Create(context.Background(), p.ID, p))
	return p
}

func TestInitialize_NoAccountDisablesSync(t *testing.T) {
	engine, _, _ := setupEngine(t, sync.AccountMissing)

	err := engine.Initialize(context.Background())
	require.True(t, errors.Is(err, errors.AccountUnavailable("")))
	require.Equal(t, sync.StatusDisabled, engine.Status(domain.KindReadingProgress))

	err = engine.Run(context.Background())
	require.True(t, errors.Is(err, errors.AccountUnavailable("")))
}

func TestInitialize_RestrictedAccount(t *testing.T) {
	engine, _, _ := setupEngine(t, sync.AccountRestricted)

	err := engine.Initialize(context.Background())
	require.Error(t, err)
	require.Equal(t, sync.StatusRestricted, engine.Status(domain.KindHighlight))
}

func TestRun_PushAssignsRemoteIDs(t *testing.T) {
	engine, s, records := setupEngine(t, sync.AccountAvailable)
	ctx := context.Background()
	require.NoError(t, engine.Initialize(ctx))

	p := newProgress(t, s, 0.25, 120)
	require.True(t, p.IsPending())

	require.NoError(t, engine.Run(ctx))

	got, err := s.Progress.Get(ctx, p.ID)
	require.NoError(t, err)
	require.NotEmpty(t, got.RemoteRecordID)
	require.Equal(t, 1, records.Len(domain.KindReadingProgress))
	require.Equal(t, sync.StatusCompleted, engine.Status(domain.KindReadingProgress))
}

func TestRun_PushThenPullCreatesNoDuplicates(t *testing.T) {
	engine, s, records := setupEngine(t, sync.AccountAvailable)
	ctx := context.Background()
	require.NoError(t, engine.Initialize(ctx))

	newProgress(t, s, 0.5, 300)

	require.NoError(t, engine.Run(ctx))
	require.NoError(t, engine.Run(ctx))

	count, err := s.Progress.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, 1, records.Len(domain.KindReadingProgress))
}

func TestRun_NewerRemoteOverwritesLocal(t *testing.T) {
	engine, s, records := setupEngine(t, sync.AccountAvailable)
	ctx := context.Background()
	require.NoError(t, engine.Initialize(ctx))

	p := newProgress(t, s, 0.2, 100)
	require.NoError(t, engine.Run(ctx))

	// A newer snapshot of the same record arrives from another device.
	_, err := records.Save(ctx, sync.Record{
		Kind:       domain.KindReadingProgress,
		NaturalKey: p.BookID + ":" + p.UserID,
		Fields: map[string]any{
			"book_id":            p.BookID,
			"user_id":            p.UserID,
			"current_position":   0.8,
			"total_reading_time": int64(500),
		},
		ModifiedAt: time.Now().UTC().Add(time.Hour),
	})
	require.NoError(t, err)

	require.NoError(t, engine.Run(ctx))

	got, err := s.Progress.Get(ctx, p.ID)
	require.NoError(t, err)
	require.InDelta(t, 0.8, got.CurrentPosition, 1e-9)
	require.Equal(t, int64(500), got.TotalReadingTime)
}

func TestRun_OlderRemoteDoesNotOverwrite(t *testing.T) {
	engine, s, records := setupEngine(t, sync.AccountAvailable)
	ctx := context.Background()
	require.NoError(t, engine.Initialize(ctx))

	p := newProgress(t, s, 0.9, 1000)
	require.NoError(t, engine.Run(ctx))

	_, err := records.Save(ctx, sync.Record{
		Kind:       domain.KindReadingProgress,
		NaturalKey: p.BookID + ":" + p.UserID,
		Fields: map[string]any{
			"book_id":            p.BookID,
			"user_id":            p.UserID,
			"current_position":   0.1,
			"total_reading_time": int64(50),
		},
		ModifiedAt: time.Now().UTC().Add(-time.Hour),
	})
	require.NoError(t, err)

	require.NoError(t, engine.Run(ctx))

	got, err := s.Progress.Get(ctx, p.ID)
	require.NoError(t, err)
	require.InDelta(t, 0.9, got.CurrentPosition, 1e-9)
	require.Equal(t, int64(1000), got.TotalReadingTime)
}

func TestRun_ReadingTimeNeverDecreases(t *testing.T) {
	engine, s, records := setupEngine(t, sync.AccountAvailable)
	ctx := context.Background()
	require.NoError(t, engine.Initialize(ctx))

	p := newProgress(t, s, 0.5, 900)
	require.NoError(t, engine.Run(ctx))

	// Newer remote snapshot, but with a smaller accumulated reading time.
	_, err := records.Save(ctx, sync.Record{
		Kind:       domain.KindReadingProgress,
		NaturalKey: p.BookID + ":" + p.UserID,
		Fields: map[string]any{
			"book_id":            p.BookID,
			"user_id":            p.UserID,
			"current_position":   0.6,
			"total_reading_time": int64(200),
		},
		ModifiedAt: time.Now().UTC().Add(time.Hour),
	})
	require.NoError(t, err)

	require.NoError(t, engine.Run(ctx))

	got, err := s.Progress.Get(ctx, p.ID)
	require.NoError(t, err)
	require.InDelta(t, 0.6, got.CurrentPosition, 1e-9)
	require.Equal(t, int64(900), got.TotalReadingTime)
}

func TestRun_ProgressMatchedAcrossDevicesByBook(t *testing.T) {
	engine, s, records := setupEngine(t, sync.AccountAvailable)
	ctx := context.Background()
	require.NoError(t, engine.Initialize(ctx))

	// This device has its own library item for the book; another device
	// pushed progress under a library item ID that only exists there.
	item := newLibraryItem(t, s, uuid.NewString())

	_, err := records.Save(ctx, sync.Record{
		Kind:       domain.KindReadingProgress,
		NaturalKey: item.BookID + ":local",
		Fields: map[string]any{
			"book_id":            item.BookID,
			"user_id":            "local",
			"current_position":   0.3,
			"total_reading_time": int64(240),
		},
		ModifiedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	require.NoError(t, engine.Run(ctx))

	got, err := s.Progress.GetByIndex(ctx, "library_item", item.ID)
	require.NoError(t, err)
	require.InDelta(t, 0.3, got.CurrentPosition, 1e-9)
	require.Equal(t, int64(240), got.TotalReadingTime)
	require.NotEmpty(t, got.RemoteRecordID)

	// A second pass matches the same record instead of duplicating it.
	require.NoError(t, engine.Run(ctx))
	count, err := s.Progress.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestRun_ProgressWithoutLibraryItemSkipped(t *testing.T) {
	engine, s, records := setupEngine(t, sync.AccountAvailable)
	ctx := context.Background()
	require.NoError(t, engine.Initialize(ctx))

	bookID := uuid.NewString()
	_, err := records.Save(ctx, sync.Record{
		Kind:       domain.KindReadingProgress,
		NaturalKey: bookID + ":local",
		Fields: map[string]any{
			"book_id":            bookID,
			"user_id":            "local",
			"current_position":   0.5,
			"total_reading_time": int64(60),
		},
		ModifiedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	require.NoError(t, engine.Run(ctx))

	// No library item for the book, so no orphaned progress row appears.
	count, err := s.Progress.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
	require.Equal(t, sync.StatusCompleted, engine.Status(domain.KindReadingProgress))

	// Once the book lands in the library, the next pass picks the record up.
	item := newLibraryItem(t, s, bookID)
	require.NoError(t, engine.Run(ctx))

	got, err := s.Progress.GetByIndex(ctx, "library_item", item.ID)
	require.NoError(t, err)
	require.InDelta(t, 0.5, got.CurrentPosition, 1e-9)
}

func TestRun_RemoteOnlyRecordCreatesLocal(t *testing.T) {
	engine, s, records := setupEngine(t, sync.AccountAvailable)
	ctx := context.Background()
	require.NoError(t, engine.Initialize(ctx))

	_, err := records.Save(ctx, sync.Record{
		Kind:       domain.KindHighlight,
		NaturalKey: "hl_remote1",
		Fields: map[string]any{
			"local_id":    "hl_remote1",
			"chapter_id":  "chap_1",
			"book_id":     uuid.NewString(),
			"user_id":     "local",
			"text":        "memorable passage",
			"range_start": int64(10),
			"range_end":   int64(40),
			"color":       "yellow",
		},
		ModifiedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	require.NoError(t, engine.Run(ctx))

	hl, err := s.Highlights.Get(ctx, "hl_remote1")
	require.NoError(t, err)
	require.Equal(t, "memorable passage", hl.Text)
	require.NotEmpty(t, hl.RemoteRecordID)
}

func TestRun_InvalidRemoteRecordSkipped(t *testing.T) {
	engine, s, records := setupEngine(t, sync.AccountAvailable)
	ctx := context.Background()
	require.NoError(t, engine.Initialize(ctx))

	// Range end before range start: the record is skipped, not fatal.
	_, err := records.Save(ctx, sync.Record{
		Kind:       domain.KindHighlight,
		NaturalKey: "hl_bad",
		Fields: map[string]any{
			"local_id":    "hl_bad",
			"range_start": int64(40),
			"range_end":   int64(10),
		},
		ModifiedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	require.NoError(t, engine.Run(ctx))

	count, err := s.Highlights.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
	require.Equal(t, sync.StatusCompleted, engine.Status(domain.KindHighlight))
}

func TestSubscribe_ReceivesTransitions(t *testing.T) {
	engine, s, _ := setupEngine(t, sync.AccountAvailable)
	ctx := context.Background()
	require.NoError(t, engine.Initialize(ctx))

	ch, cancel := engine.Subscribe()
	defer cancel()

	newProgress(t, s, 0.1, 10)
	require.NoError(t, engine.Run(ctx))

	var seen []sync.StatusChange
	for {
		select {
		case ev := <-ch:
			seen = append(seen, ev)
			if ev.Kind == domain.KindLibraryItem && ev.Status == sync.StatusCompleted {
				require.NotEmpty(t, seen)
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for status events")
		}
	}
}
