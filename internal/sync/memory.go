package sync

import (
	"context"
	"maps"
	"sort"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/islabooks/isla/internal/domain"
)

// MemoryRecordStore is an in-memory RecordStore for tests and offline use.
// Safe for concurrent use.
type MemoryRecordStore struct {
	mu      sync.Mutex
	records map[domain.RecordKind]map[string]Record // natural key -> record
}

// NewMemoryRecordStore creates an empty in-memory record store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		records: make(map[domain.RecordKind]map[string]Record),
	}
}

// Save implements RecordStore. An existing record with the same natural key
// is updated in place and keeps its remote ID.
func (m *MemoryRecordStore) Save(ctx context.Context, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	byKey, ok := m.records[rec.Kind]
	if !ok {
		byKey = make(map[string]Record)
		m.records[rec.Kind] = byKey
	}

	if existing, ok := byKey[rec.NaturalKey]; ok {
		rec.RemoteID = existing.RemoteID
	} else if rec.RemoteID == "" {
		rid, err := gonanoid.New()
		if err != nil {
			return Record{}, err
		}
		rec.RemoteID = "rec_" + rid
	}

	rec.Fields = maps.Clone(rec.Fields)
	byKey[rec.NaturalKey] = rec
	return rec, nil
}

// Query implements RecordStore, returning records newest-first.
func (m *MemoryRecordStore) Query(ctx context.Context, kind domain.RecordKind) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, 0, len(m.records[kind]))
	for _, rec := range m.records[kind] {
		rec.Fields = maps.Clone(rec.Fields)
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ModifiedAt.After(out[j].ModifiedAt)
	})
	return out, nil
}

// DeleteAll implements RecordStore.
func (m *MemoryRecordStore) DeleteAll(ctx context.Context, kind domain.RecordKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, kind)
	return nil
}

// Len reports how many records of a kind are stored.
func (m *MemoryRecordStore) Len(kind domain.RecordKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records[kind])
}
