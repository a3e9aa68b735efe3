package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Entity provides generic CRUD operations for one domain type under a key
// prefix.
type Entity[T any] struct {
	store   *Store
	prefix  string
	indexes []Index[T]
}

// Index defines a secondary index on an entity. Unique indexes map one value
// to one record and reject conflicting writes; multi indexes allow several
// records to share a value (e.g. chapters of one book).
type Index[T any] struct {
	name   string
	keyGen func(*T) []string
	unique bool
}

// NewEntity creates an Entity instance for type T.
func NewEntity[T any](s *Store, prefix string) *Entity[T] {
	return &Entity[T]{
		store:   s,
		prefix:  prefix,
		indexes: make([]Index[T], 0),
	}
}

// WithIndex adds a unique secondary index. keyGen returns the index values
// for a record; empty values are not indexed.
func (e *Entity[T]) WithIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{name: name, keyGen: keyGen, unique: true})
	return e
}

// WithMultiIndex adds a non-unique secondary index. Multiple records may
// share an index value.
func (e *Entity[T]) WithMultiIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{name: name, keyGen: keyGen, unique: false})
	return e
}

// indexEntryKey returns the full index key for one (index, value, id) triple.
// The key is freshly allocated: badger retains keys passed to txn.Set and
// txn.Delete until commit, so pooled buffers must not be used here.
func (e *Entity[T]) indexEntryKey(idx Index[T], value, id string) []byte {
	if idx.unique {
		return []byte(e.prefix + "idx:" + idx.name + ":" + value)
	}
	return []byte(e.prefix + "idx:" + idx.name + ":" + value + ":" + id)
}

// writeIndexes sets all index entries for an entity inside txn.
func (e *Entity[T]) writeIndexes(txn *badger.Txn, id string, entity *T) error {
	for _, idx := range e.indexes {
		for _, value := range idx.keyGen(entity) {
			if value == "" {
				continue
			}
			if err := txn.Set(e.indexEntryKey(idx, value, id), []byte(id)); err != nil {
				return fmt.Errorf("set index %s: %w", idx.name, err)
			}
		}
	}
	return nil
}

// dropIndexes removes all index entries for an entity inside txn.
func (e *Entity[T]) dropIndexes(txn *badger.Txn, id string, entity *T) error {
	for _, idx := range e.indexes {
		for _, value := range idx.keyGen(entity) {
			if value == "" {
				continue
			}
			if err := txn.Delete(e.indexEntryKey(idx, value, id)); err != nil {
				return fmt.Errorf("delete index %s: %w", idx.name, err)
			}
		}
	}
	return nil
}

// checkUniqueIndexes returns ErrAlreadyExists if any unique index value
// written by entity is already taken by a different record.
func (e *Entity[T]) checkUniqueIndexes(txn *badger.Txn, id string, entity *T) error {
	for _, idx := range e.indexes {
		if !idx.unique {
			continue
		}
		for _, value := range idx.keyGen(entity) {
			if value == "" {
				continue
			}
			key := buildIndexKey(e.prefix, idx.name, value)
			item, err := txn.Get(key)
			releaseKey(key)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("check index %s: %w", idx.name, err)
			}
			var owner string
			if err := item.Value(func(val []byte) error {
				owner = string(val)
				return nil
			}); err != nil {
				return err
			}
			if owner != id {
				return fmt.Errorf("index %s conflict on %s: %w", idx.name, value, ErrAlreadyExists)
			}
		}
	}
	return nil
}

// Create creates a new entity with the given ID.
// Returns ErrAlreadyExists if the ID or a unique index value is taken.
func (e *Entity[T]) Create(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshal entity: %w", err)
	}

	return e.store.db.Update(func(txn *badger.Txn) error {
		// Plain key: it is handed to txn.Set below, which holds it until commit.
		key := []byte(e.prefix + id)

		_, err := txn.Get(key)
		if err == nil {
			return ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check existing key: %w", err)
		}

		if err := e.checkUniqueIndexes(txn, id, entity); err != nil {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set key: %w", err)
		}
		return e.writeIndexes(txn, id, entity)
	})
}

// Get retrieves an entity by ID. Returns ErrNotFound if absent.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entity T
	err := e.store.db.View(func(txn *badger.Txn) error {
		key := buildKey(e.prefix, id)
		defer releaseKey(key)

		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get key: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entity)
		})
	})
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// GetByIndex retrieves an entity through a unique secondary index.
func (e *Entity[T]) GetByIndex(ctx context.Context, indexName, value string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var id string
	err := e.store.db.View(func(txn *badger.Txn) error {
		key := buildIndexKey(e.prefix, indexName, value)
		defer releaseKey(key)

		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return e.Get(ctx, id)
}

// FindByIndex collects every entity matching a multi index value.
func (e *Entity[T]) FindByIndex(ctx context.Context, indexName, value string) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ids []string
	scanPrefix := []byte(e.prefix + "idx:" + indexName + ":" + value + ":")

	err := e.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = scanPrefix
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(scanPrefix); it.ValidForPrefix(scanPrefix); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				ids = append(ids, string(val))
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

	results := make([]*T, 0, len(ids))
	for _, id := range ids {
		entity, err := e.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		results = append(results, entity)
	}
	return results, nil
}

// Update replaces an existing entity. Returns ErrNotFound if absent.
func (e *Entity[T]) Update(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshal entity: %w", err)
	}

	return e.store.db.Update(func(txn *badger.Txn) error {
		key := []byte(e.prefix + id)

		var oldEntity T
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get existing key: %w", err)
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &oldEntity)
		}); err != nil {
			return err
		}

		if err := e.dropIndexes(txn, id, &oldEntity); err != nil {
			return err
		}
		if err := e.checkUniqueIndexes(txn, id, entity); err != nil {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set key: %w", err)
		}
		return e.writeIndexes(txn, id, entity)
	})
}

// Delete removes an entity by ID. Idempotent: deleting a missing entity is
// not an error.
func (e *Entity[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return e.store.db.Update(func(txn *badger.Txn) error {
		return e.deleteTxn(txn, id)
	})
}

// deleteTxn removes an entity and its index entries inside an open
// transaction. Used by cascade deletes to keep a whole cascade atomic.
func (e *Entity[T]) deleteTxn(txn *badger.Txn, id string) error {
	key := []byte(e.prefix + id)

	var entity T
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get key: %w", err)
	}
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entity)
	}); err != nil {
		return err
	}

	if err := e.dropIndexes(txn, id, &entity); err != nil {
		return err
	}
	if err := txn.Delete(key); err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	return nil
}

// List returns an iterator over all entities under the prefix.
func (e *Entity[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		_ = e.store.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(e.prefix)
			opts.PrefetchValues = true

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek([]byte(e.prefix)); it.ValidForPrefix([]byte(e.prefix)); it.Next() {
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return ctx.Err()
				}

				// Skip index keys.
				key := string(it.Item().Key())
				if strings.HasPrefix(key[len(e.prefix):], "idx:") {
					continue
				}

				var entity T
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &entity)
				})
				if err != nil {
					yield(nil, err)
					return err
				}
				if !yield(&entity, nil) {
					return nil
				}
			}
			return nil
		})
	}
}

// All collects every entity into a slice.
func (e *Entity[T]) All(ctx context.Context) ([]*T, error) {
	var out []*T
	for entity, err := range e.List(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}

// Count returns the number of stored entities.
func (e *Entity[T]) Count(ctx context.Context) (int, error) {
	n := 0
	for _, err := range e.List(ctx) {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}
