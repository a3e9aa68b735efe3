package sync

import (
	"context"
	"time"

	"github.com/islabooks/isla/internal/domain"
	"github.com/islabooks/isla/internal/errors"
	"github.com/islabooks/isla/internal/id"
	"github.com/islabooks/isla/internal/store"
)

// adapter binds one syncable entity type to its wire representation.
// The engine drives adapters generically; everything kind-specific lives in
// the function fields.
type adapter[T any] struct {
	recordKind domain.RecordKind
	entity     *store.Entity[T]

	// meta exposes the embedded Syncable of an entity.
	meta func(*T) *domain.Syncable
	// naturalKey identifies a record across devices independently of IDs
	// assigned by the remote store.
	naturalKey func(*T) string
	// encode flattens the entity into wire fields.
	encode func(*T) map[string]any
	// lookup finds the local entity matching a remote record's natural key.
	lookup func(ctx context.Context, rec Record) (*T, error)
	// apply overwrites local mutable fields with remote ones.
	apply func(*T, Record)
	// create builds a new local entity from a remote record. Returning
	// (nil, nil) skips the record; the next pass retries it.
	create func(ctx context.Context, rec Record) (*T, error)
}

func (a *adapter[T]) kind() domain.RecordKind { return a.recordKind }

// runner is the engine's view of one adapter.
type runner interface {
	kind() domain.RecordKind
	// pending returns local records that have never been pushed.
	pushPending(ctx context.Context, records RecordStore, onSkip func(localID string, err error)) error
	// pullAll reconciles every remote record into the local store.
	pullAll(ctx context.Context, records RecordStore, onSkip func(remoteID string, err error)) error
}

// pushPending pushes every local record with an empty remote ID, writing the
// assigned remote ID back. Records whose push fails are skipped; the next
// run retries them, and the remote natural key keeps retries idempotent.
func (a *adapter[T]) pushPending(ctx context.Context, records RecordStore, onSkip func(string, error)) error {
	for e, err := range a.entity.List(ctx) {
		if err != nil {
			return err
		}
		meta := a.meta(e)
		if !meta.IsPending() {
			continue
		}

		saved, err := records.Save(ctx, Record{
			Kind:       a.recordKind,
			NaturalKey: a.naturalKey(e),
			Fields:     a.encode(e),
			ModifiedAt: meta.UpdatedAt,
		})
		if err != nil {
			onSkip(meta.ID, err)
			continue
		}

		meta.RemoteRecordID = saved.RemoteID
		if err := a.entity.Update(ctx, meta.ID, e); err != nil {
			onSkip(meta.ID, err)
		}
	}
	return nil
}

// pullAll merges remote records: match by remote ID first, then by natural
// key, else create locally. Remote fields overwrite local ones only when the
// remote record is strictly newer.
func (a *adapter[T]) pullAll(ctx context.Context, records RecordStore, onSkip func(string, error)) error {
	recs, err := records.Query(ctx, a.recordKind)
	if err != nil {
		return err
	}

	for _, rec := range recs {
		if err := a.pullOne(ctx, rec); err != nil {
			onSkip(rec.RemoteID, err)
		}
	}
	return nil
}

func (a *adapter[T]) pullOne(ctx context.Context, rec Record) error {
	local, err := a.entity.GetByIndex(ctx, "remote", rec.RemoteID)
	if errors.Is(err, store.ErrNotFound) {
		local, err = a.lookup(ctx, rec)
	}
	if errors.Is(err, store.ErrNotFound) {
		return a.createLocal(ctx, rec)
	}
	if err != nil {
		return err
	}

	meta := a.meta(local)
	changed := false

	if meta.RemoteRecordID == "" {
		meta.RemoteRecordID = rec.RemoteID
		changed = true
	}
	if rec.ModifiedAt.After(meta.UpdatedAt) {
		a.apply(local, rec)
		meta.UpdatedAt = rec.ModifiedAt
		changed = true
	}

	if !changed {
		return nil
	}
	return a.entity.Update(ctx, meta.ID, local)
}

func (a *adapter[T]) createLocal(ctx context.Context, rec Record) error {
	local, err := a.create(ctx, rec)
	if err != nil {
		return err
	}
	if local == nil {
		// The record depends on local state that does not exist yet.
		return nil
	}

	meta := a.meta(local)
	meta.RemoteRecordID = rec.RemoteID
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = rec.ModifiedAt
	}
	meta.UpdatedAt = rec.ModifiedAt

	return a.entity.Create(ctx, meta.ID, local)
}

// newRunners builds the per-kind adapters, ordered per domain.SyncableKinds.
func newRunners(s *store.Store) []runner {
	return []runner{
		progressAdapter(s),
		highlightAdapter(s),
		annotationAdapter(s),
		libraryItemAdapter(s),
	}
}

func progressAdapter(s *store.Store) runner {
	return &adapter[domain.ReadingProgress]{
		recordKind: domain.KindReadingProgress,
		entity:     s.Progress,
		meta: func(p *domain.ReadingProgress) *domain.Syncable { return &p.Syncable },
		// The natural key must survive across devices; the library item ID is
		// device-local, so progress is keyed by book and user instead.
		naturalKey: func(p *domain.ReadingProgress) string { return p.BookID + ":" + p.UserID },
		encode: func(p *domain.ReadingProgress) map[string]any {
			return map[string]any{
				"book_id":            p.BookID,
				"user_id":            p.UserID,
				"current_position":   p.CurrentPosition,
				"current_chapter_id": p.CurrentChapterID,
				"total_reading_time": p.TotalReadingTime,
				"last_read_at":       p.LastReadAt.Format(time.RFC3339Nano),
			}
		},
		lookup: func(ctx context.Context, rec Record) (*domain.ReadingProgress, error) {
			item, err := s.LibraryItems.GetByIndex(ctx, "book_user", rec.NaturalKey)
			if err != nil {
				return nil, err
			}
			return s.Progress.GetByIndex(ctx, "library_item", item.ID)
		},
		apply: func(p *domain.ReadingProgress, rec Record) {
			p.CurrentPosition = fieldFloat(rec.Fields, "current_position")
			p.ClampPosition()
			p.CurrentChapterID = fieldString(rec.Fields, "current_chapter_id")
			// Reading time only ever grows, even when the remote copy lags.
			if remote := fieldInt(rec.Fields, "total_reading_time"); remote > p.TotalReadingTime {
				p.TotalReadingTime = remote
			}
			if at, err := time.Parse(time.RFC3339Nano, fieldString(rec.Fields, "last_read_at")); err == nil && at.After(p.LastReadAt) {
				p.LastReadAt = at
			}
		},
		create: func(ctx context.Context, rec Record) (*domain.ReadingProgress, error) {
			bookID := fieldString(rec.Fields, "book_id")
			if bookID == "" {
				return nil, errors.InvalidRecord("progress record has no book id")
			}
			userID := fieldString(rec.Fields, "user_id")
			item, err := s.LibraryItems.GetByIndex(ctx, "book_user", bookID+":"+userID)
			if errors.Is(err, store.ErrNotFound) {
				// The book is not in this device's library (yet); the library
				// item pull may bring it in, after which the next pass lands
				// this record.
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			p := &domain.ReadingProgress{
				LibraryItemID:    item.ID,
				BookID:           bookID,
				UserID:           userID,
				CurrentPosition:  fieldFloat(rec.Fields, "current_position"),
				CurrentChapterID: fieldString(rec.Fields, "current_chapter_id"),
				TotalReadingTime: fieldInt(rec.Fields, "total_reading_time"),
			}
			p.ClampPosition()
			if at, err := time.Parse(time.RFC3339Nano, fieldString(rec.Fields, "last_read_at")); err == nil {
				p.LastReadAt = at
			}
			p.ID = id.MustGenerate(id.PrefixProgress)
			return p, nil
		},
	}
}

func highlightAdapter(s *store.Store) runner {
	return &adapter[domain.Highlight]{
		recordKind: domain.KindHighlight,
		entity:     s.Highlights,
		meta:       func(h *domain.Highlight) *domain.Syncable { return &h.Syncable },
		naturalKey: func(h *domain.Highlight) string { return h.ID },
		encode: func(h *domain.Highlight) map[string]any {
			return map[string]any{
				"local_id":    h.ID,
				"chapter_id":  h.ChapterID,
				"book_id":     h.BookID,
				"user_id":     h.UserID,
				"text":        h.Text,
				"range_start": h.RangeStart,
				"range_end":   h.RangeEnd,
				"color":       h.Color,
				"note":        h.Note,
			}
		},
		lookup: func(ctx context.Context, rec Record) (*domain.Highlight, error) {
			return s.Highlights.Get(ctx, rec.NaturalKey)
		},
		apply: func(h *domain.Highlight, rec Record) {
			h.Text = fieldString(rec.Fields, "text")
			h.RangeStart = int(fieldInt(rec.Fields, "range_start"))
			h.RangeEnd = int(fieldInt(rec.Fields, "range_end"))
			h.Color = fieldString(rec.Fields, "color")
			h.Note = fieldString(rec.Fields, "note")
		},
		create: func(_ context.Context, rec Record) (*domain.Highlight, error) {
			h := &domain.Highlight{
				ChapterID:  fieldString(rec.Fields, "chapter_id"),
				BookID:     fieldString(rec.Fields, "book_id"),
				UserID:     fieldString(rec.Fields, "user_id"),
				Text:       fieldString(rec.Fields, "text"),
				RangeStart: int(fieldInt(rec.Fields, "range_start")),
				RangeEnd:   int(fieldInt(rec.Fields, "range_end")),
				Color:      fieldString(rec.Fields, "color"),
				Note:       fieldString(rec.Fields, "note"),
			}
			if !h.ValidRange() {
				return nil, errors.InvalidRecord("highlight record has an invalid range")
			}
			h.ID = fieldString(rec.Fields, "local_id")
			if h.ID == "" {
				h.ID = id.MustGenerate(id.PrefixHighlight)
			}
			return h, nil
		},
	}
}

func annotationAdapter(s *store.Store) runner {
	return &adapter[domain.Annotation]{
		recordKind: domain.KindAnnotation,
		entity:     s.Annotations,
		meta:       func(a *domain.Annotation) *domain.Syncable { return &a.Syncable },
		naturalKey: func(a *domain.Annotation) string { return a.ID },
		encode: func(a *domain.Annotation) map[string]any {
			return map[string]any{
				"local_id":    a.ID,
				"chapter_id":  a.ChapterID,
				"book_id":     a.BookID,
				"user_id":     a.UserID,
				"content":     a.Content,
				"range_start": a.RangeStart,
				"range_end":   a.RangeEnd,
			}
		},
		lookup: func(ctx context.Context, rec Record) (*domain.Annotation, error) {
			return s.Annotations.Get(ctx, rec.NaturalKey)
		},
		apply: func(a *domain.Annotation, rec Record) {
			a.Content = fieldString(rec.Fields, "content")
			a.RangeStart = int(fieldInt(rec.Fields, "range_start"))
			a.RangeEnd = int(fieldInt(rec.Fields, "range_end"))
		},
		create: func(_ context.Context, rec Record) (*domain.Annotation, error) {
			a := &domain.Annotation{
				ChapterID:  fieldString(rec.Fields, "chapter_id"),
				BookID:     fieldString(rec.Fields, "book_id"),
				UserID:     fieldString(rec.Fields, "user_id"),
				Content:    fieldString(rec.Fields, "content"),
				RangeStart: int(fieldInt(rec.Fields, "range_start")),
				RangeEnd:   int(fieldInt(rec.Fields, "range_end")),
			}
			if !a.ValidRange() {
				return nil, errors.InvalidRecord("annotation record has an invalid range")
			}
			a.ID = fieldString(rec.Fields, "local_id")
			if a.ID == "" {
				a.ID = id.MustGenerate(id.PrefixAnnotation)
			}
			return a, nil
		},
	}
}

func libraryItemAdapter(s *store.Store) runner {
	return &adapter[domain.LibraryItem]{
		recordKind: domain.KindLibraryItem,
		entity:     s.LibraryItems,
		meta:       func(li *domain.LibraryItem) *domain.Syncable { return &li.Syncable },
		naturalKey: func(li *domain.LibraryItem) string { return li.BookID + ":" + li.UserID },
		encode: func(li *domain.LibraryItem) map[string]any {
			return map[string]any{
				"book_id":      li.BookID,
				"user_id":      li.UserID,
				"status":       string(li.Status),
				"added_at":     li.AddedAt.Format(time.RFC3339Nano),
				"last_read_at": li.LastReadAt.Format(time.RFC3339Nano),
				"is_favorite":  li.IsFavorite,
				"tags":         li.Tags,
			}
		},
		lookup: func(ctx context.Context, rec Record) (*domain.LibraryItem, error) {
			return s.LibraryItems.GetByIndex(ctx, "book_user", rec.NaturalKey)
		},
		apply: func(li *domain.LibraryItem, rec Record) {
			if status := domain.ReadingStatus(fieldString(rec.Fields, "status")); status.Valid() {
				li.Status = status
			}
			li.IsFavorite = fieldBool(rec.Fields, "is_favorite")
			li.Tags = fieldStrings(rec.Fields, "tags")
			if at, err := time.Parse(time.RFC3339Nano, fieldString(rec.Fields, "last_read_at")); err == nil && at.After(li.LastReadAt) {
				li.LastReadAt = at
			}
		},
		create: func(_ context.Context, rec Record) (*domain.LibraryItem, error) {
			bookID := fieldString(rec.Fields, "book_id")
			if bookID == "" {
				return nil, errors.InvalidRecord("library item record has no book id")
			}
			li := &domain.LibraryItem{
				BookID:     bookID,
				UserID:     fieldString(rec.Fields, "user_id"),
				Status:     domain.StatusWantToRead,
				IsFavorite: fieldBool(rec.Fields, "is_favorite"),
				Tags:       fieldStrings(rec.Fields, "tags"),
			}
			if status := domain.ReadingStatus(fieldString(rec.Fields, "status")); status.Valid() {
				li.Status = status
			}
			if at, err := time.Parse(time.RFC3339Nano, fieldString(rec.Fields, "added_at")); err == nil {
				li.AddedAt = at
			} else {
				li.AddedAt = rec.ModifiedAt
			}
			if at, err := time.Parse(time.RFC3339Nano, fieldString(rec.Fields, "last_read_at")); err == nil {
				li.LastReadAt = at
			}
			li.ID = id.MustGenerate(id.PrefixLibrary)
			return li, nil
		},
	}
}

// fieldStrings reads a string slice, tolerating []any from JSON decoding.
func fieldStrings(fields map[string]any, key string) []string {
	switch v := fields[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
