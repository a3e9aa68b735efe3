package domain

import "time"

// Syncable provides common fields for entities that participate in cloud
// synchronization. It gets embedded in every domain type that is pushed to
// the remote record store.
type Syncable struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	// RemoteRecordID is empty until the first successful push. Its presence
	// is the sync-completion marker: records with an empty remote ID are
	// "pending" and picked up by the next sync run.
	RemoteRecordID string `json:"remote_record_id,omitempty"`
}

// Touch updates the UpdatedAt timestamp to the current time.
// Call this whenever the underlying entity changes.
func (s *Syncable) Touch() {
	s.UpdatedAt = time.Now()
}

// InitTimestamps sets both CreatedAt and UpdatedAt to now.
// Call this when creating a new entity.
func (s *Syncable) InitTimestamps() {
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
}

// IsPending returns true if this entity has never been pushed.
func (s *Syncable) IsPending() bool {
	return s.RemoteRecordID == ""
}

// RecordKind identifies a syncable entity kind on the remote record store.
type RecordKind string

// Record kinds mirrored on the remote store. Each kind syncs independently.
const (
	KindReadingProgress RecordKind = "ReadingProgress"
	KindHighlight       RecordKind = "Highlight"
	KindAnnotation      RecordKind = "Annotation"
	KindLibraryItem     RecordKind = "LibraryItem"
)

// SyncableKinds lists every kind the sync engine reconciles, in run order.
var SyncableKinds = []RecordKind{
	KindReadingProgress,
	KindHighlight,
	KindAnnotation,
	KindLibraryItem,
}
