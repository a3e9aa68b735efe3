package domain

import "time"

// ReadingStatus is the shelf a library item sits on.
type ReadingStatus string

// Reading statuses.
const (
	StatusWantToRead ReadingStatus = "want_to_read"
	StatusReading    ReadingStatus = "reading"
	StatusFinished   ReadingStatus = "finished"
)

// Valid reports whether the status is one of the known values.
func (s ReadingStatus) Valid() bool {
	switch s {
	case StatusWantToRead, StatusReading, StatusFinished:
		return true
	}
	return false
}

// LibraryItem links a user to a book in their library. Exactly one item
// exists per (book, user) pair; it is created lazily on the first status
// change for the book.
type LibraryItem struct {
	Syncable

	BookID     string        `json:"book_id"`
	UserID     string        `json:"user_id"`
	Status     ReadingStatus `json:"status"`
	AddedAt    time.Time     `json:"added_at"`
	LastReadAt time.Time     `json:"last_read_at,omitzero"`
	IsFavorite bool          `json:"is_favorite"`
	Tags       []string      `json:"tags,omitempty"`
}

// ReadingProgress tracks how far a user has read a book. One per library
// item, created lazily on the first progress update.
type ReadingProgress struct {
	Syncable

	LibraryItemID string `json:"library_item_id"`
	// BookID is denormalized from the library item; it is the natural key
	// used to match records across devices before a remote ID exists.
	BookID string `json:"book_id"`
	UserID string `json:"user_id"`
	// CurrentPosition is a fraction in [0, 1].
	CurrentPosition  float64 `json:"current_position"`
	CurrentChapterID string  `json:"current_chapter_id,omitempty"`
	// TotalReadingTime accumulates seconds and never decreases.
	TotalReadingTime int64     `json:"total_reading_time"`
	LastReadAt       time.Time `json:"last_read_at,omitzero"`
}

// AddReadingTime accumulates delta seconds onto the total. Negative deltas
// are ignored so the accumulator stays monotonic.
func (p *ReadingProgress) AddReadingTime(deltaSeconds int64) {
	if deltaSeconds > 0 {
		p.TotalReadingTime += deltaSeconds
	}
}

// ClampPosition keeps CurrentPosition inside [0, 1].
func (p *ReadingProgress) ClampPosition() {
	if p.CurrentPosition < 0 {
		p.CurrentPosition = 0
	}
	if p.CurrentPosition > 1 {
		p.CurrentPosition = 1
	}
}
