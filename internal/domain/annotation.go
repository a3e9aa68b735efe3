package domain

// Highlight is a colored text selection inside a chapter.
type Highlight struct {
	Syncable

	ChapterID string `json:"chapter_id"`
	// BookID is denormalized for cascade deletes and cross-device matching.
	BookID string `json:"book_id"`
	UserID string `json:"user_id"`
	Text   string `json:"text"`
	// RangeStart and RangeEnd are character offsets into the chapter
	// content; RangeStart < RangeEnd always holds.
	RangeStart int    `json:"range_start"`
	RangeEnd   int    `json:"range_end"`
	Color      string `json:"color,omitempty"`
	Note       string `json:"note,omitempty"`
}

// ValidRange reports whether the highlight's offsets are well formed.
func (h *Highlight) ValidRange() bool {
	return h.RangeStart >= 0 && h.RangeStart < h.RangeEnd
}

// Annotation is a free-form note attached to a chapter range.
type Annotation struct {
	Syncable

	ChapterID  string `json:"chapter_id"`
	BookID     string `json:"book_id"`
	UserID     string `json:"user_id"`
	Content    string `json:"content"`
	RangeStart int    `json:"range_start"`
	RangeEnd   int    `json:"range_end"`
}

// ValidRange reports whether the annotation's offsets are well formed.
func (a *Annotation) ValidRange() bool {
	return a.RangeStart >= 0 && a.RangeStart < a.RangeEnd
}
