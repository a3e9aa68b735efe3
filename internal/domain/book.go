package domain

import "time"

// Book formats accepted by the importer.
const (
	FormatEPUB = "epub"
	FormatText = "txt"
)

// Book sources.
const (
	SourceLocal = "local"
)

// Book is an imported e-book. Books are local-only: they are never pushed to
// the remote record store (the file itself stays on device), so they carry
// plain timestamps instead of a Syncable embed.
type Book struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// ID is a UUID, immutable after import.
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Language string   `json:"language"`
	Source   string   `json:"source"`
	// FilePath and FileChecksum are set together by the importer or not at
	// all; a Book row never has one without the other.
	FilePath     string `json:"file_path,omitempty"`
	FileFormat   string `json:"file_format,omitempty"`
	FileChecksum string `json:"file_checksum,omitempty"`
	// Cover fields are best-effort; absent when extraction failed.
	CoverImagePath string `json:"cover_image_path,omitempty"`
	CoverBlurHash  string `json:"cover_blur_hash,omitempty"`
}

// Touch updates UpdatedAt to now.
func (b *Book) Touch() {
	b.UpdatedAt = time.Now()
}

// Chapter is one segment of a book's content, produced at import time.
type Chapter struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	BookID    string    `json:"book_id"`
	// Number is 1-based and unique per book, assigned in scan order.
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Content string `json:"content"`
}
