// Package covers stores book cover images on disk and computes their
// BlurHash placeholders.
package covers

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bbrks/go-blurhash"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Storage manages cover image filesystem operations.
// Thread-safe for concurrent imports.
type Storage struct {
	basePath string
	logger   *slog.Logger
	mu       sync.RWMutex
}

// Cover describes a stored cover image.
type Cover struct {
	Path     string
	BlurHash string
	Width    int
	Height   int
}

// NewStorage creates cover storage rooted at basePath, creating the
// directory if needed.
func NewStorage(basePath string, logger *slog.Logger) (*Storage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create covers directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{basePath: basePath, logger: logger}, nil
}

// Save decodes the image, writes it under the book's ID and returns the
// stored path plus BlurHash and dimensions. Data that does not decode as an
// image is rejected.
func (s *Storage) Save(bookID string, data []byte, mediaType string) (*Cover, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode cover image: %w", err)
	}

	path := s.Path(bookID, extensionFor(mediaType, format))

	s.mu.Lock()
	err = os.WriteFile(path, data, 0o644)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write cover: %w", err)
	}

	hash, err := computeBlurHash(img)
	if err != nil {
		// A cover without a placeholder is still a cover.
		s.logger.Warn("blurhash computation failed", "book_id", bookID, "error", err)
		hash = ""
	}

	bounds := img.Bounds()
	return &Cover{
		Path:     path,
		BlurHash: hash,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}, nil
}

// Delete removes a book's stored cover, whatever its extension. Missing
// covers are not an error.
func (s *Storage) Delete(bookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(s.basePath, bookID+".*"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove cover: %w", err)
		}
	}
	return nil
}

// Path returns the filesystem path for a book's cover with the given
// extension.
func (s *Storage) Path(bookID, ext string) string {
	return filepath.Join(s.basePath, bookID+"."+ext)
}

// BasePath returns the storage root.
func (s *Storage) BasePath() string {
	return s.basePath
}

func extensionFor(mediaType, decodedFormat string) string {
	switch strings.ToLower(mediaType) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	}
	switch decodedFormat {
	case "jpeg":
		return "jpg"
	case "":
		return "img"
	default:
		return decodedFormat
	}
}

// blurHashSize is the target size for BlurHash computation. BlurHash is a
// low-resolution placeholder, so a small thumbnail produces nearly identical
// results at a fraction of the cost.
const blurHashSize = 64

// computeBlurHash generates a BlurHash string from a decoded image.
// 4x3 components keep the hash around 20-30 characters with enough detail
// for book covers.
func computeBlurHash(img image.Image) (string, error) {
	hash, err := blurhash.Encode(4, 3, resizeForBlurHash(img))
	if err != nil {
		return "", fmt.Errorf("encode blurhash: %w", err)
	}
	return hash, nil
}

// resizeForBlurHash creates a small thumbnail using nearest-neighbor
// scaling, which is fast and sufficient for BlurHash.
func resizeForBlurHash(img image.Image) image.Image {
	bounds := img.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()

	if srcWidth <= blurHashSize && srcHeight <= blurHashSize {
		return img
	}

	var dstWidth, dstHeight int
	if srcWidth > srcHeight {
		dstWidth = blurHashSize
		dstHeight = max((srcHeight*blurHashSize)/srcWidth, 1)
	} else {
		dstHeight = blurHashSize
		dstWidth = max((srcWidth*blurHashSize)/srcHeight, 1)
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstWidth, dstHeight))
	xRatio := float64(srcWidth) / float64(dstWidth)
	yRatio := float64(srcHeight) / float64(dstHeight)

	for y := 0; y < dstHeight; y++ {
		for x := 0; x < dstWidth; x++ {
			srcX := int(float64(x) * xRatio)
			srcY := int(float64(y) * yRatio)
			dst.Set(x, y, img.At(bounds.Min.X+srcX, bounds.Min.Y+srcY))
		}
	}
	return dst
}
