// Package checksum computes SHA-256 fingerprints of imported files.
// Fingerprints identify books across reimports and exports.
package checksum

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// File returns the hex-encoded SHA-256 digest of a file's contents,
// streaming so large books do not load into memory.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read file for checksum: %w", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// Bytes returns the hex-encoded SHA-256 digest of data.
func Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}
