// Package id generates unique identifiers for domain entities.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Entity ID prefixes. Books use plain UUIDs instead (their identity must
// survive round-trips through the remote record store unchanged).
const (
	PrefixChapter    = "chap"
	PrefixLibrary    = "li"
	PrefixProgress   = "rp"
	PrefixHighlight  = "hl"
	PrefixAnnotation = "an"
)

// Generate creates a prefixed unique ID using NanoID.
// Format: prefix-nanoid (e.g., "chap-V1StGXR8_Z5jdHi6B-myT").
//
// Returns an error if the system has insufficient entropy for secure random
// generation.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics on failure. Use only where a
// failure should crash the program, e.g. during initialization.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}
