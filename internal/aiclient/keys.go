package aiclient

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/islabooks/isla/internal/id"
)

const (
	keyFileName      = "ai.key"
	deviceIDFileName = "device.id"
)

// LoadOrGenerateKey returns the hex-encoded PASETO symmetric key stored under
// dataPath, generating and persisting a fresh one on first run.
func LoadOrGenerateKey(dataPath string) (string, error) {
	keyPath := filepath.Join(dataPath, keyFileName)

	//#nosec G304 -- key path is derived from the validated data path
	if raw, err := os.ReadFile(keyPath); err == nil {
		keyHex := strings.TrimSpace(string(raw))
		if len(keyHex) != keyHexSize {
			return "", fmt.Errorf("invalid AI key length: expected %d hex chars, got %d", keyHexSize, len(keyHex))
		}
		if _, err := hex.DecodeString(keyHex); err != nil {
			return "", fmt.Errorf("invalid AI key format: not valid hex: %w", err)
		}
		return keyHex, nil
	}

	key := make([]byte, keyBytesSize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate AI key: %w", err)
	}
	keyHex := hex.EncodeToString(key)

	if err := os.MkdirAll(dataPath, 0o750); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(keyHex+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to persist AI key: %w", err)
	}

	return keyHex, nil
}

// LoadOrGenerateDeviceID returns the stable device identifier stored under
// dataPath, minting one on first run. The ID becomes the token subject so the
// service can correlate requests from the same installation.
func LoadOrGenerateDeviceID(dataPath string) (string, error) {
	idPath := filepath.Join(dataPath, deviceIDFileName)

	//#nosec G304 -- id path is derived from the validated data path
	if raw, err := os.ReadFile(idPath); err == nil {
		deviceID := strings.TrimSpace(string(raw))
		if deviceID != "" {
			return deviceID, nil
		}
	}

	deviceID, err := id.Generate("dev")
	if err != nil {
		return "", fmt.Errorf("failed to generate device ID: %w", err)
	}

	if err := os.MkdirAll(dataPath, 0o750); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(idPath, []byte(deviceID+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to persist device ID: %w", err)
	}

	return deviceID, nil
}
