package aiclient

import (
	"encoding/hex"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"

	"github.com/islabooks/isla/internal/id"
)

const (
	tokenIssuer   = "isla-client"
	tokenAudience = "isla-ai"

	// keyHexSize is the required PASETO v4 key length in hex characters.
	keyHexSize   = 64
	keyBytesSize = 32

	tokenLifetime = 5 * time.Minute
)

// TokenService mints short-lived PASETO v4.local bearer tokens for AI
// service requests. Minting locally avoids a token-exchange round trip on
// every request.
type TokenService struct {
	symmetricKey paseto.V4SymmetricKey
	deviceID     string
}

// NewTokenService creates a token service from a hex-encoded 32-byte key.
func NewTokenService(keyHex, deviceID string) (*TokenService, error) {
	if len(keyHex) != keyHexSize {
		return nil, fmt.Errorf("PASETO v4 key must be exactly %d hex characters (%d bytes), got %d", keyHexSize, keyBytesSize, len(keyHex))
	}

	keyBytes, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string for PASETO key: %w", err)
	}

	key, err := paseto.V4SymmetricKeyFromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
	}

	return &TokenService{symmetricKey: key, deviceID: deviceID}, nil
}

// Mint creates a fresh bearer token.
func (s *TokenService) Mint() (string, error) {
	now := time.Now()

	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetSubject(s.deviceID)
	token.SetAudience(tokenAudience)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(tokenLifetime))

	tokenID, err := id.Generate("token")
	if err != nil {
		return "", fmt.Errorf("generate token ID: %w", err)
	}
	token.SetJti(tokenID)

	return token.V4Encrypt(s.symmetricKey, nil), nil
}
