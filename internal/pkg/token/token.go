package token

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// New generates a cryptographically random token of n bytes, hex-encoded.
// Used for bearer session IDs and single-use email tokens.
func New(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewChallenge generates a random n-byte value encoded as unpadded base64url,
// the encoding WebAuthn clients expect for challenges.
func NewChallenge(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate challenge: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
