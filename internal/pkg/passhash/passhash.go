package passhash

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2-HMAC-SHA256 parameters. Changing any of these invalidates every
// stored hash, so they are fixed constants rather than configuration.
const (
	iterations = 100_000
	saltLen    = 16
	keyLen     = 32
)

// Hash derives a salted key from the password and returns it in the stored
// "saltHex:keyHex" form. Each call draws a fresh salt, so hashing the same
// password twice yields different records that both verify.
func Hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, iterations, keyLen, sha256.New)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(key), nil
}

// Verify re-derives the key using the stored salt and compares in constant
// time. Any malformed stored value verifies as false; it never errors.
func Verify(password, stored string) bool {
	saltHex, keyHex, ok := strings.Cut(stored, ":")
	if !ok {
		return false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(keyHex)
	if err != nil {
		return false
	}
	got := pbkdf2.Key([]byte(password), salt, iterations, keyLen, sha256.New)
	// ConstantTimeCompare returns 0 on unequal lengths; the length of the
	// stored key is not secret material.
	return subtle.ConstantTimeCompare(got, want) == 1
}
