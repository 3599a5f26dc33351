// Package backupcode generates single-use recovery codes for accounts
// with TOTP enabled.
package backupcode

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// DefaultCount is the number of codes issued on enrollment and on
// regeneration.
const DefaultCount = 10

// Generate returns count independent recovery codes. Each code is 4
// random bytes rendered as 8 uppercase hex characters.
func Generate(count int) ([]string, error) {
	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		var raw [4]byte
		if _, err := rand.Read(raw[:]); err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		codes = append(codes, fmt.Sprintf("%08X", raw))
	}
	return codes, nil
}

// Normalize maps a user-submitted code onto the stored form.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
