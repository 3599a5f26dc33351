package passhash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashVerify_RoundTrip(t *testing.T) {
	stored, err := Hash("correct horse battery staple")
	require.NoError(t, err)

	assert.True(t, Verify("correct horse battery staple", stored))
	assert.False(t, Verify("correct horse battery stapl", stored))
	assert.False(t, Verify("", stored))
}

func TestHash_NonDeterministic(t *testing.T) {
	a, err := Hash("hunter22")
	require.NoError(t, err)
	b, err := Hash("hunter22")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "each hash must draw a fresh salt")
	assert.True(t, Verify("hunter22", a))
	assert.True(t, Verify("hunter22", b))
}

func TestHash_Format(t *testing.T) {
	stored, err := Hash("pw")
	require.NoError(t, err)

	saltHex, keyHex, ok := strings.Cut(stored, ":")
	require.True(t, ok)
	assert.Len(t, saltHex, saltLen*2)
	assert.Len(t, keyHex, keyLen*2)
}

func TestVerify_MalformedStoredHash(t *testing.T) {
	cases := []string{
		"",
		"nodelimiter",
		"deadbeef",                // no key segment
		":",                       // empty segments
		"zz:deadbeef",             // bad salt hex
		"deadbeef:zz",             // bad key hex
		"deadbeef:deadbeef:extra", // key segment contains delimiter remnant
	}
	for _, stored := range cases {
		assert.False(t, Verify("anything", stored), "stored: %q", stored)
	}
}

func TestVerify_UnicodePassword(t *testing.T) {
	stored, err := Hash("pässwörd✓")
	require.NoError(t, err)
	assert.True(t, Verify("pässwörd✓", stored))
	assert.False(t, Verify("password", stored))
}
