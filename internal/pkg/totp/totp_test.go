package totp

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecret_Base32NoPadding(t *testing.T) {
	secret, err := GenerateSecret()
	require.NoError(t, err)

	assert.Len(t, secret, 32, "160 bits encode to 32 base32 chars")
	assert.NotContains(t, secret, "=")
	_, err = b32.DecodeString(secret)
	assert.NoError(t, err)
}

func TestGenerateSecret_Unique(t *testing.T) {
	a, err := GenerateSecret()
	require.NoError(t, err)
	b, err := GenerateSecret()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCode_DeterministicSixDigits(t *testing.T) {
	secret, err := GenerateSecret()
	require.NoError(t, err)

	c1, err := Code(secret, 42)
	require.NoError(t, err)
	c2, err := Code(secret, 42)
	require.NoError(t, err)

	assert.Equal(t, c1, c2)
	assert.Len(t, c1, 6)
	assert.NotContains(t, c1, " ")
}

// RFC 4226 Appendix D test vectors for the ASCII secret "12345678901234567890".
func TestCode_RFC4226Vectors(t *testing.T) {
	secret := b32.EncodeToString([]byte("12345678901234567890"))
	want := []string{"755224", "287082", "359152", "969429", "338314", "254676"}
	for counter, expected := range want {
		got, err := Code(secret, uint64(counter))
		require.NoError(t, err)
		assert.Equal(t, expected, got, "counter %d", counter)
	}
}

func TestVerifyAt_WindowBoundaries(t *testing.T) {
	secret, err := GenerateSecret()
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	counter := uint64(now.Unix()) / period

	for _, delta := range []int64{-1, 0, 1} {
		code, err := Code(secret, uint64(int64(counter)+delta))
		require.NoError(t, err)
		assert.True(t, VerifyAt(secret, code, now), "delta %d should verify", delta)
	}
	for _, delta := range []int64{-2, 2} {
		code, err := Code(secret, uint64(int64(counter)+delta))
		require.NoError(t, err)
		assert.False(t, VerifyAt(secret, code, now), "delta %d should be rejected", delta)
	}
}

func TestVerify_BadInputsFailClosed(t *testing.T) {
	secret, err := GenerateSecret()
	require.NoError(t, err)

	// Find a six-digit string that is none of the three in-window codes.
	now := time.Unix(1_700_000_000, 0)
	counter := int64(now.Unix()) / period
	inWindow := map[string]bool{}
	for delta := int64(-1); delta <= 1; delta++ {
		code, err := Code(secret, uint64(counter+delta))
		require.NoError(t, err)
		inWindow[code] = true
	}
	wrong := ""
	for _, candidate := range []string{"000000", "000001", "000002", "000003"} {
		if !inWindow[candidate] {
			wrong = candidate
			break
		}
	}
	require.NotEmpty(t, wrong)

	assert.False(t, VerifyAt(secret, wrong, now), "wrong code")
	assert.False(t, VerifyAt("not!base32@", "123456", time.Now()), "invalid secret")
	assert.False(t, VerifyAt(secret, "", time.Now()), "empty code")
}

func TestURI_Shape(t *testing.T) {
	uri := URI("JBSWY3DPEHPK3PXP", "alice@example.com", "Ruinabla")

	assert.True(t, strings.HasPrefix(uri, "otpauth://totp/Ruinabla:alice@example.com?"))
	assert.Contains(t, uri, "secret=JBSWY3DPEHPK3PXP")
	assert.Contains(t, uri, "issuer=Ruinabla")
}

func TestURI_SpacesInLabelUsePercentEncoding(t *testing.T) {
	uri := URI("JBSWY3DPEHPK3PXP", "alice@example.com", "Ruinabla Blog")

	// The label is a path segment: a space must render as %20, never as the
	// + that some authenticator apps would read literally.
	assert.True(t, strings.HasPrefix(uri, "otpauth://totp/Ruinabla%20Blog:alice@example.com?"))
	assert.NotContains(t, strings.SplitN(uri, "?", 2)[0], "+")
}

func TestQRCode_DataURL(t *testing.T) {
	uri := URI("JBSWY3DPEHPK3PXP", "alice@example.com", "Ruinabla")
	qr, err := QRCode(uri)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(qr, "data:image/png;base64,"))
}
