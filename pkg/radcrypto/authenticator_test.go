package radcrypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRequestAuthenticatorIsRandomAndNonZero(t *testing.T) {
	a, err := GenerateRequestAuthenticator()
	require.NoError(t, err)
	assert.False(t, a.IsZero())

	b, err := GenerateRequestAuthenticator()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestAuthenticatorFromBytesRejectsWrongLength(t *testing.T) {
	_, err := AuthenticatorFromBytes([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestResponseAuthenticatorRoundTrip(t *testing.T) {
	secret := []byte("xyzzy5461")
	reqAuth, err := GenerateRequestAuthenticator()
	require.NoError(t, err)

	respAttrs := []byte{1, 6, 'h', 'e', 'l', 'l'} // arbitrary attribute bytes
	code, id, length := uint8(2), uint8(1), uint16(20+len(respAttrs))

	auth := CalculateResponseAuthenticator(code, id, length, reqAuth, respAttrs, secret)
	assert.True(t, ValidateResponseAuthenticator(code, id, length, reqAuth, respAttrs, auth, secret))

	tampered := respAttrs
	tampered[0] = 99
	assert.False(t, ValidateResponseAuthenticator(code, id, length, reqAuth, tampered, auth, secret))
}

func TestRequestAuthenticatorRoundTrip(t *testing.T) {
	secret := []byte("xyzzy5461")
	attrs := []byte{1, 6, 'f', 'o', 'o', 'o'}
	code, id, length := uint8(4), uint8(7), uint16(20+len(attrs))

	auth := CalculateRequestAuthenticator(code, id, length, attrs, secret)
	assert.True(t, ValidateRequestAuthenticator(code, id, length, attrs, auth, secret))
	assert.False(t, auth.IsZero())
}
