// Package radcrypto implements the MD5 and HMAC-MD5 primitives RADIUS uses
// to authenticate packets and obfuscate password-carrying attributes: the
// Request/Response Authenticator (RFC 2865 §3), the Message-Authenticator
// attribute (RFC 2869 §5.14), and the User-Password/Tunnel-Password
// chained-MD5 keystream (RFC 2865 §5.2, RFC 2868 §3.5).
package radcrypto

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"fmt"
)

// AuthenticatorLength is the fixed width of every RADIUS authenticator.
const AuthenticatorLength = 16

// Authenticator is the 16-byte value carried in every RADIUS packet header.
type Authenticator [AuthenticatorLength]byte

// GenerateRequestAuthenticator produces a cryptographically random
// authenticator, as required for every Access-Request.
func GenerateRequestAuthenticator() (Authenticator, error) {
	var auth Authenticator
	if _, err := rand.Read(auth[:]); err != nil {
		return auth, fmt.Errorf("generate request authenticator: %w", err)
	}
	return auth, nil
}

// ZeroAuthenticator returns the all-zero authenticator used as a
// placeholder while computing Request Authenticators for Accounting,
// CoA, and Disconnect packets.
func ZeroAuthenticator() Authenticator {
	return Authenticator{}
}

// Equal reports whether two authenticators are identical, compared in
// constant time.
func (a Authenticator) Equal(other Authenticator) bool {
	return hmac.Equal(a[:], other[:])
}

// IsZero reports whether a is the all-zero authenticator.
func (a Authenticator) IsZero() bool {
	return a.Equal(ZeroAuthenticator())
}

// Bytes returns a's 16 octets as a freshly allocated slice.
func (a Authenticator) Bytes() []byte {
	out := make([]byte, AuthenticatorLength)
	copy(out, a[:])
	return out
}

func (a Authenticator) String() string {
	return fmt.Sprintf("%x", a[:])
}

// AuthenticatorFromBytes validates and copies a 16-byte slice into an
// Authenticator.
func AuthenticatorFromBytes(data []byte) (Authenticator, error) {
	var auth Authenticator
	if len(data) != AuthenticatorLength {
		return auth, fmt.Errorf("authenticator must be exactly %d bytes, got %d", AuthenticatorLength, len(data))
	}
	copy(auth[:], data)
	return auth, nil
}

// CalculateResponseAuthenticator computes the Response Authenticator for
// Access-Accept/Reject/Challenge and Accounting-Response packets:
//
//	MD5(Code + Identifier + Length + Request Authenticator + Attributes + Secret)
//
// requestAuth is the authenticator taken from the request this packet
// answers; responseAttrs is the response's encoded attribute list (no
// header).
func CalculateResponseAuthenticator(code, identifier uint8, length uint16, requestAuth Authenticator, responseAttrs, sharedSecret []byte) Authenticator {
	h := md5.New()
	h.Write([]byte{code, identifier, byte(length >> 8), byte(length)})
	h.Write(requestAuth[:])
	h.Write(responseAttrs)
	h.Write(sharedSecret)

	var out Authenticator
	copy(out[:], h.Sum(nil))
	return out
}

// ValidateResponseAuthenticator reports whether receivedAuth matches the
// Response Authenticator computed from the same inputs.
func ValidateResponseAuthenticator(code, identifier uint8, length uint16, requestAuth Authenticator, responseAttrs []byte, receivedAuth Authenticator, sharedSecret []byte) bool {
	expected := CalculateResponseAuthenticator(code, identifier, length, requestAuth, responseAttrs, sharedSecret)
	return expected.Equal(receivedAuth)
}

// CalculateRequestAuthenticator computes the Request Authenticator used by
// Accounting-Request, CoA-Request, and Disconnect-Request:
//
//	MD5(Code + Identifier + Length + 16 zero octets + Attributes + Secret)
func CalculateRequestAuthenticator(code, identifier uint8, length uint16, requestAttrs, sharedSecret []byte) Authenticator {
	h := md5.New()
	h.Write([]byte{code, identifier, byte(length >> 8), byte(length)})
	h.Write(make([]byte, AuthenticatorLength))
	h.Write(requestAttrs)
	h.Write(sharedSecret)

	var out Authenticator
	copy(out[:], h.Sum(nil))
	return out
}

// ValidateRequestAuthenticator reports whether receivedAuth matches the
// Request Authenticator computed from the same inputs.
func ValidateRequestAuthenticator(code, identifier uint8, length uint16, requestAttrs []byte, receivedAuth Authenticator, sharedSecret []byte) bool {
	expected := CalculateRequestAuthenticator(code, identifier, length, requestAttrs, sharedSecret)
	return expected.Equal(receivedAuth)
}
