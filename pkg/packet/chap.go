package packet

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/subtle"

	"github.com/rsippl/radius/pkg/radcrypto"
)

const (
	// CHAPChallengeLength is the conventional CHAP challenge length; RFC
	// 2865 §5.3 allows any length but CHAP-Challenge is normally 16 bytes
	// to match the Request Authenticator it otherwise substitutes for.
	CHAPChallengeLength = 16

	// chapHashLength is the width of the MD5 hash inside a CHAP-Password
	// value.
	chapHashLength = 16
)

// GenerateCHAPChallenge returns a fresh random CHAP challenge of the
// conventional length, suitable for a CHAP-Challenge attribute.
func GenerateCHAPChallenge() ([]byte, error) {
	challenge := make([]byte, CHAPChallengeLength)
	if _, err := rand.Read(challenge); err != nil {
		return nil, err
	}
	return challenge, nil
}

// EncodeCHAPPassword builds a CHAP-Password attribute value: MD5(identifier
// || password || challenge), prefixed by the identifier byte, per RFC 2865
// §5.3.
func EncodeCHAPPassword(identifier uint8, password, challenge []byte) []byte {
	hash := md5.New()
	hash.Write([]byte{identifier})
	hash.Write(password)
	hash.Write(challenge)

	out := make([]byte, 1+chapHashLength)
	out[0] = identifier
	copy(out[1:], hash.Sum(nil))
	return out
}

// VerifyCHAPPassword checks a decoded CHAP-Password attribute against the
// cleartext password known to the server. challenge should come from the
// request's CHAP-Challenge attribute if present, and otherwise falls back
// to the request's Request Authenticator, since RFC 2865 §5.3 allows the
// authenticator to stand in for a dedicated challenge.
func VerifyCHAPPassword(chapPassword []byte, password []byte, requestAuth radcrypto.Authenticator, chapChallenge []byte) bool {
	if len(chapPassword) != 1+chapHashLength {
		return false
	}
	challenge := chapChallenge
	if len(challenge) == 0 {
		challenge = requestAuth.Bytes()
	}

	expected := EncodeCHAPPassword(chapPassword[0], password, challenge)
	return subtle.ConstantTimeCompare(chapPassword, expected) == 1
}
