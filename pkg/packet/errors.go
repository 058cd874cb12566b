package packet

import "fmt"

// EncodeError reports why Encode could not produce wire bytes for a packet.
type EncodeError struct {
	Reason string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("packet: encode: %s", e.Reason)
}

// DecodeError reports a malformed packet: truncated header, a length field
// that disagrees with the buffer, or an attribute whose encoded length
// does not fit the header/vendor envelope it claims.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("packet: decode: %s", e.Reason)
}

// AuthError reports a packet that decoded structurally but failed an
// authenticator or Message-Authenticator check.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("packet: authentication: %s", e.Reason)
}
