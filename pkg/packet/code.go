// Package packet implements the RADIUS wire codec: the 20-byte header,
// the attribute list (including Vendor-Specific and RFC 6929 extended
// attributes), and encode/decode against a dictionary.Dictionary and a
// shared secret.
package packet

import "fmt"

// Code is a RADIUS packet type, RFC 2865/2866/5176.
type Code uint8

const (
	CodeAccessRequest      Code = 1
	CodeAccessAccept       Code = 2
	CodeAccessReject       Code = 3
	CodeAccountingRequest  Code = 4
	CodeAccountingResponse Code = 5
	CodeAccessChallenge    Code = 11
	CodeStatusServer       Code = 12
	CodeStatusClient       Code = 13
	CodeDisconnectRequest  Code = 40
	CodeDisconnectACK      Code = 41
	CodeDisconnectNAK      Code = 42
	CodeCoARequest         Code = 43
	CodeCoAAck             Code = 44
	CodeCoANak             Code = 45
)

func (c Code) String() string {
	switch c {
	case CodeAccessRequest:
		return "Access-Request"
	case CodeAccessAccept:
		return "Access-Accept"
	case CodeAccessReject:
		return "Access-Reject"
	case CodeAccountingRequest:
		return "Accounting-Request"
	case CodeAccountingResponse:
		return "Accounting-Response"
	case CodeAccessChallenge:
		return "Access-Challenge"
	case CodeStatusServer:
		return "Status-Server"
	case CodeStatusClient:
		return "Status-Client"
	case CodeDisconnectRequest:
		return "Disconnect-Request"
	case CodeDisconnectACK:
		return "Disconnect-ACK"
	case CodeDisconnectNAK:
		return "Disconnect-NAK"
	case CodeCoARequest:
		return "CoA-Request"
	case CodeCoAAck:
		return "CoA-ACK"
	case CodeCoANak:
		return "CoA-NAK"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(c))
	}
}

// IsRequest reports whether c is sent by a client to open a transaction.
func (c Code) IsRequest() bool {
	switch c {
	case CodeAccessRequest, CodeAccountingRequest, CodeStatusServer,
		CodeDisconnectRequest, CodeCoARequest:
		return true
	default:
		return false
	}
}

// usesRandomAuthenticator reports whether c's Request Authenticator must
// be a fresh random value rather than the zero-seeded MD5 hash.
func (c Code) usesRandomAuthenticator() bool {
	switch c {
	case CodeAccessRequest, CodeStatusServer:
		return true
	default:
		return false
	}
}

// ExpectedResponseCodes lists the codes a client should accept as a valid
// reply to a request of code c.
func (c Code) ExpectedResponseCodes() []Code {
	switch c {
	case CodeAccessRequest:
		return []Code{CodeAccessAccept, CodeAccessReject, CodeAccessChallenge}
	case CodeAccountingRequest:
		return []Code{CodeAccountingResponse}
	case CodeStatusServer:
		return []Code{CodeAccessAccept, CodeAccessReject, CodeAccessChallenge}
	case CodeDisconnectRequest:
		return []Code{CodeDisconnectACK, CodeDisconnectNAK}
	case CodeCoARequest:
		return []Code{CodeCoAAck, CodeCoANak}
	default:
		return nil
	}
}
