package radcrypto

import (
	"crypto/hmac"
	"crypto/md5"
	"fmt"
)

// MessageAuthenticatorType is the RFC 2869 §5.14 attribute code.
const MessageAuthenticatorType = 80

// MessageAuthenticatorLength is the width of the Message-Authenticator
// attribute's value field.
const MessageAuthenticatorLength = 16

// CalculateMessageAuthenticator computes HMAC-MD5(sharedSecret, packet)
// over a fully encoded packet, with the Message-Authenticator attribute's
// value field (if present) zeroed first. Callers building a response must
// place the corresponding request's Request Authenticator into the
// packet's header authenticator field before calling this, per RFC 2869
// §5.14 — the response's own authenticator is only known once this value
// has been folded into the attribute list.
func CalculateMessageAuthenticator(packet, sharedSecret []byte) ([MessageAuthenticatorLength]byte, error) {
	var result [MessageAuthenticatorLength]byte
	if len(packet) < 20 {
		return result, fmt.Errorf("packet too short for Message-Authenticator calculation")
	}

	calc := make([]byte, len(packet))
	copy(calc, packet)

	if off := findMessageAuthenticatorValueOffset(calc); off != -1 {
		for i := 0; i < MessageAuthenticatorLength; i++ {
			calc[off+i] = 0
		}
	}

	mac := hmac.New(md5.New, sharedSecret)
	mac.Write(calc)
	copy(result[:], mac.Sum(nil))
	return result, nil
}

// ValidateMessageAuthenticator reports whether receivedAuth is the correct
// Message-Authenticator for packet under sharedSecret.
func ValidateMessageAuthenticator(packet, sharedSecret []byte, receivedAuth [MessageAuthenticatorLength]byte) (bool, error) {
	expected, err := CalculateMessageAuthenticator(packet, sharedSecret)
	if err != nil {
		return false, err
	}
	return hmac.Equal(expected[:], receivedAuth[:]), nil
}

// HasMessageAuthenticator reports whether packet carries a
// Message-Authenticator attribute.
func HasMessageAuthenticator(packet []byte) bool {
	return findMessageAuthenticatorStart(packet) != -1
}

// ExtractMessageAuthenticator copies out the value of packet's
// Message-Authenticator attribute.
func ExtractMessageAuthenticator(packet []byte) ([MessageAuthenticatorLength]byte, error) {
	var result [MessageAuthenticatorLength]byte
	off := findMessageAuthenticatorValueOffset(packet)
	if off == -1 {
		return result, fmt.Errorf("Message-Authenticator not present in packet")
	}
	if off+MessageAuthenticatorLength > len(packet) {
		return result, fmt.Errorf("Message-Authenticator value extends beyond packet")
	}
	copy(result[:], packet[off:off+MessageAuthenticatorLength])
	return result, nil
}

func findMessageAuthenticatorValueOffset(packet []byte) int {
	start := findMessageAuthenticatorStart(packet)
	if start == -1 {
		return -1
	}
	return start + 2
}

func findMessageAuthenticatorStart(packet []byte) int {
	if len(packet) < 20 {
		return -1
	}
	offset := 20
	for offset < len(packet) {
		if offset+2 > len(packet) {
			break
		}
		attrType := packet[offset]
		attrLength := packet[offset+1]
		if attrLength < 2 || offset+int(attrLength) > len(packet) {
			break
		}
		if attrType == MessageAuthenticatorType {
			return offset
		}
		offset += int(attrLength)
	}
	return -1
}
