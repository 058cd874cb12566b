package packet

import (
	"fmt"

	"github.com/rsippl/radius/pkg/dictionary"
	"github.com/rsippl/radius/pkg/radcrypto"
)

// PacketHeaderLength is the fixed RADIUS header: code, identifier, length,
// authenticator.
const PacketHeaderLength = 20

// MinPacketLength and MaxPacketLength bound a well-formed RADIUS packet,
// RFC 2865 §3.
const (
	MinPacketLength = PacketHeaderLength
	MaxPacketLength = 4096
)

// Packet is a decoded (or not-yet-encoded) RADIUS packet: a code, an
// identifier that pairs a response to its request, the 16-byte
// authenticator, and an ordered attribute list. Attributes preserve
// wire order and duplicates; Packet never collapses repeated attributes
// on its own.
type Packet struct {
	Code          Code
	Identifier    uint8
	Authenticator radcrypto.Authenticator
	Attributes    []*Attribute
	Secret        []byte
	Dict          *dictionary.Dictionary
}

// New creates an empty packet of the given code. identifier should come
// from a client's own allocator; servers instead get one from Decode.
func New(code Code, identifier uint8, secret []byte, dict *dictionary.Dictionary) *Packet {
	return &Packet{
		Code:       code,
		Identifier: identifier,
		Secret:     secret,
		Dict:       dict,
	}
}

// vendorFormat resolves a vendor's sub-attribute type/length field widths,
// defaulting to 1,1 for a vendor the dictionary has no VENDOR entry for.
func (p *Packet) vendorFormat(vendorID uint32) (int, int) {
	if v, ok := p.Dict.LookupVendorByID(vendorID); ok {
		return v.TypeWidth, v.LengthWidth
	}
	return 1, 1
}

// SetByName appends a standard-space attribute, resolving name against the
// packet's dictionary and running value through dictionary.EncodeValue.
func (p *Packet) SetByName(name string, value interface{}) error {
	return p.SetTaggedByName(name, value, 0)
}

// SetTaggedByName is SetByName with an explicit tunnel tag (RFC 2868 §3.1);
// tag 0 means untagged.
func (p *Packet) SetTaggedByName(name string, value interface{}, tag uint8) error {
	def, ok := p.Dict.LookupByName(name)
	if !ok {
		return &EncodeError{Reason: fmt.Sprintf("unknown attribute %q", name)}
	}
	raw, err := dictionary.EncodeValue(def.Type, value)
	if err != nil {
		return &EncodeError{Reason: fmt.Sprintf("attribute %q: %v", name, err)}
	}
	p.Attributes = append(p.Attributes, &Attribute{
		Code:         def.Code,
		ExtendedType: def.ExtendedType,
		Tag:          tag,
		Value:        raw,
		Encrypt:      def.Encrypt,
	})
	return nil
}

// SetVendorByName appends a vendor sub-attribute, resolving name within
// vendorName's scope.
func (p *Packet) SetVendorByName(vendorName, name string, value interface{}) error {
	v, ok := p.Dict.LookupVendorByName(vendorName)
	if !ok {
		return &EncodeError{Reason: fmt.Sprintf("unknown vendor %q", vendorName)}
	}
	def, ok := p.Dict.LookupVendorAttributeByName(vendorName, name)
	if !ok {
		return &EncodeError{Reason: fmt.Sprintf("unknown vendor attribute %s:%s", vendorName, name)}
	}
	raw, err := dictionary.EncodeValue(def.Type, value)
	if err != nil {
		return &EncodeError{Reason: fmt.Sprintf("attribute %s:%s: %v", vendorName, name, err)}
	}
	p.Attributes = append(p.Attributes, &Attribute{
		Code:    def.Code,
		Vendor:  v.ID,
		Value:   raw,
		Encrypt: def.Encrypt,
	})
	return nil
}

// GetByName returns the first attribute named name, decoded to its Go
// value via dictionary.DecodeValue.
func (p *Packet) GetByName(name string) (interface{}, bool, error) {
	values, err := p.GetAllByName(name)
	if err != nil || len(values) == 0 {
		return nil, false, err
	}
	return values[0], true, nil
}

// GetAllByName returns every matching attribute's decoded value, in wire
// order. Legitimately multi-valued attributes (e.g. Reply-Message) come
// back as one entry per instance; see GetConcatenated for attributes whose
// semantics call for joining repeated instances instead.
func (p *Packet) GetAllByName(name string) ([]interface{}, error) {
	def, ok := p.Dict.LookupByName(name)
	if !ok {
		return nil, &DecodeError{Reason: fmt.Sprintf("unknown attribute %q", name)}
	}
	var out []interface{}
	for _, a := range p.Attributes {
		if a.Vendor != 0 || a.Code != def.Code || a.ExtendedType != def.ExtendedType {
			continue
		}
		v, err := dictionary.DecodeValue(def.Type, a.Value)
		if err != nil {
			return nil, &DecodeError{Reason: fmt.Sprintf("attribute %q: %v", name, err)}
		}
		out = append(out, v)
	}
	return out, nil
}

// GetVendorByName returns the first vendor sub-attribute named name within
// vendorName's scope, decoded to its Go value.
func (p *Packet) GetVendorByName(vendorName, name string) (interface{}, bool, error) {
	values, err := p.GetAllVendorByName(vendorName, name)
	if err != nil || len(values) == 0 {
		return nil, false, err
	}
	return values[0], true, nil
}

// GetAllVendorByName returns every matching vendor sub-attribute's decoded
// value, in wire order.
func (p *Packet) GetAllVendorByName(vendorName, name string) ([]interface{}, error) {
	v, ok := p.Dict.LookupVendorByName(vendorName)
	if !ok {
		return nil, &DecodeError{Reason: fmt.Sprintf("unknown vendor %q", vendorName)}
	}
	def, ok := p.Dict.LookupVendorAttributeByName(vendorName, name)
	if !ok {
		return nil, &DecodeError{Reason: fmt.Sprintf("unknown vendor attribute %s:%s", vendorName, name)}
	}
	var out []interface{}
	for _, a := range p.Attributes {
		if a.Vendor != v.ID || a.Code != def.Code {
			continue
		}
		val, err := dictionary.DecodeValue(def.Type, a.Value)
		if err != nil {
			return nil, &DecodeError{Reason: fmt.Sprintf("attribute %s:%s: %v", vendorName, name, err)}
		}
		out = append(out, val)
	}
	return out, nil
}

// GetConcatenated returns the byte-concatenation (in wire order) of every
// instance of a raw (octets/string) attribute named name. Attributes like
// EAP-Message are defined to span multiple instances without any
// wire-level continuation marker; this is the caller's explicit opt-in to
// treating repeats that way instead of as independent values.
func (p *Packet) GetConcatenated(name string) ([]byte, error) {
	def, ok := p.Dict.LookupByName(name)
	if !ok {
		return nil, &DecodeError{Reason: fmt.Sprintf("unknown attribute %q", name)}
	}
	var out []byte
	for _, a := range p.Attributes {
		if a.Vendor != 0 || a.Code != def.Code || a.ExtendedType != def.ExtendedType {
			continue
		}
		out = append(out, a.Value...)
	}
	return out, nil
}

// encodeAttributes serializes every attribute in wire order, applying
// password obfuscation with the given authenticator as the seed and
// zeroing the Message-Authenticator's value field when present so it can
// be computed and patched in afterward.
func (p *Packet) encodeAttributes(seedAuth radcrypto.Authenticator) ([]byte, error) {
	var out []byte
	for _, a := range p.Attributes {
		value := a.Value
		switch a.Encrypt {
		case dictionary.EncryptUserPassword:
			value = radcrypto.PWCrypt(value, seedAuth, p.Secret)
		case dictionary.EncryptTunnelPassword:
			salt, err := radcrypto.GenerateTunnelPasswordSalt()
			if err != nil {
				return nil, &EncodeError{Reason: err.Error()}
			}
			value, err = radcrypto.TunnelPasswordEncrypt(value, seedAuth, p.Secret, salt)
			if err != nil {
				return nil, &EncodeError{Reason: err.Error()}
			}
		}

		enc := &Attribute{Code: a.Code, Vendor: a.Vendor, ExtendedType: a.ExtendedType, Tag: a.Tag, Value: value}

		var wire []byte
		var err error
		switch {
		case enc.IsExtended():
			wire = encodeExtendedLong(taggedExtended(enc))
		default:
			hasTag := a.Tag != 0
			tagged := &Attribute{Code: enc.Code, Vendor: enc.Vendor, Value: taggedValue(hasTag, enc.Tag, enc.Value)}
			wire, err = encodeClassic(tagged, p.vendorFormat)
		}
		if err != nil {
			return nil, &EncodeError{Reason: err.Error()}
		}
		out = append(out, wire...)
	}
	return out, nil
}

// taggedExtended returns a with its tag folded into the value, for the
// RFC 6929 extended encoder which has no header-level tag concept of its
// own.
func taggedExtended(a *Attribute) *Attribute {
	return &Attribute{
		Code:         a.Code,
		ExtendedType: a.ExtendedType,
		Value:        taggedValue(a.Tag != 0, a.Tag, a.Value),
	}
}

// Encode serializes the packet, computing whichever authenticator its code
// requires and patching in Message-Authenticator when the packet carries
// one. request is the paired Request packet for a response code (nil for
// requests); its Authenticator supplies the header slot that
// Message-Authenticator and the Response Authenticator are computed over,
// per RFC 2869 §5.14 and RFC 2865 §3.
func (p *Packet) Encode(request *Packet) ([]byte, error) {
	if len(p.Secret) == 0 {
		return nil, &EncodeError{Reason: "shared secret is empty"}
	}

	seedAuth := p.Authenticator
	if !p.Code.IsRequest() {
		if request == nil {
			return nil, &EncodeError{Reason: "response packet requires its paired request"}
		}
		seedAuth = request.Authenticator
	} else if p.Code.usesRandomAuthenticator() && p.Authenticator.IsZero() {
		var err error
		seedAuth, err = radcrypto.GenerateRequestAuthenticator()
		if err != nil {
			return nil, &EncodeError{Reason: err.Error()}
		}
		p.Authenticator = seedAuth
	} else if !p.Code.usesRandomAuthenticator() {
		// Accounting/CoA/Disconnect requests derive their own Request
		// Authenticator from the attributes; any password attribute is
		// obfuscated against the zero placeholder used in that formula,
		// since the real authenticator does not exist yet.
		seedAuth = radcrypto.ZeroAuthenticator()
	}

	attrBytes, err := p.encodeAttributes(seedAuth)
	if err != nil {
		return nil, err
	}

	length := PacketHeaderLength + len(attrBytes)
	if length > MaxPacketLength {
		return nil, &EncodeError{Reason: fmt.Sprintf("packet too long: %d octets", length)}
	}

	header := make([]byte, PacketHeaderLength)
	header[0] = byte(p.Code)
	header[1] = p.Identifier
	header[2] = byte(length >> 8)
	header[3] = byte(length)
	copy(header[4:20], seedAuth.Bytes())

	wire := append(header, attrBytes...)

	if off := maOffset(wire); off != -1 {
		mac, err := radcrypto.CalculateMessageAuthenticator(wire, p.Secret)
		if err != nil {
			return nil, &EncodeError{Reason: err.Error()}
		}
		copy(wire[off:off+radcrypto.MessageAuthenticatorLength], mac[:])
	}

	var finalAuth radcrypto.Authenticator
	switch {
	case !p.Code.IsRequest():
		finalAuth = radcrypto.CalculateResponseAuthenticator(byte(p.Code), p.Identifier, uint16(length), request.Authenticator, wire[PacketHeaderLength:], p.Secret)
	case p.Code.usesRandomAuthenticator():
		finalAuth = seedAuth
	default:
		finalAuth = radcrypto.CalculateRequestAuthenticator(byte(p.Code), p.Identifier, uint16(length), wire[PacketHeaderLength:], p.Secret)
	}
	p.Authenticator = finalAuth
	copy(wire[4:20], finalAuth.Bytes())

	return wire, nil
}

// maOffset returns the offset of the Message-Authenticator attribute's
// value field in wire, or -1 if absent.
func maOffset(wire []byte) int {
	offset := PacketHeaderLength
	for offset+2 <= len(wire) {
		code := wire[offset]
		length := int(wire[offset+1])
		if length < 2 || offset+length > len(wire) {
			return -1
		}
		if code == radcrypto.MessageAuthenticatorType {
			return offset + 2
		}
		offset += length
	}
	return -1
}

// Decode parses wire into a Packet against dict, without verifying any
// authenticator — callers must follow up with VerifyRequestAuthenticator
// or VerifyResponseAuthenticator (and VerifyMessageAuthenticator if one is
// present) once they know which packet this pairs with.
func Decode(wire []byte, secret []byte, dict *dictionary.Dictionary) (*Packet, error) {
	if len(wire) < PacketHeaderLength {
		return nil, &DecodeError{Reason: fmt.Sprintf("packet too short: %d octets", len(wire))}
	}
	length := int(wire[2])<<8 | int(wire[3])
	if length < MinPacketLength || length > len(wire) {
		return nil, &DecodeError{Reason: fmt.Sprintf("header length %d inconsistent with %d-octet buffer", length, len(wire))}
	}

	auth, err := radcrypto.AuthenticatorFromBytes(wire[4:20])
	if err != nil {
		return nil, &DecodeError{Reason: err.Error()}
	}

	attrs, err := parseAttributes(wire[PacketHeaderLength:length], dict)
	if err != nil {
		return nil, err
	}

	return &Packet{
		Code:          Code(wire[0]),
		Identifier:    wire[1],
		Authenticator: auth,
		Attributes:    attrs,
		Secret:        secret,
		Dict:          dict,
	}, nil
}

// VerifyMessageAuthenticator checks the Message-Authenticator attribute in
// wire (the exact bytes Decode consumed), if present. reqAuth is the
// authenticator Encode computed it over: the paired request's
// authenticator for a response packet, the packet's own authenticator for
// an Access-Request or Status-Server, and the zero authenticator for an
// Accounting-Request, CoA-Request or Disconnect-Request.
func VerifyMessageAuthenticator(wire []byte, secret []byte, reqAuth radcrypto.Authenticator) error {
	if !radcrypto.HasMessageAuthenticator(wire) {
		return nil
	}
	received, err := radcrypto.ExtractMessageAuthenticator(wire)
	if err != nil {
		return &DecodeError{Reason: err.Error()}
	}

	calc := make([]byte, len(wire))
	copy(calc, wire)
	copy(calc[4:20], reqAuth.Bytes())

	ok, err := radcrypto.ValidateMessageAuthenticator(calc, secret, received)
	if err != nil {
		return &DecodeError{Reason: err.Error()}
	}
	if !ok {
		return &AuthError{Reason: "Message-Authenticator mismatch"}
	}
	return nil
}

// VerifyRequestAuthenticator checks p's Request Authenticator, for the
// self-authenticated request codes (Accounting-Request, CoA-Request,
// Disconnect-Request); Access-Request and Status-Server use a random
// authenticator there is nothing to verify against.
func VerifyRequestAuthenticator(wire []byte, secret []byte) error {
	if len(wire) < PacketHeaderLength {
		return &DecodeError{Reason: fmt.Sprintf("packet too short: %d octets", len(wire))}
	}
	length := int(wire[2])<<8 | int(wire[3])
	var received radcrypto.Authenticator
	copy(received[:], wire[4:20])
	if !radcrypto.ValidateRequestAuthenticator(wire[0], wire[1], uint16(length), wire[PacketHeaderLength:length], received, secret) {
		return &AuthError{Reason: "Request Authenticator mismatch"}
	}
	return nil
}

// VerifyResponseAuthenticator checks a response's Response Authenticator
// against the request it answers.
func VerifyResponseAuthenticator(wire []byte, secret []byte, requestAuth radcrypto.Authenticator) error {
	if len(wire) < PacketHeaderLength {
		return &DecodeError{Reason: fmt.Sprintf("packet too short: %d octets", len(wire))}
	}
	length := int(wire[2])<<8 | int(wire[3])
	var received radcrypto.Authenticator
	copy(received[:], wire[4:20])
	if !radcrypto.ValidateResponseAuthenticator(wire[0], wire[1], uint16(length), requestAuth, wire[PacketHeaderLength:length], received, secret) {
		return &AuthError{Reason: "Response Authenticator mismatch"}
	}
	return nil
}

func (p *Packet) String() string {
	return fmt.Sprintf("%s id=%d attrs=%d", p.Code, p.Identifier, len(p.Attributes))
}
