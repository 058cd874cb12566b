package packet

import (
	"fmt"

	"github.com/rsippl/radius/pkg/dictionary"
)

// AttributeHeaderLength is the type+length header every attribute carries.
const AttributeHeaderLength = 2

// VendorSpecificType is the standard-space Vendor-Specific attribute, RFC
// 2865 §5.26.
const VendorSpecificType = 26

// maxAttrValueLength is the largest value that fits in one classic
// attribute instance (255 - 2-byte header).
const maxAttrValueLength = 253

// Attribute is one decoded wire attribute: a code in either the standard
// or a vendor's sub-attribute space (or an RFC 6929 extended sub-type of a
// 241-246 parent), an optional tunnel tag, and its value already run
// through dictionary.EncodeValue. Password-obfuscated attributes carry
// their pre-encryption encoded bytes here; Packet.Encode applies
// radcrypto's chained-MD5 transform once the authenticator is known.
type Attribute struct {
	Code         uint8
	Vendor       uint32
	ExtendedType uint8
	Tag          uint8
	Value        []byte
	Encrypt      dictionary.Encryption
}

// IsExtended reports whether Code is an RFC 6929 extended parent carrying
// ExtendedType as its sub-type.
func (a *Attribute) IsExtended() bool {
	return a.ExtendedType != 0
}

func (a *Attribute) String() string {
	if a.Vendor != 0 {
		return fmt.Sprintf("Vendor(%d)/Type(%d)=%x", a.Vendor, a.Code, a.Value)
	}
	if a.IsExtended() {
		return fmt.Sprintf("Extended(%d.%d)=%x", a.Code, a.ExtendedType, a.Value)
	}
	return fmt.Sprintf("Type(%d)=%x", a.Code, a.Value)
}

// taggedValue prepends a's tag byte to value when tagging applies: a
// nonzero tag occupies the first octet of the wire value.
func taggedValue(hasTag bool, tag uint8, value []byte) []byte {
	if !hasTag || tag == 0 {
		return value
	}
	out := make([]byte, 1+len(value))
	out[0] = tag
	copy(out[1:], value)
	return out
}

// splitTag separates a leading tag byte from a wire value for an
// attribute whose dictionary definition declares has_tag. The tag is
// only present when the first byte is <= 0x1F.
func splitTag(hasTag bool, raw []byte) (tag uint8, value []byte) {
	if !hasTag || len(raw) == 0 || raw[0] > 0x1F {
		return 0, raw
	}
	return raw[0], raw[1:]
}

// encodeClassic serializes one logical attribute (standard or vendor sub-
// attribute, non-extended) into one or more wire instances, splitting
// oversize values across repeated instances of the same type per
// RFC 2865 §5.1.5 long-attribute practice.
func encodeClassic(a *Attribute, vendorFmt func(uint32) (int, int)) ([]byte, error) {
	if a.Vendor == 0 {
		return encodeChunks(a.Code, a.Value, nil)
	}

	typeWidth, lengthWidth := vendorFmt(a.Vendor)
	return encodeVendorSubAttribute(a, typeWidth, lengthWidth)
}

// encodeChunks splits value into <=253-byte pieces, each wrapped in its
// own type+length header. wrap, if non-nil, wraps each chunk; the caller
// in this package passes nil, since vendor sub-attributes go through
// encodeVendorSubAttribute instead.
func encodeChunks(code uint8, value []byte, wrap func([]byte) []byte) ([]byte, error) {
	if len(value) == 0 {
		return []byte{code, AttributeHeaderLength}, nil
	}

	var out []byte
	for offset := 0; offset < len(value); offset += maxAttrValueLength {
		end := offset + maxAttrValueLength
		if end > len(value) {
			end = len(value)
		}
		chunk := value[offset:end]
		if wrap != nil {
			chunk = wrap(chunk)
		}
		if len(chunk)+AttributeHeaderLength > 255 {
			return nil, fmt.Errorf("attribute %d chunk too large after vendor envelope: %d octets", code, len(chunk))
		}
		out = append(out, code, uint8(len(chunk)+AttributeHeaderLength))
		out = append(out, chunk...)
	}
	return out, nil
}

// encodeVendorSubAttribute wraps a's value in the Vendor-Specific envelope:
// 26 | total_len | vendor_id(4) | sub-attribute(s), where each
// sub-attribute uses the vendor's declared type/length field widths.
func encodeVendorSubAttribute(a *Attribute, typeWidth, lengthWidth int) ([]byte, error) {
	// Each VSA instance carries the attribute header, the 4-byte vendor id
	// and the sub-attribute header ahead of the chunk.
	maxSubValue := 255 - AttributeHeaderLength - 4 - typeWidth - lengthWidth

	value := a.Value
	if len(value) == 0 {
		value = []byte{}
	}

	var out []byte
	for offset := 0; offset < len(value) || (offset == 0 && len(value) == 0); {
		end := offset + maxSubValue
		if end > len(value) {
			end = len(value)
		}
		chunk := value[offset:end]

		sub := make([]byte, 0, typeWidth+lengthWidth+len(chunk))
		sub = appendWidth(sub, uint64(a.Code), typeWidth)
		if lengthWidth > 0 {
			sub = appendWidth(sub, uint64(len(chunk)+typeWidth+lengthWidth), lengthWidth)
		}
		sub = append(sub, chunk...)

		vsaValue := make([]byte, 0, 4+len(sub))
		vsaValue = append(vsaValue, byte(a.Vendor>>24), byte(a.Vendor>>16), byte(a.Vendor>>8), byte(a.Vendor))
		vsaValue = append(vsaValue, sub...)

		if len(vsaValue)+AttributeHeaderLength > 255 {
			return nil, fmt.Errorf("vendor %d attribute %d too large to fit one VSA instance", a.Vendor, a.Code)
		}
		out = append(out, VendorSpecificType, uint8(len(vsaValue)+AttributeHeaderLength))
		out = append(out, vsaValue...)

		if len(value) == 0 {
			break
		}
		offset = end
	}
	return out, nil
}

func appendWidth(out []byte, v uint64, width int) []byte {
	for i := width - 1; i >= 0; i-- {
		out = append(out, byte(v>>(8*uint(i))))
	}
	return out
}

// extendedFlagMore is the "M" (more fragments follow) bit of an RFC 6929
// long-extended attribute's flags octet.
const extendedFlagMore = 0x80

// encodeExtendedLong serializes an RFC 6929 extended attribute (parent
// code 241-246) using the long-extended continuation format: each
// instance is parent(1) | length(1) | sub-type(1) | flags(1) | chunk,
// chaining the M bit across instances when the value does not fit in one.
func encodeExtendedLong(a *Attribute) []byte {
	value := a.Value
	maxChunk := 255 - AttributeHeaderLength - 2 // sub-type + flags octets
	if len(value) == 0 {
		return []byte{a.Code, AttributeHeaderLength + 2, a.ExtendedType, 0}
	}

	var out []byte
	for offset := 0; offset < len(value); offset += maxChunk {
		end := offset + maxChunk
		more := end < len(value)
		if end > len(value) {
			end = len(value)
		}
		chunk := value[offset:end]
		flags := byte(0)
		if more {
			flags = extendedFlagMore
		}
		out = append(out, a.Code, uint8(len(chunk)+AttributeHeaderLength+2), a.ExtendedType, flags)
		out = append(out, chunk...)
	}
	return out
}
