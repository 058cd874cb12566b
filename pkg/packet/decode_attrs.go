package packet

import (
	"fmt"

	"github.com/rsippl/radius/pkg/dictionary"
)

// parseAttributes walks the raw attribute section of a packet (everything
// after the 20-byte header) into a flat, ordered []*Attribute: VSAs are
// decapsulated into their vendor sub-attributes and RFC 6929 long-extended
// continuations are merged by their unambiguous M-bit signal. Classic
// (non-extended, non-vendor) attributes longer than 253 octets have no
// wire-level continuation signal and are therefore left as separate
// instances in wire order — see DESIGN.md for why this package does not
// guess at merging them.
func parseAttributes(raw []byte, dict *dictionary.Dictionary) ([]*Attribute, error) {
	var out []*Attribute
	offset := 0
	for offset < len(raw) {
		if offset+AttributeHeaderLength > len(raw) {
			return nil, &DecodeError{Reason: fmt.Sprintf("truncated attribute header at offset %d", offset)}
		}
		code := raw[offset]
		length := int(raw[offset+1])
		if length < AttributeHeaderLength || offset+length > len(raw) {
			return nil, &DecodeError{Reason: fmt.Sprintf("invalid attribute length %d at offset %d", length, offset)}
		}
		value := raw[offset+2 : offset+length]

		switch {
		case code == VendorSpecificType:
			attrs, err := decodeVSA(value, dict)
			if err != nil {
				return nil, err
			}
			out = append(out, attrs...)

		case code >= 241 && code <= 246:
			attr, consumed, err := decodeExtendedRun(raw[offset:], dict)
			if err != nil {
				return nil, err
			}
			out = append(out, attr)
			offset += consumed
			continue

		default:
			hasTag := false
			if def, ok := dict.LookupByCode(code); ok {
				hasTag = def.HasTag
			}
			tag, plain := splitTag(hasTag, value)
			out = append(out, &Attribute{Code: code, Tag: tag, Value: append([]byte(nil), plain...)})
		}

		offset += length
	}
	return out, nil
}

// decodeVSA decapsulates a Vendor-Specific attribute's value (vendor id
// followed by sub-attributes in that vendor's declared format) into one
// Attribute per sub-attribute.
func decodeVSA(value []byte, dict *dictionary.Dictionary) ([]*Attribute, error) {
	if len(value) < 4 {
		return nil, &DecodeError{Reason: fmt.Sprintf("vendor-specific value too short: %d octets", len(value))}
	}
	vendorID := uint32(value[0])<<24 | uint32(value[1])<<16 | uint32(value[2])<<8 | uint32(value[3])
	body := value[4:]

	typeWidth, lengthWidth := 1, 1
	if v, ok := dict.LookupVendorByID(vendorID); ok {
		typeWidth, lengthWidth = v.TypeWidth, v.LengthWidth
	}

	var out []*Attribute
	offset := 0
	for offset < len(body) {
		if offset+typeWidth+lengthWidth > len(body) {
			return nil, &DecodeError{Reason: fmt.Sprintf("truncated vendor %d sub-attribute header", vendorID)}
		}
		subCode := readWidth(body[offset:], typeWidth)
		offset += typeWidth

		var subLen int
		if lengthWidth > 0 {
			subLen = int(readWidth(body[offset:], lengthWidth))
			offset += lengthWidth
		} else {
			subLen = len(body) - offset + typeWidth + lengthWidth
		}

		valueLen := subLen - typeWidth - lengthWidth
		if valueLen < 0 || offset+valueLen > len(body) {
			return nil, &DecodeError{Reason: fmt.Sprintf("invalid vendor %d sub-attribute length %d", vendorID, subLen)}
		}
		subValue := body[offset : offset+valueLen]
		offset += valueLen

		hasTag := false
		if def, ok := dict.LookupVendorAttributeByCode(vendorID, uint8(subCode)); ok {
			hasTag = def.HasTag
		}
		tag, plain := splitTag(hasTag, subValue)
		out = append(out, &Attribute{Code: uint8(subCode), Vendor: vendorID, Tag: tag, Value: append([]byte(nil), plain...)})
	}
	return out, nil
}

func readWidth(b []byte, width int) uint64 {
	var v uint64
	for i := 0; i < width; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// decodeExtendedRun consumes one or more consecutive long-extended
// instances of the same parent/sub-type chained by the M bit, starting at
// raw[0], and returns the merged logical Attribute plus the number of
// bytes consumed.
func decodeExtendedRun(raw []byte, dict *dictionary.Dictionary) (*Attribute, int, error) {
	parent := raw[0]
	var value []byte
	var subType uint8
	consumed := 0

	for {
		if consumed+AttributeHeaderLength+2 > len(raw) {
			return nil, 0, &DecodeError{Reason: fmt.Sprintf("truncated extended attribute %d", parent)}
		}
		length := int(raw[consumed+1])
		if length < AttributeHeaderLength+2 || consumed+length > len(raw) {
			return nil, 0, &DecodeError{Reason: fmt.Sprintf("invalid extended attribute length %d", length)}
		}
		subType = raw[consumed+2]
		flags := raw[consumed+3]
		chunk := raw[consumed+4 : consumed+length]
		value = append(value, chunk...)
		consumed += length

		if flags&extendedFlagMore == 0 {
			break
		}
		if consumed >= len(raw) || raw[consumed] != parent {
			return nil, 0, &DecodeError{Reason: fmt.Sprintf("extended attribute %d: missing continuation", parent)}
		}
	}

	hasTag := false
	if def, ok := dict.LookupExtended(parent, subType); ok {
		hasTag = def.HasTag
	}
	tag, plain := splitTag(hasTag, value)
	return &Attribute{Code: parent, ExtendedType: subType, Tag: tag, Value: plain}, consumed, nil
}
