package dictionary

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"
	"unicode/utf8"
)

// CodecError reports an invalid attribute value encountered while encoding
// or decoding a wire value against its dictionary DataType.
type CodecError struct {
	Type DataType
	Msg  string
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Msg)
}

func codecErrorf(t DataType, format string, args ...interface{}) error {
	return &CodecError{Type: t, Msg: fmt.Sprintf(format, args...)}
}

// EncodeValue converts a decoded Go value into its wire octets for the
// given DataType. Lengths and formats are validated strictly, never
// coerced.
func EncodeValue(t DataType, value interface{}) ([]byte, error) {
	switch t {
	case TypeString, TypeOctets:
		return encodeBytesLike(t, value)
	case TypeText:
		return encodeText(value)
	case TypeInteger, TypeDate:
		return encodeUint32(t, value)
	case TypeInteger64:
		return encodeUint64(value)
	case TypeSigned:
		return encodeInt32(value)
	case TypeByte:
		return encodeUint8(value)
	case TypeShort:
		return encodeUint16(value)
	case TypeIPAddr:
		return encodeIPv4(value)
	case TypeIPv6Addr:
		return encodeIPv6(value)
	case TypeIPv6Prefix, TypeIPv4Prefix:
		return encodeIPv6Prefix(value)
	case TypeEther:
		return encodeEther(value)
	case TypeIfID:
		return encodeIfID(value)
	case TypeABinary:
		return encodeBytesLike(t, value)
	case TypeTLV:
		members, ok := value.([]TLVMember)
		if !ok {
			return nil, codecErrorf(t, "expected []TLVMember, got %T", value)
		}
		return EncodeTLVMembers(members), nil
	default:
		return nil, codecErrorf(t, "unsupported data type for generic encode")
	}
}

// DecodeValue converts wire octets into a decoded Go value for the given
// DataType, rejecting lengths that don't match the type.
func DecodeValue(t DataType, raw []byte) (interface{}, error) {
	switch t {
	case TypeString, TypeOctets, TypeABinary:
		return append([]byte(nil), raw...), nil
	case TypeText:
		return decodeText(raw)
	case TypeInteger, TypeDate:
		return decodeUint32(t, raw)
	case TypeInteger64:
		return decodeUint64(raw)
	case TypeSigned:
		return decodeInt32(raw)
	case TypeByte:
		return decodeUint8(raw)
	case TypeShort:
		return decodeUint16(raw)
	case TypeIPAddr:
		return decodeIPv4(raw)
	case TypeIPv6Addr:
		return decodeIPv6(raw)
	case TypeIPv6Prefix, TypeIPv4Prefix:
		return decodeIPv6Prefix(raw)
	case TypeEther:
		return decodeEther(raw)
	case TypeIfID:
		return decodeIfID(raw)
	case TypeTLV:
		return DecodeTLVMembers(raw)
	default:
		return nil, codecErrorf(t, "unsupported data type for generic decode")
	}
}

// TLVMember is one sub-attribute inside a tlv-typed attribute's value: a
// 1-byte code, 1-byte length header, and the raw value that follows.
// Resolving a member's Code to a symbolic name requires the dictionary
// scope the owning TLV attribute was defined in; nothing in this module
// does that resolution, and this package only knows the byte-level shape.
type TLVMember struct {
	Code  uint8
	Value []byte
}

// EncodeTLVMembers serializes a sequence of TLV sub-attributes into their
// concatenated wire form: type(1) + length(1) + value, back to back.
func EncodeTLVMembers(members []TLVMember) []byte {
	out := make([]byte, 0, len(members)*2)
	for _, m := range members {
		out = append(out, m.Code, uint8(len(m.Value)+2))
		out = append(out, m.Value...)
	}
	return out
}

// DecodeTLVMembers walks a tlv attribute's raw value into its member
// sub-attributes.
func DecodeTLVMembers(raw []byte) ([]TLVMember, error) {
	var members []TLVMember
	offset := 0
	for offset < len(raw) {
		if offset+2 > len(raw) {
			return nil, codecErrorf(TypeTLV, "truncated TLV member header at offset %d", offset)
		}
		code := raw[offset]
		length := int(raw[offset+1])
		if length < 2 || offset+length > len(raw) {
			return nil, codecErrorf(TypeTLV, "invalid TLV member length %d at offset %d", length, offset)
		}
		members = append(members, TLVMember{Code: code, Value: append([]byte(nil), raw[offset+2:offset+length]...)})
		offset += length
	}
	return members, nil
}

// encodeBytesLike does not cap the result at 253 octets: a single wire
// attribute instance can't hold more, but the packet codec's encodeChunks
// splits an oversize classic value across repeated instances of the same
// attribute code, so the length cap belongs there, not here.
func encodeBytesLike(t DataType, value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, codecErrorf(t, "expected []byte or string, got %T", value)
	}
}

func encodeText(value interface{}) ([]byte, error) {
	s, ok := value.(string)
	if !ok {
		if b, ok := value.([]byte); ok {
			s = string(b)
		} else {
			return nil, codecErrorf(TypeText, "expected string, got %T", value)
		}
	}
	if len(s) > 253 {
		return nil, codecErrorf(TypeText, "value too long: %d > 253 octets", len(s))
	}
	if !utf8.ValidString(s) {
		return nil, codecErrorf(TypeText, "value is not valid UTF-8")
	}
	return []byte(s), nil
}

func decodeText(raw []byte) (interface{}, error) {
	// Decoding preserves bytes verbatim; validity of UTF-8 is only
	// enforced on encode.
	return string(raw), nil
}

func toUint64(value interface{}) (uint64, bool) {
	switch v := value.(type) {
	case uint64:
		return v, true
	case uint32:
		return uint64(v), true
	case uint16:
		return uint64(v), true
	case uint8:
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}

func encodeUint32(t DataType, value interface{}) ([]byte, error) {
	if t == TypeDate {
		if tm, ok := value.(time.Time); ok {
			value = uint32(tm.Unix())
		}
	}
	u, ok := toUint64(value)
	if !ok || u > 0xFFFFFFFF {
		return nil, codecErrorf(t, "expected a non-negative 32-bit integer, got %T(%v)", value, value)
	}
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, uint32(u))
	return out, nil
}

func decodeUint32(t DataType, raw []byte) (interface{}, error) {
	if len(raw) != 4 {
		return nil, codecErrorf(t, "must be exactly 4 octets, got %d", len(raw))
	}
	v := binary.BigEndian.Uint32(raw)
	if t == TypeDate {
		return time.Unix(int64(v), 0).UTC(), nil
	}
	return v, nil
}

func encodeUint64(value interface{}) ([]byte, error) {
	u, ok := toUint64(value)
	if !ok {
		return nil, codecErrorf(TypeInteger64, "expected a non-negative integer, got %T(%v)", value, value)
	}
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, u)
	return out, nil
}

func decodeUint64(raw []byte) (interface{}, error) {
	if len(raw) != 8 {
		return nil, codecErrorf(TypeInteger64, "must be exactly 8 octets, got %d", len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}

func encodeInt32(value interface{}) ([]byte, error) {
	var i int32
	switch v := value.(type) {
	case int32:
		i = v
	case int:
		i = int32(v)
	case int64:
		i = int32(v)
	default:
		return nil, codecErrorf(TypeSigned, "expected a signed integer, got %T(%v)", value, value)
	}
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, uint32(i))
	return out, nil
}

func decodeInt32(raw []byte) (interface{}, error) {
	if len(raw) != 4 {
		return nil, codecErrorf(TypeSigned, "must be exactly 4 octets, got %d", len(raw))
	}
	return int32(binary.BigEndian.Uint32(raw)), nil
}

func encodeUint8(value interface{}) ([]byte, error) {
	u, ok := toUint64(value)
	if !ok || u > 0xFF {
		return nil, codecErrorf(TypeByte, "expected a byte-sized non-negative integer, got %T(%v)", value, value)
	}
	return []byte{byte(u)}, nil
}

func decodeUint8(raw []byte) (interface{}, error) {
	if len(raw) != 1 {
		return nil, codecErrorf(TypeByte, "must be exactly 1 octet, got %d", len(raw))
	}
	return raw[0], nil
}

func encodeUint16(value interface{}) ([]byte, error) {
	u, ok := toUint64(value)
	if !ok || u > 0xFFFF {
		return nil, codecErrorf(TypeShort, "expected a 16-bit non-negative integer, got %T(%v)", value, value)
	}
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, uint16(u))
	return out, nil
}

func decodeUint16(raw []byte) (interface{}, error) {
	if len(raw) != 2 {
		return nil, codecErrorf(TypeShort, "must be exactly 2 octets, got %d", len(raw))
	}
	return binary.BigEndian.Uint16(raw), nil
}

func encodeIPv4(value interface{}) ([]byte, error) {
	ip, err := parseIP(value)
	if err != nil {
		return nil, codecErrorf(TypeIPAddr, "%v", err)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, codecErrorf(TypeIPAddr, "%v is not an IPv4 address", ip)
	}
	return []byte(ip4), nil
}

func decodeIPv4(raw []byte) (interface{}, error) {
	if len(raw) != 4 {
		return nil, codecErrorf(TypeIPAddr, "must be exactly 4 octets, got %d", len(raw))
	}
	return net.IPv4(raw[0], raw[1], raw[2], raw[3]), nil
}

func encodeIPv6(value interface{}) ([]byte, error) {
	ip, err := parseIP(value)
	if err != nil {
		return nil, codecErrorf(TypeIPv6Addr, "%v", err)
	}
	ip16 := ip.To16()
	if ip16 == nil {
		return nil, codecErrorf(TypeIPv6Addr, "%v is not convertible to 16 octets", ip)
	}
	return []byte(ip16), nil
}

func decodeIPv6(raw []byte) (interface{}, error) {
	if len(raw) != 16 {
		return nil, codecErrorf(TypeIPv6Addr, "must be exactly 16 octets, got %d", len(raw))
	}
	out := make(net.IP, 16)
	copy(out, raw)
	return out, nil
}

// IPv6Prefix is the decoded form of the ipv6prefix/ipv4prefix data types:
// a reserved byte, a prefix length, and the prefix itself.
type IPv6Prefix struct {
	PrefixLen uint8
	Prefix    net.IP
}

func encodeIPv6Prefix(value interface{}) ([]byte, error) {
	p, ok := value.(IPv6Prefix)
	if !ok {
		if pp, ok := value.(*net.IPNet); ok {
			ones, _ := pp.Mask.Size()
			p = IPv6Prefix{PrefixLen: uint8(ones), Prefix: pp.IP}
		} else {
			return nil, codecErrorf(TypeIPv6Prefix, "expected IPv6Prefix or *net.IPNet, got %T", value)
		}
	}
	ip16 := p.Prefix.To16()
	if ip16 == nil {
		return nil, codecErrorf(TypeIPv6Prefix, "invalid prefix address")
	}
	// The wire form always carries 2 + 16 octets regardless of declared
	// prefix length; emit 18 with the reserved leading byte zero.
	out := make([]byte, 18)
	out[1] = p.PrefixLen
	copy(out[2:], ip16)
	return out, nil
}

func decodeIPv6Prefix(raw []byte) (interface{}, error) {
	if len(raw) < 2 || len(raw) > 18 {
		return nil, codecErrorf(TypeIPv6Prefix, "must be 2..18 octets, got %d", len(raw))
	}
	if raw[0] != 0 {
		return nil, codecErrorf(TypeIPv6Prefix, "reserved byte must be zero")
	}
	padded := make([]byte, 16)
	copy(padded, raw[2:])
	return IPv6Prefix{PrefixLen: raw[1], Prefix: net.IP(padded)}, nil
}

func encodeEther(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case net.HardwareAddr:
		if len(v) != 6 {
			return nil, codecErrorf(TypeEther, "hardware address must be 6 octets, got %d", len(v))
		}
		return []byte(v), nil
	case string:
		hw, err := net.ParseMAC(v)
		if err != nil {
			return nil, codecErrorf(TypeEther, "%v", err)
		}
		return []byte(hw), nil
	default:
		return nil, codecErrorf(TypeEther, "expected net.HardwareAddr or string, got %T", value)
	}
}

func decodeEther(raw []byte) (interface{}, error) {
	if len(raw) != 6 {
		return nil, codecErrorf(TypeEther, "must be exactly 6 octets, got %d", len(raw))
	}
	out := make(net.HardwareAddr, 6)
	copy(out, raw)
	return out, nil
}

func encodeIfID(value interface{}) ([]byte, error) {
	b, ok := value.([]byte)
	if !ok || len(b) != 8 {
		return nil, codecErrorf(TypeIfID, "expected an 8-octet []byte, got %T", value)
	}
	return b, nil
}

func decodeIfID(raw []byte) (interface{}, error) {
	if len(raw) != 8 {
		return nil, codecErrorf(TypeIfID, "must be exactly 8 octets, got %d", len(raw))
	}
	return append([]byte(nil), raw...), nil
}

func parseIP(value interface{}) (net.IP, error) {
	switch v := value.(type) {
	case net.IP:
		return v, nil
	case string:
		ip := net.ParseIP(v)
		if ip == nil {
			return nil, fmt.Errorf("invalid IP address %q", v)
		}
		return ip, nil
	default:
		return nil, fmt.Errorf("expected net.IP or string, got %T", value)
	}
}
