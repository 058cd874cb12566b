package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTagOnlyWhenLeadingByteIsLow(t *testing.T) {
	tag, value := splitTag(true, []byte{0x01, 'a', 'b'})
	assert.Equal(t, uint8(1), tag)
	assert.Equal(t, []byte("ab"), value)

	tag, value = splitTag(true, []byte{0xff, 'a', 'b'})
	assert.Equal(t, uint8(0), tag)
	assert.Equal(t, []byte{0xff, 'a', 'b'}, value)

	tag, value = splitTag(false, []byte{0x01, 'a', 'b'})
	assert.Equal(t, uint8(0), tag)
	assert.Equal(t, []byte{0x01, 'a', 'b'}, value)
}

func TestTaggedValueRoundTrip(t *testing.T) {
	raw := taggedValue(true, 3, []byte("hello"))
	tag, value := splitTag(true, raw)
	assert.Equal(t, uint8(3), tag)
	assert.Equal(t, []byte("hello"), value)
}

func TestEncodeChunksSplitsOversizeValue(t *testing.T) {
	value := make([]byte, 300)
	for i := range value {
		value[i] = byte(i)
	}

	wire, err := encodeChunks(26, value, nil)
	require.NoError(t, err)

	var reassembled []byte
	offset := 0
	count := 0
	for offset < len(wire) {
		length := int(wire[offset+1])
		reassembled = append(reassembled, wire[offset+2:offset+length]...)
		offset += length
		count++
	}
	assert.Equal(t, 2, count)
	assert.Equal(t, value, reassembled)
}

func TestEncodeVendorSubAttributeWireBytes(t *testing.T) {
	a := &Attribute{Code: 1, Vendor: 9, Value: []byte("shell:priv-lvl=15")}
	wire, err := encodeVendorSubAttribute(a, 1, 1)
	require.NoError(t, err)

	expected := []byte{26, byte(len(a.Value) + 8), 0, 0, 0, 9, 1, byte(len(a.Value) + 2)}
	expected = append(expected, a.Value...)
	assert.Equal(t, expected, wire)
}

func TestEncodeVendorSubAttributeWideFormat(t *testing.T) {
	a := &Attribute{Code: 5, Vendor: 14988, Value: []byte("vlan10")}
	wire, err := encodeVendorSubAttribute(a, 2, 1)
	require.NoError(t, err)

	// 26 | total_len | vendor_id(4) | type(2) | length(1) | value
	assert.Equal(t, uint8(26), wire[0])
	assert.Equal(t, byte(0), wire[6]) // type high byte
	assert.Equal(t, byte(5), wire[7]) // type low byte
}

func TestEncodeExtendedLongChainsMoreFlag(t *testing.T) {
	value := make([]byte, 600)
	for i := range value {
		value[i] = byte(i % 251)
	}
	a := &Attribute{Code: 241, ExtendedType: 1, Value: value}
	wire := encodeExtendedLong(a)

	var reassembled []byte
	offset := 0
	instances := 0
	for offset < len(wire) {
		length := int(wire[offset+1])
		flags := wire[offset+3]
		reassembled = append(reassembled, wire[offset+4:offset+length]...)
		offset += length
		instances++
		if flags&extendedFlagMore == 0 {
			break
		}
	}
	assert.Greater(t, instances, 1)
	assert.Equal(t, value, reassembled)
}
