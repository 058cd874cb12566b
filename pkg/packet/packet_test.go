package packet

import (
	"testing"

	"github.com/rsippl/radius/pkg/dictionary"
	"github.com/rsippl/radius/pkg/radcrypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDict = `
ATTRIBUTE	User-Name		1	string
ATTRIBUTE	User-Password		2	string
ATTRIBUTE	NAS-IP-Address		4	ipaddr
ATTRIBUTE	NAS-Port		5	integer
ATTRIBUTE	Reply-Message		18	text
ATTRIBUTE	Tunnel-Password		69	string	has_tag,encrypt=2
ATTRIBUTE	EAP-Message		79	octets

VENDOR		Cisco			9
BEGIN-VENDOR	Cisco
ATTRIBUTE	Cisco-AVPair		1	string
END-VENDOR	Cisco
`

func newTestDict(t *testing.T) *dictionary.Dictionary {
	d := dictionary.New()
	require.NoError(t, d.ParseString(testDict, "test"))

	attr, ok := d.LookupByName("User-Password")
	require.True(t, ok)
	attr.Encrypt = dictionary.EncryptUserPassword

	return d
}

func TestAccessRequestEncodeDecodeRoundTrip(t *testing.T) {
	dict := newTestDict(t)
	secret := []byte("xyzzy5461")

	req := New(CodeAccessRequest, 7, secret, dict)
	require.NoError(t, req.SetByName("User-Name", "steve"))
	require.NoError(t, req.SetByName("User-Password", "arctangent"))
	require.NoError(t, req.SetByName("NAS-IP-Address", "192.0.2.1"))

	wire, err := req.Encode(nil)
	require.NoError(t, err)
	assert.False(t, req.Authenticator.IsZero())

	decoded, err := Decode(wire, secret, dict)
	require.NoError(t, err)
	assert.Equal(t, req.Authenticator, decoded.Authenticator)
	assert.Equal(t, uint8(7), decoded.Identifier)

	name, ok, err := decoded.GetByName("User-Name")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("steve"), name)
}

func TestSetByNameSplitsOversizeValueAcrossWireInstances(t *testing.T) {
	dict := newTestDict(t)
	secret := []byte("sharedsecret")

	value := make([]byte, 300)
	for i := range value {
		value[i] = byte(i)
	}

	req := New(CodeAccessRequest, 1, secret, dict)
	require.NoError(t, req.SetByName("EAP-Message", value))

	wire, err := req.Encode(nil)
	require.NoError(t, err)

	decoded, err := Decode(wire, secret, dict)
	require.NoError(t, err)

	instances, err := decoded.GetAllByName("EAP-Message")
	require.NoError(t, err)
	assert.Len(t, instances, 2)

	reassembled, err := decoded.GetConcatenated("EAP-Message")
	require.NoError(t, err)
	assert.Equal(t, value, reassembled)
}

func TestAccessRequestUserPasswordMatchesRFC2865Vector(t *testing.T) {
	dict := newTestDict(t)
	secret := []byte("xyzzy5461")

	req := New(CodeAccessRequest, 0, secret, dict)
	// The Request Authenticator from the appendix example.
	req.Authenticator = radcrypto.Authenticator{
		0x0f, 0x40, 0x3f, 0x94, 0x73, 0x97, 0x80, 0x57,
		0xbd, 0x83, 0xd5, 0xcb, 0x98, 0xf4, 0x22, 0x7a,
	}
	require.NoError(t, req.SetByName("User-Password", "arctangent"))

	wire, err := req.encodeAttributes(req.Authenticator)
	require.NoError(t, err)

	// type(2) + length(1) header, then the 16-byte obfuscated block.
	assert.Equal(t, uint8(2), wire[0])
	assert.Equal(t, uint8(18), wire[1])
	expected := []byte{
		0x0d, 0xbe, 0x70, 0x8d, 0x93, 0xd4, 0x13, 0xce,
		0x31, 0x96, 0xe4, 0x3f, 0x78, 0x2a, 0x0a, 0xee,
	}
	assert.Equal(t, expected, wire[2:18])
}

func TestAccessAcceptResponseAuthenticator(t *testing.T) {
	dict := newTestDict(t)
	secret := []byte("sharedsecret")

	req := New(CodeAccessRequest, 42, secret, dict)
	req.Authenticator, _ = radcrypto.GenerateRequestAuthenticator()

	resp := New(CodeAccessAccept, 42, secret, dict)
	require.NoError(t, resp.SetByName("Reply-Message", "welcome"))

	wire, err := resp.Encode(req)
	require.NoError(t, err)

	assert.NoError(t, VerifyResponseAuthenticator(wire, secret, req.Authenticator))

	decoded, err := Decode(wire, secret, dict)
	require.NoError(t, err)
	msg, ok, err := decoded.GetByName("Reply-Message")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "welcome", msg)
}

func TestAccessAcceptResponseAuthenticatorRejectsTamperedReply(t *testing.T) {
	dict := newTestDict(t)
	secret := []byte("sharedsecret")

	req := New(CodeAccessRequest, 42, secret, dict)
	req.Authenticator, _ = radcrypto.GenerateRequestAuthenticator()

	resp := New(CodeAccessAccept, 42, secret, dict)
	require.NoError(t, resp.SetByName("Reply-Message", "welcome"))

	wire, err := resp.Encode(req)
	require.NoError(t, err)

	wire[len(wire)-1] ^= 0xFF

	err = VerifyResponseAuthenticator(wire, secret, req.Authenticator)
	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
}

func TestAccountingRequestSelfAuthenticates(t *testing.T) {
	dict := newTestDict(t)
	secret := []byte("sharedsecret")

	req := New(CodeAccountingRequest, 1, secret, dict)
	require.NoError(t, req.SetByName("NAS-IP-Address", "198.51.100.7"))
	require.NoError(t, req.SetByName("NAS-Port", uint32(3)))

	wire, err := req.Encode(nil)
	require.NoError(t, err)

	assert.NoError(t, VerifyRequestAuthenticator(wire, secret))
}

func TestVendorAVPairRoundTrip(t *testing.T) {
	dict := newTestDict(t)
	secret := []byte("cisco")

	req := New(CodeAccessRequest, 9, secret, dict)
	require.NoError(t, req.SetVendorByName("Cisco", "Cisco-AVPair", "shell:priv-lvl=15"))

	wire, err := req.Encode(nil)
	require.NoError(t, err)

	decoded, err := Decode(wire, secret, dict)
	require.NoError(t, err)
	val, ok, err := decoded.GetVendorByName("Cisco", "Cisco-AVPair")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("shell:priv-lvl=15"), val)

	// Expected VSA wire shape: 1A LL 00 00 00 09 01 13 "shell:priv-lvl=15"
	offset := 0
	for offset < len(wire[PacketHeaderLength:]) {
		attrs := wire[PacketHeaderLength:]
		if attrs[offset] == VendorSpecificType {
			assert.Equal(t, byte(0), attrs[offset+2])
			assert.Equal(t, byte(0), attrs[offset+3])
			assert.Equal(t, byte(0), attrs[offset+4])
			assert.Equal(t, byte(9), attrs[offset+5])
			assert.Equal(t, byte(1), attrs[offset+6])
			assert.Equal(t, byte(0x13), attrs[offset+7])
			break
		}
		offset += int(attrs[offset+1])
	}
}

func TestTunnelPasswordRoundTripThroughPacket(t *testing.T) {
	dict := newTestDict(t)
	secret := []byte("sharedsecret")

	req := New(CodeAccessAccept, 5, secret, dict)
	require.NoError(t, req.SetTaggedByName("Tunnel-Password", "vpn-secret", 1))

	peer := New(CodeAccessRequest, 5, secret, dict)
	peer.Authenticator, _ = radcrypto.GenerateRequestAuthenticator()

	wire, err := req.Encode(peer)
	require.NoError(t, err)

	decoded, err := Decode(wire, secret, dict)
	require.NoError(t, err)
	require.Len(t, decoded.Attributes, 1)
	assert.Equal(t, uint8(1), decoded.Attributes[0].Tag)

	plain, err := radcrypto.TunnelPasswordDecrypt(decoded.Attributes[0].Value, peer.Authenticator, secret)
	require.NoError(t, err)
	assert.Equal(t, "vpn-secret", string(plain))
}

func TestDecodeRejectsTruncatedPacket(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3}, []byte("secret"), newTestDict(t))
	require.Error(t, err)
}

func TestEncodeRejectsEmptySecret(t *testing.T) {
	dict := newTestDict(t)
	req := New(CodeAccessRequest, 1, nil, dict)
	_, err := req.Encode(nil)
	require.Error(t, err)
}
