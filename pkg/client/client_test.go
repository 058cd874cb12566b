package client

import (
	"net"
	"testing"
	"time"

	"github.com/rsippl/radius/pkg/dictionary"
	"github.com/rsippl/radius/pkg/host"
	"github.com/rsippl/radius/pkg/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHost(t *testing.T) *host.Host {
	t.Helper()
	return host.New("nas1", net.ParseIP("192.0.2.1"), []byte("secret"), dictionary.New())
}

func TestNewRequiresHost(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestNewAppliesDefaults(t *testing.T) {
	c, err := New(Config{Host: testHost(t)})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.timeout)
	assert.Equal(t, DefaultRetries, c.retries)
}

func TestIdentifierWrapsAfter256Calls(t *testing.T) {
	c, err := New(Config{Host: testHost(t)})
	require.NoError(t, err)

	first := c.nextIdentifier()
	assert.Equal(t, uint8(0), first)
	for i := 1; i < 256; i++ {
		c.nextIdentifier()
	}
	wrapped := c.nextIdentifier()
	assert.Equal(t, uint8(0), wrapped)
}

func TestCreateAuthPacketHasRandomAuthenticator(t *testing.T) {
	c, err := New(Config{Host: testHost(t)})
	require.NoError(t, err)

	p := c.CreateAuthPacket()
	assert.Equal(t, packet.CodeAccessRequest, p.Code)
	assert.False(t, p.Authenticator.IsZero())
}

func TestCreateAcctPacketLeavesAuthenticatorZero(t *testing.T) {
	c, err := New(Config{Host: testHost(t)})
	require.NoError(t, err)

	p := c.CreateAcctPacket()
	assert.Equal(t, packet.CodeAccountingRequest, p.Code)
	assert.True(t, p.Authenticator.IsZero())
}

func TestCreateCoAPacketUsesGivenCode(t *testing.T) {
	c, err := New(Config{Host: testHost(t)})
	require.NoError(t, err)

	p := c.CreateCoAPacket(packet.CodeDisconnectRequest)
	assert.Equal(t, packet.CodeDisconnectRequest, p.Code)
}

func TestPortForSelectsHostPortByCode(t *testing.T) {
	h := testHost(t)
	assert.Equal(t, h.AuthPort, portFor(h, packet.CodeAccessRequest))
	assert.Equal(t, h.AcctPort, portFor(h, packet.CodeAccountingRequest))
	assert.Equal(t, h.CoAPort, portFor(h, packet.CodeCoARequest))
	assert.Equal(t, h.CoAPort, portFor(h, packet.CodeDisconnectRequest))
}

func TestTimeoutErrorMessage(t *testing.T) {
	err := &TimeoutError{Identifier: 7, Retries: 3}
	assert.Contains(t, err.Error(), "identifier 7")
	assert.Contains(t, err.Error(), "3 attempts")
}

func TestBadReplyErrorMessage(t *testing.T) {
	err := &BadReplyError{Reason: "identifier mismatch"}
	assert.Contains(t, err.Error(), "identifier mismatch")
}

func TestSendPacketTimesOutWithoutResponder(t *testing.T) {
	// A bound socket that reads but never replies, exercising the
	// retransmit budget without relying on an unused port.
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	go func() {
		buf := make([]byte, 4096)
		for {
			if _, _, err := conn.ReadFromUDP(buf); err != nil {
				return
			}
		}
	}()

	h := host.New("nas1", net.ParseIP("127.0.0.1"), []byte("secret"), dictionary.New())
	h.AuthPort = conn.LocalAddr().(*net.UDPAddr).Port
	c, err := New(Config{Host: h, Timeout: 100 * time.Millisecond, Retries: 1})
	require.NoError(t, err)

	req := c.CreateAuthPacket()
	_, err = c.SendPacket(req)
	assert.Error(t, err)
}
