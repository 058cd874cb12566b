package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rsippl/radius/pkg/dictionary"
	"github.com/rsippl/radius/pkg/host"
	"github.com/rsippl/radius/pkg/log"
	"github.com/rsippl/radius/pkg/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serverTestDict = `
ATTRIBUTE	User-Name	1	string
`

func newServerTestDict(t *testing.T) *dictionary.Dictionary {
	d := dictionary.New()
	require.NoError(t, d.ParseString(serverTestDict, "server-test"))
	return d
}

type recordingHandler struct {
	authCalled chan struct{}
}

func (h *recordingHandler) HandleAuth(ctx context.Context, req *packet.Packet, from *host.Host) (*packet.Packet, bool) {
	close(h.authCalled)
	return from.NewPacket(packet.CodeAccessAccept, req.Identifier), true
}
func (h *recordingHandler) HandleAcct(ctx context.Context, req *packet.Packet, from *host.Host) (*packet.Packet, bool) {
	return nil, false
}
func (h *recordingHandler) HandleCoA(ctx context.Context, req *packet.Packet, from *host.Host) (*packet.Packet, bool) {
	return nil, false
}
func (h *recordingHandler) HandleDisconnect(ctx context.Context, req *packet.Packet, from *host.Host) (*packet.Packet, bool) {
	return nil, false
}

func TestBindAssignsOneSocketPerKind(t *testing.T) {
	srv := New(Config{Dictionary: newServerTestDict(t), Logger: log.Discard()})
	require.NoError(t, srv.Bind([]string{"127.0.0.1"}, 0, 0, 0))
	t.Cleanup(func() { srv.Close() })

	assert.NotNil(t, srv.AuthAddr())
	assert.NotNil(t, srv.AcctAddr())
	assert.NotNil(t, srv.CoAAddr())
	assert.NotEqual(t, srv.AuthAddr().Port, srv.AcctAddr().Port)
}

func TestDispatchDropsPacketFromUnknownHost(t *testing.T) {
	dict := newServerTestDict(t)
	srv := New(Config{Dictionary: dict, Logger: log.Discard()})
	require.NoError(t, srv.Bind([]string{"127.0.0.1"}, 0, 0, 0))
	t.Cleanup(func() { srv.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &recordingHandler{authCalled: make(chan struct{})}
	go srv.Run(ctx, h)

	p := packet.New(packet.CodeAccessRequest, 1, []byte("wrong-secret"), dict)
	wire, err := p.Encode(nil)
	require.NoError(t, err)

	conn, err := net.DialUDP("udp", nil, srv.AuthAddr())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(wire)
	require.NoError(t, err)

	select {
	case <-h.authCalled:
		t.Fatal("handler should not be called for an unregistered host")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDispatchCallsHandlerForRegisteredHost(t *testing.T) {
	dict := newServerTestDict(t)
	secret := []byte("sharedsecret")
	srv := New(Config{Dictionary: dict, Logger: log.Discard()})
	require.NoError(t, srv.Bind([]string{"127.0.0.1"}, 0, 0, 0))
	t.Cleanup(func() { srv.Close() })
	srv.RegisterHost(host.New("nas1", net.ParseIP("127.0.0.1"), secret, dict))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &recordingHandler{authCalled: make(chan struct{})}
	go srv.Run(ctx, h)

	p := packet.New(packet.CodeAccessRequest, 1, secret, dict)
	require.NoError(t, p.SetByName("User-Name", "nemo"))
	wire, err := p.Encode(nil)
	require.NoError(t, err)

	conn, err := net.DialUDP("udp", nil, srv.AuthAddr())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(wire)
	require.NoError(t, err)

	select {
	case <-h.authCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called for a registered host")
	}
}
