package client_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rsippl/radius/pkg/client"
	"github.com/rsippl/radius/pkg/dictionary"
	"github.com/rsippl/radius/pkg/host"
	"github.com/rsippl/radius/pkg/log"
	"github.com/rsippl/radius/pkg/packet"
	"github.com/rsippl/radius/pkg/server"
	"github.com/stretchr/testify/require"
)

const integrationDict = `
ATTRIBUTE	User-Name	1	string
ATTRIBUTE	Reply-Message	18	text
`

func newIntegrationDict(t *testing.T) *dictionary.Dictionary {
	d := dictionary.New()
	require.NoError(t, d.ParseString(integrationDict, "integration"))
	return d
}

type acceptAllHandler struct{}

func (acceptAllHandler) HandleAuth(ctx context.Context, req *packet.Packet, from *host.Host) (*packet.Packet, bool) {
	resp := from.NewPacket(packet.CodeAccessAccept, req.Identifier)
	resp.SetByName("Reply-Message", "ok")
	return resp, true
}
func (acceptAllHandler) HandleAcct(ctx context.Context, req *packet.Packet, from *host.Host) (*packet.Packet, bool) {
	return from.NewPacket(packet.CodeAccountingResponse, req.Identifier), true
}
func (acceptAllHandler) HandleCoA(ctx context.Context, req *packet.Packet, from *host.Host) (*packet.Packet, bool) {
	return from.NewPacket(packet.CodeCoAAck, req.Identifier), true
}
func (acceptAllHandler) HandleDisconnect(ctx context.Context, req *packet.Packet, from *host.Host) (*packet.Packet, bool) {
	return from.NewPacket(packet.CodeDisconnectACK, req.Identifier), true
}

func TestClientServerAccessRequestRoundTrip(t *testing.T) {
	dict := newIntegrationDict(t)
	secret := []byte("sharedsecret")

	srv := server.New(server.Config{Dictionary: dict, Logger: log.Discard()})
	require.NoError(t, srv.Bind([]string{"127.0.0.1"}, 0, 0, 0))
	t.Cleanup(func() { srv.Close() })

	authAddr := firstAuthAddr(t, srv)
	srv.RegisterHost(host.New("nas1", net.ParseIP("127.0.0.1"), secret, dict))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Run(ctx, acceptAllHandler{})

	h := host.New("server", net.ParseIP("127.0.0.1"), secret, dict)
	h.AuthPort = authAddr.Port

	c, err := client.New(client.Config{Host: h, Timeout: 2 * time.Second, Retries: 2})
	require.NoError(t, err)

	req := c.CreateAuthPacket()
	require.NoError(t, req.SetByName("User-Name", "nemo"))

	resp, err := c.SendPacket(req)
	require.NoError(t, err)
	msg, ok, err := resp.GetByName("Reply-Message")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "ok", msg)
}

func TestClientTimeoutWhenServerSilent(t *testing.T) {
	dict := newIntegrationDict(t)
	secret := []byte("sharedsecret")

	// A socket that receives but never replies, to exercise the
	// retransmit budget.
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

	h := host.New("silent", net.ParseIP("127.0.0.1"), secret, dict)
	h.AuthPort = conn.LocalAddr().(*net.UDPAddr).Port

	c, err := client.New(client.Config{Host: h, Timeout: 200 * time.Millisecond, Retries: 2})
	require.NoError(t, err)

	req := c.CreateAuthPacket()
	_, err = c.SendPacket(req)
	require.Error(t, err)
	var timeoutErr *client.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
}

func firstAuthAddr(t *testing.T, srv *server.Server) *net.UDPAddr {
	t.Helper()
	addr := srv.AuthAddr()
	require.NotNil(t, addr)
	return addr
}
