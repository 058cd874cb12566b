// Package server implements the RADIUS server dispatch engine: socket
// binding, host-table resolution, packet decode/verify, and handler
// dispatch.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/rsippl/radius/pkg/dictionary"
	"github.com/rsippl/radius/pkg/host"
	"github.com/rsippl/radius/pkg/log"
	"github.com/rsippl/radius/pkg/packet"
	"github.com/rsippl/radius/pkg/radcrypto"
)

// Config configures a Server.
type Config struct {
	Addresses  []string
	AuthPort   int
	AcctPort   int
	CoAPort    int
	Dictionary *dictionary.Dictionary
	Logger     log.Logger
}

// Handler is implemented by embedders to answer decoded requests.
// Returning (nil, false) signals "drop" — no reply is sent, matching
// RFC compliance's silent-drop policy for malformed or rejected requests.
type Handler interface {
	HandleAuth(ctx context.Context, req *packet.Packet, from *host.Host) (*packet.Packet, bool)
	HandleAcct(ctx context.Context, req *packet.Packet, from *host.Host) (*packet.Packet, bool)
	HandleCoA(ctx context.Context, req *packet.Packet, from *host.Host) (*packet.Packet, bool)
	HandleDisconnect(ctx context.Context, req *packet.Packet, from *host.Host) (*packet.Packet, bool)
}

// Server binds one UDP socket per (address, port) triple and dispatches
// decoded packets to a Handler, consulting a shared Hosts table to
// resolve the peer's secret.
type Server struct {
	dict  *dictionary.Dictionary
	log   log.Logger
	Hosts *host.Table

	mu         sync.Mutex
	conns      []*net.UDPConn
	boundKinds []requestKind
}

// New returns a Server with an empty host table; callers must
// RegisterHost before Run will accept traffic from that peer.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewDefaultLogger()
	}
	return &Server{
		dict:  cfg.Dictionary,
		log:   logger,
		Hosts: host.NewTable(),
	}
}

// RegisterHost adds h to the server's host table, making its address a
// valid source for decoded requests.
func (s *Server) RegisterHost(h *host.Host) {
	s.Hosts.Register(h)
}

// Bind opens one UDP socket per (address, port) pair in addresses x
// {authPort, acctPort, coaPort}, tagging each with the request kind it
// serves.
func (s *Server) Bind(addresses []string, authPort, acctPort, coaPort int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	type binding struct {
		port int
		kind requestKind
	}
	ports := []binding{
		{authPort, kindAuth},
		{acctPort, kindAcct},
		{coaPort, kindCoA},
	}

	for _, addr := range addresses {
		for _, b := range ports {
			udpAddr := &net.UDPAddr{IP: net.ParseIP(addr), Port: b.port}
			conn, err := net.ListenUDP("udp", udpAddr)
			if err != nil {
				return fmt.Errorf("server: bind %s:%d: %w", addr, b.port, err)
			}
			s.conns = append(s.conns, conn)
			s.boundKinds = append(s.boundKinds, b.kind)
		}
	}
	return nil
}

type requestKind int

const (
	kindAuth requestKind = iota
	kindAcct
	kindCoA
)

// Run starts one dispatch goroutine per bound socket and blocks until ctx
// is cancelled, at which point every socket is closed and in-flight
// handlers are left to finish. A bounded shutdown grace period, if
// wanted, is the caller's responsibility via ctx's deadline.
func (s *Server) Run(ctx context.Context, handler Handler) error {
	s.mu.Lock()
	conns := append([]*net.UDPConn(nil), s.conns...)
	kinds := append([]requestKind(nil), s.boundKinds...)
	s.mu.Unlock()

	if len(conns) == 0 {
		return fmt.Errorf("server: Run called before Bind")
	}

	var wg sync.WaitGroup
	for i, conn := range conns {
		wg.Add(1)
		go func(conn *net.UDPConn, kind requestKind) {
			defer wg.Done()
			s.serveConn(ctx, conn, kind, handler)
		}(conn, kinds[i])
	}

	<-ctx.Done()
	for _, conn := range conns {
		conn.Close()
	}
	wg.Wait()
	return nil
}

func (s *Server) serveConn(ctx context.Context, conn *net.UDPConn, kind requestKind, handler Handler) {
	buf := make([]byte, packet.MaxPacketLength)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				continue
			}
		}
		data := append([]byte(nil), buf[:n]...)
		go s.dispatch(ctx, conn, data, from, kind, handler)
	}
}

// dispatch carries one datagram through the per-request state machine:
// Received -> Authenticated -> Decoded -> Dispatched -> Replied | Dropped.
func (s *Server) dispatch(ctx context.Context, conn *net.UDPConn, data []byte, from *net.UDPAddr, kind requestKind, handler Handler) {
	peer, err := s.Hosts.Lookup(from.IP)
	if err != nil {
		s.log.Warnf("server: unknown host %s", from.IP)
		return
	}

	req, err := packet.Decode(data, peer.Secret, s.dictOrPeer(peer))
	if err != nil {
		s.log.Debugf("server: decode error from %s: %v", from, err)
		return
	}

	if requiresRequestAuth(req.Code) {
		if err := packet.VerifyRequestAuthenticator(data, peer.Secret); err != nil {
			s.log.Warnf("server: request authenticator mismatch from %s: %v", from, err)
			return
		}
	}
	maAuth := req.Authenticator
	if requiresRequestAuth(req.Code) {
		maAuth = radcrypto.ZeroAuthenticator()
	}
	if err := packet.VerifyMessageAuthenticator(data, peer.Secret, maAuth); err != nil {
		s.log.Warnf("server: message authenticator mismatch from %s: %v", from, err)
		return
	}

	reply, send := s.callHandler(ctx, handler, kind, req, peer)
	if !send || reply == nil {
		return
	}

	reply.Identifier = req.Identifier
	reply.Secret = peer.Secret
	reply.Dict = s.dictOrPeer(peer)
	wire, err := reply.Encode(req)
	if err != nil {
		s.log.Errorf("server: encode reply to %s: %v", from, err)
		return
	}
	if _, err := conn.WriteToUDP(wire, from); err != nil {
		s.log.Errorf("server: write reply to %s: %v", from, err)
	}
}

func (s *Server) callHandler(ctx context.Context, handler Handler, kind requestKind, req *packet.Packet, peer *host.Host) (*packet.Packet, bool) {
	switch kind {
	case kindAcct:
		return handler.HandleAcct(ctx, req, peer)
	case kindCoA:
		if req.Code == packet.CodeDisconnectRequest {
			return handler.HandleDisconnect(ctx, req, peer)
		}
		return handler.HandleCoA(ctx, req, peer)
	default:
		return handler.HandleAuth(ctx, req, peer)
	}
}

func (s *Server) dictOrPeer(peer *host.Host) *dictionary.Dictionary {
	if s.dict != nil {
		return s.dict
	}
	return peer.Dictionary
}

// requiresRequestAuth reports whether code's Request Authenticator is
// verifiable against the shared secret without a paired response
// (Accounting/CoA/Disconnect requests compute it from the packet body).
func requiresRequestAuth(code packet.Code) bool {
	switch code {
	case packet.CodeAccountingRequest, packet.CodeCoARequest, packet.CodeDisconnectRequest:
		return true
	default:
		return false
	}
}

// AuthAddr returns the local address of the first socket bound to serve
// authentication traffic, or nil if none is bound. Mainly useful in tests
// that bind an ephemeral port (0) and need to discover what was chosen.
func (s *Server) AuthAddr() *net.UDPAddr {
	return s.addrForKind(kindAuth)
}

// AcctAddr is AuthAddr for the accounting socket.
func (s *Server) AcctAddr() *net.UDPAddr {
	return s.addrForKind(kindAcct)
}

// CoAAddr is AuthAddr for the CoA/Disconnect socket.
func (s *Server) CoAAddr() *net.UDPAddr {
	return s.addrForKind(kindCoA)
}

func (s *Server) addrForKind(kind requestKind) *net.UDPAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, k := range s.boundKinds {
		if k == kind {
			return s.conns[i].LocalAddr().(*net.UDPAddr)
		}
	}
	return nil
}

// Close shuts down every bound socket immediately, without waiting for
// in-flight handlers.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for _, conn := range s.conns {
		if err := conn.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
