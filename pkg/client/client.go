// Package client implements the RADIUS client transaction engine: packet
// construction bound to a Host, identifier allocation, and send-with-retry
// over UDP.
package client

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rsippl/radius/pkg/host"
	"github.com/rsippl/radius/pkg/log"
	"github.com/rsippl/radius/pkg/packet"
	"github.com/rsippl/radius/pkg/radcrypto"
)

// DefaultTimeout and DefaultRetries are the client's retransmit defaults.
const (
	DefaultTimeout = 5 * time.Second
	DefaultRetries = 3
)

// Config configures a Client. Host supplies the destination address,
// ports, secret, and dictionary; Timeout/Retries govern the retransmit
// budget of SendPacket.
type Config struct {
	Host    *host.Host
	Timeout time.Duration
	Retries int
	Logger  log.Logger
}

// Client sends RADIUS requests to a single Host and matches replies back
// to their outstanding request by identifier.
type Client struct {
	host    *host.Host
	timeout time.Duration
	retries int
	log     log.Logger

	mu   sync.Mutex
	next uint8 // wrapping per-client identifier counter
}

// New returns a Client bound to cfg.Host, applying DefaultTimeout/
// DefaultRetries for any zero-valued Timeout/Retries.
func New(cfg Config) (*Client, error) {
	if cfg.Host == nil {
		return nil, fmt.Errorf("client: Host is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	retries := cfg.Retries
	if retries == 0 {
		retries = DefaultRetries
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewDefaultLogger()
	}
	return &Client{host: cfg.Host, timeout: timeout, retries: retries, log: logger}, nil
}

// nextIdentifier returns the next identifier in the wrapping 8-bit
// sequence of this client. The one counter is shared by every request the
// client builds, whichever of the host's auth, acct or CoA ports it is sent
// to; there is no separate sequence per port.
func (c *Client) nextIdentifier() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.next
	c.next++
	return id
}

// CreateAuthPacket builds an Access-Request bound to this client's host,
// with a fresh random Request Authenticator (RFC 2865 §3 requires
// unpredictability here).
func (c *Client) CreateAuthPacket() *packet.Packet {
	p := c.host.NewPacket(packet.CodeAccessRequest, c.nextIdentifier())
	if auth, err := radcrypto.GenerateRequestAuthenticator(); err == nil {
		p.Authenticator = auth
	}
	return p
}

// CreateAcctPacket builds an Accounting-Request. Its Request Authenticator
// is computed from the attributes at Encode time, so it is left zero here.
func (c *Client) CreateAcctPacket() *packet.Packet {
	return c.host.NewPacket(packet.CodeAccountingRequest, c.nextIdentifier())
}

// CreateCoAPacket builds a CoA-Request or Disconnect-Request, depending on
// code.
func (c *Client) CreateCoAPacket(code packet.Code) *packet.Packet {
	return c.host.NewPacket(code, c.nextIdentifier())
}

// TimeoutError is returned by SendPacket when the retransmit budget is
// exhausted without a valid reply.
type TimeoutError struct {
	Identifier uint8
	Retries    int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("client: no reply to identifier %d after %d attempts", e.Identifier, e.Retries)
}

// BadReplyError describes a datagram that arrived but failed validation
// against the outstanding request. SendPacket does not return it: it
// discards such datagrams and keeps waiting for a valid reply.
type BadReplyError struct {
	Reason string
}

func (e *BadReplyError) Error() string {
	return fmt.Sprintf("client: bad reply: %s", e.Reason)
}

// SendPacket transmits req over UDP to the client's host, sending it at
// most Retries times in all (one more send after each timeout), and returns the first datagram that matches
// req's source address, identifier, and Response/Request Authenticator.
// Non-matching datagrams are read and silently discarded rather than
// treated as the reply.
func (c *Client) SendPacket(req *packet.Packet) (*packet.Packet, error) {
	wire, err := req.Encode(nil)
	if err != nil {
		return nil, fmt.Errorf("client: encode request: %w", err)
	}

	addr := &net.UDPAddr{IP: c.host.Addr, Port: portFor(c.host, req.Code)}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	defer conn.Close()

	buf := make([]byte, packet.MaxPacketLength)
	for attempt := 0; attempt < c.retries; attempt++ {
		if _, err := conn.Write(wire); err != nil {
			return nil, fmt.Errorf("client: write: %w", err)
		}
		if err := conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("client: set deadline: %w", err)
		}

		deadline := time.Now().Add(c.timeout)
		for time.Now().Before(deadline) {
			n, err := conn.Read(buf)
			if err != nil {
				break // deadline exceeded; fall through to retry
			}

			resp, err := packet.Decode(buf[:n], c.host.Secret, c.host.Dictionary)
			if err != nil {
				c.log.Debugf("client: dropping malformed reply: %v", err)
				continue
			}
			if resp.Identifier != req.Identifier {
				continue
			}
			if err := packet.VerifyResponseAuthenticator(buf[:n], c.host.Secret, req.Authenticator); err != nil {
				c.log.Warnf("client: reply to identifier %d failed authenticator check: %v", req.Identifier, err)
				continue
			}
			if err := packet.VerifyMessageAuthenticator(buf[:n], c.host.Secret, req.Authenticator); err != nil {
				c.log.Warnf("client: reply to identifier %d failed Message-Authenticator check: %v", req.Identifier, err)
				continue
			}
			return resp, nil
		}
	}
	return nil, &TimeoutError{Identifier: req.Identifier, Retries: c.retries}
}

func portFor(h *host.Host, code packet.Code) int {
	switch code {
	case packet.CodeAccountingRequest:
		return h.AcctPort
	case packet.CodeCoARequest, packet.CodeDisconnectRequest:
		return h.CoAPort
	default:
		return h.AuthPort
	}
}
