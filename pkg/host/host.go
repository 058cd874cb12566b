// Package host implements the RADIUS host abstraction: the collaboration
// surface a client binds to before sending packets, and the server-side
// table mapping a remote address to the secret and dictionary to decode
// and reply to it with.
package host

import (
	"fmt"
	"net"
	"sync"

	"github.com/rsippl/radius/pkg/dictionary"
	"github.com/rsippl/radius/pkg/packet"
)

const (
	// DefaultAuthPort is the standard RADIUS authentication port, RFC 2865.
	DefaultAuthPort = 1812
	// DefaultAcctPort is the standard RADIUS accounting port, RFC 2866.
	DefaultAcctPort = 1813
	// DefaultCoAPort is the standard RADIUS CoA/Disconnect port, RFC 5176.
	DefaultCoAPort = 3799
)

// Host is one RADIUS peer: its auth/acct/coa ports, the shared secret used
// to authenticate packets exchanged with it, and the dictionary used to
// interpret its attributes.
type Host struct {
	Name       string
	Addr       net.IP
	AuthPort   int
	AcctPort   int
	CoAPort    int
	Secret     []byte
	Dictionary *dictionary.Dictionary
}

// New returns a Host with RFC-standard ports, ready to have Secret/
// Dictionary overridden.
func New(name string, addr net.IP, secret []byte, dict *dictionary.Dictionary) *Host {
	return &Host{
		Name:       name,
		Addr:       addr,
		AuthPort:   DefaultAuthPort,
		AcctPort:   DefaultAcctPort,
		CoAPort:    DefaultCoAPort,
		Secret:     secret,
		Dictionary: dict,
	}
}

// NewPacket pre-populates a packet bound to this host: its dictionary and
// secret, and an identifier the caller supplies (the client engine owns
// identifier allocation).
func (h *Host) NewPacket(code packet.Code, identifier uint8) *packet.Packet {
	return packet.New(code, identifier, h.Secret, h.Dictionary)
}

// ErrUnknownHost is returned by Table.Lookup when no host is registered
// for an address.
var ErrUnknownHost = fmt.Errorf("host: unknown host")

// Table is the server-side map from remote IP to Host, RFC 2865's
// "shared secret... known to both client and server" keyed by peer
// address. Guarded by a sync.RWMutex: read-mostly, shared across every
// socket's dispatch goroutine.
type Table struct {
	mu   sync.RWMutex
	byIP map[string]*Host
}

// NewTable returns an empty host table.
func NewTable() *Table {
	return &Table{byIP: make(map[string]*Host)}
}

// Register adds or replaces the host entry for ip.
func (t *Table) Register(h *Host) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.byIP == nil {
		t.byIP = make(map[string]*Host)
	}
	t.byIP[h.Addr.String()] = h
}

// Remove deletes the host entry for ip, if any.
func (t *Table) Remove(ip net.IP) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byIP, ip.String())
}

// Lookup resolves ip to its registered Host.
func (t *Table) Lookup(ip net.IP) (*Host, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.byIP[ip.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHost, ip)
	}
	return h, nil
}

// Len reports the number of registered hosts.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byIP)
}
