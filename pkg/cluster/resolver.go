// Package cluster resolves entity IDs and node names against the platform's
// cluster filesystem.
//
// The store is read through an fs.FS rooted at the cluster filesystem mount
// (normally /etc/pve), so the same resolver works on a cluster host, against
// a remote seed node over SFTP, and against fstest.MapFS fixtures.
package cluster

import (
	"context"
	"fmt"
	"io/fs"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pvebulk/pvebulk/pkg/engine"
)

// Resolver answers topology queries. Membership is read once and cached for
// the lifetime of the resolver; guest placement is re-read on every Locate
// so a migration earlier in the same batch is observed.
type Resolver struct {
	fsys       fs.FS
	logger     zerolog.Logger
	localAddrs func() ([]net.Addr, error)

	mu      sync.Mutex
	members *Membership
	local   []net.IP
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithInterfaceAddrs replaces the source of local interface addresses.
func WithInterfaceAddrs(fn func() ([]net.Addr, error)) Option {
	return func(r *Resolver) {
		r.localAddrs = fn
	}
}

// WithLocalAddresses pins the set of local addresses.
func WithLocalAddresses(addrs ...string) Option {
	return WithInterfaceAddrs(func() ([]net.Addr, error) {
		out := make([]net.Addr, 0, len(addrs))
		for _, a := range addrs {
			ip := net.ParseIP(a)
			if ip == nil {
				return nil, fmt.Errorf("invalid local address %q", a)
			}
			out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(32, 32)})
		}
		return out, nil
	})
}

// NewResolver creates a resolver over a cluster filesystem.
func NewResolver(fsys fs.FS, opts ...Option) *Resolver {
	r := &Resolver{
		fsys:       fsys,
		logger:     zerolog.Nop(),
		localAddrs: net.InterfaceAddrs,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Membership returns the cached membership, reading it on first use.
func (r *Resolver) Membership(ctx context.Context) (*Membership, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.members != nil {
		return r.members, nil
	}

	m, err := readMembership(r.fsys)
	if err != nil {
		return nil, err
	}
	for i := range m.Nodes {
		m.Nodes[i].Local = r.isLocalLocked(m.Nodes[i].Address)
	}
	r.members = m

	r.logger.Debug().
		Str("cluster", m.ClusterName).
		Str("node", m.LocalName).
		Int("members", len(m.Nodes)).
		Bool("quorate", m.Quorate).
		Msg("loaded cluster membership")

	return m, nil
}

// Nodes returns every member, sorted by name.
func (r *Resolver) Nodes(ctx context.Context) ([]Node, error) {
	m, err := r.Membership(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Node, len(m.Nodes))
	copy(out, m.Nodes)
	return out, nil
}

// RemoteNodeAddresses returns the addresses of all members not bound on this
// host. It is empty on a standalone host.
func (r *Resolver) RemoteNodeAddresses(ctx context.Context) ([]string, error) {
	m, err := r.Membership(ctx)
	if err != nil {
		return nil, err
	}
	if !m.Clustered() {
		return nil, nil
	}

	var addrs []string
	for _, n := range m.Nodes {
		if n.Address != "" && !n.Local {
			addrs = append(addrs, n.Address)
		}
	}
	return addrs, nil
}

// NodeAddress returns the address of the named node.
func (r *Resolver) NodeAddress(name string) (string, bool) {
	m, err := r.Membership(context.Background())
	if err != nil {
		r.logger.Warn().Err(err).Str("node", name).Msg("membership unavailable")
		return "", false
	}
	n, ok := m.Node(name)
	if !ok || n.Address == "" {
		return "", false
	}
	return n.Address, true
}

// NodeName returns the name of the member with the given address.
func (r *Resolver) NodeName(address string) (string, bool) {
	m, err := r.Membership(context.Background())
	if err != nil {
		r.logger.Warn().Err(err).Str("address", address).Msg("membership unavailable")
		return "", false
	}
	ip := net.ParseIP(address)
	for _, n := range m.Nodes {
		if n.Address == address || (ip != nil && ip.Equal(net.ParseIP(n.Address))) {
			return n.Name, true
		}
	}
	return "", false
}

// Locate returns where the guest with the given ID lives, or engine.NotFound.
// An error means the store could not be read.
func (r *Resolver) Locate(ctx context.Context, id int) (engine.Placement, error) {
	m, err := r.Membership(ctx)
	if err != nil {
		return engine.NotFound, err
	}

	names := make([]string, 0, len(m.Nodes))
	for _, n := range m.Nodes {
		names = append(names, n.Name)
	}

	entry, ok, err := lookupGuest(r.fsys, names, id)
	if err != nil {
		return engine.NotFound, err
	}
	if !ok {
		return engine.NotFound, nil
	}

	p := engine.Placement{Node: entry.Node, Kind: entry.Kind}
	if n, known := m.Node(entry.Node); known {
		p.Address = n.Address
		p.Local = n.Local
	}
	if p.Address == "" && entry.Node == m.LocalName && !m.Clustered() {
		p.Local = true
	}
	return p, nil
}

// IsLocalAddress reports whether address is bound on this host.
func (r *Resolver) IsLocalAddress(address string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isLocalLocked(address)
}

func (r *Resolver) isLocalLocked(address string) bool {
	ip := net.ParseIP(address)
	if ip == nil {
		return false
	}

	if r.local == nil {
		addrs, err := r.localAddrs()
		if err != nil {
			r.logger.Warn().Err(err).Msg("failed to list local interface addresses")
			return false
		}
		r.local = make([]net.IP, 0, len(addrs))
		for _, a := range addrs {
			switch v := a.(type) {
			case *net.IPNet:
				r.local = append(r.local, v.IP)
			case *net.IPAddr:
				r.local = append(r.local, v.IP)
			}
		}
	}

	for _, l := range r.local {
		if l.Equal(ip) {
			return true
		}
	}
	return false
}
