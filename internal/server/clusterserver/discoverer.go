// Package clusterserver provides the dynamic membership protocol.
package clusterserver

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/netip"
	"sync"
	"time"
)

// Membership protocol defaults.
const (
	DefaultTickInterval     = 2 * time.Second
	DefaultRefreshInterval  = 10 * time.Second
	DefaultExpireAfter      = 20 * time.Second
	DefaultDiscoverInterval = 30 * time.Second
)

// minKnownNodes is the table size below which every tick runs discovery.
const minKnownNodes = 2

// DiscoverySource supplies candidate cluster addresses.
type DiscoverySource interface {
	// LocalInterface returns the cluster address of this node as the source
	// sees it, so the discoverer does not ping itself.
	LocalInterface() netip.AddrPort

	// DiscoverCandidates returns cluster addresses of possible peers. The
	// list may be empty or stale.
	DiscoverCandidates(ctx context.Context) ([]netip.AddrPort, error)
}

// MembershipConfig holds the membership protocol timings.
type MembershipConfig struct {
	// Tick is the interval between refresh and discovery passes.
	Tick time.Duration

	// Refresh is the refresh interval. Nodes not heard of for Refresh/2 are
	// pinged again.
	Refresh time.Duration

	// Expire is the age at which a silent node is removed.
	Expire time.Duration

	// Discover is the discovery cooldown used once the table holds at least
	// two nodes.
	Discover time.Duration
}

// WithDefaults returns c with zero values replaced by defaults.
func (c MembershipConfig) WithDefaults() MembershipConfig {
	if c.Tick <= 0 {
		c.Tick = DefaultTickInterval
	}
	if c.Refresh <= 0 {
		c.Refresh = DefaultRefreshInterval
	}
	if c.Expire <= 0 {
		c.Expire = DefaultExpireAfter
	}
	if c.Discover <= 0 {
		c.Discover = DefaultDiscoverInterval
	}
	return c
}

type packetWriter interface {
	WriteToUDPAddrPort(b []byte, addr netip.AddrPort) (int, error)
}

// Discoverer runs the ping/pong membership protocol on the cluster socket and
// keeps the node table current.
type Discoverer struct {
	table  *NodeTable
	conn   packetWriter
	source DiscoverySource
	health *Health
	cfg    MembershipConfig
	logger *slog.Logger
	now    func() time.Time

	// mu serializes ticks.
	mu           sync.Mutex
	rng          *rand.Rand
	nextDiscover time.Time
}

// NewDiscoverer creates a discoverer. source may be nil, in which case the
// table is only populated by pings from other nodes.
func NewDiscoverer(table *NodeTable, conn packetWriter, source DiscoverySource, health *Health, cfg MembershipConfig, logger *slog.Logger) *Discoverer {
	if logger == nil {
		logger = slog.Default()
	}
	if health == nil {
		health = &Health{}
	}
	return &Discoverer{
		table:  table,
		conn:   conn,
		source: source,
		health: health,
		cfg:    cfg.WithDefaults(),
		logger: logger.With("component", "discoverer"),
		now:    time.Now,
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Run ticks until ctx is done.
func (d *Discoverer) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.Tick)
	defer ticker.Stop()

	d.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick runs one refresh pass, followed by a discovery pass when the table is
// sparse or the discovery cooldown has elapsed.
func (d *Discoverer) Tick(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.refresh(now)

	if d.table.Len() < minKnownNodes || !now.Before(d.nextDiscover) {
		d.discover(ctx)
		d.nextDiscover = now.Add(d.cfg.Discover)
	}
}

func (d *Discoverer) refresh(now time.Time) {
	expireBefore := now.Add(-d.cfg.Expire)
	staleBefore := now.Add(-d.cfg.Refresh / 2)

	nodes := d.table.Nodes()
	d.rng.Shuffle(len(nodes), func(i, j int) { nodes[i], nodes[j] = nodes[j], nodes[i] })

	for _, n := range nodes {
		switch {
		case !n.LastSeen.After(expireBefore):
			if d.table.expire(n.ID, expireBefore) {
				d.logger.Info("node expired",
					"node_id", n.ID,
					"addr", n.Address,
					"last_seen", n.LastSeen)
			}
		case n.LastSeen.Before(staleBefore):
			d.send(Ping, n.Address)
		}
	}
}

func (d *Discoverer) discover(ctx context.Context) {
	if d.source == nil {
		return
	}

	candidates, err := d.source.DiscoverCandidates(ctx)
	if err != nil {
		d.logger.Warn("discovery failed", "error", err)
		candidates = nil
	}

	self := unmapAddrPort(d.source.LocalInterface())
	targets := make([]netip.AddrPort, 0, len(candidates))
	seen := make(map[netip.AddrPort]struct{}, len(candidates))
	for _, c := range candidates {
		c = unmapAddrPort(c)
		if !c.IsValid() || c == self || d.table.IsReachable(c) {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		targets = append(targets, c)
	}

	d.rng.Shuffle(len(targets), func(i, j int) { targets[i], targets[j] = targets[j], targets[i] })
	d.logger.Debug("discovery pass",
		"candidates", len(candidates),
		"pinged", len(targets),
		"known", d.table.Len())

	for _, addr := range targets {
		d.send(Ping, addr)
	}
}

// HandleMessage processes a ping or pong received from addr.
func (d *Discoverer) HandleMessage(data []byte, from netip.AddrPort) {
	msg, err := DecodeMessage(data)
	if err != nil {
		d.health.malformed.Add(1)
		d.logger.Debug("dropping malformed membership message",
			"from", from,
			"len", len(data),
			"error", err)
		return
	}
	d.health.membershipReceived.Add(1)

	if msg.NodeID == d.table.Self() {
		d.logger.Debug("ignoring own membership message", "from", from, "kind", msg.Kind)
		return
	}

	if d.table.Update(from, msg.NodeID) {
		d.logger.Info("node discovered", "node_id", msg.NodeID, "addr", from)
	}

	if msg.Kind == Ping {
		d.send(Pong, from)
	}
}

func (d *Discoverer) send(kind MessageKind, to netip.AddrPort) {
	var buf [MessageLen]byte
	if _, err := EncodeMessage(buf[:], Message{Kind: kind, NodeID: d.table.Self()}); err != nil {
		d.logger.Error("encode membership message", "kind", kind, "error", err)
		return
	}

	if _, err := d.conn.WriteToUDPAddrPort(buf[:], to); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return
		}
		d.health.sendErrors.Add(1)
		d.logger.Debug("membership send failed", "kind", kind, "to", to, "error", err)
		return
	}
	d.health.membershipSent.Add(1)
}
