// Package clusterserver provides the node table of the cluster connector.
package clusterserver

import (
	"cmp"
	"encoding/binary"
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/yndnr/cidmesh-go/pkg/cid"
	"github.com/yndnr/cidmesh-go/pkg/cmap"
)

// NodeResolver resolves node ids to cluster addresses for the connector.
type NodeResolver interface {
	// Resolve returns the cluster address of node id.
	Resolve(id cid.NodeID) (netip.AddrPort, bool)

	// IsReachable reports whether addr is the cluster address of a known node.
	IsReachable(addr netip.AddrPort) bool
}

// Node is a known cluster member.
type Node struct {
	ID       cid.NodeID
	Address  netip.AddrPort
	LastSeen time.Time
}

type nodeEntry struct {
	id cid.NodeID

	mu       sync.Mutex
	addr     netip.AddrPort
	lastSeen time.Time
}

func (e *nodeEntry) node() Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Node{ID: e.id, Address: e.addr, LastSeen: e.lastSeen}
}

// NodeTable maps node ids to cluster addresses and back.
//
// Both views are only changed through Update and Remove, which serialize on a
// single writer lock. Lookups go straight to the sharded maps and never wait
// for a writer. The local node is never stored.
type NodeTable struct {
	self cid.NodeID
	now  func() time.Time

	mu     sync.Mutex
	byID   *cmap.Map[cid.NodeID, *nodeEntry]
	byAddr *cmap.Map[netip.AddrPort, *nodeEntry]
}

// NewNodeTable creates an empty table for the local node self.
func NewNodeTable(self cid.NodeID) *NodeTable {
	return &NodeTable{
		self:   self,
		now:    time.Now,
		byID:   cmap.New[cid.NodeID, *nodeEntry](cmap.Uint32Hasher[cid.NodeID]),
		byAddr: cmap.New[netip.AddrPort, *nodeEntry](hashAddrPort),
	}
}

func hashAddrPort(ap netip.AddrPort) uint64 {
	var b [18]byte
	a := ap.Addr().As16()
	copy(b[:16], a[:])
	binary.BigEndian.PutUint16(b[16:], ap.Port())
	return cmap.BytesHasher(b[:])
}

// Self returns the local node id.
func (t *NodeTable) Self() cid.NodeID {
	return t.self
}

// Update records that node id was seen at addr now.
//
// A node moving to a new address drops its old address mapping. A node taking
// over the address of another node removes that other node. Update reports
// whether id was not known before.
func (t *NodeTable) Update(addr netip.AddrPort, id cid.NodeID) bool {
	addr = unmapAddrPort(addr)
	if id == t.self || !addr.IsValid() {
		return false
	}
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, known := t.byID.Get(id)
	if known {
		entry.mu.Lock()
		if entry.addr != addr {
			t.byAddr.CompareAndDelete(entry.addr, entry)
			entry.addr = addr
		}
		if now.After(entry.lastSeen) {
			entry.lastSeen = now
		}
		entry.mu.Unlock()
	} else {
		entry = &nodeEntry{id: id, addr: addr, lastSeen: now}
		t.byID.Set(id, entry)
	}

	if prev, replaced := t.byAddr.Set(addr, entry); replaced && prev != entry {
		t.byID.CompareAndDelete(prev.id, prev)
	}
	return !known
}

// Remove removes node id from both views.
func (t *NodeTable) Remove(id cid.NodeID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.byID.Get(id)
	if !ok {
		return false
	}
	t.removeLocked(entry)
	return true
}

// expire removes node id when it was last seen at or before cutoff. The check
// is repeated under the writer lock so a node revived by a concurrent pong is
// kept.
func (t *NodeTable) expire(id cid.NodeID, cutoff time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.byID.Get(id)
	if !ok {
		return false
	}
	entry.mu.Lock()
	expired := !entry.lastSeen.After(cutoff)
	entry.mu.Unlock()
	if !expired {
		return false
	}
	t.removeLocked(entry)
	return true
}

func (t *NodeTable) removeLocked(entry *nodeEntry) {
	t.byID.CompareAndDelete(entry.id, entry)
	entry.mu.Lock()
	addr := entry.addr
	entry.mu.Unlock()
	t.byAddr.CompareAndDelete(addr, entry)
}

// Resolve returns the cluster address of node id.
func (t *NodeTable) Resolve(id cid.NodeID) (netip.AddrPort, bool) {
	entry, ok := t.byID.Get(id)
	if !ok {
		return netip.AddrPort{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.addr, true
}

// IsReachable reports whether addr belongs to a known node.
func (t *NodeTable) IsReachable(addr netip.AddrPort) bool {
	return t.byAddr.Has(unmapAddrPort(addr))
}

// Lookup returns node id.
func (t *NodeTable) Lookup(id cid.NodeID) (Node, bool) {
	entry, ok := t.byID.Get(id)
	if !ok {
		return Node{}, false
	}
	return entry.node(), true
}

// LookupAddress returns the node at addr.
func (t *NodeTable) LookupAddress(addr netip.AddrPort) (Node, bool) {
	entry, ok := t.byAddr.Get(unmapAddrPort(addr))
	if !ok {
		return Node{}, false
	}
	return entry.node(), true
}

// Len returns the number of known nodes.
func (t *NodeTable) Len() int {
	return t.byID.Count()
}

// Nodes returns a snapshot of all known nodes ordered by id.
func (t *NodeTable) Nodes() []Node {
	entries := t.byID.Values()
	nodes := make([]Node, 0, len(entries))
	for _, e := range entries {
		nodes = append(nodes, e.node())
	}
	slices.SortFunc(nodes, func(a, b Node) int { return cmp.Compare(a.ID, b.ID) })
	return nodes
}

func unmapAddrPort(ap netip.AddrPort) netip.AddrPort {
	if ap.Addr().Is4In6() {
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}
	return ap
}
