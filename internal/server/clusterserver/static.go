// Package clusterserver provides static node resolution and discovery.
package clusterserver

import (
	"context"
	"fmt"
	"maps"
	"net/netip"
	"slices"

	"github.com/yndnr/cidmesh-go/pkg/cid"
)

// StaticNodes is a NodeResolver over a fixed node set.
type StaticNodes struct {
	self  cid.NodeID
	byID  map[cid.NodeID]netip.AddrPort
	addrs map[netip.AddrPort]cid.NodeID
}

// NewStaticNodes creates a resolver for nodes. The local node must have an
// address in nodes; it is excluded from resolution.
func NewStaticNodes(self cid.NodeID, nodes map[cid.NodeID]netip.AddrPort) (*StaticNodes, error) {
	if _, ok := nodes[self]; !ok {
		return nil, fmt.Errorf("clusterserver: no cluster address for local node %d", self)
	}

	s := &StaticNodes{
		self:  self,
		byID:  make(map[cid.NodeID]netip.AddrPort, len(nodes)),
		addrs: make(map[netip.AddrPort]cid.NodeID, len(nodes)),
	}
	for id, addr := range nodes {
		addr = unmapAddrPort(addr)
		if !addr.IsValid() {
			return nil, fmt.Errorf("clusterserver: invalid cluster address for node %d", id)
		}
		if other, dup := s.addrs[addr]; dup {
			return nil, fmt.Errorf("clusterserver: nodes %d and %d share address %s", other, id, addr)
		}
		s.addrs[addr] = id
		s.byID[id] = addr
	}
	return s, nil
}

// LocalAddress returns the cluster address of the local node.
func (s *StaticNodes) LocalAddress() netip.AddrPort {
	return s.byID[s.self]
}

// Resolve returns the cluster address of a remote node.
func (s *StaticNodes) Resolve(id cid.NodeID) (netip.AddrPort, bool) {
	if id == s.self {
		return netip.AddrPort{}, false
	}
	addr, ok := s.byID[id]
	return addr, ok
}

// IsReachable reports whether addr is the address of a remote node.
func (s *StaticNodes) IsReachable(addr netip.AddrPort) bool {
	id, ok := s.addrs[unmapAddrPort(addr)]
	return ok && id != s.self
}

// Addresses returns the addresses of all remote nodes.
func (s *StaticNodes) Addresses() []netip.AddrPort {
	addrs := make([]netip.AddrPort, 0, len(s.byID))
	for _, id := range slices.Sorted(maps.Keys(s.byID)) {
		if id != s.self {
			addrs = append(addrs, s.byID[id])
		}
	}
	return addrs
}

// StaticSource is a DiscoverySource returning a fixed seed list.
type StaticSource struct {
	Local netip.AddrPort
	Seeds []netip.AddrPort
}

// LocalInterface returns the local cluster address.
func (s *StaticSource) LocalInterface() netip.AddrPort {
	return s.Local
}

// DiscoverCandidates returns a copy of the seed list.
func (s *StaticSource) DiscoverCandidates(context.Context) ([]netip.AddrPort, error) {
	return slices.Clone(s.Seeds), nil
}

// ParseAddrPorts parses host:port literals.
func ParseAddrPorts(values []string) ([]netip.AddrPort, error) {
	addrs := make([]netip.AddrPort, 0, len(values))
	for _, v := range values {
		ap, err := netip.ParseAddrPort(v)
		if err != nil {
			return nil, fmt.Errorf("parse address %q: %w", v, err)
		}
		addrs = append(addrs, ap)
	}
	return addrs, nil
}
