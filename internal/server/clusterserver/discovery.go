// Package clusterserver provides candidate discovery using the gossip protocol.
package clusterserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/hashicorp/memberlist"

	"github.com/yndnr/cidmesh-go/pkg/cid"
)

// MemberlistConfig configures a MemberlistSource.
type MemberlistConfig struct {
	// NodeName is the unique gossip member name.
	NodeName string

	// NodeID is the cluster node id, shared in the member metadata.
	NodeID cid.NodeID

	// BindAddr and BindPort are the gossip listen address.
	BindAddr string
	BindPort int

	// AdvertiseAddr and AdvertisePort override the address other members
	// use to reach this one.
	AdvertiseAddr string
	AdvertisePort int

	// ClusterAddr is the cluster socket address of this node. It is stored
	// in the member metadata and returned as a candidate by other nodes.
	ClusterAddr netip.AddrPort

	// Seeds are gossip addresses to join.
	Seeds []string

	// JoinRetryInterval bounds how often a failed join is retried.
	JoinRetryInterval time.Duration

	// SecretKey enables gossip encryption. It must be 16, 24 or 32 bytes,
	// see DeriveGossipKey.
	SecretKey []byte

	Logger *slog.Logger
}

// MemberlistSource is a DiscoverySource backed by a gossip member list.
// Every member advertises its cluster address in its metadata.
type MemberlistSource struct {
	cfg        MemberlistConfig
	memberList *memberlist.Memberlist
	logger     *slog.Logger

	mu       sync.Mutex
	joined   bool
	lastJoin time.Time
	shutdown bool
}

// nodeMetadata is the gossip member metadata.
type nodeMetadata struct {
	NodeID      uint32 `json:"node_id"`
	ClusterAddr string `json:"cluster_addr"`
}

// NewMemberlistSource starts gossiping. A failed join of the seeds is not
// fatal; it is retried on discovery.
func NewMemberlistSource(cfg MemberlistConfig) (*MemberlistSource, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.JoinRetryInterval <= 0 {
		cfg.JoinRetryInterval = DefaultDiscoverInterval
	}
	if !cfg.ClusterAddr.IsValid() {
		return nil, fmt.Errorf("clusterserver: memberlist source requires the cluster address")
	}

	meta, err := json.Marshal(nodeMetadata{
		NodeID:      uint32(cfg.NodeID),
		ClusterAddr: cfg.ClusterAddr.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode node metadata: %w", err)
	}

	mlConfig := memberlist.DefaultLANConfig()
	if cfg.NodeName != "" {
		mlConfig.Name = cfg.NodeName
	}
	mlConfig.BindAddr = cfg.BindAddr
	mlConfig.BindPort = cfg.BindPort
	mlConfig.AdvertiseAddr = cfg.AdvertiseAddr
	mlConfig.AdvertisePort = cfg.AdvertisePort
	if cfg.AdvertisePort == 0 {
		mlConfig.AdvertisePort = cfg.BindPort
	}
	mlConfig.SecretKey = cfg.SecretKey
	mlConfig.Delegate = &metadataDelegate{meta: meta}
	mlConfig.Logger = newHCLogger(cfg.Logger, "memberlist").StandardLogger(nil)

	s := &MemberlistSource{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "memberlist"),
	}
	mlConfig.Events = &eventDelegate{source: s}

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("create memberlist: %w", err)
	}
	s.memberList = ml

	s.mu.Lock()
	s.joinLocked()
	s.mu.Unlock()

	return s, nil
}

func (s *MemberlistSource) joinLocked() {
	if len(s.cfg.Seeds) == 0 {
		s.joined = true
		s.logger.Info("started discovery (bootstrap mode)", "node_id", s.cfg.NodeID)
		return
	}

	s.lastJoin = time.Now()
	n, err := s.memberList.Join(s.cfg.Seeds)
	if err != nil {
		s.logger.Warn("join seed nodes failed, will retry",
			"seed_nodes", s.cfg.Seeds,
			"error", err)
		return
	}
	s.joined = true
	s.logger.Info("joined cluster",
		"node_id", s.cfg.NodeID,
		"seed_nodes", s.cfg.Seeds,
		"joined_count", n)
}

// LocalInterface returns the cluster address of this node.
func (s *MemberlistSource) LocalInterface() netip.AddrPort {
	return s.cfg.ClusterAddr
}

// DiscoverCandidates returns the cluster addresses advertised by the other
// live members.
func (s *MemberlistSource) DiscoverCandidates(ctx context.Context) ([]netip.AddrPort, error) {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil, fmt.Errorf("clusterserver: memberlist source is shut down")
	}
	if !s.joined && time.Since(s.lastJoin) >= s.cfg.JoinRetryInterval {
		s.joinLocked()
	}
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	local := s.memberList.LocalNode().Name
	members := s.memberList.Members()
	addrs := make([]netip.AddrPort, 0, len(members))
	for _, m := range members {
		if m.Name == local {
			continue
		}
		addr, err := parseNodeMetadata(m.Meta)
		if err != nil {
			s.logger.Debug("member without cluster address", "member", m.Name, "error", err)
			continue
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

func parseNodeMetadata(meta []byte) (netip.AddrPort, error) {
	var md nodeMetadata
	if err := json.Unmarshal(meta, &md); err != nil {
		return netip.AddrPort{}, fmt.Errorf("decode node metadata: %w", err)
	}
	return netip.ParseAddrPort(md.ClusterAddr)
}

// Members returns the number of live gossip members, this node included.
func (s *MemberlistSource) Members() int {
	return s.memberList.NumMembers()
}

// Leave broadcasts the departure of this node.
func (s *MemberlistSource) Leave(timeout time.Duration) error {
	if err := s.memberList.Leave(timeout); err != nil {
		return fmt.Errorf("leave cluster: %w", err)
	}
	s.logger.Info("left cluster")
	return nil
}

// Shutdown stops gossiping.
func (s *MemberlistSource) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutdown {
		return nil
	}
	s.shutdown = true

	if err := s.memberList.Shutdown(); err != nil {
		return fmt.Errorf("shutdown memberlist: %w", err)
	}
	s.logger.Info("discovery shutdown complete")
	return nil
}

// eventDelegate implements memberlist.EventDelegate.
type eventDelegate struct {
	source *MemberlistSource
}

func (e *eventDelegate) NotifyJoin(node *memberlist.Node) {
	addr, _ := parseNodeMetadata(node.Meta)
	e.source.logger.Info("member joined",
		"member", node.Name,
		"gossip_addr", node.Address(),
		"cluster_addr", addr)
}

func (e *eventDelegate) NotifyLeave(node *memberlist.Node) {
	e.source.logger.Info("member left",
		"member", node.Name,
		"gossip_addr", node.Address())
}

func (e *eventDelegate) NotifyUpdate(node *memberlist.Node) {
	e.source.logger.Debug("member updated",
		"member", node.Name,
		"gossip_addr", node.Address())
}

// metadataDelegate provides the node metadata to memberlist.
type metadataDelegate struct {
	meta []byte
}

// NodeMeta returns the metadata, which must fit in limit bytes.
func (m *metadataDelegate) NodeMeta(limit int) []byte {
	if len(m.meta) > limit {
		return nil
	}
	return m.meta
}

func (m *metadataDelegate) NotifyMsg([]byte)                           {}
func (m *metadataDelegate) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (m *metadataDelegate) LocalState(join bool) []byte                { return nil }
func (m *metadataDelegate) MergeRemoteState(buf []byte, join bool)     {}
