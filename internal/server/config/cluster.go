// Package config defines the node configuration structure.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"github.com/yndnr/cidmesh-go/internal/server/clusterserver"
	"github.com/yndnr/cidmesh-go/internal/transport"
	"github.com/yndnr/cidmesh-go/pkg/cid"
)

// ErrNoNodeID is returned when neither node.id nor the host name yield a
// node id.
var ErrNoNodeID = errors.New("config: node id not available")

// Hostname returns node.hostname or the host name of the machine.
func Hostname(cfg *ServerConfig) (string, error) {
	if cfg.Node.Hostname != "" {
		return cfg.Node.Hostname, nil
	}
	return os.Hostname()
}

// ResolveNodeID returns node.id, or the numeric suffix of the host name
// when node.id is negative.
func ResolveNodeID(cfg *ServerConfig) (cid.NodeID, error) {
	if cfg.Node.ID >= 0 {
		if cfg.Node.ID > cid.MaxNodeID {
			return 0, fmt.Errorf("node.id %d: %w", cfg.Node.ID, cid.ErrNodeIDOutOfRange)
		}
		return cid.NodeID(cfg.Node.ID), nil
	}

	host, err := Hostname(cfg)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNoNodeID, err)
	}
	pos := strings.LastIndexByte(host, '-')
	if pos < 0 {
		return 0, fmt.Errorf("%w: host name %q has no numeric suffix", ErrNoNodeID, host)
	}
	id, err := strconv.ParseUint(host[pos+1:], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: host name %q has no numeric suffix", ErrNoNodeID, host)
	}
	if id > cid.MaxNodeID {
		return 0, fmt.Errorf("host name %q: %w", host, cid.ErrNodeIDOutOfRange)
	}
	return cid.NodeID(id), nil
}

// ParseNodes parses "id=host:port" entries.
func ParseNodes(entries []string) (map[cid.NodeID]netip.AddrPort, error) {
	nodes := make(map[cid.NodeID]netip.AddrPort, len(entries))
	for _, e := range entries {
		idPart, addrPart, ok := strings.Cut(e, "=")
		if !ok {
			return nil, fmt.Errorf("discovery.nodes: %q is not id=host:port", e)
		}
		id, err := strconv.ParseUint(strings.TrimSpace(idPart), 10, 32)
		if err != nil || id > cid.MaxNodeID {
			return nil, fmt.Errorf("discovery.nodes: invalid node id in %q", e)
		}
		addr, err := netip.ParseAddrPort(strings.TrimSpace(addrPart))
		if err != nil {
			return nil, fmt.Errorf("discovery.nodes: %w", err)
		}
		if _, dup := nodes[cid.NodeID(id)]; dup {
			return nil, fmt.Errorf("discovery.nodes: node %d listed twice", id)
		}
		nodes[cid.NodeID(id)] = addr
	}
	return nodes, nil
}

// AdvertisedClusterAddr returns the cluster address other nodes reach this
// node at: cluster.advertise, else cluster.addr when it is specific, else the
// memberlist advertise or bind host with the cluster port.
func AdvertisedClusterAddr(cfg *ServerConfig) (netip.AddrPort, error) {
	if cfg.Cluster.Advertise != "" {
		return netip.ParseAddrPort(cfg.Cluster.Advertise)
	}
	bind, err := netip.ParseAddrPort(cfg.Cluster.Addr)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("cluster.addr: %w", err)
	}
	if !bind.Addr().IsUnspecified() {
		return bind, nil
	}

	for _, host := range []string{cfg.Memberlist.AdvertiseAddr, cfg.Memberlist.BindAddr} {
		if addr, err := netip.ParseAddr(host); err == nil && !addr.IsUnspecified() {
			return netip.AddrPortFrom(addr, bind.Port()), nil
		}
	}
	return netip.AddrPort{}, errors.New("cluster.advertise is required when cluster.addr is unspecified")
}

// ToClusterConfig converts ServerConfig to clusterserver.Config. The
// discovery source is built separately by NewDiscoverySource.
func ToClusterConfig(cfg *ServerConfig, engine transport.Engine, logger *slog.Logger) (clusterserver.Config, error) {
	if cfg == nil {
		return clusterserver.Config{}, errors.New("server config is nil")
	}

	nodeID, err := ResolveNodeID(cfg)
	if err != nil {
		return clusterserver.Config{}, err
	}
	public, err := netip.ParseAddrPort(cfg.Public.Addr)
	if err != nil {
		return clusterserver.Config{}, fmt.Errorf("public.addr: %w", err)
	}
	cluster, err := netip.ParseAddrPort(cfg.Cluster.Addr)
	if err != nil {
		return clusterserver.Config{}, fmt.Errorf("cluster.addr: %w", err)
	}

	out := clusterserver.Config{
		NodeID:          nodeID,
		CIDLength:       cfg.Cluster.CIDLength,
		PublicAddr:      public,
		ClusterAddr:     cluster,
		ReceiverWorkers: cfg.Cluster.ReceiverWorkers,
		MaxDatagramSize: cfg.Cluster.MaxDatagramSize,
		Membership: clusterserver.MembershipConfig{
			Tick:     cfg.Cluster.TickInterval,
			Refresh:  cfg.Cluster.RefreshInterval,
			Expire:   cfg.Cluster.ExpireAfter,
			Discover: cfg.Cluster.DiscoverInterval,
		},
		Engine: engine,
		Logger: logger,
	}

	if cfg.Discovery.Mode == DiscoveryFixed {
		nodes, err := ParseNodes(cfg.Discovery.Nodes)
		if err != nil {
			return clusterserver.Config{}, err
		}
		out.StaticNodes = nodes
	}
	return out, nil
}

// NewDiscoverySource creates the discovery source of the configured mode. It
// returns nil in fixed mode. A memberlist source starts gossiping at once.
func NewDiscoverySource(cfg *ServerConfig, nodeID cid.NodeID, logger *slog.Logger) (clusterserver.DiscoverySource, error) {
	switch cfg.Discovery.Mode {
	case DiscoveryFixed:
		return nil, nil

	case DiscoverySeeds:
		seeds, err := clusterserver.ParseAddrPorts(cfg.Discovery.Seeds)
		if err != nil {
			return nil, fmt.Errorf("discovery.seeds: %w", err)
		}
		// Without seeds nothing is pinged, so the local address may stay
		// unknown.
		local, err := AdvertisedClusterAddr(cfg)
		if err != nil && len(seeds) > 0 {
			return nil, err
		}
		return &clusterserver.StaticSource{Local: local, Seeds: seeds}, nil

	case DiscoveryMemberlist:
		local, err := AdvertisedClusterAddr(cfg)
		if err != nil {
			return nil, err
		}
		var key []byte
		if cfg.Memberlist.Secret != "" {
			if key, err = clusterserver.DeriveGossipKey(cfg.Memberlist.Secret); err != nil {
				return nil, err
			}
		}
		host, _ := Hostname(cfg)
		src, err := clusterserver.NewMemberlistSource(clusterserver.MemberlistConfig{
			NodeName:      fmt.Sprintf("%s-%d", host, nodeID),
			NodeID:        nodeID,
			BindAddr:      cfg.Memberlist.BindAddr,
			BindPort:      cfg.Memberlist.BindPort,
			AdvertiseAddr: cfg.Memberlist.AdvertiseAddr,
			AdvertisePort: cfg.Memberlist.AdvertisePort,
			ClusterAddr:   local,
			Seeds:         cfg.Memberlist.Join,
			SecretKey:     key,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		return src, nil

	case DiscoveryKubernetes:
		bind, err := netip.ParseAddrPort(cfg.Cluster.Addr)
		if err != nil {
			return nil, fmt.Errorf("cluster.addr: %w", err)
		}
		local, err := AdvertisedClusterAddr(cfg)
		if err != nil {
			return nil, err
		}
		host, err := Hostname(cfg)
		if err != nil {
			return nil, fmt.Errorf("resolve hostname: %w", err)
		}
		src, err := clusterserver.NewKubernetesSource(clusterserver.KubernetesConfig{
			Host:        cfg.Kubernetes.Host,
			Token:       cfg.Kubernetes.Token,
			TokenFile:   cfg.Kubernetes.TokenFile,
			Namespace:   cfg.Kubernetes.Namespace,
			Selector:    cfg.Kubernetes.Selector,
			CAFile:      cfg.Kubernetes.CAFile,
			ClusterPort: bind.Port(),
			LocalAddr:   local,
			Hostname:    host,
			Timeout:     cfg.Kubernetes.Timeout,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		return src, nil

	default:
		return nil, fmt.Errorf("unknown discovery mode %q", cfg.Discovery.Mode)
	}
}
