// Package config defines the node configuration structure.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/yndnr/cidmesh-go/pkg/cid"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyNode(&cfg.Node); err != nil {
		return err
	}
	if _, err := netip.ParseAddrPort(cfg.Public.Addr); err != nil {
		return fmt.Errorf("public.addr: %w", err)
	}
	if err := verifyCluster(&cfg.Cluster); err != nil {
		return err
	}
	if err := verifyDiscovery(cfg); err != nil {
		return err
	}
	if cfg.Admin.Addr != "" {
		if _, err := netip.ParseAddrPort(cfg.Admin.Addr); err != nil {
			return fmt.Errorf("admin.addr: %w", err)
		}
	}
	if err := verifyLog(&cfg.Log); err != nil {
		return err
	}
	return nil
}

func verifyNode(cfg *NodeSection) error {
	if cfg.ID > cid.MaxNodeID {
		return fmt.Errorf("node.id %d: %w", cfg.ID, cid.ErrNodeIDOutOfRange)
	}
	return nil
}

func verifyCluster(cfg *ClusterSection) error {
	if _, err := netip.ParseAddrPort(cfg.Addr); err != nil {
		return fmt.Errorf("cluster.addr: %w", err)
	}
	if cfg.Advertise != "" {
		if _, err := netip.ParseAddrPort(cfg.Advertise); err != nil {
			return fmt.Errorf("cluster.advertise: %w", err)
		}
	}
	if cfg.ReceiverWorkers < 0 {
		return errors.New("cluster.receiver_workers must not be negative")
	}
	if cfg.CIDLength < 1 || cfg.CIDLength > 255 {
		return fmt.Errorf("cluster.cid_length %d: %w", cfg.CIDLength, cid.ErrInvalidLength)
	}
	if cfg.MaxDatagramSize < 0 || cfg.MaxDatagramSize > 65535 {
		return errors.New("cluster.max_datagram_size must be between 0 and 65535")
	}
	if cfg.TickInterval < 0 || cfg.RefreshInterval < 0 || cfg.ExpireAfter < 0 || cfg.DiscoverInterval < 0 {
		return errors.New("cluster intervals must not be negative")
	}
	if cfg.ExpireAfter > 0 && cfg.RefreshInterval > 0 && cfg.ExpireAfter <= cfg.RefreshInterval/2 {
		return errors.New("cluster.expire_after must exceed half of cluster.refresh_interval")
	}
	return nil
}

func verifyDiscovery(cfg *ServerConfig) error {
	switch cfg.Discovery.Mode {
	case DiscoverySeeds:
		for _, s := range cfg.Discovery.Seeds {
			if _, err := netip.ParseAddrPort(s); err != nil {
				return fmt.Errorf("discovery.seeds: %w", err)
			}
		}
		if len(cfg.Discovery.Seeds) > 0 {
			if _, err := AdvertisedClusterAddr(cfg); err != nil {
				return err
			}
		}
	case DiscoveryFixed:
		nodes, err := ParseNodes(cfg.Discovery.Nodes)
		if err != nil {
			return err
		}
		if len(nodes) == 0 {
			return errors.New("discovery.nodes is required in fixed mode")
		}
	case DiscoveryMemberlist:
		if cfg.Memberlist.BindPort < 0 || cfg.Memberlist.BindPort > 65535 {
			return errors.New("memberlist.bind_port must be between 0 and 65535")
		}
		if _, err := AdvertisedClusterAddr(cfg); err != nil {
			return err
		}
	case DiscoveryKubernetes:
		if cfg.Kubernetes.Host == "" {
			return errors.New("kubernetes.host is required in kubernetes mode")
		}
		if cfg.Kubernetes.Token == "" && cfg.Kubernetes.TokenFile == "" {
			return errors.New("kubernetes.token or kubernetes.token_file is required in kubernetes mode")
		}
		if _, err := AdvertisedClusterAddr(cfg); err != nil {
			return err
		}
	default:
		return fmt.Errorf("discovery.mode %q is not one of %s", cfg.Discovery.Mode,
			strings.Join([]string{DiscoverySeeds, DiscoveryMemberlist, DiscoveryKubernetes, DiscoveryFixed}, ", "))
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q is not one of json, text", cfg.Format)
	}
	return nil
}
