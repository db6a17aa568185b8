// Package config defines the node configuration structure.
package config

import (
	"github.com/yndnr/cidmesh-go/internal/infra/tlsroots"
	"github.com/yndnr/cidmesh-go/internal/server/clusterserver"
	"github.com/yndnr/cidmesh-go/pkg/cid"
)

// Default configuration values.
const (
	DefaultPublicAddr  = "0.0.0.0:5684"
	DefaultClusterAddr = "0.0.0.0:5784"
	DefaultAdminAddr   = "127.0.0.1:9102"

	DefaultMemberlistPort = 7946

	DefaultKubernetesHost      = "https://kubernetes.default.svc"
	DefaultKubernetesNamespace = "default"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default node configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Node: NodeSection{
			ID: -1,
		},
		Public: PublicSection{
			Addr: DefaultPublicAddr,
		},
		Cluster: ClusterSection{
			Addr:             DefaultClusterAddr,
			CIDLength:        cid.DefaultLength,
			MaxDatagramSize:  clusterserver.DefaultMaxDatagramSize,
			TickInterval:     clusterserver.DefaultTickInterval,
			RefreshInterval:  clusterserver.DefaultRefreshInterval,
			ExpireAfter:      clusterserver.DefaultExpireAfter,
			DiscoverInterval: clusterserver.DefaultDiscoverInterval,
		},
		Discovery: DiscoverySection{
			Mode: DiscoverySeeds,
		},
		Memberlist: MemberlistSection{
			BindAddr: "0.0.0.0",
			BindPort: DefaultMemberlistPort,
		},
		Kubernetes: KubernetesSection{
			Host:      DefaultKubernetesHost,
			TokenFile: clusterserver.ServiceAccountTokenFile,
			Namespace: DefaultKubernetesNamespace,
			CAFile:    tlsroots.ServiceAccountCAFile,
			Timeout:   clusterserver.DefaultKubernetesTimeout,
		},
		Admin: AdminSection{
			Addr: DefaultAdminAddr,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
