// Package config defines the node configuration structure.
package config

import "time"

// ServerConfig is the root configuration for cidmesh-node.
type ServerConfig struct {
	Node       NodeSection       `koanf:"node" yaml:"node"`
	Public     PublicSection     `koanf:"public" yaml:"public"`
	Cluster    ClusterSection    `koanf:"cluster" yaml:"cluster"`
	Discovery  DiscoverySection  `koanf:"discovery" yaml:"discovery"`
	Memberlist MemberlistSection `koanf:"memberlist" yaml:"memberlist"`
	Kubernetes KubernetesSection `koanf:"kubernetes" yaml:"kubernetes"`
	Admin      AdminSection      `koanf:"admin" yaml:"admin"`
	Log        LogSection        `koanf:"log" yaml:"log"`
}

// NodeSection identifies this node.
type NodeSection struct {
	// ID is the cluster node id (0-255). A negative value derives the id
	// from the numeric suffix of the host name, e.g. "cidmesh-3" is node 3.
	ID int `koanf:"id" yaml:"id"`

	// Hostname overrides the host name used for the id and for excluding
	// the own pod in kubernetes discovery.
	Hostname string `koanf:"hostname" yaml:"hostname"`
}

// PublicSection configures the peer facing socket.
type PublicSection struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// ClusterSection configures the cluster internal socket and the membership
// protocol.
type ClusterSection struct {
	// Addr is the bind address of the cluster socket.
	Addr string `koanf:"addr" yaml:"addr"`

	// Advertise is the cluster address announced to other nodes. Defaults
	// to Addr when Addr is a specific address.
	Advertise string `koanf:"advertise" yaml:"advertise"`

	// ReceiverWorkers is the number of receive loops per socket. 0 uses the
	// number of CPUs.
	ReceiverWorkers int `koanf:"receiver_workers" yaml:"receiver_workers"`

	// CIDLength is the length of the connection ids in use.
	CIDLength int `koanf:"cid_length" yaml:"cid_length"`

	// MaxDatagramSize bounds a received datagram.
	MaxDatagramSize int `koanf:"max_datagram_size" yaml:"max_datagram_size"`

	TickInterval     time.Duration `koanf:"tick_interval" yaml:"tick_interval"`
	RefreshInterval  time.Duration `koanf:"refresh_interval" yaml:"refresh_interval"`
	ExpireAfter      time.Duration `koanf:"expire_after" yaml:"expire_after"`
	DiscoverInterval time.Duration `koanf:"discover_interval" yaml:"discover_interval"`
}

// Discovery modes.
const (
	// DiscoverySeeds pings a fixed list of cluster addresses.
	DiscoverySeeds = "seeds"

	// DiscoveryMemberlist learns cluster addresses from a gossip cluster.
	DiscoveryMemberlist = "memberlist"

	// DiscoveryKubernetes lists the pods of the deployment.
	DiscoveryKubernetes = "kubernetes"

	// DiscoveryFixed uses a fixed node table and no membership protocol.
	DiscoveryFixed = "fixed"
)

// DiscoverySection selects how nodes find each other.
type DiscoverySection struct {
	Mode string `koanf:"mode" yaml:"mode"`

	// Seeds are cluster addresses for the seeds mode.
	Seeds []string `koanf:"seeds" yaml:"seeds"`

	// Nodes are "id=host:port" entries for the fixed mode, this node
	// included.
	Nodes []string `koanf:"nodes" yaml:"nodes"`
}

// MemberlistSection configures the gossip cluster of the memberlist mode.
type MemberlistSection struct {
	BindAddr      string   `koanf:"bind_addr" yaml:"bind_addr"`
	BindPort      int      `koanf:"bind_port" yaml:"bind_port"`
	AdvertiseAddr string   `koanf:"advertise_addr" yaml:"advertise_addr"`
	AdvertisePort int      `koanf:"advertise_port" yaml:"advertise_port"`
	Join          []string `koanf:"join" yaml:"join"`

	// Secret enables gossip encryption. All members need the same value.
	Secret string `koanf:"secret" yaml:"secret"`
}

// KubernetesSection configures the kubernetes mode.
type KubernetesSection struct {
	Host      string        `koanf:"host" yaml:"host"`
	Token     string        `koanf:"token" yaml:"token"`
	TokenFile string        `koanf:"token_file" yaml:"token_file"`
	Namespace string        `koanf:"namespace" yaml:"namespace"`
	Selector  string        `koanf:"selector" yaml:"selector"`
	CAFile    string        `koanf:"ca_file" yaml:"ca_file"`
	Timeout   time.Duration `koanf:"timeout" yaml:"timeout"`
}

// AdminSection configures the admin HTTP endpoint serving /metrics,
// /healthz, /readyz and /v1/status.
type AdminSection struct {
	// Addr is the listen address. Empty disables the endpoint.
	Addr string `koanf:"addr" yaml:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}
