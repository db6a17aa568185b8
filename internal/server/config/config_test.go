package config

import (
	"errors"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/yndnr/cidmesh-go/internal/server/clusterserver"
	"github.com/yndnr/cidmesh-go/internal/transport"
	"github.com/yndnr/cidmesh-go/pkg/cid"
)

var equateAddrPort = cmp.Comparer(func(a, b netip.AddrPort) bool { return a == b })

func TestDefault_Verifies(t *testing.T) {
	cfg := Default()
	if err := Verify(cfg); err != nil {
		t.Fatalf("Verify(Default()) error = %v", err)
	}
	if cfg.Node.ID != -1 {
		t.Errorf("Node.ID = %d, want -1", cfg.Node.ID)
	}
	if cfg.Cluster.CIDLength != cid.DefaultLength {
		t.Errorf("Cluster.CIDLength = %d, want %d", cfg.Cluster.CIDLength, cid.DefaultLength)
	}
	if cfg.Cluster.RefreshInterval != clusterserver.DefaultRefreshInterval {
		t.Errorf("Cluster.RefreshInterval = %v, want %v", cfg.Cluster.RefreshInterval, clusterserver.DefaultRefreshInterval)
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr string
	}{
		{
			name:   "explicit node id",
			mutate: func(c *ServerConfig) { c.Node.ID = 255 },
		},
		{
			name:    "node id out of range",
			mutate:  func(c *ServerConfig) { c.Node.ID = 256 },
			wantErr: "node.id",
		},
		{
			name:    "bad public addr",
			mutate:  func(c *ServerConfig) { c.Public.Addr = "localhost" },
			wantErr: "public.addr",
		},
		{
			name:    "bad cluster addr",
			mutate:  func(c *ServerConfig) { c.Cluster.Addr = "10.0.0.1" },
			wantErr: "cluster.addr",
		},
		{
			name:    "bad advertise",
			mutate:  func(c *ServerConfig) { c.Cluster.Advertise = "x" },
			wantErr: "cluster.advertise",
		},
		{
			name:    "negative workers",
			mutate:  func(c *ServerConfig) { c.Cluster.ReceiverWorkers = -1 },
			wantErr: "receiver_workers",
		},
		{
			name:    "cid length zero",
			mutate:  func(c *ServerConfig) { c.Cluster.CIDLength = 0 },
			wantErr: "cid_length",
		},
		{
			name:    "datagram too large",
			mutate:  func(c *ServerConfig) { c.Cluster.MaxDatagramSize = 70000 },
			wantErr: "max_datagram_size",
		},
		{
			name: "expire below stale threshold",
			mutate: func(c *ServerConfig) {
				c.Cluster.RefreshInterval = 10 * time.Second
				c.Cluster.ExpireAfter = 5 * time.Second
			},
			wantErr: "expire_after",
		},
		{
			name:    "bad seed",
			mutate:  func(c *ServerConfig) { c.Discovery.Seeds = []string{"nope"} },
			wantErr: "discovery.seeds",
		},
		{
			name:    "seeds without local address",
			mutate:  func(c *ServerConfig) { c.Discovery.Seeds = []string{"10.0.0.2:5784"} },
			wantErr: "cluster.advertise",
		},
		{
			name: "seeds with advertise",
			mutate: func(c *ServerConfig) {
				c.Cluster.Advertise = "10.0.0.1:5784"
				c.Discovery.Seeds = []string{"10.0.0.2:5784"}
			},
		},
		{
			name: "fixed mode",
			mutate: func(c *ServerConfig) {
				c.Discovery.Mode = DiscoveryFixed
				c.Discovery.Nodes = []string{"1=10.0.0.1:5784", "2=10.0.0.2:5784"}
			},
		},
		{
			name:    "fixed mode without nodes",
			mutate:  func(c *ServerConfig) { c.Discovery.Mode = DiscoveryFixed },
			wantErr: "discovery.nodes",
		},
		{
			name: "memberlist mode with advertise",
			mutate: func(c *ServerConfig) {
				c.Discovery.Mode = DiscoveryMemberlist
				c.Cluster.Advertise = "10.0.0.1:5784"
			},
		},
		{
			name:    "memberlist mode without address",
			mutate:  func(c *ServerConfig) { c.Discovery.Mode = DiscoveryMemberlist },
			wantErr: "cluster.advertise",
		},
		{
			name: "kubernetes mode without token",
			mutate: func(c *ServerConfig) {
				c.Discovery.Mode = DiscoveryKubernetes
				c.Kubernetes.TokenFile = ""
			},
			wantErr: "kubernetes.token",
		},
		{
			name:    "kubernetes mode without address",
			mutate:  func(c *ServerConfig) { c.Discovery.Mode = DiscoveryKubernetes },
			wantErr: "cluster.advertise",
		},
		{
			name:    "unknown mode",
			mutate:  func(c *ServerConfig) { c.Discovery.Mode = "dns" },
			wantErr: "discovery.mode",
		},
		{
			name:    "bad admin addr",
			mutate:  func(c *ServerConfig) { c.Admin.Addr = ":metrics" },
			wantErr: "admin.addr",
		},
		{
			name:   "admin disabled",
			mutate: func(c *ServerConfig) { c.Admin.Addr = "" },
		},
		{
			name:    "bad log level",
			mutate:  func(c *ServerConfig) { c.Log.Level = "trace" },
			wantErr: "log.level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *ServerConfig) { c.Log.Format = "xml" },
			wantErr: "log.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Verify(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Verify() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Verify() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	cfg := Default()
	cfg.Kubernetes.Token = "abcdefghij"

	got := Sanitize(cfg)
	if got.Kubernetes.Token != "ab******ij" {
		t.Errorf("Sanitize() token = %q, want %q", got.Kubernetes.Token, "ab******ij")
	}
	if cfg.Kubernetes.Token != "abcdefghij" {
		t.Errorf("Sanitize() modified the input: %q", cfg.Kubernetes.Token)
	}

	cfg.Memberlist.Secret = "gossip-secret"
	if got := Sanitize(cfg).Memberlist.Secret; got != "go*********et" {
		t.Errorf("Sanitize() secret = %q, want %q", got, "go*********et")
	}

	cfg.Kubernetes.Token = "abc"
	if got := Sanitize(cfg).Kubernetes.Token; got != "****" {
		t.Errorf("Sanitize() short token = %q, want ****", got)
	}
}

func TestParseNodes(t *testing.T) {
	got, err := ParseNodes([]string{"1=10.0.0.1:5784", " 2 = [fd00::2]:5784"})
	if err != nil {
		t.Fatalf("ParseNodes() error = %v", err)
	}
	want := map[cid.NodeID]netip.AddrPort{
		1: netip.MustParseAddrPort("10.0.0.1:5784"),
		2: netip.MustParseAddrPort("[fd00::2]:5784"),
	}
	if diff := cmp.Diff(want, got, equateAddrPort); diff != "" {
		t.Errorf("ParseNodes() mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range [][]string{
		{"10.0.0.1:5784"},
		{"x=10.0.0.1:5784"},
		{"256=10.0.0.1:5784"},
		{"1=10.0.0.1"},
		{"1=10.0.0.1:5784", "1=10.0.0.2:5784"},
	} {
		if _, err := ParseNodes(bad); err == nil {
			t.Errorf("ParseNodes(%q) error = nil, want error", bad)
		}
	}
}

func TestResolveNodeID(t *testing.T) {
	tests := []struct {
		name     string
		id       int
		hostname string
		want     cid.NodeID
		wantErr  error
	}{
		{name: "explicit", id: 7, hostname: "cidmesh-3", want: 7},
		{name: "zero", id: 0, want: 0},
		{name: "from hostname", id: -1, hostname: "cidmesh-3", want: 3},
		{name: "statefulset style", id: -1, hostname: "edge-cidmesh-12", want: 12},
		{name: "no suffix", id: -1, hostname: "cidmesh", wantErr: ErrNoNodeID},
		{name: "non numeric suffix", id: -1, hostname: "cidmesh-abc", wantErr: ErrNoNodeID},
		{name: "suffix out of range", id: -1, hostname: "cidmesh-300", wantErr: cid.ErrNodeIDOutOfRange},
		{name: "explicit out of range", id: 300, wantErr: cid.ErrNodeIDOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Node.ID = tt.id
			cfg.Node.Hostname = tt.hostname

			got, err := ResolveNodeID(cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ResolveNodeID() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveNodeID() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveNodeID() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAdvertisedClusterAddr(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		want    string
		wantErr bool
	}{
		{
			name:   "advertise wins",
			mutate: func(c *ServerConfig) { c.Cluster.Advertise = "10.0.0.9:6000"; c.Cluster.Addr = "10.0.0.1:5784" },
			want:   "10.0.0.9:6000",
		},
		{
			name:   "specific bind address",
			mutate: func(c *ServerConfig) { c.Cluster.Addr = "10.0.0.1:5784" },
			want:   "10.0.0.1:5784",
		},
		{
			name:   "memberlist advertise host",
			mutate: func(c *ServerConfig) { c.Memberlist.AdvertiseAddr = "10.0.0.5" },
			want:   "10.0.0.5:5784",
		},
		{
			name:   "memberlist bind host",
			mutate: func(c *ServerConfig) { c.Memberlist.BindAddr = "10.0.0.6" },
			want:   "10.0.0.6:5784",
		},
		{
			name:    "unspecified everywhere",
			mutate:  func(c *ServerConfig) {},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			got, err := AdvertisedClusterAddr(cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("AdvertisedClusterAddr() = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("AdvertisedClusterAddr() error = %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("AdvertisedClusterAddr() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToClusterConfig(t *testing.T) {
	cfg := Default()
	cfg.Node.ID = 4
	cfg.Public.Addr = "127.0.0.1:5684"
	cfg.Cluster.Addr = "127.0.0.1:5784"
	cfg.Cluster.ReceiverWorkers = 2
	cfg.Discovery.Mode = DiscoveryFixed
	cfg.Discovery.Nodes = []string{"4=127.0.0.1:5784", "5=127.0.0.2:5784"}

	engine := transport.EngineFunc(func([]byte, transport.PeerAddr, transport.RecordSender) {})
	got, err := ToClusterConfig(cfg, engine, nil)
	if err != nil {
		t.Fatalf("ToClusterConfig() error = %v", err)
	}

	if got.NodeID != 4 {
		t.Errorf("NodeID = %d, want 4", got.NodeID)
	}
	if got.PublicAddr != netip.MustParseAddrPort("127.0.0.1:5684") {
		t.Errorf("PublicAddr = %v", got.PublicAddr)
	}
	if got.ReceiverWorkers != 2 {
		t.Errorf("ReceiverWorkers = %d, want 2", got.ReceiverWorkers)
	}
	if got.Membership.Expire != clusterserver.DefaultExpireAfter {
		t.Errorf("Membership.Expire = %v, want %v", got.Membership.Expire, clusterserver.DefaultExpireAfter)
	}
	if len(got.StaticNodes) != 2 {
		t.Errorf("StaticNodes = %v, want 2 entries", got.StaticNodes)
	}
	if got.Engine == nil {
		t.Error("Engine = nil")
	}

	if _, err := ToClusterConfig(nil, engine, nil); err == nil {
		t.Error("ToClusterConfig(nil) error = nil, want error")
	}
}

func TestNewDiscoverySource(t *testing.T) {
	t.Run("fixed", func(t *testing.T) {
		cfg := Default()
		cfg.Discovery.Mode = DiscoveryFixed
		src, err := NewDiscoverySource(cfg, 1, nil)
		if err != nil || src != nil {
			t.Fatalf("NewDiscoverySource() = %v, %v, want nil, nil", src, err)
		}
	})

	t.Run("seeds", func(t *testing.T) {
		cfg := Default()
		cfg.Cluster.Advertise = "10.0.0.1:5784"
		cfg.Discovery.Seeds = []string{"10.0.0.2:5784", "10.0.0.3:5784"}
		src, err := NewDiscoverySource(cfg, 1, nil)
		if err != nil {
			t.Fatalf("NewDiscoverySource() error = %v", err)
		}
		if got := src.LocalInterface(); got != netip.MustParseAddrPort("10.0.0.1:5784") {
			t.Errorf("LocalInterface() = %v", got)
		}
		got, err := src.DiscoverCandidates(t.Context())
		if err != nil {
			t.Fatalf("DiscoverCandidates() error = %v", err)
		}
		if len(got) != 2 {
			t.Errorf("DiscoverCandidates() = %v, want 2 seeds", got)
		}
	})

	t.Run("seeds without local address", func(t *testing.T) {
		cfg := Default()
		cfg.Discovery.Seeds = []string{"10.0.0.1:5784", "10.0.0.2:5784"}
		src, err := NewDiscoverySource(cfg, 1, nil)
		if err == nil {
			t.Fatalf("NewDiscoverySource() local = %v, want error", src.LocalInterface())
		}
		if !strings.Contains(err.Error(), "cluster.advertise") {
			t.Errorf("NewDiscoverySource() error = %v, want cluster.advertise", err)
		}
	})

	t.Run("seeds from specific bind address", func(t *testing.T) {
		cfg := Default()
		cfg.Cluster.Addr = "10.0.0.1:5784"
		cfg.Discovery.Seeds = []string{"10.0.0.1:5784", "10.0.0.2:5784"}
		src, err := NewDiscoverySource(cfg, 1, nil)
		if err != nil {
			t.Fatalf("NewDiscoverySource() error = %v", err)
		}
		if got := src.LocalInterface(); got != netip.MustParseAddrPort("10.0.0.1:5784") {
			t.Errorf("LocalInterface() = %v, want 10.0.0.1:5784", got)
		}
	})

	t.Run("seeds empty", func(t *testing.T) {
		if _, err := NewDiscoverySource(Default(), 1, nil); err != nil {
			t.Fatalf("NewDiscoverySource() error = %v", err)
		}
	})

	t.Run("kubernetes without local address", func(t *testing.T) {
		cfg := Default()
		cfg.Discovery.Mode = DiscoveryKubernetes
		if _, err := NewDiscoverySource(cfg, 1, nil); err == nil {
			t.Fatal("NewDiscoverySource() error = nil, want error")
		}
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := Default()
		cfg.Discovery.Mode = "dns"
		if _, err := NewDiscoverySource(cfg, 1, nil); err == nil {
			t.Fatal("NewDiscoverySource() error = nil, want error")
		}
	})
}
