// Package clusterserver provides the cluster connector server.
package clusterserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yndnr/cidmesh-go/internal/transport"
	"github.com/yndnr/cidmesh-go/pkg/cid"
)

// Config configures a Server.
type Config struct {
	// NodeID is the id of this node, encoded into every CID it issues.
	NodeID cid.NodeID

	// CIDLength is the length of the CIDs in use. Defaults to
	// cid.DefaultLength.
	CIDLength int

	// PublicAddr is the peer facing bind address.
	PublicAddr netip.AddrPort

	// ClusterAddr is the cluster internal bind address. In static mode it
	// defaults to the address of NodeID in StaticNodes.
	ClusterAddr netip.AddrPort

	// ReceiverWorkers is the number of receive loops per socket. Defaults
	// to the number of CPUs.
	ReceiverWorkers int

	// MaxDatagramSize bounds a received datagram.
	MaxDatagramSize int

	// Membership configures the membership protocol timings.
	Membership MembershipConfig

	// Source supplies discovery candidates to the membership protocol.
	Source DiscoverySource

	// StaticNodes switches to a fixed node set. The membership protocol
	// does not run.
	StaticNodes map[cid.NodeID]netip.AddrPort

	// Engine processes the datagrams owned by this node.
	Engine transport.Engine

	Logger *slog.Logger
}

// Server runs a Connector on a public and a cluster UDP socket, together with
// the membership protocol.
type Server struct {
	cfg       Config
	logger    *slog.Logger
	generator *cid.MultiNodeGenerator
	health    *Health
	resolver  NodeResolver
	table     *NodeTable

	mu         sync.Mutex
	public     *net.UDPConn
	cluster    *net.UDPConn
	connector  *Connector
	discoverer *Discoverer
	cancel     context.CancelFunc
	group      *errgroup.Group
	closeOnce  sync.Once
}

// New validates cfg and creates a server. Sockets are bound by Start.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Engine == nil {
		return nil, errors.New("clusterserver: engine is required")
	}
	if cfg.CIDLength == 0 {
		cfg.CIDLength = cid.DefaultLength
	}
	if cfg.ReceiverWorkers <= 0 {
		cfg.ReceiverWorkers = runtime.NumCPU()
	}
	if cfg.MaxDatagramSize <= 0 {
		cfg.MaxDatagramSize = DefaultMaxDatagramSize
	}
	cfg.Membership = cfg.Membership.WithDefaults()

	generator, err := cid.NewMultiNodeGenerator(cfg.NodeID, cfg.CIDLength)
	if err != nil {
		return nil, fmt.Errorf("create CID generator: %w", err)
	}

	s := &Server{
		generator: generator,
		health:    &Health{},
		logger:    cfg.Logger.With("node_id", cfg.NodeID),
	}

	if cfg.StaticNodes != nil {
		static, err := NewStaticNodes(cfg.NodeID, cfg.StaticNodes)
		if err != nil {
			return nil, err
		}
		if !cfg.ClusterAddr.IsValid() {
			cfg.ClusterAddr = static.LocalAddress()
		}
		s.resolver = static
	} else {
		s.table = NewNodeTable(cfg.NodeID)
		s.resolver = s.table
	}

	if !cfg.ClusterAddr.IsValid() {
		return nil, errors.New("clusterserver: cluster address is required")
	}
	if !cfg.PublicAddr.IsValid() {
		return nil, errors.New("clusterserver: public address is required")
	}

	s.cfg = cfg
	return s, nil
}

// Start binds both sockets and starts the receive loops and, in dynamic
// mode, the membership protocol.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.group != nil {
		return errors.New("clusterserver: already started")
	}

	cluster, err := transport.ListenUDP(s.cfg.ClusterAddr)
	if err != nil {
		return fmt.Errorf("bind cluster socket %s: %w", s.cfg.ClusterAddr, err)
	}
	public, err := transport.ListenUDP(s.cfg.PublicAddr)
	if err != nil {
		cluster.Close()
		return fmt.Errorf("bind public socket %s: %w", s.cfg.PublicAddr, err)
	}

	var membership MessageHandler
	if s.table != nil {
		s.discoverer = NewDiscoverer(s.table, cluster, s.cfg.Source, s.health, s.cfg.Membership, s.cfg.Logger)
		membership = s.discoverer
	}

	connector, err := NewConnector(ConnectorConfig{
		Generator:       s.generator,
		Resolver:        s.resolver,
		Engine:          s.cfg.Engine,
		Public:          public,
		Cluster:         cluster,
		Membership:      membership,
		Health:          s.health,
		MaxDatagramSize: s.cfg.MaxDatagramSize,
		Logger:          s.cfg.Logger,
	})
	if err != nil {
		cluster.Close()
		public.Close()
		return err
	}

	s.cluster = cluster
	s.public = public
	s.connector = connector

	runCtx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(runCtx)
	s.cancel = cancel
	s.group = group

	for range s.cfg.ReceiverWorkers {
		group.Go(func() error { return connector.serveCluster(gctx) })
		group.Go(func() error { return connector.servePublic(gctx) })
	}
	if s.discoverer != nil {
		group.Go(func() error { return s.discoverer.Run(gctx) })
	}
	group.Go(func() error {
		<-gctx.Done()
		s.closeSockets()
		return nil
	})

	s.logger.Info("cluster connector started",
		"public_addr", transport.LocalAddrPort(public),
		"cluster_addr", transport.LocalAddrPort(cluster),
		"workers", s.cfg.ReceiverWorkers,
		"dynamic", s.table != nil)
	return nil
}

// closeSockets closes the cluster socket first, which stops the cluster
// receivers and the membership sends, then the public socket.
func (s *Server) closeSockets() {
	s.closeOnce.Do(func() {
		s.cluster.Close()
		s.public.Close()
	})
}

// Shutdown stops the server. Datagrams in flight may be dropped.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	group, cancel := s.group, s.cancel
	s.mu.Unlock()

	if group == nil {
		return nil
	}

	s.closeSockets()
	cancel()

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	select {
	case err := <-done:
		s.logger.Info("cluster connector stopped")
		return err
	case <-ctx.Done():
		return fmt.Errorf("shutdown cluster connector: %w", ctx.Err())
	}
}

// NodeID returns the local node id.
func (s *Server) NodeID() cid.NodeID {
	return s.cfg.NodeID
}

// Generator returns the CID generator of this node.
func (s *Server) Generator() cid.NodeGenerator {
	return s.generator
}

// Health returns the traffic counters.
func (s *Server) Health() *Health {
	return s.health
}

// Connector returns the record router, or nil before Start.
func (s *Server) Connector() *Connector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connector
}

// Nodes returns the known remote nodes. In static mode the configured nodes
// are returned without timestamps.
func (s *Server) Nodes() []Node {
	if s.table != nil {
		return s.table.Nodes()
	}

	static := s.resolver.(*StaticNodes)
	nodes := make([]Node, 0, len(static.byID))
	for _, addr := range static.Addresses() {
		nodes = append(nodes, Node{ID: static.addrs[addr], Address: addr})
	}
	return nodes
}

// PublicAddr returns the bound public address, or the configured one before
// Start.
func (s *Server) PublicAddr() netip.AddrPort {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.public != nil {
		return transport.LocalAddrPort(s.public)
	}
	return s.cfg.PublicAddr
}

// ClusterAddr returns the bound cluster address, or the configured one before
// Start.
func (s *Server) ClusterAddr() netip.AddrPort {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cluster != nil {
		return transport.LocalAddrPort(s.cluster)
	}
	return s.cfg.ClusterAddr
}
