// Package clusterserver provides the CID record router.
package clusterserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/cidmesh-go/internal/transport"
	"github.com/yndnr/cidmesh-go/pkg/cid"
)

// DefaultMaxDatagramSize is the receive buffer size for one datagram.
const DefaultMaxDatagramSize = 2048

// MessageHandler handles cluster datagrams that are not forwarding envelopes.
type MessageHandler interface {
	HandleMessage(data []byte, from netip.AddrPort)
}

// ConnectorConfig configures a Connector.
type ConnectorConfig struct {
	// Generator reads the owning node id out of CIDs. Its node id is the
	// local node id.
	Generator cid.NodeGenerator

	// Resolver maps node ids to cluster addresses.
	Resolver NodeResolver

	// Engine processes datagrams owned by this node.
	Engine transport.Engine

	// Public is the peer facing socket.
	Public transport.PacketConn

	// Cluster is the cluster internal socket.
	Cluster transport.PacketConn

	// Membership receives ping/pong traffic. Optional.
	Membership MessageHandler

	// Health receives the traffic counters. Optional.
	Health *Health

	// MaxDatagramSize bounds a received datagram. Defaults to
	// DefaultMaxDatagramSize.
	MaxDatagramSize int

	Logger *slog.Logger
}

// Connector routes datagrams and records between peers, the local engine and
// the other cluster nodes.
//
// Inbound records carrying a CID of another node are tunneled to that node in
// an incoming envelope. Records the engine addresses to a routed peer are
// tunneled back to the router node in an outgoing envelope.
type Connector struct {
	self       cid.NodeID
	generator  cid.NodeGenerator
	resolver   NodeResolver
	engine     transport.Engine
	public     transport.PacketConn
	cluster    transport.PacketConn
	membership MessageHandler
	health     *Health
	maxSize    int
	logger     *slog.Logger

	foreignDropLog  rate.Sometimes
	backwardDropLog rate.Sometimes
}

// NewConnector creates a connector.
func NewConnector(cfg ConnectorConfig) (*Connector, error) {
	switch {
	case cfg.Generator == nil:
		return nil, errors.New("clusterserver: connector requires a node aware CID generator")
	case cfg.Resolver == nil:
		return nil, errors.New("clusterserver: connector requires a node resolver")
	case cfg.Engine == nil:
		return nil, errors.New("clusterserver: connector requires an engine")
	case cfg.Public == nil || cfg.Cluster == nil:
		return nil, errors.New("clusterserver: connector requires public and cluster sockets")
	}
	if cfg.Generator.Len() <= 0 {
		return nil, fmt.Errorf("clusterserver: %w", cid.ErrInvalidLength)
	}
	if cfg.Health == nil {
		cfg.Health = &Health{}
	}
	if cfg.MaxDatagramSize <= 0 {
		cfg.MaxDatagramSize = DefaultMaxDatagramSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Connector{
		self:            cfg.Generator.NodeID(),
		generator:       cfg.Generator,
		resolver:        cfg.Resolver,
		engine:          cfg.Engine,
		public:          cfg.Public,
		cluster:         cfg.Cluster,
		membership:      cfg.Membership,
		health:          cfg.Health,
		maxSize:         cfg.MaxDatagramSize,
		logger:          cfg.Logger.With("component", "connector", "node_id", cfg.Generator.NodeID()),
		foreignDropLog:  rate.Sometimes{First: 3, Interval: 10 * time.Second},
		backwardDropLog: rate.Sometimes{First: 3, Interval: 10 * time.Second},
	}, nil
}

// Health returns the traffic counters.
func (c *Connector) Health() *Health {
	return c.health
}

// HandleInbound routes a datagram received from source on the public socket.
func (c *Connector) HandleInbound(datagram []byte, source netip.AddrPort) {
	frame := make([]byte, EnvelopeHeaderLen+len(datagram))
	copy(frame[EnvelopeHeaderLen:], datagram)
	c.route(frame, unmapAddrPort(source))
}

// route routes frame[EnvelopeHeaderLen:]. The leading EnvelopeHeaderLen bytes
// are headroom for the envelope header.
func (c *Connector) route(frame []byte, source netip.AddrPort) {
	c.health.receivedDatagrams.Add(1)

	data := frame[EnvelopeHeaderLen:]
	peer := transport.Direct(source)

	if !cid.HasCID(data) {
		c.deliver(data, peer)
		return
	}

	owner, err := cid.NodeIDOfRecord(data, c.generator)
	if err != nil {
		c.health.malformed.Add(1)
		c.logger.Debug("cannot read record CID, processing locally", "peer", source, "error", err)
		c.deliver(data, peer)
		return
	}

	if owner == c.self {
		c.logger.Debug("own message", "peer", source)
		c.deliver(data, peer)
		return
	}

	addr, ok := c.resolver.Resolve(owner)
	if !ok {
		c.health.droppedForeign.Add(1)
		c.foreignDropLog.Do(func() {
			c.logger.Warn("dropping record of unknown node", "owner", owner, "peer", source)
		})
		return
	}

	if err := EncodeEnvelope(frame, Incoming, source); err != nil {
		c.health.malformed.Add(1)
		c.logger.Debug("cannot encode envelope, processing locally", "peer", source, "error", err)
		c.deliver(data, peer)
		return
	}

	if _, err := c.cluster.WriteToUDPAddrPort(frame, addr); err != nil {
		c.health.sendErrors.Add(1)
		c.logger.Warn("forward failed, processing locally",
			"owner", owner,
			"node_addr", addr,
			"peer", source,
			"error", err)
		c.deliver(data, peer)
		return
	}

	c.health.forwarded.Add(1)
	c.logger.Debug("forwarded record", "owner", owner, "node_addr", addr, "peer", source, "len", len(data))
}

func (c *Connector) deliver(data []byte, peer transport.PeerAddr) {
	c.health.localDeliveries.Add(1)
	c.engine.ProcessDatagram(data, peer, c)
}

// SendRecord sends a record emitted by the engine.
//
// Records for a routed peer are tunneled back to the router node when it is
// still a known cluster member and dropped otherwise. A dropped record is not
// an error.
func (c *Connector) SendRecord(rec transport.Record) error {
	dest := rec.Destination
	if !dest.Routed() {
		if _, err := c.public.WriteToUDPAddrPort(rec.Data, dest.Peer); err != nil {
			c.health.sendErrors.Add(1)
			return fmt.Errorf("send record to %s: %w", dest.Peer, err)
		}
		c.health.directRecords.Add(1)
		return nil
	}

	if !c.resolver.IsReachable(dest.Router) {
		c.health.droppedBackward.Add(1)
		c.backwardDropLog.Do(func() {
			c.logger.Warn("dropping record for unreachable router", "peer", dest.Peer, "router", dest.Router)
		})
		return nil
	}

	frame, err := AppendEnvelope(make([]byte, 0, EnvelopeHeaderLen+len(rec.Data)), Outgoing, dest.Peer, rec.Data)
	if err != nil {
		return fmt.Errorf("encode backward envelope: %w", err)
	}
	if _, err := c.cluster.WriteToUDPAddrPort(frame, dest.Router); err != nil {
		c.health.sendErrors.Add(1)
		return fmt.Errorf("send record to %s: %w", dest, err)
	}

	c.health.backwarded.Add(1)
	c.logger.Debug("backwarded record", "peer", dest.Peer, "router", dest.Router, "len", len(rec.Data))
	return nil
}

// handleClusterDatagram processes a datagram received from another node on the
// cluster socket.
func (c *Connector) handleClusterDatagram(frame []byte, from netip.AddrPort) {
	if len(frame) == 0 {
		return
	}

	switch Tag(frame[0]) {
	case TagForwardIncoming, TagForwardOutgoing:
	default:
		if c.membership == nil {
			c.health.malformed.Add(1)
			c.logger.Debug("dropping cluster message", "from", from, "tag", frame[0])
			return
		}
		c.membership.HandleMessage(frame, from)
		return
	}

	env, err := DecodeEnvelope(frame)
	if errors.Is(err, ErrShortEnvelope) {
		return
	}
	if err != nil {
		c.health.malformed.Add(1)
		c.logger.Debug("dropping undecodable envelope", "from", from, "error", err)
		return
	}

	switch env.Direction {
	case Incoming:
		c.health.processedForwarded.Add(1)
		c.deliver(env.Payload, transport.PeerAddr{Peer: env.Source, Router: from})
	case Outgoing:
		if _, err := c.public.WriteToUDPAddrPort(env.Payload, env.Source); err != nil {
			c.health.sendErrors.Add(1)
			c.logger.Debug("send backwarded record failed", "peer", env.Source, "from", from, "error", err)
			return
		}
		c.health.sentBackwarded.Add(1)
	}
}

// serveCluster reads the cluster socket until it is closed. Every worker owns
// its buffer.
func (c *Connector) serveCluster(ctx context.Context) error {
	buf := make([]byte, c.maxSize+EnvelopeHeaderLen)
	for {
		n, from, err := c.cluster.ReadFromUDPAddrPort(buf)
		if err != nil {
			if done(ctx, err) {
				return nil
			}
			c.logger.Warn("cluster receive failed", "error", err)
			continue
		}
		c.handleClusterDatagram(buf[:n], unmapAddrPort(from))
	}
}

// servePublic reads the public socket until it is closed. Datagrams are read
// behind EnvelopeHeaderLen bytes of headroom so forwarding encodes in place.
func (c *Connector) servePublic(ctx context.Context) error {
	buf := make([]byte, EnvelopeHeaderLen+c.maxSize)
	for {
		n, from, err := c.public.ReadFromUDPAddrPort(buf[EnvelopeHeaderLen:])
		if err != nil {
			if done(ctx, err) {
				return nil
			}
			c.logger.Warn("public receive failed", "error", err)
			continue
		}
		c.route(buf[:EnvelopeHeaderLen+n], unmapAddrPort(from))
	}
}

func done(ctx context.Context, err error) bool {
	return errors.Is(err, net.ErrClosed) || ctx.Err() != nil
}
