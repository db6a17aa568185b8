// Package transport defines the boundary between the cluster connector and the
// secure-transport engine.
package transport

import (
	"net"
	"net/netip"
)

// PeerAddr is the address of a remote peer.
//
// When Router is valid the datagrams of the peer were forwarded by the cluster
// node listening on Router, and replies must be tunneled back through it.
type PeerAddr struct {
	Peer   netip.AddrPort
	Router netip.AddrPort
}

// Direct returns the address of a peer reached without a router.
func Direct(peer netip.AddrPort) PeerAddr {
	return PeerAddr{Peer: peer}
}

// Routed reports whether traffic of the peer is tunneled through a router node.
func (a PeerAddr) Routed() bool {
	return a.Router.IsValid()
}

// String returns "peer" or "peer via router".
func (a PeerAddr) String() string {
	if a.Routed() {
		return a.Peer.String() + " via " + a.Router.String()
	}
	return a.Peer.String()
}

// Record is an outbound record emitted by the engine.
type Record struct {
	// Data is the serialized record.
	Data []byte

	// Destination is the peer the record is sent to.
	Destination PeerAddr
}

// RecordSender sends records on behalf of the engine.
type RecordSender interface {
	SendRecord(rec Record) error
}

// Engine is the secure-transport engine behind the connector.
type Engine interface {
	// ProcessDatagram processes a datagram received from peer. Replies are
	// emitted through out. data is only valid until ProcessDatagram returns.
	ProcessDatagram(data []byte, peer PeerAddr, out RecordSender)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(data []byte, peer PeerAddr, out RecordSender)

// ProcessDatagram calls f.
func (f EngineFunc) ProcessDatagram(data []byte, peer PeerAddr, out RecordSender) {
	f(data, peer, out)
}

// PacketConn is the subset of *net.UDPConn used by the connector.
type PacketConn interface {
	ReadFromUDPAddrPort(b []byte) (int, netip.AddrPort, error)
	WriteToUDPAddrPort(b []byte, addr netip.AddrPort) (int, error)
	LocalAddr() net.Addr
	Close() error
}

// ListenUDP binds a UDP socket on addr.
func ListenUDP(addr netip.AddrPort) (*net.UDPConn, error) {
	return net.ListenUDP("udp", net.UDPAddrFromAddrPort(addr))
}

// LocalAddrPort returns the bound address of conn.
func LocalAddrPort(conn PacketConn) netip.AddrPort {
	var ap netip.AddrPort
	if ua, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		ap = ua.AddrPort()
	} else {
		ap, _ = netip.ParseAddrPort(conn.LocalAddr().String())
	}
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}
