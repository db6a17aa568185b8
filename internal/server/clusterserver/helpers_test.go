package clusterserver

import (
	"io"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/yndnr/cidmesh-go/internal/transport"
)

var equateAddrPort = cmp.Comparer(func(a, b netip.AddrPort) bool { return a == b })

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type packet struct {
	data []byte
	to   netip.AddrPort
}

// fakeConn records writes. Reads fail as if the socket was closed.
type fakeConn struct {
	local netip.AddrPort

	mu   sync.Mutex
	sent []packet
	err  error
}

func newFakeConn(local string) *fakeConn {
	return &fakeConn{local: netip.MustParseAddrPort(local)}
}

func (c *fakeConn) ReadFromUDPAddrPort([]byte) (int, netip.AddrPort, error) {
	return 0, netip.AddrPort{}, net.ErrClosed
}

func (c *fakeConn) WriteToUDPAddrPort(b []byte, addr netip.AddrPort) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	c.sent = append(c.sent, packet{data: append([]byte(nil), b...), to: addr})
	return len(b), nil
}

func (c *fakeConn) LocalAddr() net.Addr {
	return net.UDPAddrFromAddrPort(c.local)
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) failWith(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *fakeConn) packets() []packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]packet(nil), c.sent...)
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.sent = nil
	c.mu.Unlock()
}

type delivery struct {
	data []byte
	peer transport.PeerAddr
}

// recordingEngine records the datagrams handed to the local engine.
type recordingEngine struct {
	mu  sync.Mutex
	got []delivery
}

func (e *recordingEngine) ProcessDatagram(data []byte, peer transport.PeerAddr, _ transport.RecordSender) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.got = append(e.got, delivery{data: append([]byte(nil), data...), peer: peer})
}

func (e *recordingEngine) deliveries() []delivery {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]delivery(nil), e.got...)
}
