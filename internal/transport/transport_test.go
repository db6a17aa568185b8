package transport

import (
	"net/netip"
	"testing"
)

type recordingSender struct {
	records []Record
}

func (s *recordingSender) SendRecord(rec Record) error {
	s.records = append(s.records, rec)
	return nil
}

func TestPeerAddr(t *testing.T) {
	peer := netip.MustParseAddrPort("192.0.2.1:5684")
	router := netip.MustParseAddrPort("10.0.0.1:5784")

	direct := Direct(peer)
	if direct.Routed() {
		t.Error("Direct().Routed() = true")
	}
	if direct.String() != "192.0.2.1:5684" {
		t.Errorf("Direct().String() = %q", direct.String())
	}

	routed := PeerAddr{Peer: peer, Router: router}
	if !routed.Routed() {
		t.Error("Routed() = false with router set")
	}
	if routed.String() != "192.0.2.1:5684 via 10.0.0.1:5784" {
		t.Errorf("String() = %q", routed.String())
	}
}

func TestEchoEngine(t *testing.T) {
	e := NewEchoEngine(nil)
	out := &recordingSender{}
	peer := PeerAddr{
		Peer:   netip.MustParseAddrPort("192.0.2.1:5684"),
		Router: netip.MustParseAddrPort("10.0.0.1:5784"),
	}

	data := []byte("hello")
	e.ProcessDatagram(data, peer, out)
	data[0] = 'j'

	if e.Processed() != 1 {
		t.Errorf("Processed() = %d, want 1", e.Processed())
	}
	if len(out.records) != 1 {
		t.Fatalf("sent %d records, want 1", len(out.records))
	}
	rec := out.records[0]
	if string(rec.Data) != "hello" {
		t.Errorf("reply data = %q, want %q (must not alias input)", rec.Data, "hello")
	}
	if rec.Destination != peer {
		t.Errorf("reply destination = %v, want %v", rec.Destination, peer)
	}
}

func TestEngineFunc(t *testing.T) {
	var got PeerAddr
	var e Engine = EngineFunc(func(_ []byte, peer PeerAddr, _ RecordSender) {
		got = peer
	})
	want := Direct(netip.MustParseAddrPort("[2001:db8::1]:5684"))
	e.ProcessDatagram(nil, want, nil)
	if got != want {
		t.Errorf("EngineFunc peer = %v, want %v", got, want)
	}
}
