// Package transport defines the boundary between the cluster connector and the
// secure-transport engine.
package transport

import (
	"log/slog"
	"sync/atomic"
)

// EchoEngine answers every datagram with a record carrying the same bytes.
//
// It stands in for a DTLS engine in the node binary and in tests: the reply
// takes the same path a real handshake reply would take, including the
// tunnel back through a router node.
type EchoEngine struct {
	logger    *slog.Logger
	processed atomic.Uint64
}

// NewEchoEngine creates an echo engine.
func NewEchoEngine(logger *slog.Logger) *EchoEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &EchoEngine{logger: logger}
}

// ProcessDatagram echoes data back to peer.
func (e *EchoEngine) ProcessDatagram(data []byte, peer PeerAddr, out RecordSender) {
	e.processed.Add(1)

	reply := make([]byte, len(data))
	copy(reply, data)

	if err := out.SendRecord(Record{Data: reply, Destination: peer}); err != nil {
		e.logger.Debug("echo reply failed", "peer", peer.String(), "error", err)
	}
}

// Processed returns the number of datagrams processed.
func (e *EchoEngine) Processed() uint64 {
	return e.processed.Load()
}
