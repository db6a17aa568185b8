// Package clusterserver provides health accounting for the cluster connector.
package clusterserver

import "sync/atomic"

// Health holds the traffic counters of a connector.
//
// Two counter sets are always present: the cluster set tracks forwarding and
// membership traffic, the generic set tracks datagrams and records that took
// the ordinary path. Counters only grow.
type Health struct {
	// cluster
	forwarded          atomic.Uint64
	droppedForeign     atomic.Uint64
	backwarded         atomic.Uint64
	droppedBackward    atomic.Uint64
	processedForwarded atomic.Uint64
	sentBackwarded     atomic.Uint64
	membershipSent     atomic.Uint64
	membershipReceived atomic.Uint64

	// generic
	receivedDatagrams atomic.Uint64
	localDeliveries   atomic.Uint64
	directRecords     atomic.Uint64
	malformed         atomic.Uint64
	sendErrors        atomic.Uint64
}

// HealthSnapshot is a point in time copy of the Health counters.
type HealthSnapshot struct {
	Forwarded          uint64
	DroppedForeign     uint64
	Backwarded         uint64
	DroppedBackward    uint64
	ProcessedForwarded uint64
	SentBackwarded     uint64
	MembershipSent     uint64
	MembershipReceived uint64

	ReceivedDatagrams uint64
	LocalDeliveries   uint64
	DirectRecords     uint64
	Malformed         uint64
	SendErrors        uint64
}

// Snapshot returns the current counter values.
func (h *Health) Snapshot() HealthSnapshot {
	return HealthSnapshot{
		Forwarded:          h.forwarded.Load(),
		DroppedForeign:     h.droppedForeign.Load(),
		Backwarded:         h.backwarded.Load(),
		DroppedBackward:    h.droppedBackward.Load(),
		ProcessedForwarded: h.processedForwarded.Load(),
		SentBackwarded:     h.sentBackwarded.Load(),
		MembershipSent:     h.membershipSent.Load(),
		MembershipReceived: h.membershipReceived.Load(),
		ReceivedDatagrams:  h.receivedDatagrams.Load(),
		LocalDeliveries:    h.localDeliveries.Load(),
		DirectRecords:      h.directRecords.Load(),
		Malformed:          h.malformed.Load(),
		SendErrors:         h.sendErrors.Load(),
	}
}
