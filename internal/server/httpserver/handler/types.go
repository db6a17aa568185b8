package handler

import (
	"time"

	"github.com/yndnr/cidmesh-go/internal/server/clusterserver"
)

// StatusResponse is the body of GET /v1/status.
type StatusResponse struct {
	NodeID      uint32    `json:"node_id" yaml:"node_id"`
	Version     string    `json:"version" yaml:"version"`
	PublicAddr  string    `json:"public_addr" yaml:"public_addr"`
	ClusterAddr string    `json:"cluster_addr" yaml:"cluster_addr"`
	Ready       bool      `json:"ready" yaml:"ready"`
	Nodes       int       `json:"nodes" yaml:"nodes"`
	Counters    Counters  `json:"counters" yaml:"counters"`
	Time        time.Time `json:"time" yaml:"time"`
}

// Counters mirrors clusterserver.HealthSnapshot.
type Counters struct {
	Forwarded          uint64 `json:"forwarded" yaml:"forwarded"`
	DroppedForeign     uint64 `json:"dropped_foreign" yaml:"dropped_foreign"`
	Backwarded         uint64 `json:"backwarded" yaml:"backwarded"`
	DroppedBackward    uint64 `json:"dropped_backward" yaml:"dropped_backward"`
	ProcessedForwarded uint64 `json:"processed_forwarded" yaml:"processed_forwarded"`
	SentBackwarded     uint64 `json:"sent_backwarded" yaml:"sent_backwarded"`
	MembershipSent     uint64 `json:"membership_sent" yaml:"membership_sent"`
	MembershipReceived uint64 `json:"membership_received" yaml:"membership_received"`

	ReceivedDatagrams uint64 `json:"received_datagrams" yaml:"received_datagrams"`
	LocalDeliveries   uint64 `json:"local_deliveries" yaml:"local_deliveries"`
	DirectRecords     uint64 `json:"direct_records" yaml:"direct_records"`
	Malformed         uint64 `json:"malformed" yaml:"malformed"`
	SendErrors        uint64 `json:"send_errors" yaml:"send_errors"`
}

// NewCounters converts a health snapshot.
func NewCounters(s clusterserver.HealthSnapshot) Counters {
	return Counters(s)
}

// NodeInfo describes a remote node in GET /v1/nodes.
type NodeInfo struct {
	ID       uint32     `json:"id" yaml:"id"`
	Address  string     `json:"address" yaml:"address"`
	LastSeen *time.Time `json:"last_seen,omitempty" yaml:"last_seen,omitempty"`
}

// NodesResponse is the body of GET /v1/nodes.
type NodesResponse struct {
	Self  uint32     `json:"self" yaml:"self"`
	Nodes []NodeInfo `json:"nodes" yaml:"nodes"`
}

// NewNodeInfo converts a node table entry. Static nodes have no LastSeen.
func NewNodeInfo(n clusterserver.Node) NodeInfo {
	info := NodeInfo{
		ID:      uint32(n.ID),
		Address: n.Address.String(),
	}
	if !n.LastSeen.IsZero() {
		seen := n.LastSeen.UTC()
		info.LastSeen = &seen
	}
	return info
}
