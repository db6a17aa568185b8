package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/cidmesh-go/internal/server/clusterserver"
)

// HealthSource is implemented by *clusterserver.Server.
type HealthSource interface {
	Health() *clusterserver.Health
	Nodes() []clusterserver.Node
}

type counterDesc struct {
	desc  *prometheus.Desc
	value func(clusterserver.HealthSnapshot) uint64
}

// HealthCollector reports the connector counters and the number of known
// nodes.
type HealthCollector struct {
	source   HealthSource
	counters []counterDesc
	nodes    *prometheus.Desc
}

// NewHealthCollector creates a collector reading from source on every
// scrape.
func NewHealthCollector(source HealthSource) *HealthCollector {
	counter := func(name, help string, value func(clusterserver.HealthSnapshot) uint64) counterDesc {
		return counterDesc{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(Namespace, "cluster", name), help, nil, nil),
			value: value,
		}
	}

	return &HealthCollector{
		source: source,
		counters: []counterDesc{
			counter("forwarded_total", "Records forwarded to the owning node.",
				func(s clusterserver.HealthSnapshot) uint64 { return s.Forwarded }),
			counter("dropped_foreign_total", "Records dropped because their owner is unknown.",
				func(s clusterserver.HealthSnapshot) uint64 { return s.DroppedForeign }),
			counter("backwarded_total", "Outgoing records sent back to the receiving node.",
				func(s clusterserver.HealthSnapshot) uint64 { return s.Backwarded }),
			counter("dropped_backward_total", "Outgoing records dropped because the receiving node is unreachable.",
				func(s clusterserver.HealthSnapshot) uint64 { return s.DroppedBackward }),
			counter("processed_forwarded_total", "Forwarded records processed by this node.",
				func(s clusterserver.HealthSnapshot) uint64 { return s.ProcessedForwarded }),
			counter("sent_backwarded_total", "Backwarded records sent to peers by this node.",
				func(s clusterserver.HealthSnapshot) uint64 { return s.SentBackwarded }),
			counter("membership_sent_total", "Membership messages sent.",
				func(s clusterserver.HealthSnapshot) uint64 { return s.MembershipSent }),
			counter("membership_received_total", "Membership messages received.",
				func(s clusterserver.HealthSnapshot) uint64 { return s.MembershipReceived }),
			counter("received_datagrams_total", "Datagrams received on the public socket.",
				func(s clusterserver.HealthSnapshot) uint64 { return s.ReceivedDatagrams }),
			counter("local_deliveries_total", "Datagrams processed by the local engine.",
				func(s clusterserver.HealthSnapshot) uint64 { return s.LocalDeliveries }),
			counter("direct_records_total", "Records sent directly to peers.",
				func(s clusterserver.HealthSnapshot) uint64 { return s.DirectRecords }),
			counter("malformed_total", "Unreadable record CIDs on the public socket, unencodable envelopes and malformed cluster datagrams.",
				func(s clusterserver.HealthSnapshot) uint64 { return s.Malformed }),
			counter("send_errors_total", "Failed socket writes.",
				func(s clusterserver.HealthSnapshot) uint64 { return s.SendErrors }),
		},
		nodes: prometheus.NewDesc(prometheus.BuildFQName(Namespace, "cluster", "nodes"),
			"Remote nodes currently known.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *HealthCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, cd := range c.counters {
		ch <- cd.desc
	}
	ch <- c.nodes
}

// Collect implements prometheus.Collector.
func (c *HealthCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.source.Health().Snapshot()
	for _, cd := range c.counters {
		ch <- prometheus.MustNewConstMetric(cd.desc, prometheus.CounterValue, float64(cd.value(snap)))
	}
	ch <- prometheus.MustNewConstMetric(c.nodes, prometheus.GaugeValue, float64(len(c.source.Nodes())))
}
