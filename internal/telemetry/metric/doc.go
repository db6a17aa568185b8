// Package metric exposes node metrics in Prometheus format.
//
//   - prometheus.go: registry with Go, process and build info collectors,
//     and the /metrics handler
//   - collector.go: cidmesh_cluster_* metrics read from the connector
//     counters and the node table on every scrape
package metric
