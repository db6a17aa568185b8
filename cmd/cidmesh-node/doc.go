// Package main provides the entry point for cidmesh-node.
//
// cidmesh-node receives DTLS records on a public UDP address and routes
// each one to the cluster node that owns its connection id, so that a
// DTLS connection survives address changes and load balancer rebalancing.
//
// Usage:
//
//	cidmesh-node run --config /etc/cidmesh/node.yaml
//	cidmesh-node status
//	cidmesh-node nodes -o json
package main
