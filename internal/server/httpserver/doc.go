// Package httpserver serves the admin HTTP endpoint of a cidmesh node.
//
// Routes:
//
//	GET /healthz     liveness
//	GET /readyz      ready once the sockets are bound
//	GET /metrics     Prometheus exposition
//	GET /v1/status   node identity, addresses and counters
//	GET /v1/nodes    known remote nodes
//
// Every request gets a ULID request id (X-Request-ID) and panics are
// recovered into a 500 response.
package httpserver
