package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/yndnr/cidmesh-go/internal/server/clusterserver"
	"github.com/yndnr/cidmesh-go/pkg/cid"
)

// NodeStatus is implemented by *clusterserver.Server.
type NodeStatus interface {
	NodeID() cid.NodeID
	PublicAddr() netip.AddrPort
	ClusterAddr() netip.AddrPort
	Nodes() []clusterserver.Node
	Health() *clusterserver.Health
	Connector() *clusterserver.Connector
}

// Handler serves the admin API.
type Handler struct {
	node   NodeStatus
	logger *slog.Logger
	mux    *http.ServeMux
}

// New creates a Handler for node.
func New(node NodeStatus, logger *slog.Logger) *Handler {
	h := &Handler{
		node:   node,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /healthz", h.handleHealth)
	h.mux.HandleFunc("GET /readyz", h.handleReady)
	h.mux.HandleFunc("GET /v1/status", h.handleStatus)
	h.mux.HandleFunc("GET /v1/nodes", h.handleNodes)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
