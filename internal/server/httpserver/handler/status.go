package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/cidmesh-go/internal/infra/buildinfo"
)

// handleStatus handles GET /v1/status.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, StatusResponse{
		NodeID:      uint32(h.node.NodeID()),
		Version:     buildinfo.Version,
		PublicAddr:  h.node.PublicAddr().String(),
		ClusterAddr: h.node.ClusterAddr().String(),
		Ready:       h.node.Connector() != nil,
		Nodes:       len(h.node.Nodes()),
		Counters:    NewCounters(h.node.Health().Snapshot()),
		Time:        time.Now().UTC(),
	})
}

// handleNodes handles GET /v1/nodes.
func (h *Handler) handleNodes(w http.ResponseWriter, r *http.Request) {
	nodes := h.node.Nodes()
	resp := NodesResponse{
		Self:  uint32(h.node.NodeID()),
		Nodes: make([]NodeInfo, 0, len(nodes)),
	}
	for _, n := range nodes {
		resp.Nodes = append(resp.Nodes, NewNodeInfo(n))
	}
	h.writeJSON(w, http.StatusOK, resp)
}
