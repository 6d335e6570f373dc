package handlers

import (
	"context"
	"net/http"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Backend string `json:"backend"`
	Block   uint64 `json:"block,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HeadProbe reports the backend's latest block
type HeadProbe func(ctx context.Context) (uint64, error)

// HealthHandler handles health check requests
type HealthHandler struct {
	version string
	backend string
	probe   HeadProbe
}

// NewHealthHandler creates a new health handler; backend is "devnet" or "live"
func NewHealthHandler(version, backend string) *HealthHandler {
	return &HealthHandler{version: version, backend: backend}
}

// WithProbe makes the health check fail while the node is unreachable
func (h *HealthHandler) WithProbe(probe HeadProbe) *HealthHandler {
	h.probe = probe
	return h
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: h.version,
		Backend: h.backend,
	}
	if h.probe != nil {
		block, err := h.probe(r.Context())
		if err != nil {
			resp.Status = "degraded"
			resp.Error = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Block = block
	}
	writeJSON(w, http.StatusOK, resp)
}
