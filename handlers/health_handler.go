package handlers

import (
	"net/http"
	"time"

	"github.com/mizukilab/agent-starter/utils"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	DryRun    bool   `json:"dry_run"`
	Timestamp string `json:"timestamp"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	dryRun bool
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(dryRun bool) *HealthHandler {
	return &HealthHandler{dryRun: dryRun}
}

// HandleHealth handles GET /healthz
// Always returns 200 if the process is running.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		DryRun:    h.dryRun,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteJSON(w, http.StatusOK, response)
}
