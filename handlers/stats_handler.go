package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mizukilab/agent-starter/utils"
)

// StatsHandler serves the aggregated usage view
type StatsHandler struct {
	service RouterService
	logger  *zap.Logger
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(service RouterService, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		service: service,
		logger:  logger,
	}
}

// HandleUsage handles GET /api/v1/usage
func (h *StatsHandler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, h.service.UsageStats())
}
