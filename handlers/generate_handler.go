package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mizukilab/agent-starter/models"
	"github.com/mizukilab/agent-starter/services/router"
	"github.com/mizukilab/agent-starter/utils"
)

// GenerateRequest represents the API-level generation request
type GenerateRequest struct {
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	TaskType     string  `json:"task_type,omitempty"`
	Provider     string  `json:"provider,omitempty"`
}

// RouterService defines the routing operations the handlers depend on
type RouterService interface {
	Generate(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResult, error)
	Search(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResult, error)
	UsageStats() models.UsageStats
}

// GenerateHandler handles generation HTTP requests
type GenerateHandler struct {
	service RouterService
	logger  *zap.Logger
}

// NewGenerateHandler creates a new GenerateHandler
func NewGenerateHandler(service RouterService, logger *zap.Logger) *GenerateHandler {
	return &GenerateHandler{
		service: service,
		logger:  logger,
	}
}

// HandleGenerate handles POST /api/v1/generate
func (h *GenerateHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.service.Generate)
}

// HandleSearch handles POST /api/v1/search
func (h *GenerateHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.service.Search)
}

func (h *GenerateHandler) handle(w http.ResponseWriter, r *http.Request, call func(context.Context, *models.GenerationRequest) (*models.GenerationResult, error)) {
	var apiReq GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&apiReq); err != nil {
		h.logger.Warn("failed to parse request body", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body")
		return
	}

	req := &models.GenerationRequest{
		Prompt:            apiReq.Prompt,
		SystemPrompt:      apiReq.SystemPrompt,
		MaxTokens:         apiReq.MaxTokens,
		Temperature:       apiReq.Temperature,
		TaskType:          apiReq.TaskType,
		PreferredProvider: apiReq.Provider,
	}

	result, err := call(r.Context(), req)
	if err != nil {
		if errors.Is(err, router.ErrInvalidRequest) {
			h.logger.Warn("request validation failed",
				zap.String("request_id", req.RequestID),
				zap.Error(err))
			_ = utils.WriteBadRequest(w, err.Error())
			return
		}
		h.logger.Error("generation failed",
			zap.String("request_id", req.RequestID),
			zap.Error(err))
		_ = utils.WriteInternalError(w, "")
		return
	}

	_ = utils.WriteOK(w, result)
}
