package models

import (
	"time"

	"github.com/google/uuid"
)

// GenerationStatus is the terminal status of a generate call.
type GenerationStatus string

const (
	StatusSuccess GenerationStatus = "success"
	StatusFailure GenerationStatus = "failure"
)

// GenerationRequest is the uniform request accepted by the router.
// TaskType is a free-form tag; "search" carries routing affinity.
type GenerationRequest struct {
	RequestID         string  `json:"request_id,omitempty"`
	Prompt            string  `json:"prompt" validate:"required"`
	SystemPrompt      string  `json:"system_prompt,omitempty"`
	MaxTokens         int     `json:"max_tokens,omitempty" validate:"gte=0"`
	Temperature       float64 `json:"temperature,omitempty" validate:"gte=0,lte=2"`
	TaskType          string  `json:"task_type,omitempty"`
	PreferredProvider string  `json:"preferred_provider,omitempty"`
}

// EnsureRequestID stamps a fresh UUID when the caller did not supply one.
func (r *GenerationRequest) EnsureRequestID() {
	if r.RequestID == "" {
		r.RequestID = uuid.New().String()
	}
}

// GenerationResult is the structured outcome returned to callers.
// Provider-level failures never surface as Go errors; they arrive here
// with StatusFailure and a human-readable Error.
type GenerationResult struct {
	RequestID  string           `json:"request_id"`
	Status     GenerationStatus `json:"status"`
	Provider   string           `json:"provider,omitempty"`
	Result     string           `json:"result,omitempty"`
	DryRun     bool             `json:"dry_run"`
	Cost       float64          `json:"cost"`
	TokensUsed int              `json:"tokens_used,omitempty"`
	LatencyMs  int64            `json:"latency_ms"`
	Error      string           `json:"error,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}
