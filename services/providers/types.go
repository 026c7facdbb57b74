package providers

import (
	"context"
	"time"
)

// Backend is the single polymorphic capability the router invokes.
// Implementations wrap one provider's HTTP API; the router never branches on
// provider identity beyond registry lookup.
type Backend interface {
	// Name returns the provider name (e.g. "anthropic", "gemini").
	Name() string

	// Invoke performs one generation call. Cancellation and the per-call
	// timeout arrive through ctx.
	Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResponse, error)
}

// InvokeRequest is the uniform payload handed to a backend.
type InvokeRequest struct {
	Prompt       string
	SystemPrompt string
	Model        string
	MaxTokens    int
	Temperature  float64
	TaskType     string
}

// InvokeResponse is the uniform backend result.
type InvokeResponse struct {
	Text       string
	TokensUsed int
	Latency    time.Duration
}

// Config holds the per-provider client settings supplied by configuration.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultSystemPrompt is sent when the caller supplies none.
const DefaultSystemPrompt = "You are a helpful AI assistant."

func (c Config) withDefaults(baseURL string) Config {
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = time.Second
	}
	return c
}
