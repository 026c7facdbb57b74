package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	anthropicBaseURL    = "https://api.anthropic.com"
	anthropicAPIVersion = "2023-06-01"
)

// AnthropicBackend calls the Anthropic Messages API.
type AnthropicBackend struct {
	config Config
	client *http.Client
}

// NewAnthropicBackend creates the Anthropic adapter.
func NewAnthropicBackend(config Config) *AnthropicBackend {
	config = config.withDefaults(anthropicBaseURL)
	return &AnthropicBackend{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Name returns "anthropic".
func (b *AnthropicBackend) Name() string { return "anthropic" }

// Invoke performs one Messages API call.
func (b *AnthropicBackend) Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResponse, error) {
	start := time.Now()

	system := req.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}

	payload := anthropicRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: req.Prompt}},
	}
	if req.Temperature > 0 {
		payload.Temperature = &req.Temperature
	}

	headers := map[string]string{
		"x-api-key":         b.config.APIKey,
		"anthropic-version": anthropicAPIVersion,
	}

	body, status, err := postJSON(ctx, b.client, b.Name(), b.config, b.config.BaseURL+"/v1/messages", headers, payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, NewProviderError(b.Name(), "API_ERROR", string(body), status, status == http.StatusTooManyRequests, nil)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, NewProviderError(b.Name(), "UNMARSHAL_ERROR", "failed to unmarshal response", status, false, err)
	}
	if len(resp.Content) == 0 {
		return nil, NewProviderError(b.Name(), "EMPTY_RESPONSE", "response contained no content blocks", status, false, nil)
	}

	text := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, NewProviderError(b.Name(), "EMPTY_RESPONSE",
			fmt.Sprintf("no text block among %d content blocks", len(resp.Content)), status, false, nil)
	}

	return &InvokeResponse{
		Text:       text,
		TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens,
		Latency:    time.Since(start),
	}, nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}
