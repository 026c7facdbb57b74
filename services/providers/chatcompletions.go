package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const (
	perplexityBaseURL = "https://api.perplexity.ai"
	openaiBaseURL     = "https://api.openai.com/v1"
)

// chatCompletionsBackend is the shared client for providers exposing the
// OpenAI-compatible /chat/completions shape.
type chatCompletionsBackend struct {
	name   string
	config Config
	client *http.Client
}

func newChatCompletionsBackend(name string, config Config, baseURL string) chatCompletionsBackend {
	config = config.withDefaults(baseURL)
	return chatCompletionsBackend{
		name:   name,
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

func (b *chatCompletionsBackend) Name() string { return b.name }

func (b *chatCompletionsBackend) Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResponse, error) {
	start := time.Now()

	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	payload := chatCompletionsRequest{
		Model:    req.Model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		payload.MaxTokens = &req.MaxTokens
	}
	if req.Temperature > 0 {
		payload.Temperature = &req.Temperature
	}

	headers := map[string]string{"Authorization": "Bearer " + b.config.APIKey}

	body, status, err := postJSON(ctx, b.client, b.name, b.config, b.config.BaseURL+"/chat/completions", headers, payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, NewProviderError(b.name, "API_ERROR", string(body), status, status == http.StatusTooManyRequests, nil)
	}

	var resp chatCompletionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, NewProviderError(b.name, "UNMARSHAL_ERROR", "failed to unmarshal response", status, false, err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewProviderError(b.name, "EMPTY_RESPONSE", "response contained no choices", status, false, nil)
	}

	return &InvokeResponse{
		Text:       resp.Choices[0].Message.Content,
		TokensUsed: resp.Usage.TotalTokens,
		Latency:    time.Since(start),
	}, nil
}

// PerplexityBackend calls the Perplexity chat completions API.
type PerplexityBackend struct {
	chatCompletionsBackend
}

// NewPerplexityBackend creates the Perplexity adapter.
func NewPerplexityBackend(config Config) *PerplexityBackend {
	return &PerplexityBackend{newChatCompletionsBackend("perplexity", config, perplexityBaseURL)}
}

// OpenAIBackend calls the OpenAI chat completions API.
type OpenAIBackend struct {
	chatCompletionsBackend
}

// NewOpenAIBackend creates the OpenAI adapter.
func NewOpenAIBackend(config Config) *OpenAIBackend {
	return &OpenAIBackend{newChatCompletionsBackend("openai", config, openaiBaseURL)}
}

type chatCompletionsRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
