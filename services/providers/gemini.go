package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiBackend calls the Google Gemini generateContent API.
type GeminiBackend struct {
	config Config
	client *http.Client
}

// NewGeminiBackend creates the Gemini adapter.
func NewGeminiBackend(config Config) *GeminiBackend {
	config = config.withDefaults(geminiBaseURL)
	return &GeminiBackend{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Name returns "gemini".
func (b *GeminiBackend) Name() string { return "gemini" }

// Invoke performs one generateContent call.
func (b *GeminiBackend) Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResponse, error) {
	start := time.Now()

	payload := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: req.Prompt}}},
		},
		GenerationConfig: geminiGenerationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		},
	}
	if req.SystemPrompt != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", b.config.BaseURL, req.Model)
	headers := map[string]string{"x-goog-api-key": b.config.APIKey}

	body, status, err := postJSON(ctx, b.client, b.Name(), b.config, url, headers, payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, NewProviderError(b.Name(), "API_ERROR", string(body), status, status == http.StatusTooManyRequests, nil)
	}

	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, NewProviderError(b.Name(), "UNMARSHAL_ERROR", "failed to unmarshal response", status, false, err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, NewProviderError(b.Name(), "EMPTY_RESPONSE", "response contained no candidates", status, false, nil)
	}

	text := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		text += part.Text
	}

	return &InvokeResponse{
		Text:       text,
		TokensUsed: resp.UsageMetadata.TotalTokenCount,
		Latency:    time.Since(start),
	}, nil
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}
