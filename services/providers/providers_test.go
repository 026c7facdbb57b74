package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicBackend_Invoke(t *testing.T) {
	var gotReq anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"content": [{"type": "text", "text": "hello from claude"}],
			"usage": {"input_tokens": 12, "output_tokens": 8}
		}`))
	}))
	defer server.Close()

	backend := NewAnthropicBackend(Config{APIKey: "test-key", BaseURL: server.URL})
	resp, err := backend.Invoke(context.Background(), &InvokeRequest{
		Prompt:    "say hello",
		Model:     "claude-3-5-sonnet-20241022",
		MaxTokens: 128,
	})

	require.NoError(t, err)
	assert.Equal(t, "hello from claude", resp.Text)
	assert.Equal(t, 20, resp.TokensUsed)
	assert.Equal(t, "claude-3-5-sonnet-20241022", gotReq.Model)
	assert.Equal(t, DefaultSystemPrompt, gotReq.System)
}

func TestAnthropicBackend_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid api key"}}`))
	}))
	defer server.Close()

	backend := NewAnthropicBackend(Config{APIKey: "bad", BaseURL: server.URL})
	_, err := backend.Invoke(context.Background(), &InvokeRequest{Prompt: "x", Model: "m", MaxTokens: 1})

	require.Error(t, err)
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "anthropic", provErr.Provider)
	assert.Equal(t, http.StatusUnauthorized, provErr.StatusCode)
	assert.False(t, provErr.Retryable)
}

func TestGeminiBackend_Invoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-1.5-pro:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"parts": [{"text": "hello from gemini"}]}}],
			"usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 5, "totalTokenCount": 15}
		}`))
	}))
	defer server.Close()

	backend := NewGeminiBackend(Config{APIKey: "test-key", BaseURL: server.URL})
	resp, err := backend.Invoke(context.Background(), &InvokeRequest{
		Prompt: "say hello",
		Model:  "gemini-1.5-pro",
	})

	require.NoError(t, err)
	assert.Equal(t, "hello from gemini", resp.Text)
	assert.Equal(t, 15, resp.TokensUsed)
}

func TestChatCompletionsBackends_Invoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"choices": [{"message": {"role": "assistant", "content": "hello"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 7, "completion_tokens": 3, "total_tokens": 10}
		}`))
	}))
	defer server.Close()

	cfg := Config{APIKey: "test-key", BaseURL: server.URL}

	t.Run("perplexity", func(t *testing.T) {
		backend := NewPerplexityBackend(cfg)
		assert.Equal(t, "perplexity", backend.Name())

		resp, err := backend.Invoke(context.Background(), &InvokeRequest{Prompt: "hi", Model: "sonar"})
		require.NoError(t, err)
		assert.Equal(t, "hello", resp.Text)
		assert.Equal(t, 10, resp.TokensUsed)
	})

	t.Run("openai", func(t *testing.T) {
		backend := NewOpenAIBackend(cfg)
		assert.Equal(t, "openai", backend.Name())

		resp, err := backend.Invoke(context.Background(), &InvokeRequest{Prompt: "hi", Model: "gpt-4"})
		require.NoError(t, err)
		assert.Equal(t, "hello", resp.Text)
	})
}

func TestPostJSON_RetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "ok"}]}}], "usageMetadata": {"totalTokenCount": 1}}`))
	}))
	defer server.Close()

	backend := NewGeminiBackend(Config{APIKey: "k", BaseURL: server.URL, MaxRetries: 3, RetryDelay: 1})
	resp, err := backend.Invoke(context.Background(), &InvokeRequest{Prompt: "x", Model: "m"})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 3, attempts)
}

func TestMockResponder_Deterministic(t *testing.T) {
	mock := NewMockResponder()
	req := &InvokeRequest{Prompt: "compose a haiku about routers", TaskType: "generate", MaxTokens: 256}

	first := mock.Respond("anthropic", req)
	second := mock.Respond("anthropic", req)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, first.TokensUsed, second.TokensUsed)
}

func TestMockResponder_VariesByInput(t *testing.T) {
	mock := NewMockResponder()
	req := &InvokeRequest{Prompt: "same prompt", TaskType: "generate"}

	byProvider := mock.Respond("anthropic", req)
	otherProvider := mock.Respond("gemini", req)
	assert.NotEqual(t, byProvider.Text, otherProvider.Text)

	otherTask := mock.Respond("anthropic", &InvokeRequest{Prompt: "same prompt", TaskType: "search"})
	assert.NotEqual(t, byProvider.Text, otherTask.Text)
}

func TestMockResponder_RespectsMaxTokens(t *testing.T) {
	mock := NewMockResponder()
	resp := mock.Respond("anthropic", &InvokeRequest{Prompt: string(make([]byte, 4096)), MaxTokens: 100})
	assert.Equal(t, 100, resp.TokensUsed)
}
