package providers

import (
	"fmt"
	"hash/fnv"
)

// MockResponder produces deterministic synthetic responses for dry-run mode.
// Output is a pure function of (provider, task type, prompt), so identical
// input reproduces identical text across runs. It performs no network I/O.
type MockResponder struct{}

// NewMockResponder creates a MockResponder.
func NewMockResponder() *MockResponder {
	return &MockResponder{}
}

// Respond builds the synthetic response for provider and req.
func (m *MockResponder) Respond(provider string, req *InvokeRequest) *InvokeResponse {
	h := fnv.New64a()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(req.TaskType))
	h.Write([]byte{0})
	h.Write([]byte(req.Prompt))
	digest := h.Sum64()

	excerpt := req.Prompt
	if len(excerpt) > 80 {
		excerpt = excerpt[:80]
	}

	taskType := req.TaskType
	if taskType == "" {
		taskType = "generate"
	}

	text := fmt.Sprintf("[dry-run:%s] %s response %016x for prompt: %s",
		provider, taskType, digest, excerpt)

	tokens := len(req.Prompt)/4 + 32
	if req.MaxTokens > 0 && tokens > req.MaxTokens {
		tokens = req.MaxTokens
	}

	return &InvokeResponse{
		Text:       text,
		TokensUsed: tokens,
	}
}
