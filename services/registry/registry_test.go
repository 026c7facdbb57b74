package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testDescriptors() []*Descriptor {
	return []*Descriptor{
		{Name: "anthropic", Enabled: true, ModelID: "claude-3-5-sonnet-20241022", CostPerKiloTokens: 0.015},
		{Name: "gemini", Enabled: true, ModelID: "gemini-1.5-pro", CostPerKiloTokens: 0.005},
		{Name: "perplexity", Enabled: true, ModelID: "llama-3.1-sonar-large-128k-online", TaskAffinity: []string{"search"}},
		{Name: "openai", Enabled: false, ModelID: "gpt-4"},
	}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	reg, err := NewRegistry(testDescriptors(), []string{"anthropic", "gemini", "perplexity", "openai"}, logger)
	require.NoError(t, err)
	return reg
}

func TestNewRegistry_RejectsUnknownPriorityName(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	_, err := NewRegistry(testDescriptors(), []string{"anthropic", "mistral"}, logger)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestNewRegistry_RejectsDuplicateDescriptor(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	descs := []*Descriptor{{Name: "anthropic"}, {Name: "anthropic"}}
	_, err := NewRegistry(descs, []string{"anthropic"}, logger)
	require.Error(t, err)
}

func TestCandidatesFor_PriorityOrder(t *testing.T) {
	reg := newTestRegistry(t)

	candidates, err := reg.CandidatesFor("generate", "")
	require.NoError(t, err)

	names := candidateNames(candidates)
	assert.Equal(t, []string{"anthropic", "gemini", "perplexity"}, names)
}

func TestCandidatesFor_DisabledProviderExcluded(t *testing.T) {
	reg := newTestRegistry(t)

	candidates, err := reg.CandidatesFor("generate", "")
	require.NoError(t, err)

	assert.NotContains(t, candidateNames(candidates), "openai")
}

func TestCandidatesFor_PreferredProviderFirst(t *testing.T) {
	reg := newTestRegistry(t)

	candidates, err := reg.CandidatesFor("generate", "gemini")
	require.NoError(t, err)

	names := candidateNames(candidates)
	assert.Equal(t, []string{"gemini", "anthropic", "perplexity"}, names)
}

func TestCandidatesFor_PreferredDisabledFallsBack(t *testing.T) {
	reg := newTestRegistry(t)

	candidates, err := reg.CandidatesFor("generate", "openai")
	require.NoError(t, err)

	assert.Equal(t, []string{"anthropic", "gemini", "perplexity"}, candidateNames(candidates))
}

func TestCandidatesFor_SearchAffinityPromoted(t *testing.T) {
	reg := newTestRegistry(t)

	candidates, err := reg.CandidatesFor("search", "")
	require.NoError(t, err)

	names := candidateNames(candidates)
	assert.Equal(t, "perplexity", names[0])
	assert.Equal(t, []string{"perplexity", "anthropic", "gemini"}, names)
}

func TestCandidatesFor_SearchOnlyExcludedFromOtherTasks(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	descs := testDescriptors()
	descs[2].SearchOnly = true
	reg, err := NewRegistry(descs, []string{"anthropic", "gemini", "perplexity"}, logger)
	require.NoError(t, err)

	t.Run("excluded for generate", func(t *testing.T) {
		candidates, err := reg.CandidatesFor("generate", "")
		require.NoError(t, err)
		assert.NotContains(t, candidateNames(candidates), "perplexity")
	})

	t.Run("excluded even when preferred", func(t *testing.T) {
		candidates, err := reg.CandidatesFor("generate", "perplexity")
		require.NoError(t, err)
		assert.NotEqual(t, "perplexity", candidates[0].Name)
	})

	t.Run("included for search", func(t *testing.T) {
		candidates, err := reg.CandidatesFor("search", "")
		require.NoError(t, err)
		assert.Equal(t, "perplexity", candidates[0].Name)
	})
}

func TestCandidatesFor_NoProviderAvailable(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	reg, err := NewRegistry([]*Descriptor{{Name: "openai", Enabled: false}}, []string{"openai"}, logger)
	require.NoError(t, err)

	_, err = reg.CandidatesFor("generate", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoProviderAvailable)
}

func TestDescriptor_EstimateCost(t *testing.T) {
	d := &Descriptor{CostPerKiloTokens: 0.015}

	assert.InDelta(t, 0.015, d.EstimateCost(1000), 1e-9)
	assert.InDelta(t, 0.0615, d.EstimateCost(4096), 1e-9)
	assert.Zero(t, d.EstimateCost(0))
	assert.Zero(t, d.EstimateCost(-5))
}

func candidateNames(candidates []*Descriptor) []string {
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.Name)
	}
	return names
}
