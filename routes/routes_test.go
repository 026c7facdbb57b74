package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mizukilab/agent-starter/app"
	"github.com/mizukilab/agent-starter/config"
	"github.com/mizukilab/agent-starter/models"
)

func newTestServer(t *testing.T, jwtSecret string) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			WriteTimeout: time.Second,
		},
		Router: config.RouterConfig{
			Priority:         []string{"anthropic", "gemini", "perplexity"},
			DryRun:           true,
			DailyBudgetUSD:   10.0,
			CallTimeout:      time.Second,
			BreakerThreshold: 5,
			BreakerCooldown:  5 * time.Minute,
		},
		Providers: map[string]config.ProviderConfig{
			"anthropic": {
				APIKey:             "sk-ant-test",
				Model:              "claude-3-5-sonnet-20241022",
				MaxTokens:          4096,
				RateLimitPerMinute: 50,
				CostPerKiloTokens:  0.015,
				Enabled:            true,
			},
			"gemini":     {},
			"perplexity": {},
			"openai":     {},
		},
		Auth: config.AuthConfig{JWTSecret: jwtSecret},
	}

	logger, _ := zap.NewDevelopment()
	deps, err := app.NewDependencies(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { deps.Close() })

	srv := httptest.NewServer(SetupRoutes(deps))
	t.Cleanup(srv.Close)
	return srv
}

func TestRoutes_HealthIsPublic(t *testing.T) {
	srv := newTestServer(t, "some-secret")

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoutes_GenerateDryRun(t *testing.T) {
	srv := newTestServer(t, "")

	resp, err := http.Post(srv.URL+"/api/v1/generate", "application/json",
		strings.NewReader(`{"prompt":"hello world"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Data models.GenerationResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, models.StatusSuccess, envelope.Data.Status)
	assert.Equal(t, "anthropic", envelope.Data.Provider)
	assert.True(t, envelope.Data.DryRun)
	assert.Zero(t, envelope.Data.Cost)
}

func TestRoutes_UsageReflectsTraffic(t *testing.T) {
	srv := newTestServer(t, "")

	resp, err := http.Post(srv.URL+"/api/v1/generate", "application/json",
		strings.NewReader(`{"prompt":"hello world"}`))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/v1/usage")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Data models.UsageStats `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, 1, envelope.Data.TotalRequests)
	assert.True(t, envelope.Data.DryRun)
}

func TestRoutes_APIRequiresTokenWhenConfigured(t *testing.T) {
	srv := newTestServer(t, "some-secret")

	resp, err := http.Post(srv.URL+"/api/v1/generate", "application/json",
		strings.NewReader(`{"prompt":"hello world"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
