package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mizukilab/agent-starter/config"
	"github.com/mizukilab/agent-starter/middleware"
	"github.com/mizukilab/agent-starter/repositories/postgres"
	"github.com/mizukilab/agent-starter/services/breaker"
	"github.com/mizukilab/agent-starter/services/budget"
	"github.com/mizukilab/agent-starter/services/providers"
	"github.com/mizukilab/agent-starter/services/ratelimit"
	"github.com/mizukilab/agent-starter/services/registry"
	"github.com/mizukilab/agent-starter/services/router"
	"github.com/mizukilab/agent-starter/services/usage"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger

	// Routing core
	Registry *registry.Registry
	Limiter  *ratelimit.Limiter
	Breaker  *breaker.Breaker
	Budget   *budget.Tracker
	Journal  *usage.Journal
	Router   *router.Router

	// Optional usage sink; nil when DATABASE_URL is not set
	UsageSink *postgres.UsageRepository

	// Auth
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	reg, err := buildRegistry(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider registry: %w", err)
	}
	deps.Registry = reg

	deps.Limiter = ratelimit.NewLimiter(cfg.Router.RateWindowCap, logger)
	deps.Breaker = breaker.NewBreaker(cfg.Router.BreakerThreshold, cfg.Router.BreakerCooldown, logger)
	deps.Budget = budget.NewTracker(cfg.Router.DailyBudgetUSD, logger)
	deps.Journal = usage.NewJournal(cfg.Router.JournalCapacity)

	deps.Router = router.NewRouter(
		deps.Registry,
		deps.Limiter,
		deps.Breaker,
		deps.Budget,
		deps.Journal,
		buildBackends(cfg),
		router.Config{
			DryRun:      cfg.Router.DryRun,
			CallTimeout: cfg.Router.CallTimeout,
		},
		logger,
	)

	deps.AuthMiddleware = middleware.NewAuthMiddleware(cfg.Auth.JWTSecret, logger)

	if cfg.Database.URL != "" {
		sink, err := postgres.Open(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize usage sink: %w", err)
		}
		deps.UsageSink = sink
	}

	logger.Info("all dependencies initialized",
		zap.Bool("dry_run", cfg.Router.DryRun),
		zap.Strings("enabled_providers", deps.Registry.Enabled()),
		zap.Bool("usage_sink", deps.UsageSink != nil),
		zap.Bool("auth", deps.AuthMiddleware.Enabled()))
	return deps, nil
}

// Close releases held resources.
func (d *Dependencies) Close() error {
	if d.UsageSink != nil {
		return d.UsageSink.Close()
	}
	return nil
}

// buildRegistry converts provider configuration into registry descriptors.
// Enabled providers missing from the priority list are appended at the tail
// so an explicit LLM_PRIORITY always wins.
func buildRegistry(cfg *config.Config, logger *zap.Logger) (*registry.Registry, error) {
	priority := append([]string(nil), cfg.Router.Priority...)
	inPriority := make(map[string]bool, len(priority))
	for _, name := range priority {
		inPriority[name] = true
	}
	for _, name := range config.KnownProviders {
		if p, ok := cfg.Providers[name]; ok && p.Enabled && !inPriority[name] {
			priority = append(priority, name)
		}
	}

	descriptors := make([]*registry.Descriptor, 0, len(priority))
	for _, name := range priority {
		p, ok := cfg.Providers[name]
		if !ok {
			return nil, fmt.Errorf("no configuration for provider %q", name)
		}
		descriptors = append(descriptors, &registry.Descriptor{
			Name:               name,
			Enabled:            p.Enabled,
			RateLimitPerMinute: p.RateLimitPerMinute,
			ModelID:            p.Model,
			MaxTokens:          p.MaxTokens,
			APIKey:             p.APIKey,
			BaseURL:            p.BaseURL,
			Timeout:            p.Timeout,
			CostPerKiloTokens:  p.CostPerKiloTokens,
			TaskAffinity:       p.TaskAffinity,
			SearchOnly:         p.SearchOnly,
		})
	}

	return registry.NewRegistry(descriptors, priority, logger)
}

// buildBackends constructs an adapter for every enabled provider. In dry-run
// mode the map is still built; the router simply never calls into it.
func buildBackends(cfg *config.Config) map[string]providers.Backend {
	backends := make(map[string]providers.Backend)
	for name, p := range cfg.Providers {
		if !p.Enabled {
			continue
		}
		pc := providers.Config{
			APIKey:     p.APIKey,
			BaseURL:    p.BaseURL,
			Timeout:    p.Timeout,
			MaxRetries: p.MaxRetries,
		}
		switch name {
		case "anthropic":
			backends[name] = providers.NewAnthropicBackend(pc)
		case "gemini":
			backends[name] = providers.NewGeminiBackend(pc)
		case "perplexity":
			backends[name] = providers.NewPerplexityBackend(pc)
		case "openai":
			backends[name] = providers.NewOpenAIBackend(pc)
		}
	}
	return backends
}
