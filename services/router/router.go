package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mizukilab/agent-starter/models"
	"github.com/mizukilab/agent-starter/services/breaker"
	"github.com/mizukilab/agent-starter/services/budget"
	"github.com/mizukilab/agent-starter/services/providers"
	"github.com/mizukilab/agent-starter/services/ratelimit"
	"github.com/mizukilab/agent-starter/services/registry"
	"github.com/mizukilab/agent-starter/services/usage"
)

// ErrInvalidRequest is returned for malformed input (empty prompt, negative
// token count). It is the only error Generate surfaces as a Go error;
// provider-level failures come back inside the GenerationResult.
var ErrInvalidRequest = errors.New("invalid generation request")

// ErrAllProvidersExhausted appears in the result when every candidate was
// skipped or failed.
var ErrAllProvidersExhausted = errors.New("all providers exhausted")

// Config carries the router's own knobs; per-provider settings live in the
// registry descriptors.
type Config struct {
	// DryRun substitutes deterministic mock output for every backend call.
	DryRun bool

	// CallTimeout bounds each backend invocation. A timeout is treated the
	// same as a backend failure: release, record, try the next candidate.
	CallTimeout time.Duration
}

// Router decides which provider serves each generation request, applying the
// breaker, rate and budget gates in order and falling back across candidates.
// It owns all mutable routing state and is safe for concurrent use; the only
// blocking operation is the backend call itself.
type Router struct {
	registry *registry.Registry
	limiter  *ratelimit.Limiter
	breaker  *breaker.Breaker
	budget   *budget.Tracker
	journal  *usage.Journal
	backends map[string]providers.Backend
	mock     *providers.MockResponder
	validate *validator.Validate
	config   Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewRouter wires the router from its collaborators. backends maps provider
// name to its adapter; in dry-run mode backends may be empty.
func NewRouter(
	reg *registry.Registry,
	limiter *ratelimit.Limiter,
	brk *breaker.Breaker,
	tracker *budget.Tracker,
	journal *usage.Journal,
	backends map[string]providers.Backend,
	config Config,
	logger *zap.Logger,
) *Router {
	if config.CallTimeout <= 0 {
		config.CallTimeout = 60 * time.Second
	}
	if backends == nil {
		backends = make(map[string]providers.Backend)
	}
	return &Router{
		registry: reg,
		limiter:  limiter,
		breaker:  brk,
		budget:   tracker,
		journal:  journal,
		backends: backends,
		mock:     providers.NewMockResponder(),
		validate: validator.New(),
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the router's time source. Test hook.
func (r *Router) WithClock(now func() time.Time) *Router {
	r.now = now
	return r
}

// Generate routes one request. The returned error is non-nil only for
// malformed input; every provider-level outcome, including total exhaustion,
// is reported inside the result.
func (r *Router) Generate(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResult, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request is nil", ErrInvalidRequest)
	}
	if err := r.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req.EnsureRequestID()

	start := r.now()

	candidates, err := r.registry.CandidatesFor(req.TaskType, req.PreferredProvider)
	if err != nil {
		r.logger.Warn("no candidates for request",
			zap.String("request_id", req.RequestID),
			zap.String("task_type", req.TaskType),
			zap.Error(err))
		return r.failure(req, start, err.Error()), nil
	}

	var skipped []string
	for _, candidate := range candidates {
		result, reason := r.attempt(ctx, req, candidate)
		if result != nil {
			return result, nil
		}
		skipped = append(skipped, fmt.Sprintf("%s: %s", candidate.Name, reason))
	}

	r.logger.Warn("all providers exhausted",
		zap.String("request_id", req.RequestID),
		zap.Strings("attempts", skipped))
	detail := fmt.Sprintf("%v (%s)", ErrAllProvidersExhausted, strings.Join(skipped, "; "))
	return r.failure(req, start, detail), nil
}

// Search routes a request with the search task tag, which promotes providers
// with search affinity and admits search-only providers.
func (r *Router) Search(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResult, error) {
	if req != nil {
		req.TaskType = registry.TaskTypeSearch
	}
	return r.Generate(ctx, req)
}

// attempt runs one candidate through the gates and, when admitted, the
// backend. It returns a terminal result on success, or nil plus the reason
// the candidate was skipped or failed.
func (r *Router) attempt(ctx context.Context, req *models.GenerationRequest, candidate *registry.Descriptor) (*models.GenerationResult, string) {
	now := r.now()

	if !r.breaker.Allow(candidate.Name, now) {
		r.recordRejection(req, candidate.Name, models.SkipBreakerOpen, now)
		return nil, string(models.SkipBreakerOpen)
	}

	if !r.limiter.TryAcquire(candidate.Name, candidate.RateLimitPerMinute, now) {
		r.breaker.ReleaseProbe(candidate.Name)
		r.recordRejection(req, candidate.Name, models.SkipRateLimited, now)
		return nil, string(models.SkipRateLimited)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = candidate.MaxTokens
	}

	// Mock calls cost nothing; reserving zero keeps the ledger path exercised
	// while zero-budget dry-run deployments stay functional.
	estimated := 0.0
	if !r.config.DryRun {
		estimated = candidate.EstimateCost(maxTokens)
	}

	reservation, err := r.budget.Reserve(estimated)
	if err != nil {
		r.breaker.ReleaseProbe(candidate.Name)
		r.recordRejection(req, candidate.Name, models.SkipBudgetExceeded, now)
		return nil, string(models.SkipBudgetExceeded)
	}

	invokeReq := &providers.InvokeRequest{
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		Model:        candidate.ModelID,
		MaxTokens:    maxTokens,
		Temperature:  req.Temperature,
		TaskType:     req.TaskType,
	}

	if r.config.DryRun {
		return r.completeDryRun(req, candidate, reservation, invokeReq), ""
	}

	backend, ok := r.backends[candidate.Name]
	if !ok {
		r.budget.Release(reservation)
		r.breaker.ReleaseProbe(candidate.Name)
		r.logger.Error("no backend wired for enabled provider",
			zap.String("provider", candidate.Name))
		return nil, "backend not configured"
	}

	callCtx, cancel := context.WithTimeout(ctx, r.config.CallTimeout)
	resp, err := backend.Invoke(callCtx, invokeReq)
	cancel()

	if err != nil {
		r.budget.Release(reservation)
		r.breaker.RecordOutcome(candidate.Name, false, r.now())
		r.journal.Record(models.UsageRecord{
			Timestamp: r.now(),
			RequestID: req.RequestID,
			Provider:  candidate.Name,
			TaskType:  req.TaskType,
			Outcome:   models.OutcomeFailure,
			Reason:    err.Error(),
		})
		r.logger.Warn("backend call failed, trying next candidate",
			zap.String("request_id", req.RequestID),
			zap.String("provider", candidate.Name),
			zap.Error(err))
		return nil, fmt.Sprintf("backend failure: %v", err)
	}

	actual := candidate.EstimateCost(resp.TokensUsed)
	r.budget.Commit(reservation, actual)
	r.breaker.RecordOutcome(candidate.Name, true, r.now())

	latencyMs := resp.Latency.Milliseconds()
	r.journal.Record(models.UsageRecord{
		Timestamp:    r.now(),
		RequestID:    req.RequestID,
		Provider:     candidate.Name,
		TaskType:     req.TaskType,
		TokensUsed:   resp.TokensUsed,
		CostIncurred: actual,
		Outcome:      models.OutcomeSuccess,
		LatencyMs:    latencyMs,
	})

	r.logger.Info("request served",
		zap.String("request_id", req.RequestID),
		zap.String("provider", candidate.Name),
		zap.Int("tokens", resp.TokensUsed),
		zap.Float64("cost", actual))

	return &models.GenerationResult{
		RequestID:  req.RequestID,
		Status:     models.StatusSuccess,
		Provider:   candidate.Name,
		Result:     resp.Text,
		Cost:       actual,
		TokensUsed: resp.TokensUsed,
		LatencyMs:  latencyMs,
		Timestamp:  r.now(),
	}, ""
}

// completeDryRun satisfies the reservation with zero actual cost and records
// the synthetic call through the same bookkeeping as a real one.
func (r *Router) completeDryRun(req *models.GenerationRequest, candidate *registry.Descriptor, reservation *budget.Reservation, invokeReq *providers.InvokeRequest) *models.GenerationResult {
	resp := r.mock.Respond(candidate.Name, invokeReq)

	r.budget.Commit(reservation, 0)
	r.breaker.RecordOutcome(candidate.Name, true, r.now())
	r.journal.Record(models.UsageRecord{
		Timestamp:  r.now(),
		RequestID:  req.RequestID,
		Provider:   candidate.Name,
		TaskType:   req.TaskType,
		TokensUsed: resp.TokensUsed,
		Outcome:    models.OutcomeSuccess,
		Reason:     "dry_run",
	})

	return &models.GenerationResult{
		RequestID:  req.RequestID,
		Status:     models.StatusSuccess,
		Provider:   candidate.Name,
		Result:     resp.Text,
		DryRun:     true,
		Cost:       0,
		TokensUsed: resp.TokensUsed,
		Timestamp:  r.now(),
	}
}

// UsageStats folds the journal and the live budget ledger into a snapshot.
// Safe to call concurrently with Generate.
func (r *Router) UsageStats() models.UsageStats {
	total, byProvider := r.journal.Fold()
	used, limit, remaining := r.budget.Snapshot()

	return models.UsageStats{
		TotalRequests:   total,
		ByProvider:      byProvider,
		DailyCostUsed:   used,
		DailyCostLimit:  limit,
		BudgetRemaining: remaining,
		DryRun:          r.config.DryRun,
	}
}

func (r *Router) recordRejection(req *models.GenerationRequest, provider string, reason models.SkipReason, now time.Time) {
	r.journal.Record(models.UsageRecord{
		Timestamp: now,
		RequestID: req.RequestID,
		Provider:  provider,
		TaskType:  req.TaskType,
		Outcome:   models.OutcomeRejected,
		Reason:    string(reason),
	})
	r.logger.Debug("candidate skipped",
		zap.String("request_id", req.RequestID),
		zap.String("provider", provider),
		zap.String("reason", string(reason)))
}

func (r *Router) failure(req *models.GenerationRequest, start time.Time, detail string) *models.GenerationResult {
	return &models.GenerationResult{
		RequestID: req.RequestID,
		Status:    models.StatusFailure,
		DryRun:    r.config.DryRun,
		Error:     detail,
		LatencyMs: r.now().Sub(start).Milliseconds(),
		Timestamp: r.now(),
	}
}
