package models

import "time"

// UsageOutcome classifies how a provider attempt ended.
type UsageOutcome string

const (
	OutcomeSuccess  UsageOutcome = "success"
	OutcomeFailure  UsageOutcome = "failure"
	OutcomeRejected UsageOutcome = "rejected"
)

// SkipReason explains why a candidate was rejected without a backend call.
type SkipReason string

const (
	SkipBreakerOpen    SkipReason = "breaker_open"
	SkipRateLimited    SkipReason = "rate_limited"
	SkipBudgetExceeded SkipReason = "budget_exceeded"
)

// UsageRecord is one entry in the router's in-memory usage journal.
type UsageRecord struct {
	Timestamp    time.Time    `json:"timestamp" db:"timestamp"`
	RequestID    string       `json:"request_id" db:"request_id"`
	Provider     string       `json:"provider" db:"provider"`
	TaskType     string       `json:"task_type" db:"task_type"`
	TokensUsed   int          `json:"tokens_used" db:"tokens_used"`
	CostIncurred float64      `json:"cost_incurred" db:"cost_incurred"`
	Outcome      UsageOutcome `json:"outcome" db:"outcome"`
	Reason       string       `json:"reason,omitempty" db:"reason"`
	LatencyMs    int64        `json:"latency_ms" db:"latency_ms"`
}

// ProviderUsage aggregates journal entries for one provider.
type ProviderUsage struct {
	Requests int     `json:"requests"`
	Tokens   int     `json:"tokens"`
	Cost     float64 `json:"cost"`
	Failures int     `json:"failures"`
	Rejected int     `json:"rejected"`
}

// UsageStats is the read-only snapshot exposed to collaborators.
type UsageStats struct {
	TotalRequests   int                      `json:"total_requests"`
	ByProvider      map[string]ProviderUsage `json:"by_provider"`
	DailyCostUsed   float64                  `json:"daily_cost_used"`
	DailyCostLimit  float64                  `json:"daily_cost_limit"`
	BudgetRemaining float64                  `json:"budget_remaining"`
	DryRun          bool                     `json:"dry_run"`
}
