package breaker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the per-provider breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

const (
	// DefaultFailureThreshold is the consecutive-failure count that opens the breaker.
	DefaultFailureThreshold = 5

	// DefaultCooldown is how long an open breaker stays open before a trial.
	DefaultCooldown = 5 * time.Minute
)

type providerState struct {
	state               State
	consecutiveFailures int
	openedAt            time.Time
	probing             bool
}

// Breaker tracks failures per provider and removes unhealthy providers from
// rotation until a cooldown elapses. The Open -> HalfOpen transition is
// evaluated lazily on access; no background timer runs. HalfOpen admits
// exactly one in-flight probe at a time.
type Breaker struct {
	mu        sync.Mutex
	providers map[string]*providerState
	threshold int
	cooldown  time.Duration
	logger    *zap.Logger
}

// NewBreaker creates a Breaker. Non-positive threshold or cooldown select the defaults.
func NewBreaker(threshold int, cooldown time.Duration, logger *zap.Logger) *Breaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Breaker{
		providers: make(map[string]*providerState),
		threshold: threshold,
		cooldown:  cooldown,
		logger:    logger,
	}
}

// Allow reports whether provider may be attempted now. A true return from a
// HalfOpen breaker claims the single trial slot; the caller must settle it
// with RecordOutcome, or with ReleaseProbe when it skips the provider without
// invoking the backend.
func (b *Breaker) Allow(provider string, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	ps := b.stateLocked(provider)

	if ps.state == StateOpen && now.Sub(ps.openedAt) >= b.cooldown {
		ps.state = StateHalfOpen
		ps.probing = false
		b.logger.Info("breaker half-open, admitting trial",
			zap.String("provider", provider))
	}

	switch ps.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if ps.probing {
			return false
		}
		ps.probing = true
		return true
	default:
		return false
	}
}

// ReleaseProbe returns an unused HalfOpen trial slot.
func (b *Breaker) ReleaseProbe(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ps := b.stateLocked(provider)
	if ps.state == StateHalfOpen {
		ps.probing = false
	}
}

// RecordOutcome advances the state machine after an attempted backend call.
func (b *Breaker) RecordOutcome(provider string, success bool, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ps := b.stateLocked(provider)

	if success {
		if ps.state == StateHalfOpen {
			b.logger.Info("breaker closed after successful trial",
				zap.String("provider", provider))
		}
		ps.state = StateClosed
		ps.consecutiveFailures = 0
		ps.probing = false
		return
	}

	switch ps.state {
	case StateHalfOpen:
		// Trial failed: re-open and restart the cooldown clock.
		ps.state = StateOpen
		ps.openedAt = now
		ps.probing = false
		b.logger.Warn("breaker re-opened after failed trial",
			zap.String("provider", provider))
	case StateClosed:
		ps.consecutiveFailures++
		if ps.consecutiveFailures >= b.threshold {
			ps.state = StateOpen
			ps.openedAt = now
			b.logger.Warn("breaker opened",
				zap.String("provider", provider),
				zap.Int("consecutive_failures", ps.consecutiveFailures))
		}
	}
}

// CurrentState returns the state as observed at now, applying the lazy
// Open -> HalfOpen transition.
func (b *Breaker) CurrentState(provider string, now time.Time) State {
	b.mu.Lock()
	defer b.mu.Unlock()

	ps := b.stateLocked(provider)
	if ps.state == StateOpen && now.Sub(ps.openedAt) >= b.cooldown {
		ps.state = StateHalfOpen
		ps.probing = false
	}
	return ps.state
}

func (b *Breaker) stateLocked(provider string) *providerState {
	ps, ok := b.providers[provider]
	if !ok {
		ps = &providerState{state: StateClosed}
		b.providers[provider] = ps
	}
	return ps
}
