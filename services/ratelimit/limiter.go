package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// Window is the rolling admission window.
	Window = time.Minute

	// DefaultWindowCap bounds the number of timestamps retained per provider
	// regardless of the configured per-minute limit.
	DefaultWindowCap = 100
)

// Limiter is a per-provider bounded sliding-window admission controller.
// All state is in-memory; eviction of expired timestamps happens lazily on
// each check. Safe for concurrent use.
type Limiter struct {
	mu        sync.Mutex
	windows   map[string][]time.Time
	windowCap int
	logger    *zap.Logger
}

// NewLimiter creates a Limiter. windowCap <= 0 selects DefaultWindowCap.
func NewLimiter(windowCap int, logger *zap.Logger) *Limiter {
	if windowCap <= 0 {
		windowCap = DefaultWindowCap
	}
	return &Limiter{
		windows:   make(map[string][]time.Time),
		windowCap: windowCap,
		logger:    logger,
	}
}

// TryAcquire admits one call for provider when fewer than limit calls landed
// within the last Window. Returns false with no side effect when the limit is
// reached; the caller treats that as "try the next candidate". limit <= 0
// means the provider carries no rate limit.
func (l *Limiter) TryAcquire(provider string, limit int, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	window := l.evictLocked(provider, now)

	if limit > 0 && len(window) >= limit {
		l.logger.Debug("rate limit reached",
			zap.String("provider", provider),
			zap.Int("limit", limit))
		return false
	}

	window = append(window, now)
	if len(window) > l.windowCap {
		window = window[len(window)-l.windowCap:]
	}
	l.windows[provider] = window
	return true
}

// InWindow returns the number of admitted calls still inside the window.
func (l *Limiter) InWindow(provider string, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.evictLocked(provider, now))
}

func (l *Limiter) evictLocked(provider string, now time.Time) []time.Time {
	window := l.windows[provider]
	cutoff := now.Add(-Window)

	keep := 0
	for ; keep < len(window); keep++ {
		if window[keep].After(cutoff) {
			break
		}
	}
	if keep > 0 {
		window = window[keep:]
		l.windows[provider] = window
	}
	return window
}
