package budget

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrBudgetExceeded is returned when a reservation would push the day's
// committed plus reserved spend past the daily limit.
var ErrBudgetExceeded = errors.New("daily budget exceeded")

// Reservation is an atomic claim against the daily ceiling, settled by
// Commit or Release exactly once.
type Reservation struct {
	amount  float64
	epoch   string
	settled bool
}

// Amount returns the reserved estimate.
func (r *Reservation) Amount() float64 {
	return r.amount
}

// Tracker is the process-wide daily cost ledger. Reservations count against
// the remaining budget until settled so that two concurrent callers can never
// both claim the last slice of budget. The ledger resets at UTC midnight;
// reservations held across the boundary settle against the epoch that was
// active when they were created.
type Tracker struct {
	mu         sync.Mutex
	dailyLimit float64
	used       float64
	reserved   float64
	epoch      string
	resetAt    time.Time
	now        func() time.Time
	logger     *zap.Logger
}

// NewTracker creates a Tracker with the given daily limit in currency units.
// A zero limit permits no paid calls at all.
func NewTracker(dailyLimit float64, logger *zap.Logger) *Tracker {
	t := &Tracker{
		dailyLimit: dailyLimit,
		now:        time.Now,
		logger:     logger,
	}
	t.rollLocked(t.now())
	return t
}

// WithClock overrides the tracker's time source. Test hook.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
	t.rollLocked(now())
	return t
}

// Reserve claims estimated cost against today's remaining budget. The check
// and the increment happen in one critical section.
func (t *Tracker) Reserve(estimated float64) (*Reservation, error) {
	if estimated < 0 {
		estimated = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if !now.Before(t.resetAt) {
		t.rollLocked(now)
	}

	if t.used+t.reserved+estimated > t.dailyLimit {
		return nil, ErrBudgetExceeded
	}

	t.reserved += estimated
	return &Reservation{amount: estimated, epoch: t.epoch}, nil
}

// Commit finalizes a reservation with the actual cost observed after the
// call. The actual amount may differ from the estimate.
func (t *Tracker) Commit(res *Reservation, actual float64) {
	if res == nil {
		return
	}
	if actual < 0 {
		actual = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if res.settled {
		return
	}
	res.settled = true

	// A reservation from a previous epoch settles against a ledger that has
	// already been reset; it never charges the new day.
	if res.epoch != t.epoch {
		return
	}

	t.reserved -= res.amount
	if t.reserved < 0 {
		t.reserved = 0
	}
	t.used += actual

	if t.used > t.dailyLimit {
		t.logger.Warn("actual cost exceeded estimate at commit",
			zap.Float64("used", t.used),
			zap.Float64("daily_limit", t.dailyLimit))
	}
}

// Release returns a reservation without charging it.
func (t *Tracker) Release(res *Reservation) {
	if res == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if res.settled {
		return
	}
	res.settled = true

	if res.epoch != t.epoch {
		return
	}

	t.reserved -= res.amount
	if t.reserved < 0 {
		t.reserved = 0
	}
}

// Snapshot reports the live ledger values for the current epoch.
func (t *Tracker) Snapshot() (used, limit, remaining float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if !now.Before(t.resetAt) {
		t.rollLocked(now)
	}

	remaining = t.dailyLimit - t.used - t.reserved
	if remaining < 0 {
		remaining = 0
	}
	return t.used, t.dailyLimit, remaining
}

// rollLocked starts a fresh budget epoch keyed by UTC date.
func (t *Tracker) rollLocked(now time.Time) {
	day := now.UTC().Format("2006-01-02")
	if t.epoch == day {
		return
	}
	t.epoch = day
	t.used = 0
	t.reserved = 0
	midnight := now.UTC().Truncate(24 * time.Hour)
	t.resetAt = midnight.Add(24 * time.Hour)

	if t.logger != nil {
		t.logger.Info("budget epoch started",
			zap.String("epoch", day),
			zap.Float64("daily_limit", t.dailyLimit),
			zap.Time("reset_at", t.resetAt))
	}
}
