package usage

import (
	"sync"

	"github.com/mizukilab/agent-starter/models"
)

// DefaultCapacity bounds the journal for a long-running process.
const DefaultCapacity = 1000

// Journal is an append-only, bounded-memory record of past calls with
// ring-buffer eviction. Safe for concurrent use.
type Journal struct {
	mu       sync.RWMutex
	records  []models.UsageRecord
	capacity int
	next     int
	size     int
	appended uint64
}

// NewJournal creates a Journal. capacity <= 0 selects DefaultCapacity.
func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Journal{
		records:  make([]models.UsageRecord, capacity),
		capacity: capacity,
	}
}

// Record appends one entry, evicting the oldest once capacity is reached.
func (j *Journal) Record(rec models.UsageRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.records[j.next] = rec
	j.next = (j.next + 1) % j.capacity
	if j.size < j.capacity {
		j.size++
	}
	j.appended++
}

// Since returns the records appended after the given cursor that are still
// retained, along with the new cursor. Entries evicted by the ring before
// being read are skipped. Used by flush collaborators to drain incrementally.
func (j *Journal) Since(cursor uint64) ([]models.UsageRecord, uint64) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	oldest := j.appended - uint64(j.size)
	start := cursor
	if start < oldest {
		start = oldest
	}
	if start >= j.appended {
		return nil, j.appended
	}

	out := make([]models.UsageRecord, 0, j.appended-start)
	for idx := start; idx < j.appended; idx++ {
		out = append(out, j.records[idx%uint64(j.capacity)])
	}
	return out, j.appended
}

// Len returns the number of retained records.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.size
}

// Snapshot returns the retained records oldest-first.
func (j *Journal) Snapshot() []models.UsageRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]models.UsageRecord, 0, j.size)
	start := 0
	if j.size == j.capacity {
		start = j.next
	}
	for i := 0; i < j.size; i++ {
		out = append(out, j.records[(start+i)%j.capacity])
	}
	return out
}

// Fold aggregates the retained records per provider. The journal is the only
// store; statistics are recomputed on read rather than kept redundantly.
func (j *Journal) Fold() (total int, byProvider map[string]models.ProviderUsage) {
	records := j.Snapshot()

	byProvider = make(map[string]models.ProviderUsage)
	for _, rec := range records {
		usage := byProvider[rec.Provider]
		usage.Requests++
		switch rec.Outcome {
		case models.OutcomeSuccess:
			usage.Tokens += rec.TokensUsed
			usage.Cost += rec.CostIncurred
		case models.OutcomeFailure:
			usage.Failures++
		case models.OutcomeRejected:
			usage.Rejected++
		}
		byProvider[rec.Provider] = usage
	}
	return len(records), byProvider
}
