package registry

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNoProviderAvailable is returned when no enabled provider matches the request.
	ErrNoProviderAvailable = errors.New("no provider available")

	// ErrUnknownProvider is returned at construction for a priority entry
	// that does not match any configured descriptor.
	ErrUnknownProvider = errors.New("unknown provider")
)

// TaskTypeSearch is the task tag that carries routing affinity.
const TaskTypeSearch = "search"

// Descriptor describes one configured LLM provider. The set is built once at
// startup and is read-mostly afterwards; Enabled may be forced off by policy.
type Descriptor struct {
	Name               string
	Enabled            bool
	PriorityRank       int
	RateLimitPerMinute int
	ModelID            string
	MaxTokens          int
	APIKey             string
	BaseURL            string
	Timeout            time.Duration

	// CostPerKiloTokens drives the pre-call cost estimate. The pricing curve
	// is a configuration knob, not a property of the router.
	CostPerKiloTokens float64

	// TaskAffinity lists task types this provider is promoted for.
	// SearchOnly restricts the provider to the search task entirely.
	TaskAffinity []string
	SearchOnly   bool
}

// EstimateCost converts a token count into an estimated call cost.
func (d *Descriptor) EstimateCost(tokens int) float64 {
	if tokens <= 0 {
		return 0
	}
	return float64(tokens) / 1000.0 * d.CostPerKiloTokens
}

// HasAffinity reports whether the descriptor declares affinity for taskType.
func (d *Descriptor) HasAffinity(taskType string) bool {
	for _, t := range d.TaskAffinity {
		if t == taskType {
			return true
		}
	}
	return false
}

// Registry is the static provider catalog plus the configured priority order.
type Registry struct {
	descriptors map[string]*Descriptor
	priority    []string
	logger      *zap.Logger
}

// NewRegistry builds the catalog from descriptors and an ordered priority
// list. Unknown names in the priority list are rejected here, at startup,
// rather than at call time.
func NewRegistry(descriptors []*Descriptor, priority []string, logger *zap.Logger) (*Registry, error) {
	byName := make(map[string]*Descriptor, len(descriptors))
	for _, d := range descriptors {
		if d.Name == "" {
			return nil, errors.New("descriptor name cannot be empty")
		}
		if _, exists := byName[d.Name]; exists {
			return nil, fmt.Errorf("duplicate provider %q", d.Name)
		}
		byName[d.Name] = d
	}

	for rank, name := range priority {
		d, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q in priority list", ErrUnknownProvider, name)
		}
		d.PriorityRank = rank
	}

	logger.Info("provider registry initialized",
		zap.Int("providers", len(byName)),
		zap.Strings("priority", priority))

	return &Registry{
		descriptors: byName,
		priority:    priority,
		logger:      logger,
	}, nil
}

// Get returns the descriptor for name, if configured.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	d, ok := r.descriptors[name]
	return d, ok
}

// Enabled returns the names of all enabled providers in priority order.
func (r *Registry) Enabled() []string {
	names := make([]string, 0, len(r.priority))
	for _, name := range r.priority {
		if d := r.descriptors[name]; d != nil && d.Enabled {
			names = append(names, name)
		}
	}
	return names
}

// CandidatesFor resolves the ordered candidate list for a request.
// Ordering: preferred provider first when enabled and eligible, then
// task-affinity promotions, then remaining enabled providers by rank.
// A search-only provider is structurally excluded from non-search tasks.
func (r *Registry) CandidatesFor(taskType, preferred string) ([]*Descriptor, error) {
	eligible := make([]*Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		if !d.Enabled {
			continue
		}
		if d.SearchOnly && taskType != TaskTypeSearch {
			continue
		}
		eligible = append(eligible, d)
	}

	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].PriorityRank < eligible[j].PriorityRank
	})

	ordered := make([]*Descriptor, 0, len(eligible))
	picked := make(map[string]bool, len(eligible))

	if preferred != "" {
		for _, d := range eligible {
			if d.Name == preferred {
				ordered = append(ordered, d)
				picked[d.Name] = true
				break
			}
		}
		if len(ordered) == 0 {
			r.logger.Warn("preferred provider not eligible, falling back",
				zap.String("provider", preferred),
				zap.String("task_type", taskType))
		}
	}

	if taskType == TaskTypeSearch {
		for _, d := range eligible {
			if !picked[d.Name] && d.HasAffinity(TaskTypeSearch) {
				ordered = append(ordered, d)
				picked[d.Name] = true
			}
		}
	}

	for _, d := range eligible {
		if !picked[d.Name] {
			ordered = append(ordered, d)
		}
	}

	if len(ordered) == 0 {
		return nil, fmt.Errorf("%w for task type %q", ErrNoProviderAvailable, taskType)
	}
	return ordered, nil
}
