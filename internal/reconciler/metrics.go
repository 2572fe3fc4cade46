package reconciler

import (
	"sort"
	"sync"
	"time"

	"spacegun/internal/metrics"
	"spacegun/pkg/logging"
)

// Metrics tracks snapshot apply outcomes per resource kind. Outcomes are
// also forwarded to the Prometheus collectors when those are configured.
type Metrics struct {
	mu sync.RWMutex

	kinds map[Kind]*kindMetrics
	prom  *metrics.Metrics
}

type kindMetrics struct {
	Kind          Kind
	Outcomes      map[Outcome]int64
	LastAppliedAt time.Time
	LastFailureAt time.Time
}

// NewMetrics creates a Metrics instance. prom may be nil.
func NewMetrics(prom *metrics.Metrics) *Metrics {
	return &Metrics{
		kinds: make(map[Kind]*kindMetrics),
		prom:  prom,
	}
}

func (m *Metrics) getOrCreate(kind Kind) *kindMetrics {
	if km, exists := m.kinds[kind]; exists {
		return km
	}
	km := &kindMetrics{Kind: kind, Outcomes: make(map[Outcome]int64)}
	m.kinds[kind] = km
	return km
}

// Record counts one outcome. Safe on a nil receiver.
func (m *Metrics) Record(kind Kind, outcome Outcome) {
	if m == nil {
		return
	}
	m.mu.Lock()
	km := m.getOrCreate(kind)
	km.Outcomes[outcome]++
	now := time.Now()
	km.LastAppliedAt = now
	if outcome == OutcomeFailed {
		km.LastFailureAt = now
	}
	failures := km.Outcomes[OutcomeFailed]
	m.mu.Unlock()

	m.prom.SnapshotOutcome(string(kind), string(outcome))
	if outcome == OutcomeFailed {
		logging.Debug("ReconcilerMetrics", "%s apply failures: %d", kind, failures)
	}
}

// KindMetricView is a read-only view of the outcomes of one kind.
type KindMetricView struct {
	Kind          Kind              `json:"kind"`
	Outcomes      map[Outcome]int64 `json:"outcomes"`
	LastAppliedAt time.Time         `json:"last_applied_at,omitempty"`
	LastFailureAt time.Time         `json:"last_failure_at,omitempty"`
}

// MetricsSummary aggregates all kinds.
type MetricsSummary struct {
	TotalApplied  int64            `json:"total_applied"`
	TotalFailures int64            `json:"total_failures"`
	FailureRate   float64          `json:"failure_rate"`
	PerKind       []KindMetricView `json:"per_kind"`
}

// GetSummary returns a snapshot of the collected metrics.
func (m *Metrics) GetSummary() MetricsSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var summary MetricsSummary
	for _, km := range m.kinds {
		view := KindMetricView{
			Kind:          km.Kind,
			Outcomes:      make(map[Outcome]int64, len(km.Outcomes)),
			LastAppliedAt: km.LastAppliedAt,
			LastFailureAt: km.LastFailureAt,
		}
		for o, n := range km.Outcomes {
			view.Outcomes[o] = n
			summary.TotalApplied += n
		}
		summary.TotalFailures += km.Outcomes[OutcomeFailed]
		summary.PerKind = append(summary.PerKind, view)
	}
	sort.Slice(summary.PerKind, func(i, j int) bool { return summary.PerKind[i].Kind < summary.PerKind[j].Kind })
	if summary.TotalApplied > 0 {
		summary.FailureRate = float64(summary.TotalFailures) / float64(summary.TotalApplied)
	}
	return summary
}
