// Package metrics exposes spacegun's Prometheus collectors.
//
// A Metrics value owns its own registry so tests can create isolated
// instances. All recording methods are safe on a nil receiver, which lets
// components run without metrics wired in.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spacegun"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

// Metrics groups the collectors of the scheduler, the step executor and the
// reconciler.
type Metrics struct {
	registry *prometheus.Registry

	cronRuns         *prometheus.CounterVec
	pipelineRuns     *prometheus.CounterVec
	pipelineSteps    *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	snapshotOutcomes *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cronRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Cron ticks by job and result. Skipped ticks hit an in-flight run.",
		}, []string{"cron", "result"}),
		pipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs by pipeline and result.",
		}, []string{"pipeline", "result"}),
		pipelineSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "steps_total",
			Help:      "Executed pipeline steps by pipeline, step type and result.",
		}, []string{"pipeline", "type", "result"}),
		pipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"pipeline"}),
		snapshotOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "resources_total",
			Help:      "Snapshot apply outcomes by resource kind.",
		}, []string{"kind", "outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Repository cache lookups by cache and result.",
		}, []string{"cache", "result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cronRuns,
		m.pipelineRuns,
		m.pipelineSteps,
		m.pipelineDuration,
		m.snapshotOutcomes,
		m.cacheLookups,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CronRun(cron, result string) {
	if m == nil {
		return
	}
	m.cronRuns.WithLabelValues(cron, result).Inc()
}

func (m *Metrics) PipelineRun(pipeline, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.pipelineRuns.WithLabelValues(pipeline, result).Inc()
	m.pipelineDuration.WithLabelValues(pipeline).Observe(elapsed.Seconds())
}

func (m *Metrics) PipelineStep(pipeline, stepType, result string) {
	if m == nil {
		return
	}
	m.pipelineSteps.WithLabelValues(pipeline, stepType, result).Inc()
}

func (m *Metrics) SnapshotOutcome(kind, outcome string) {
	if m == nil {
		return
	}
	m.snapshotOutcomes.WithLabelValues(kind, outcome).Inc()
}

// CacheLookup records a hit (true) or miss.
func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}
