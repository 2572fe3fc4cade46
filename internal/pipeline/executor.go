package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"spacegun/internal/clock"
	"spacegun/internal/domain"
	"spacegun/internal/metrics"
	"spacegun/internal/reconciler"
	"spacegun/pkg/logging"

	"github.com/google/uuid"
)

const subsystem = "PipelineExecutor"

// SnapshotRestorer applies a snapshot with explicit reconciler options.
// Rollback needs IgnoreRevision, which the plain ClusterRepository call does
// not expose.
type SnapshotRestorer interface {
	RestoreSnapshot(ctx context.Context, group domain.ServerGroup, snapshot *domain.ClusterSnapshot, opts reconciler.ApplyOptions) (*reconciler.ApplyReport, error)
}

// Dependencies are the collaborators a run reaches through.
type Dependencies struct {
	Clusters  domain.ClusterRepository
	Images    domain.ImageRepository
	Events    domain.EventRepository
	Snapshots SnapshotRestorer
}

// Executor runs pipelines. It holds no per-run state and can run several
// pipelines concurrently.
type Executor struct {
	deps       Dependencies
	httpClient *http.Client
	clock      clock.Clock
	metrics    *metrics.Metrics
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithHTTPClient sets the client used by clusterProbe steps.
func WithHTTPClient(c *http.Client) ExecutorOption {
	return func(e *Executor) { e.httpClient = c }
}

// WithClock sets the clock used for timestamps.
func WithClock(c clock.Clock) ExecutorOption {
	return func(e *Executor) { e.clock = c }
}

// WithMetrics records run and step counters.
func WithMetrics(m *metrics.Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor returns an Executor using deps.
func NewExecutor(deps Dependencies, opts ...ExecutorOption) *Executor {
	e := &Executor{deps: deps, httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(e)
	}
	e.clock = clock.OrReal(e.clock)
	return e
}

// Run executes p from its start step, following onSuccess or onFailure after
// each step until the chosen edge is empty. It always returns a result; the
// run failed when the last executed step failed.
func (e *Executor) Run(ctx context.Context, p *PipelineDescription) *RunResult {
	result := &RunResult{
		RunID:     uuid.New().String(),
		Pipeline:  p.Name,
		StartedAt: e.clock.Now(),
		Steps:     []StepRecord{},
	}
	state := &runState{pipeline: p}
	logging.Info(subsystem, "Starting run %s of pipeline %s", result.RunID, p.Name)

	var lastErr error
	next := p.Start
	for next != "" {
		step, ok := p.Step(next)
		if !ok {
			lastErr = fmt.Errorf("pipeline %s references unknown step %s", p.Name, next)
			break
		}
		if err := ctx.Err(); err != nil {
			lastErr = fmt.Errorf("run of pipeline %s cancelled before step %s: %w", p.Name, step.Name, err)
			break
		}

		record := StepRecord{Name: step.Name, Type: step.Type, StartedAt: e.clock.Now()}
		logging.Debug(subsystem, "Run %s: executing step %s (%s)", result.RunID, step.Name, step.Type)
		err := e.execute(ctx, step, state)
		record.Duration = e.clock.Now().Sub(record.StartedAt)

		state.lastError = err
		lastErr = err
		if err != nil {
			record.Outcome = StepFailed
			record.Error = err.Error()
			e.metrics.PipelineStep(p.Name, string(step.Type), metrics.ResultFailure)
			logging.Warn(subsystem, "Run %s: step %s failed: %v", result.RunID, step.Name, err)
			next = step.OnFailure
		} else {
			record.Outcome = StepSucceeded
			e.metrics.PipelineStep(p.Name, string(step.Type), metrics.ResultSuccess)
			next = step.OnSuccess
		}
		result.Steps = append(result.Steps, record)
	}

	result.Plan = state.plan
	result.FinishedAt = e.clock.Now()
	elapsed := result.FinishedAt.Sub(result.StartedAt)
	if lastErr != nil {
		result.Err = lastErr
		result.Error = lastErr.Error()
		e.metrics.PipelineRun(p.Name, metrics.ResultFailure, elapsed)
		logging.Error(subsystem, lastErr, "Run %s of pipeline %s failed", result.RunID, p.Name)
		if !state.notified {
			e.notify(ctx, failureEvent(result, e.clock.Now()))
		}
	} else {
		e.metrics.PipelineRun(p.Name, metrics.ResultSuccess, elapsed)
		logging.Info(subsystem, "Run %s of pipeline %s finished after %d steps", result.RunID, p.Name, len(result.Steps))
	}
	return result
}

func (e *Executor) execute(ctx context.Context, step *StepDescription, state *runState) error {
	switch step.Type {
	case StepClusterProbe:
		return e.clusterProbe(ctx, step)
	case StepPlanImageDeployment:
		return e.planImageDeployment(ctx, step, state)
	case StepPlanClusterDeployment:
		return e.planClusterDeployment(ctx, step, state)
	case StepPlanNamespaceDeployment:
		return e.planNamespaceDeployment(ctx, step, state)
	case StepApplyDeployment:
		return e.applyDeployment(ctx, state)
	case StepTakeSnapshot:
		return e.takeSnapshot(ctx, state)
	case StepRollback:
		return e.rollback(ctx, state)
	case StepLogError:
		return e.logError(ctx, state)
	default:
		return fmt.Errorf("unknown step type %q", step.Type)
	}
}

// groups expands a cluster into its namespaces. A cluster without namespaces
// is a single group.
func (e *Executor) groups(ctx context.Context, cluster string) ([]domain.ServerGroup, error) {
	namespaces, err := e.deps.Clusters.Namespaces(ctx, cluster)
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces of %s: %w", cluster, err)
	}
	if len(namespaces) == 0 {
		return []domain.ServerGroup{{Cluster: cluster}}, nil
	}
	groups := make([]domain.ServerGroup, 0, len(namespaces))
	for _, ns := range namespaces {
		groups = append(groups, domain.ServerGroup{Cluster: cluster, Namespace: ns})
	}
	return groups, nil
}

// notify delivers event. Delivery failures are logged and never fail a run.
func (e *Executor) notify(ctx context.Context, event domain.Event) {
	if e.deps.Events == nil {
		return
	}
	if err := e.deps.Events.Log(ctx, event); err != nil {
		logging.Warn(subsystem, "Failed to deliver notification %q: %v", event.Message, err)
	}
}

func failureEvent(result *RunResult, now time.Time) domain.Event {
	var done []string
	for _, s := range result.Steps {
		if s.Outcome == StepSucceeded {
			done = append(done, s.Name)
		}
	}
	description := result.Error
	if len(done) > 0 {
		description = fmt.Sprintf("%s\nCompleted steps: %s", description, strings.Join(done, ", "))
	}
	return domain.Event{
		Message:     fmt.Sprintf("Pipeline %s failed", result.Pipeline),
		Description: description,
		Timestamp:   now,
		Topics:      []string{"pipeline", result.Pipeline},
	}
}

// errNoPlan is returned by applyDeployment when no planning step succeeded.
var errNoPlan = errors.New("no plan available in this run")
