package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"spacegun/internal/domain"
	"spacegun/internal/planner"
	"spacegun/internal/reconciler"
	"spacegun/pkg/logging"

	"golang.org/x/sync/errgroup"
)

func (e *Executor) clusterProbe(ctx context.Context, step *StepDescription) error {
	var timeout time.Duration
	if step.Timeout != "" {
		d, err := time.ParseDuration(step.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", step.Timeout, err)
		}
		timeout = d
	}
	return probe(ctx, e.httpClient, step.Hook, timeout)
}

func (e *Executor) planImageDeployment(ctx context.Context, step *StepDescription, state *runState) error {
	var extractor *regexp.Regexp
	if step.SemanticTagExtractor != "" {
		re, err := regexp.Compile(step.SemanticTagExtractor)
		if err != nil {
			return fmt.Errorf("invalid semanticTagExtractor: %w", err)
		}
		extractor = re
	}
	return e.plan(ctx, state, planner.NewImagePlanner(e.deps.Images, step.Tag, extractor, step.Filter))
}

func (e *Executor) planClusterDeployment(ctx context.Context, step *StepDescription, state *runState) error {
	return e.plan(ctx, state, planner.NewClusterPlanner(e.deps.Clusters, step.Cluster, step.Filter))
}

func (e *Executor) planNamespaceDeployment(ctx context.Context, step *StepDescription, state *runState) error {
	var source Source
	if step.Source != nil {
		source = *step.Source
	}
	return e.plan(ctx, state, planner.NewNamespacePlanner(e.deps.Clusters, source.Cluster, source.Namespace, step.Target, step.Filter))
}

// plan runs p once per namespace of the pipeline cluster and merges the
// results into the run's plan, replacing any earlier one.
func (e *Executor) plan(ctx context.Context, state *runState, p planner.Planner) error {
	name := state.pipeline.Name
	groups, err := e.groups(ctx, state.pipeline.Cluster)
	if err != nil {
		return err
	}

	merged := domain.NewJobPlan(name)
	for _, group := range groups {
		deployments, err := e.deps.Clusters.Deployments(ctx, group)
		if err != nil {
			return fmt.Errorf("failed to list deployments of %s: %w", group, err)
		}
		batches, err := e.deps.Clusters.Batches(ctx, group)
		if err != nil {
			return fmt.Errorf("failed to list batches of %s: %w", group, err)
		}
		plan, err := p.Plan(ctx, group, name, deployments, batches)
		if err != nil {
			return fmt.Errorf("planning %s failed: %w", group, err)
		}
		merged.Merge(plan)
	}

	state.plan = merged
	logging.Info(subsystem, "Pipeline %s planned %d deployments and %d batches (%d skipped)",
		name, len(merged.Deployments), len(merged.Batches), len(merged.Diagnostics))
	return nil
}

// applyDeployment executes every entry of the run's plan, deployments first.
// A failing entry does not stop the others. One notification summarizes the
// outcome.
func (e *Executor) applyDeployment(ctx context.Context, state *runState) error {
	if state.plan == nil {
		return errNoPlan
	}
	plan := state.plan
	if plan.IsEmpty() {
		logging.Info(subsystem, "Pipeline %s has nothing to apply", state.pipeline.Name)
		return nil
	}

	var (
		fields []domain.EventField
		errs   []error
	)
	record := func(kind string, group domain.ServerGroup, name string, current *domain.Image, image domain.Image, err error) {
		title := fmt.Sprintf("%s %s (%s)", kind, name, group)
		from := "none"
		if current != nil {
			from = current.URL
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", title, err))
			fields = append(fields, domain.EventField{Title: title, Value: fmt.Sprintf("failed: %v", err)})
			return
		}
		fields = append(fields, domain.EventField{Title: title, Value: fmt.Sprintf("%s -> %s", from, image.URL)})
	}

	for _, entry := range plan.Deployments {
		_, err := e.deps.Clusters.UpdateDeployment(ctx, entry.Group, entry.Deployable, entry.Image)
		record("deployment", entry.Group, entry.Deployable.Name, entry.Deployable.Image, entry.Image, err)
	}
	for _, entry := range plan.Batches {
		_, err := e.deps.Clusters.UpdateBatch(ctx, entry.Group, entry.Deployable, entry.Image)
		record("batch", entry.Group, entry.Deployable.Name, entry.Deployable.Image, entry.Image, err)
	}

	total := len(plan.Deployments) + len(plan.Batches)
	e.notify(ctx, domain.Event{
		Message:     fmt.Sprintf("Pipeline %s applied %d of %d changes", state.pipeline.Name, total-len(errs), total),
		Description: fmt.Sprintf("Cluster %s", state.pipeline.Cluster),
		Timestamp:   e.clock.Now(),
		Topics:      []string{"pipeline", state.pipeline.Name, state.pipeline.Cluster},
		Fields:      fields,
	})
	state.notified = true

	if len(errs) > 0 {
		return fmt.Errorf("%d of %d changes failed: %w", len(errs), total, errors.Join(errs...))
	}
	return nil
}

// takeSnapshot captures every namespace of the pipeline cluster in parallel.
func (e *Executor) takeSnapshot(ctx context.Context, state *runState) error {
	groups, err := e.groups(ctx, state.pipeline.Cluster)
	if err != nil {
		return err
	}

	snapshots := make([]*domain.ClusterSnapshot, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	for i, group := range groups {
		g.Go(func() error {
			snap, err := e.deps.Clusters.TakeSnapshot(gctx, group)
			if err != nil {
				return fmt.Errorf("failed to snapshot %s: %w", group, err)
			}
			snapshots[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	state.snapshots = snapshots
	logging.Info(subsystem, "Pipeline %s captured %d snapshots", state.pipeline.Name, len(snapshots))
	return nil
}

// rollback restores the snapshots taken earlier in the run. The revision guard
// is off because the revisions moved forward during this very run.
func (e *Executor) rollback(ctx context.Context, state *runState) error {
	if len(state.snapshots) == 0 {
		return errors.New("no snapshot was taken in this run")
	}
	if e.deps.Snapshots == nil {
		return errors.New("rollback is not available")
	}

	var errs []error
	for _, snap := range state.snapshots {
		report, err := e.deps.Snapshots.RestoreSnapshot(ctx, snap.Group, snap, reconciler.ApplyOptions{IgnoreRevision: true})
		if report != nil {
			logging.Info(subsystem, "Rolled back %s: %s", snap.Group, report.Summary())
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	state.notified = true
	return errors.Join(errs...)
}

// logError reports the error handed over by the previous step. It never
// fails.
func (e *Executor) logError(ctx context.Context, state *runState) error {
	err := state.lastError
	description := "no error"
	if err != nil {
		description = err.Error()
	}
	logging.Error(subsystem, err, "Pipeline %s reported an error", state.pipeline.Name)
	e.notify(ctx, domain.Event{
		Message:     fmt.Sprintf("Pipeline %s reported an error", state.pipeline.Name),
		Description: description,
		Timestamp:   e.clock.Now(),
		Topics:      []string{"pipeline", state.pipeline.Name},
	})
	state.notified = true
	return nil
}
