package planner

import (
	"context"

	"spacegun/internal/domain"
	"spacegun/pkg/logging"
)

const subsystem = "Planner"

// Planner produces a JobPlan for the given target resources of one group.
type Planner interface {
	Plan(ctx context.Context, group domain.ServerGroup, pipelineName string, deployments []domain.Deployment, batches []domain.Batch) (*domain.JobPlan, error)
}

// diagnose logs a skipped resource and records it on the plan.
func diagnose(plan *domain.JobPlan, group domain.ServerGroup, resource, reason string) {
	logging.Warn(subsystem, "%s: skipping %s in %s: %s", plan.Name, resource, group, reason)
	plan.AddDiagnostic(group, resource, reason)
}

// planFromSource emits one entry per target whose image differs from the
// same-named resource in sources.
func planFromSource[T domain.DeployableResource](plan *domain.JobPlan, group domain.ServerGroup, filter *domain.Filter, targets, sources []T) []domain.DeploymentPlan[T] {
	byName := make(map[string]T, len(sources))
	for _, s := range sources {
		byName[s.ResourceName()] = s
	}

	var entries []domain.DeploymentPlan[T]
	for _, target := range targets {
		if !domain.MatchesResource(filter, target) {
			continue
		}
		source, ok := byName[target.ResourceName()]
		if !ok {
			diagnose(plan, group, target.ResourceName(), "not present in source")
			continue
		}
		image := source.CurrentImage()
		if image == nil {
			diagnose(plan, group, target.ResourceName(), "source has no image")
			continue
		}
		if domain.SameImage(target.CurrentImage(), *image) {
			continue
		}
		entries = append(entries, domain.DeploymentPlan[T]{
			Group:      group,
			Deployable: target,
			Image:      *image,
		})
	}
	return entries
}

// planAgainstGroup fetches the resources of source and diffs targets
// against them.
func planAgainstGroup(ctx context.Context, repo domain.ClusterReader, source, group domain.ServerGroup, filter *domain.Filter, pipelineName string, deployments []domain.Deployment, batches []domain.Batch) (*domain.JobPlan, error) {
	plan := domain.NewJobPlan(pipelineName)

	sourceDeployments, err := repo.Deployments(ctx, source)
	if err != nil {
		return nil, err
	}
	sourceBatches, err := repo.Batches(ctx, source)
	if err != nil {
		return nil, err
	}

	plan.Deployments = append(plan.Deployments, planFromSource(plan, group, filter, deployments, sourceDeployments)...)
	plan.Batches = append(plan.Batches, planFromSource(plan, group, filter, batches, sourceBatches)...)

	logging.Debug(subsystem, "%s: planned %d deployments and %d batches for %s from %s",
		pipelineName, len(plan.Deployments), len(plan.Batches), group, source)
	return plan, nil
}
