package planner

import (
	"context"
	"fmt"

	"spacegun/internal/domain"
)

// NamespacePlanner promotes images from a source namespace into a target
// namespace. The source cluster defaults to the cluster of the planned group.
type NamespacePlanner struct {
	SourceCluster   string
	SourceNamespace string
	TargetNamespace string
	Filter          *domain.Filter
	Repository      domain.ClusterReader
}

// NewNamespacePlanner creates a NamespacePlanner.
func NewNamespacePlanner(repo domain.ClusterReader, sourceCluster, sourceNamespace, targetNamespace string, filter *domain.Filter) *NamespacePlanner {
	return &NamespacePlanner{
		SourceCluster:   sourceCluster,
		SourceNamespace: sourceNamespace,
		TargetNamespace: targetNamespace,
		Filter:          filter,
		Repository:      repo,
	}
}

// Plan implements Planner. Groups other than the target namespace get an
// empty plan. A cluster that is not split into namespaces gets an empty plan
// with a diagnostic, since no group can ever match the target.
func (p *NamespacePlanner) Plan(ctx context.Context, group domain.ServerGroup, pipelineName string, deployments []domain.Deployment, batches []domain.Batch) (*domain.JobPlan, error) {
	if group.Namespace == "" {
		plan := domain.NewJobPlan(pipelineName)
		diagnose(plan, group, "namespace "+p.TargetNamespace, "cluster is not split into namespaces")
		return plan, nil
	}
	if group.Namespace != p.TargetNamespace || !domain.MatchesServerGroup(p.Filter, group) {
		return domain.NewJobPlan(pipelineName), nil
	}

	cluster := p.SourceCluster
	if cluster == "" {
		cluster = group.Cluster
	}
	source := domain.ServerGroup{Cluster: cluster, Namespace: p.SourceNamespace}

	plan, err := planAgainstGroup(ctx, p.Repository, source, group, p.Filter, pipelineName, deployments, batches)
	if err != nil {
		return nil, fmt.Errorf("failed to plan %s from %s: %w", group, source, err)
	}
	return plan, nil
}
