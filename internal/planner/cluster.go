package planner

import (
	"context"
	"fmt"

	"spacegun/internal/domain"
)

// ClusterPlanner promotes images from the same namespace of another cluster.
type ClusterPlanner struct {
	SourceCluster string
	Filter        *domain.Filter
	Repository    domain.ClusterReader
}

// NewClusterPlanner creates a ClusterPlanner.
func NewClusterPlanner(repo domain.ClusterReader, sourceCluster string, filter *domain.Filter) *ClusterPlanner {
	return &ClusterPlanner{SourceCluster: sourceCluster, Filter: filter, Repository: repo}
}

// Plan implements Planner.
func (p *ClusterPlanner) Plan(ctx context.Context, group domain.ServerGroup, pipelineName string, deployments []domain.Deployment, batches []domain.Batch) (*domain.JobPlan, error) {
	if !domain.MatchesServerGroup(p.Filter, group) {
		return domain.NewJobPlan(pipelineName), nil
	}

	source := domain.ServerGroup{Cluster: p.SourceCluster, Namespace: group.Namespace}
	plan, err := planAgainstGroup(ctx, p.Repository, source, group, p.Filter, pipelineName, deployments, batches)
	if err != nil {
		return nil, fmt.Errorf("failed to plan %s from cluster %s: %w", group, p.SourceCluster, err)
	}
	return plan, nil
}
