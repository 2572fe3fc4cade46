package planner

import (
	"context"
	"fmt"
	"regexp"

	"spacegun/internal/domain"
)

// ImagePlanner moves resources to the newest (or a fixed) tag of their image.
type ImagePlanner struct {
	Tag        string
	Extractor  *regexp.Regexp
	Filter     *domain.Filter
	Repository domain.ImageRepository
}

// NewImagePlanner creates an ImagePlanner. tag wins over the extractor when
// both are set.
func NewImagePlanner(repo domain.ImageRepository, tag string, extractor *regexp.Regexp, filter *domain.Filter) *ImagePlanner {
	return &ImagePlanner{Tag: tag, Extractor: extractor, Filter: filter, Repository: repo}
}

// Plan implements Planner. Tag resolution failures abort the whole pass.
func (p *ImagePlanner) Plan(ctx context.Context, group domain.ServerGroup, pipelineName string, deployments []domain.Deployment, batches []domain.Batch) (*domain.JobPlan, error) {
	plan := domain.NewJobPlan(pipelineName)
	if !domain.MatchesServerGroup(p.Filter, group) {
		return plan, nil
	}

	resolved := make(map[string]domain.Image)

	var err error
	plan.Deployments, err = planFromRegistry(ctx, p, plan, group, deployments, resolved)
	if err != nil {
		return nil, err
	}
	plan.Batches, err = planFromRegistry(ctx, p, plan, group, batches, resolved)
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// latest returns the image a resource should run, memoized per image name
// for the duration of one planning pass.
func (p *ImagePlanner) latest(ctx context.Context, name string, resolved map[string]domain.Image) (domain.Image, error) {
	if image, ok := resolved[name]; ok {
		return image, nil
	}

	tag := p.Tag
	if tag == "" {
		tags, err := p.Repository.Tags(ctx, name)
		if err != nil {
			return domain.Image{}, fmt.Errorf("failed to list tags of %s: %w", name, err)
		}
		tag, err = ResolveTag(tags, p.Extractor)
		if err != nil {
			return domain.Image{}, fmt.Errorf("failed to resolve tag of %s: %w", name, err)
		}
	}

	image, err := p.Repository.Image(ctx, name, tag)
	if err != nil {
		return domain.Image{}, fmt.Errorf("failed to fetch image %s:%s: %w", name, tag, err)
	}
	resolved[name] = image
	return image, nil
}

func planFromRegistry[T domain.DeployableResource](ctx context.Context, p *ImagePlanner, plan *domain.JobPlan, group domain.ServerGroup, targets []T, resolved map[string]domain.Image) ([]domain.DeploymentPlan[T], error) {
	entries := []domain.DeploymentPlan[T]{}
	for _, target := range targets {
		if !domain.MatchesResource(p.Filter, target) {
			continue
		}
		current := target.CurrentImage()
		if current == nil {
			diagnose(plan, group, target.ResourceName(), "resource has no image")
			continue
		}

		image, err := p.latest(ctx, current.Name, resolved)
		if err != nil {
			return nil, err
		}
		if domain.SameImage(current, image) {
			continue
		}
		entries = append(entries, domain.DeploymentPlan[T]{
			Group:      group,
			Deployable: target,
			Image:      image,
		})
	}
	return entries, nil
}
