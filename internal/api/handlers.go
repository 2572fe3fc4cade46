package api

import (
	"context"
	"errors"
	"fmt"

	"spacegun/internal/domain"
	"spacegun/internal/pipeline"
	"spacegun/internal/reconciler"
	"spacegun/internal/scheduler"
)

// ClusterService is what the cluster module exposes.
type ClusterService interface {
	domain.ClusterRepository
	pipeline.SnapshotRestorer
}

// PipelineService is what the pipelines module exposes.
type PipelineService interface {
	List() []pipeline.PipelineDescription
	Run(ctx context.Context, name string) (*pipeline.RunResult, error)
	Runs(name string) []pipeline.RunResult
}

// CronService is what the crons module exposes.
type CronService interface {
	Crons() []scheduler.Cron
	Trigger(ctx context.Context, name string) error
}

// RegisterClusterService registers the cluster module.
func RegisterClusterService(r *Registry, svc ClusterService) {
	Register(r, ModuleCluster, "clusters", func(ctx context.Context, _ Empty) ([]string, error) {
		return svc.Clusters(), nil
	})
	Register(r, ModuleCluster, "namespaces", func(ctx context.Context, req ClusterRequest) ([]string, error) {
		return svc.Namespaces(ctx, req.Cluster)
	})
	Register(r, ModuleCluster, "deployments", func(ctx context.Context, req GroupRequest) ([]domain.Deployment, error) {
		return svc.Deployments(ctx, req.Group)
	})
	Register(r, ModuleCluster, "batches", func(ctx context.Context, req GroupRequest) ([]domain.Batch, error) {
		return svc.Batches(ctx, req.Group)
	})
	Register(r, ModuleCluster, "pods", func(ctx context.Context, req GroupRequest) ([]domain.Pod, error) {
		return svc.Pods(ctx, req.Group)
	})
	Register(r, ModuleCluster, "scalers", func(ctx context.Context, req GroupRequest) ([]domain.Scaler, error) {
		return svc.Scalers(ctx, req.Group)
	})
	Register(r, ModuleCluster, "updateDeployment", func(ctx context.Context, req UpdateDeploymentRequest) (domain.Deployment, error) {
		return svc.UpdateDeployment(ctx, req.Group, req.Deployment, req.Image)
	})
	Register(r, ModuleCluster, "updateBatch", func(ctx context.Context, req UpdateBatchRequest) (domain.Batch, error) {
		return svc.UpdateBatch(ctx, req.Group, req.Batch, req.Image)
	})
	Register(r, ModuleCluster, "restartDeployment", func(ctx context.Context, req RestartDeploymentRequest) (domain.Deployment, error) {
		return svc.RestartDeployment(ctx, req.Group, req.Deployment)
	})
	Register(r, ModuleCluster, "restartBatch", func(ctx context.Context, req RestartBatchRequest) (domain.Batch, error) {
		return svc.RestartBatch(ctx, req.Group, req.Batch)
	})
	Register(r, ModuleCluster, "takeSnapshot", func(ctx context.Context, req GroupRequest) (*domain.ClusterSnapshot, error) {
		return svc.TakeSnapshot(ctx, req.Group)
	})
	Register(r, ModuleCluster, "applySnapshot", func(ctx context.Context, req SnapshotRequest) (*reconciler.ApplyReport, error) {
		if req.Snapshot == nil {
			return nil, fmt.Errorf("%w: snapshot is required", ErrBadRequest)
		}
		report, err := svc.RestoreSnapshot(ctx, req.Group, req.Snapshot, reconciler.ApplyOptions{
			IgnoreImage:    req.IgnoreImage,
			IgnoreRevision: req.IgnoreRevision,
		})
		// Failed entries travel inside the report; the client rebuilds the
		// ApplyError from them.
		var applyErr *reconciler.ApplyError
		if report != nil && errors.As(err, &applyErr) {
			return report, nil
		}
		return report, err
	})
}

// RegisterImageRepository registers the images module.
func RegisterImageRepository(r *Registry, repo domain.ImageRepository) {
	Register(r, ModuleImages, "list", func(ctx context.Context, _ Empty) ([]string, error) {
		return repo.List(ctx)
	})
	Register(r, ModuleImages, "tags", func(ctx context.Context, req NameRequest) ([]string, error) {
		return repo.Tags(ctx, req.Name)
	})
	Register(r, ModuleImages, "image", func(ctx context.Context, req ImageRequest) (domain.Image, error) {
		return repo.Image(ctx, req.Name, req.Tag)
	})
}

// RegisterEventRepository registers the events module.
func RegisterEventRepository(r *Registry, repo domain.EventRepository) {
	Register(r, ModuleEvents, "log", func(ctx context.Context, event domain.Event) (Empty, error) {
		return Empty{}, repo.Log(ctx, event)
	})
}

// RegisterArtifactRepository registers the artifacts module.
func RegisterArtifactRepository(r *Registry, repo domain.ArtifactRepository) {
	Register(r, ModuleArtifacts, "save", func(ctx context.Context, req SaveArtifactRequest) (Empty, error) {
		return Empty{}, repo.SaveArtifact(ctx, req.Path, req.Artifact)
	})
	Register(r, ModuleArtifacts, "list", func(ctx context.Context, req PathRequest) ([]domain.Artifact, error) {
		return repo.ListArtifacts(ctx, req.Path)
	})
}

// RegisterPipelineService registers the pipelines module.
func RegisterPipelineService(r *Registry, svc PipelineService) {
	Register(r, ModulePipelines, "list", func(ctx context.Context, _ Empty) ([]pipeline.PipelineDescription, error) {
		return svc.List(), nil
	})
	Register(r, ModulePipelines, "run", func(ctx context.Context, req NameRequest) (*pipeline.RunResult, error) {
		// A run outlives the request so a disconnecting client cannot leave
		// a rollout half applied.
		return svc.Run(context.WithoutCancel(ctx), req.Name)
	})
	Register(r, ModulePipelines, "runs", func(ctx context.Context, req NameRequest) ([]pipeline.RunResult, error) {
		return svc.Runs(req.Name), nil
	})
}

// RegisterCronService registers the crons module.
func RegisterCronService(r *Registry, svc CronService) {
	Register(r, ModuleCrons, "list", func(ctx context.Context, _ Empty) ([]scheduler.Cron, error) {
		return svc.Crons(), nil
	})
	Register(r, ModuleCrons, "trigger", func(ctx context.Context, req NameRequest) (Empty, error) {
		return Empty{}, svc.Trigger(ctx, req.Name)
	})
}
