package api

import (
	"context"
	"errors"

	"spacegun/internal/domain"
	"spacegun/internal/pipeline"
	"spacegun/internal/reconciler"
	"spacegun/internal/scheduler"
	"spacegun/pkg/logging"
)

// ClusterClient implements ClusterService on top of a Transport.
type ClusterClient struct {
	t Transport
}

// NewClusterClient returns a cluster client using t.
func NewClusterClient(t Transport) *ClusterClient {
	return &ClusterClient{t: t}
}

// Clusters has no error return; failures are logged and yield no clusters.
func (c *ClusterClient) Clusters() []string {
	clusters, err := Call[Empty, []string](context.Background(), c.t, ModuleCluster, "clusters", Empty{})
	if err != nil {
		logging.Error("API", err, "Failed to list clusters")
		return nil
	}
	return clusters
}

func (c *ClusterClient) Namespaces(ctx context.Context, cluster string) ([]string, error) {
	return Call[ClusterRequest, []string](ctx, c.t, ModuleCluster, "namespaces", ClusterRequest{Cluster: cluster})
}

func (c *ClusterClient) Deployments(ctx context.Context, group domain.ServerGroup) ([]domain.Deployment, error) {
	return Call[GroupRequest, []domain.Deployment](ctx, c.t, ModuleCluster, "deployments", GroupRequest{Group: group})
}

func (c *ClusterClient) Batches(ctx context.Context, group domain.ServerGroup) ([]domain.Batch, error) {
	return Call[GroupRequest, []domain.Batch](ctx, c.t, ModuleCluster, "batches", GroupRequest{Group: group})
}

func (c *ClusterClient) Pods(ctx context.Context, group domain.ServerGroup) ([]domain.Pod, error) {
	return Call[GroupRequest, []domain.Pod](ctx, c.t, ModuleCluster, "pods", GroupRequest{Group: group})
}

func (c *ClusterClient) Scalers(ctx context.Context, group domain.ServerGroup) ([]domain.Scaler, error) {
	return Call[GroupRequest, []domain.Scaler](ctx, c.t, ModuleCluster, "scalers", GroupRequest{Group: group})
}

func (c *ClusterClient) UpdateDeployment(ctx context.Context, group domain.ServerGroup, deployment domain.Deployment, image domain.Image) (domain.Deployment, error) {
	return Call[UpdateDeploymentRequest, domain.Deployment](ctx, c.t, ModuleCluster, "updateDeployment",
		UpdateDeploymentRequest{Group: group, Deployment: deployment, Image: image})
}

func (c *ClusterClient) UpdateBatch(ctx context.Context, group domain.ServerGroup, batch domain.Batch, image domain.Image) (domain.Batch, error) {
	return Call[UpdateBatchRequest, domain.Batch](ctx, c.t, ModuleCluster, "updateBatch",
		UpdateBatchRequest{Group: group, Batch: batch, Image: image})
}

func (c *ClusterClient) RestartDeployment(ctx context.Context, group domain.ServerGroup, deployment domain.Deployment) (domain.Deployment, error) {
	return Call[RestartDeploymentRequest, domain.Deployment](ctx, c.t, ModuleCluster, "restartDeployment",
		RestartDeploymentRequest{Group: group, Deployment: deployment})
}

func (c *ClusterClient) RestartBatch(ctx context.Context, group domain.ServerGroup, batch domain.Batch) (domain.Batch, error) {
	return Call[RestartBatchRequest, domain.Batch](ctx, c.t, ModuleCluster, "restartBatch",
		RestartBatchRequest{Group: group, Batch: batch})
}

func (c *ClusterClient) TakeSnapshot(ctx context.Context, group domain.ServerGroup) (*domain.ClusterSnapshot, error) {
	return Call[GroupRequest, *domain.ClusterSnapshot](ctx, c.t, ModuleCluster, "takeSnapshot", GroupRequest{Group: group})
}

func (c *ClusterClient) ApplySnapshot(ctx context.Context, group domain.ServerGroup, snapshot *domain.ClusterSnapshot, ignoreImage bool) error {
	_, err := c.RestoreSnapshot(ctx, group, snapshot, reconciler.ApplyOptions{IgnoreImage: ignoreImage})
	return err
}

// RestoreSnapshot returns the report together with an *reconciler.ApplyError
// when entries failed, like the reconciler does.
func (c *ClusterClient) RestoreSnapshot(ctx context.Context, group domain.ServerGroup, snapshot *domain.ClusterSnapshot, opts reconciler.ApplyOptions) (*reconciler.ApplyReport, error) {
	report, err := Call[SnapshotRequest, *reconciler.ApplyReport](ctx, c.t, ModuleCluster, "applySnapshot", SnapshotRequest{
		Group:          group,
		Snapshot:       snapshot,
		IgnoreImage:    opts.IgnoreImage,
		IgnoreRevision: opts.IgnoreRevision,
	})
	if err != nil || report == nil {
		return report, err
	}
	failures := report.Failures()
	if len(failures) == 0 {
		return report, nil
	}
	for i := range failures {
		failures[i].Err = errors.New(failures[i].Reason)
	}
	return report, &reconciler.ApplyError{Group: report.Group, Failures: failures}
}

// ImageClient implements domain.ImageRepository on top of a Transport.
type ImageClient struct {
	t Transport
}

// NewImageClient returns an image client using t.
func NewImageClient(t Transport) *ImageClient {
	return &ImageClient{t: t}
}

func (c *ImageClient) List(ctx context.Context) ([]string, error) {
	return Call[Empty, []string](ctx, c.t, ModuleImages, "list", Empty{})
}

func (c *ImageClient) Tags(ctx context.Context, name string) ([]string, error) {
	return Call[NameRequest, []string](ctx, c.t, ModuleImages, "tags", NameRequest{Name: name})
}

func (c *ImageClient) Image(ctx context.Context, name, tag string) (domain.Image, error) {
	return Call[ImageRequest, domain.Image](ctx, c.t, ModuleImages, "image", ImageRequest{Name: name, Tag: tag})
}

// EventClient implements domain.EventRepository on top of a Transport.
type EventClient struct {
	t Transport
}

// NewEventClient returns an event client using t.
func NewEventClient(t Transport) *EventClient {
	return &EventClient{t: t}
}

func (c *EventClient) Log(ctx context.Context, event domain.Event) error {
	_, err := Call[domain.Event, Empty](ctx, c.t, ModuleEvents, "log", event)
	return err
}

// ArtifactClient implements domain.ArtifactRepository on top of a Transport.
type ArtifactClient struct {
	t Transport
}

// NewArtifactClient returns an artifact client using t.
func NewArtifactClient(t Transport) *ArtifactClient {
	return &ArtifactClient{t: t}
}

func (c *ArtifactClient) SaveArtifact(ctx context.Context, path string, artifact domain.Artifact) error {
	_, err := Call[SaveArtifactRequest, Empty](ctx, c.t, ModuleArtifacts, "save", SaveArtifactRequest{Path: path, Artifact: artifact})
	return err
}

func (c *ArtifactClient) ListArtifacts(ctx context.Context, path string) ([]domain.Artifact, error) {
	return Call[PathRequest, []domain.Artifact](ctx, c.t, ModuleArtifacts, "list", PathRequest{Path: path})
}

// PipelineClient implements PipelineService and CronService on top of a
// Transport.
type PipelineClient struct {
	t Transport
}

// NewPipelineClient returns a pipeline client using t.
func NewPipelineClient(t Transport) *PipelineClient {
	return &PipelineClient{t: t}
}

// List has no error return; failures are logged and yield no pipelines.
func (c *PipelineClient) List() []pipeline.PipelineDescription {
	res, err := Call[Empty, []pipeline.PipelineDescription](context.Background(), c.t, ModulePipelines, "list", Empty{})
	if err != nil {
		logging.Error("API", err, "Failed to list pipelines")
		return nil
	}
	return res
}

// Run runs a pipeline where the transport leads. The run error travels as
// text and is restored into Err.
func (c *PipelineClient) Run(ctx context.Context, name string) (*pipeline.RunResult, error) {
	res, err := Call[NameRequest, *pipeline.RunResult](ctx, c.t, ModulePipelines, "run", NameRequest{Name: name})
	if err != nil {
		return nil, err
	}
	if res != nil && res.Err == nil && res.Error != "" {
		res.Err = errors.New(res.Error)
	}
	return res, nil
}

func (c *PipelineClient) Runs(name string) []pipeline.RunResult {
	res, err := Call[NameRequest, []pipeline.RunResult](context.Background(), c.t, ModulePipelines, "runs", NameRequest{Name: name})
	if err != nil {
		logging.Error("API", err, "Failed to list runs of %s", name)
		return nil
	}
	return res
}

func (c *PipelineClient) Crons() []scheduler.Cron {
	res, err := Call[Empty, []scheduler.Cron](context.Background(), c.t, ModuleCrons, "list", Empty{})
	if err != nil {
		logging.Error("API", err, "Failed to list crons")
		return nil
	}
	return res
}

func (c *PipelineClient) Trigger(ctx context.Context, name string) error {
	_, err := Call[NameRequest, Empty](ctx, c.t, ModuleCrons, "trigger", NameRequest{Name: name})
	return err
}

var (
	_ ClusterService            = (*ClusterClient)(nil)
	_ domain.ImageRepository    = (*ImageClient)(nil)
	_ domain.EventRepository    = (*EventClient)(nil)
	_ domain.ArtifactRepository = (*ArtifactClient)(nil)
	_ PipelineService           = (*PipelineClient)(nil)
	_ CronService               = (*PipelineClient)(nil)
)
