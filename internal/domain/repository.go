package domain

import (
	"context"
	"time"
)

// ClusterReader is the read side of a ClusterRepository. Planners only need
// this much.
type ClusterReader interface {
	Clusters() []string
	Namespaces(ctx context.Context, cluster string) ([]string, error)
	Deployments(ctx context.Context, group ServerGroup) ([]Deployment, error)
	Batches(ctx context.Context, group ServerGroup) ([]Batch, error)
}

// ClusterRepository gives access to the workloads of every configured cluster.
type ClusterRepository interface {
	ClusterReader

	Pods(ctx context.Context, group ServerGroup) ([]Pod, error)
	Scalers(ctx context.Context, group ServerGroup) ([]Scaler, error)

	UpdateDeployment(ctx context.Context, group ServerGroup, deployment Deployment, image Image) (Deployment, error)
	UpdateBatch(ctx context.Context, group ServerGroup, batch Batch, image Image) (Batch, error)
	RestartDeployment(ctx context.Context, group ServerGroup, deployment Deployment) (Deployment, error)
	RestartBatch(ctx context.Context, group ServerGroup, batch Batch) (Batch, error)

	TakeSnapshot(ctx context.Context, group ServerGroup) (*ClusterSnapshot, error)
	ApplySnapshot(ctx context.Context, group ServerGroup, snapshot *ClusterSnapshot, ignoreImage bool) error
}

// ImageRepository resolves images and tags from a container registry.
type ImageRepository interface {
	List(ctx context.Context) ([]string, error)
	Tags(ctx context.Context, name string) ([]string, error)
	Image(ctx context.Context, name, tag string) (Image, error)
}

// Artifact is a named blob stored under a path.
type Artifact struct {
	Name string `json:"name" yaml:"name"`
	Data []byte `json:"data" yaml:"data"`
}

// ArtifactRepository persists artifacts such as snapshots.
type ArtifactRepository interface {
	SaveArtifact(ctx context.Context, path string, artifact Artifact) error
	ListArtifacts(ctx context.Context, path string) ([]Artifact, error)
}

// EventField is a titled value attached to an Event.
type EventField struct {
	Title string `json:"title" yaml:"title"`
	Value string `json:"value" yaml:"value"`
}

// Event is a notification. Delivery is best effort.
type Event struct {
	Message     string       `json:"message" yaml:"message"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Timestamp   time.Time    `json:"timestamp" yaml:"timestamp"`
	Topics      []string     `json:"topics,omitempty" yaml:"topics,omitempty"`
	Fields      []EventField `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// EventRepository receives notifications.
type EventRepository interface {
	Log(ctx context.Context, event Event) error
}
