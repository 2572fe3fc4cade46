package api

import (
	"spacegun/internal/domain"
)

// Module names.
const (
	ModuleCluster   = "cluster"
	ModuleImages    = "images"
	ModuleEvents    = "events"
	ModuleArtifacts = "artifacts"
	ModulePipelines = "pipelines"
	ModuleCrons     = "crons"
)

// ClusterRequest addresses one cluster.
type ClusterRequest struct {
	Cluster string `json:"cluster"`
}

// GroupRequest addresses one server group.
type GroupRequest struct {
	Group domain.ServerGroup `json:"group"`
}

// UpdateDeploymentRequest sets the image of a deployment.
type UpdateDeploymentRequest struct {
	Group      domain.ServerGroup `json:"group"`
	Deployment domain.Deployment  `json:"deployment"`
	Image      domain.Image       `json:"image"`
}

// UpdateBatchRequest sets the image of a batch.
type UpdateBatchRequest struct {
	Group domain.ServerGroup `json:"group"`
	Batch domain.Batch       `json:"batch"`
	Image domain.Image       `json:"image"`
}

// RestartDeploymentRequest restarts a deployment.
type RestartDeploymentRequest struct {
	Group      domain.ServerGroup `json:"group"`
	Deployment domain.Deployment  `json:"deployment"`
}

// RestartBatchRequest restarts a batch.
type RestartBatchRequest struct {
	Group domain.ServerGroup `json:"group"`
	Batch domain.Batch       `json:"batch"`
}

// SnapshotRequest applies a snapshot to a group.
type SnapshotRequest struct {
	Group          domain.ServerGroup      `json:"group"`
	Snapshot       *domain.ClusterSnapshot `json:"snapshot"`
	IgnoreImage    bool                    `json:"ignoreImage,omitempty"`
	IgnoreRevision bool                    `json:"ignoreRevision,omitempty"`
}

// NameRequest addresses something by name.
type NameRequest struct {
	Name string `json:"name"`
}

// ImageRequest addresses one tag of an image.
type ImageRequest struct {
	Name string `json:"name"`
	Tag  string `json:"tag"`
}

// SaveArtifactRequest stores an artifact under a path.
type SaveArtifactRequest struct {
	Path     string          `json:"path"`
	Artifact domain.Artifact `json:"artifact"`
}

// PathRequest addresses an artifact path.
type PathRequest struct {
	Path string `json:"path"`
}
