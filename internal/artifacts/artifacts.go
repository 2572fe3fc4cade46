// Package artifacts stores artifacts such as cluster snapshots as YAML files
// below the artifacts directory.
package artifacts

import (
	"context"
	"fmt"
	"path"

	"sigs.k8s.io/yaml"

	"spacegun/internal/config"
	"spacegun/internal/domain"
)

// snapshotNameLayout sorts lexically in time order and is a safe file name.
const snapshotNameLayout = "20060102T150405Z"

// Repository is a filesystem ArtifactRepository.
type Repository struct {
	storage *config.Storage
}

var _ domain.ArtifactRepository = (*Repository)(nil)

// New creates a repository rooted at dir.
func New(dir string) *Repository {
	return &Repository{storage: config.NewStorageWithPath(dir)}
}

// SaveArtifact writes artifact below path, replacing one of the same name.
func (r *Repository) SaveArtifact(ctx context.Context, path string, artifact domain.Artifact) error {
	return r.storage.Save(path, artifact.Name, artifact.Data)
}

// ListArtifacts returns every artifact below path, sorted by name.
func (r *Repository) ListArtifacts(ctx context.Context, path string) ([]domain.Artifact, error) {
	names, err := r.storage.List(path)
	if err != nil {
		return nil, err
	}
	artifacts := make([]domain.Artifact, 0, len(names))
	for _, name := range names {
		data, err := r.storage.Load(path, name)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, domain.Artifact{Name: name, Data: data})
	}
	return artifacts, nil
}

// SnapshotPath is where snapshots of group are stored.
func SnapshotPath(group domain.ServerGroup) string {
	if group.Namespace == "" {
		return path.Join("snapshots", group.Cluster)
	}
	return path.Join("snapshots", group.Cluster, group.Namespace)
}

// SaveSnapshot stores snapshot as YAML, named after its timestamp.
func SaveSnapshot(ctx context.Context, repo domain.ArtifactRepository, snapshot *domain.ClusterSnapshot) (string, error) {
	data, err := yaml.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot of %s: %w", snapshot.Group, err)
	}
	name := snapshot.Timestamp.UTC().Format(snapshotNameLayout)
	if err := repo.SaveArtifact(ctx, SnapshotPath(snapshot.Group), domain.Artifact{Name: name, Data: data}); err != nil {
		return "", err
	}
	return name, nil
}

// LatestSnapshot loads the newest stored snapshot of group.
func LatestSnapshot(ctx context.Context, repo domain.ArtifactRepository, group domain.ServerGroup) (*domain.ClusterSnapshot, error) {
	artifacts, err := repo.ListArtifacts(ctx, SnapshotPath(group))
	if err != nil {
		return nil, err
	}
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("no snapshot of %s has been saved", group)
	}
	latest := artifacts[0]
	for _, a := range artifacts[1:] {
		if a.Name > latest.Name {
			latest = a
		}
	}
	return DecodeSnapshot(latest.Data)
}

// DecodeSnapshot parses a snapshot stored by SaveSnapshot.
func DecodeSnapshot(data []byte) (*domain.ClusterSnapshot, error) {
	var snapshot domain.ClusterSnapshot
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snapshot.Group.Cluster == "" {
		return nil, fmt.Errorf("failed to decode snapshot: no cluster")
	}
	return &snapshot, nil
}
