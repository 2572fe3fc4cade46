package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"spacegun/internal/domain"
	"spacegun/internal/reconciler"
)

// DeploymentUpdate records a call to UpdateDeployment.
type DeploymentUpdate struct {
	Group      domain.ServerGroup
	Deployment domain.Deployment
	Image      domain.Image
}

// BatchUpdate records a call to UpdateBatch.
type BatchUpdate struct {
	Group domain.ServerGroup
	Batch domain.Batch
	Image domain.Image
}

// SnapshotApply records a call to ApplySnapshot or RestoreSnapshot.
type SnapshotApply struct {
	Group          domain.ServerGroup
	Snapshot       *domain.ClusterSnapshot
	IgnoreImage    bool
	IgnoreRevision bool
}

// ClusterRepository is an in-memory domain.ClusterRepository. Updates are
// recorded and also change the stored resources.
type ClusterRepository struct {
	mu sync.Mutex

	namespaces  map[string][]string
	deployments map[domain.ServerGroup][]domain.Deployment
	batches     map[domain.ServerGroup][]domain.Batch
	pods        map[domain.ServerGroup][]domain.Pod
	scalers     map[domain.ServerGroup][]domain.Scaler

	// FailUpdates makes updates of the named resources fail.
	FailUpdates map[string]error
	// FailReads makes reads of the given group fail.
	FailReads map[domain.ServerGroup]error
	// FailRestore makes RestoreSnapshot fail without a report.
	FailRestore error
	// FailEntries makes RestoreSnapshot report the named entries as failed.
	FailEntries map[string]error

	// Calls logs every write in call order, e.g. "updateDeployment api".
	Calls             []string
	DeploymentUpdates []DeploymentUpdate
	BatchUpdates      []BatchUpdate
	Restarts          []string
	Snapshots         []domain.ServerGroup
	Applies           []SnapshotApply
}

// NewClusterRepository creates an empty repository.
func NewClusterRepository() *ClusterRepository {
	return &ClusterRepository{
		namespaces:  make(map[string][]string),
		deployments: make(map[domain.ServerGroup][]domain.Deployment),
		batches:     make(map[domain.ServerGroup][]domain.Batch),
		pods:        make(map[domain.ServerGroup][]domain.Pod),
		scalers:     make(map[domain.ServerGroup][]domain.Scaler),
		FailUpdates: make(map[string]error),
		FailReads:   make(map[domain.ServerGroup]error),
		FailEntries: make(map[string]error),
	}
}

// AddCluster registers a cluster and its namespaces.
func (r *ClusterRepository) AddCluster(cluster string, namespaces ...string) *ClusterRepository {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.namespaces[cluster] = append([]string{}, namespaces...)
	return r
}

// SetDeployments replaces the deployments of a group.
func (r *ClusterRepository) SetDeployments(group domain.ServerGroup, deployments ...domain.Deployment) *ClusterRepository {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureCluster(group.Cluster)
	r.deployments[group] = deployments
	return r
}

// SetBatches replaces the batches of a group.
func (r *ClusterRepository) SetBatches(group domain.ServerGroup, batches ...domain.Batch) *ClusterRepository {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureCluster(group.Cluster)
	r.batches[group] = batches
	return r
}

// SetPods replaces the pods of a group.
func (r *ClusterRepository) SetPods(group domain.ServerGroup, pods ...domain.Pod) *ClusterRepository {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureCluster(group.Cluster)
	r.pods[group] = pods
	return r
}

// SetScalers replaces the scalers of a group.
func (r *ClusterRepository) SetScalers(group domain.ServerGroup, scalers ...domain.Scaler) *ClusterRepository {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureCluster(group.Cluster)
	r.scalers[group] = scalers
	return r
}

func (r *ClusterRepository) ensureCluster(cluster string) {
	if _, ok := r.namespaces[cluster]; !ok {
		r.namespaces[cluster] = nil
	}
}

func (r *ClusterRepository) Clusters() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	clusters := make([]string, 0, len(r.namespaces))
	for c := range r.namespaces {
		clusters = append(clusters, c)
	}
	sort.Strings(clusters)
	return clusters
}

func (r *ClusterRepository) Namespaces(ctx context.Context, cluster string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ns, ok := r.namespaces[cluster]
	if !ok {
		return nil, fmt.Errorf("unknown cluster %q", cluster)
	}
	return append([]string{}, ns...), nil
}

func (r *ClusterRepository) Deployments(ctx context.Context, group domain.ServerGroup) ([]domain.Deployment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailReads[group]; err != nil {
		return nil, err
	}
	return append([]domain.Deployment{}, r.deployments[group]...), nil
}

func (r *ClusterRepository) Batches(ctx context.Context, group domain.ServerGroup) ([]domain.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailReads[group]; err != nil {
		return nil, err
	}
	return append([]domain.Batch{}, r.batches[group]...), nil
}

func (r *ClusterRepository) Pods(ctx context.Context, group domain.ServerGroup) ([]domain.Pod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Pod{}, r.pods[group]...), nil
}

func (r *ClusterRepository) Scalers(ctx context.Context, group domain.ServerGroup) ([]domain.Scaler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Scaler{}, r.scalers[group]...), nil
}

func (r *ClusterRepository) UpdateDeployment(ctx context.Context, group domain.ServerGroup, deployment domain.Deployment, image domain.Image) (domain.Deployment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailUpdates[deployment.Name]; err != nil {
		return domain.Deployment{}, err
	}
	r.Calls = append(r.Calls, "updateDeployment "+deployment.Name)
	r.DeploymentUpdates = append(r.DeploymentUpdates, DeploymentUpdate{Group: group, Deployment: deployment, Image: image})
	img := image
	deployment.Image = &img
	for i, d := range r.deployments[group] {
		if d.Name == deployment.Name {
			r.deployments[group][i] = deployment
		}
	}
	return deployment, nil
}

func (r *ClusterRepository) UpdateBatch(ctx context.Context, group domain.ServerGroup, batch domain.Batch, image domain.Image) (domain.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailUpdates[batch.Name]; err != nil {
		return domain.Batch{}, err
	}
	r.Calls = append(r.Calls, "updateBatch "+batch.Name)
	r.BatchUpdates = append(r.BatchUpdates, BatchUpdate{Group: group, Batch: batch, Image: image})
	img := image
	batch.Image = &img
	for i, b := range r.batches[group] {
		if b.Name == batch.Name {
			r.batches[group][i] = batch
		}
	}
	return batch, nil
}

func (r *ClusterRepository) RestartDeployment(ctx context.Context, group domain.ServerGroup, deployment domain.Deployment) (domain.Deployment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "restartDeployment "+deployment.Name)
	r.Restarts = append(r.Restarts, deployment.Name)
	return deployment, nil
}

func (r *ClusterRepository) RestartBatch(ctx context.Context, group domain.ServerGroup, batch domain.Batch) (domain.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "restartBatch "+batch.Name)
	r.Restarts = append(r.Restarts, batch.Name)
	return batch, nil
}

// TakeSnapshot returns a snapshot holding only the resource names.
func (r *ClusterRepository) TakeSnapshot(ctx context.Context, group domain.ServerGroup) (*domain.ClusterSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailReads[group]; err != nil {
		return nil, err
	}
	r.Snapshots = append(r.Snapshots, group)
	snapshot := &domain.ClusterSnapshot{Group: group}
	for _, d := range r.deployments[group] {
		snapshot.Deployments = append(snapshot.Deployments, domain.SnapshotEntry{Name: d.Name, Data: map[string]interface{}{}})
	}
	for _, b := range r.batches[group] {
		snapshot.Batches = append(snapshot.Batches, domain.SnapshotEntry{Name: b.Name, Data: map[string]interface{}{}})
	}
	return snapshot, nil
}

func (r *ClusterRepository) ApplySnapshot(ctx context.Context, group domain.ServerGroup, snapshot *domain.ClusterSnapshot, ignoreImage bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Applies = append(r.Applies, SnapshotApply{Group: group, Snapshot: snapshot, IgnoreImage: ignoreImage})
	return nil
}

// RestoreSnapshot records the call. Entries named in FailEntries fail, every
// other entry is reported as unchanged.
func (r *ClusterRepository) RestoreSnapshot(ctx context.Context, group domain.ServerGroup, snapshot *domain.ClusterSnapshot, opts reconciler.ApplyOptions) (*reconciler.ApplyReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "restoreSnapshot "+group.String())
	r.Applies = append(r.Applies, SnapshotApply{
		Group:          group,
		Snapshot:       snapshot,
		IgnoreImage:    opts.IgnoreImage,
		IgnoreRevision: opts.IgnoreRevision,
	})
	if r.FailRestore != nil {
		return nil, r.FailRestore
	}

	report := &reconciler.ApplyReport{Group: group, SnapshotTimestamp: snapshot.Timestamp}
	result := func(kind reconciler.Kind, name string) reconciler.ResourceResult {
		res := reconciler.ResourceResult{Kind: kind, Name: name, Outcome: reconciler.OutcomeUnchanged}
		if err := r.FailEntries[name]; err != nil {
			res.Outcome = reconciler.OutcomeFailed
			res.Err = err
			res.Reason = err.Error()
		}
		return res
	}
	for _, e := range snapshot.Deployments {
		report.Results = append(report.Results, result(reconciler.KindDeployment, e.Name))
	}
	for _, e := range snapshot.Batches {
		report.Results = append(report.Results, result(reconciler.KindBatch, e.Name))
	}
	if failures := report.Failures(); len(failures) > 0 {
		return report, &reconciler.ApplyError{Group: group, Failures: failures}
	}
	return report, nil
}

// ImageRepository is an in-memory domain.ImageRepository.
type ImageRepository struct {
	mu     sync.Mutex
	tags   map[string][]string
	images map[string]domain.Image

	TagCalls   int
	ImageCalls int
}

// NewImageRepository creates an empty repository.
func NewImageRepository() *ImageRepository {
	return &ImageRepository{
		tags:   make(map[string][]string),
		images: make(map[string]domain.Image),
	}
}

// AddImage registers a tag of an image with the given pull URL.
func (r *ImageRepository) AddImage(name, tag, url string) *ImageRepository {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags[name] = append(r.tags[name], tag)
	r.images[name+":"+tag] = domain.Image{Name: name, Tag: tag, URL: url}
	return r
}

func (r *ImageRepository) List(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.tags))
	for n := range r.tags {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (r *ImageRepository) Tags(ctx context.Context, name string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.TagCalls++
	return append([]string{}, r.tags[name]...), nil
}

func (r *ImageRepository) Image(ctx context.Context, name, tag string) (domain.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ImageCalls++
	image, ok := r.images[name+":"+tag]
	if !ok {
		return domain.Image{}, fmt.Errorf("image %s:%s not found", name, tag)
	}
	return image, nil
}

// EventRepository records every logged event.
type EventRepository struct {
	mu     sync.Mutex
	events []domain.Event

	// Err is returned from Log after recording the event.
	Err error
}

func (r *EventRepository) Log(ctx context.Context, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.Err
}

// Events returns the recorded events.
func (r *EventRepository) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event{}, r.events...)
}
