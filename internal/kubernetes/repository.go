package kubernetes

import (
	"context"
	"fmt"
	"sort"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"spacegun/internal/api"
	"spacegun/internal/cache"
	"spacegun/internal/clock"
	"spacegun/internal/domain"
	"spacegun/internal/metrics"
	"spacegun/internal/reconciler"
	"spacegun/pkg/logging"
)

const subsystem = "Kubernetes"

// RestartedAtAnnotation is the pod template annotation kubectl rollout
// restart sets. Changing it rolls every pod.
const RestartedAtAnnotation = "kubectl.kubernetes.io/restartedAt"

var _ api.ClusterService = (*Repository)(nil)

// Scheme returns a scheme with the built-in Kubernetes types.
func Scheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	return scheme
}

// Cluster is one Kubernetes cluster the repository talks to.
type Cluster struct {
	Name             string
	Client           client.Client
	DefaultNamespace string
}

type cluster struct {
	name             string
	client           client.Client
	defaultNamespace string
}

func (c *cluster) namespace(group domain.ServerGroup) string {
	if group.Namespace != "" {
		return group.Namespace
	}
	if c.defaultNamespace != "" {
		return c.defaultNamespace
	}
	return corev1.NamespaceDefault
}

// Repository implements the cluster repository for a set of clusters.
type Repository struct {
	clusters map[string]*cluster
	names    []string

	namespaces     []string
	namespaceCache *cache.Cache[[]string]
	cacheTTL       time.Duration

	clock      clock.Clock
	events     domain.EventRepository
	metrics    *metrics.Metrics
	reconciler *reconciler.Reconciler
}

// Option configures a Repository.
type Option func(*Repository)

// WithNamespaces splits every cluster into the given namespaces.
func WithNamespaces(namespaces []string) Option {
	return func(r *Repository) { r.namespaces = append([]string(nil), namespaces...) }
}

// WithCacheTTL sets how long namespace listings are memoized.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Repository) { r.cacheTTL = ttl }
}

// WithClock sets the clock used for restarts and snapshot timestamps.
func WithClock(c clock.Clock) Option {
	return func(r *Repository) { r.clock = clock.OrReal(c) }
}

// WithEvents sends snapshot apply reports to events.
func WithEvents(events domain.EventRepository) Option {
	return func(r *Repository) { r.events = events }
}

// WithMetrics records cache lookups and apply outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Repository) { r.metrics = m }
}

// New creates a repository over clusters.
func New(clusters []Cluster, opts ...Option) *Repository {
	r := &Repository{
		clusters: make(map[string]*cluster, len(clusters)),
		clock:    clock.Real{},
	}
	for _, c := range clusters {
		r.clusters[c.Name] = &cluster{name: c.Name, client: c.Client, defaultNamespace: c.DefaultNamespace}
		r.names = append(r.names, c.Name)
	}
	sort.Strings(r.names)
	for _, opt := range opts {
		opt(r)
	}

	r.namespaceCache = cache.New[[]string]("namespaces", r.cacheTTL, r.clock).Instrument(r.metrics)
	reconcilerOpts := []reconciler.Option{
		reconciler.WithClock(r.clock),
		reconciler.WithMetrics(reconciler.NewMetrics(r.metrics)),
	}
	if r.events != nil {
		reconcilerOpts = append(reconcilerOpts, reconciler.WithEvents(r.events))
	}
	r.reconciler = reconciler.New(&store{repo: r}, reconcilerOpts...)
	return r
}

// NewFromContexts creates one controller-runtime client per context.
func NewFromContexts(contexts []Context, opts ...Option) (*Repository, error) {
	scheme := Scheme()
	clusters := make([]Cluster, 0, len(contexts))
	for _, kc := range contexts {
		c, err := client.New(kc.Config, client.Options{Scheme: scheme})
		if err != nil {
			return nil, fmt.Errorf("failed to create Kubernetes client for %s: %w", kc.Name, err)
		}
		clusters = append(clusters, Cluster{Name: kc.Name, Client: c, DefaultNamespace: kc.DefaultNamespace})
	}
	logging.Info(subsystem, "Connected to %d clusters", len(clusters))
	return New(clusters, opts...), nil
}

func (r *Repository) cluster(name string) (*cluster, error) {
	c, ok := r.clusters[name]
	if !ok {
		return nil, api.NewNotFoundError("cluster", name)
	}
	return c, nil
}

// Clusters returns the cluster names, sorted.
func (r *Repository) Clusters() []string {
	return append([]string(nil), r.names...)
}

// Namespaces returns the configured namespaces that exist in cluster, in
// configured order. It is empty when no namespaces are configured.
func (r *Repository) Namespaces(ctx context.Context, name string) ([]string, error) {
	c, err := r.cluster(name)
	if err != nil {
		return nil, err
	}
	if len(r.namespaces) == 0 {
		return nil, nil
	}
	return r.namespaceCache.Get(ctx, name, func(ctx context.Context) ([]string, error) {
		var list corev1.NamespaceList
		if err := c.client.List(ctx, &list); err != nil {
			return nil, fmt.Errorf("failed to list namespaces of %s: %w", name, err)
		}
		existing := make(map[string]bool, len(list.Items))
		for _, ns := range list.Items {
			existing[ns.Name] = true
		}
		var namespaces []string
		for _, ns := range r.namespaces {
			if existing[ns] {
				namespaces = append(namespaces, ns)
			} else {
				logging.Debug(subsystem, "Namespace %s does not exist in %s", ns, name)
			}
		}
		return namespaces, nil
	})
}

// Deployments lists the deployments of group.
func (r *Repository) Deployments(ctx context.Context, group domain.ServerGroup) ([]domain.Deployment, error) {
	c, err := r.cluster(group.Cluster)
	if err != nil {
		return nil, err
	}
	var list appsv1.DeploymentList
	if err := c.client.List(ctx, &list, client.InNamespace(c.namespace(group))); err != nil {
		return nil, fmt.Errorf("failed to list deployments in %s: %w", group, err)
	}
	deployments := make([]domain.Deployment, 0, len(list.Items))
	for i := range list.Items {
		deployments = append(deployments, toDeployment(&list.Items[i]))
	}
	return deployments, nil
}

// Batches lists the cron jobs of group.
func (r *Repository) Batches(ctx context.Context, group domain.ServerGroup) ([]domain.Batch, error) {
	c, err := r.cluster(group.Cluster)
	if err != nil {
		return nil, err
	}
	var list batchv1.CronJobList
	if err := c.client.List(ctx, &list, client.InNamespace(c.namespace(group))); err != nil {
		return nil, fmt.Errorf("failed to list cron jobs in %s: %w", group, err)
	}
	batches := make([]domain.Batch, 0, len(list.Items))
	for i := range list.Items {
		batches = append(batches, toBatch(&list.Items[i]))
	}
	return batches, nil
}

// Pods lists the pods of group.
func (r *Repository) Pods(ctx context.Context, group domain.ServerGroup) ([]domain.Pod, error) {
	c, err := r.cluster(group.Cluster)
	if err != nil {
		return nil, err
	}
	var list corev1.PodList
	if err := c.client.List(ctx, &list, client.InNamespace(c.namespace(group))); err != nil {
		return nil, fmt.Errorf("failed to list pods in %s: %w", group, err)
	}
	pods := make([]domain.Pod, 0, len(list.Items))
	for i := range list.Items {
		pods = append(pods, toPod(&list.Items[i]))
	}
	return pods, nil
}

// Scalers lists the horizontal pod autoscalers of group.
func (r *Repository) Scalers(ctx context.Context, group domain.ServerGroup) ([]domain.Scaler, error) {
	c, err := r.cluster(group.Cluster)
	if err != nil {
		return nil, err
	}
	var list autoscalingv2.HorizontalPodAutoscalerList
	if err := c.client.List(ctx, &list, client.InNamespace(c.namespace(group))); err != nil {
		return nil, fmt.Errorf("failed to list autoscalers in %s: %w", group, err)
	}
	scalers := make([]domain.Scaler, 0, len(list.Items))
	for i := range list.Items {
		scalers = append(scalers, toScaler(&list.Items[i]))
	}
	return scalers, nil
}

// UpdateDeployment sets the image of the first container of deployment.
func (r *Repository) UpdateDeployment(ctx context.Context, group domain.ServerGroup, deployment domain.Deployment, image domain.Image) (domain.Deployment, error) {
	var updated appsv1.Deployment
	err := r.mutateDeployment(ctx, group, deployment.Name, &updated, func(spec *corev1.PodSpec, _ *map[string]string) error {
		return setImage(spec, image)
	})
	if err != nil {
		return domain.Deployment{}, fmt.Errorf("failed to update deployment %s in %s: %w", deployment.Name, group, err)
	}
	logging.Info(subsystem, "Updated deployment %s in %s to %s", deployment.Name, group, image.URL)
	return toDeployment(&updated), nil
}

// UpdateBatch sets the image of the first container of batch.
func (r *Repository) UpdateBatch(ctx context.Context, group domain.ServerGroup, batch domain.Batch, image domain.Image) (domain.Batch, error) {
	var updated batchv1.CronJob
	err := r.mutateCronJob(ctx, group, batch.Name, &updated, func(spec *corev1.PodSpec, _ *map[string]string) error {
		return setImage(spec, image)
	})
	if err != nil {
		return domain.Batch{}, fmt.Errorf("failed to update cron job %s in %s: %w", batch.Name, group, err)
	}
	logging.Info(subsystem, "Updated cron job %s in %s to %s", batch.Name, group, image.URL)
	return toBatch(&updated), nil
}

// RestartDeployment rolls every pod of deployment.
func (r *Repository) RestartDeployment(ctx context.Context, group domain.ServerGroup, deployment domain.Deployment) (domain.Deployment, error) {
	var updated appsv1.Deployment
	err := r.mutateDeployment(ctx, group, deployment.Name, &updated, r.stampRestart)
	if err != nil {
		return domain.Deployment{}, fmt.Errorf("failed to restart deployment %s in %s: %w", deployment.Name, group, err)
	}
	logging.Info(subsystem, "Restarted deployment %s in %s", deployment.Name, group)
	return toDeployment(&updated), nil
}

// RestartBatch marks the job template of batch so the next job starts from
// a fresh template revision.
func (r *Repository) RestartBatch(ctx context.Context, group domain.ServerGroup, batch domain.Batch) (domain.Batch, error) {
	var updated batchv1.CronJob
	err := r.mutateCronJob(ctx, group, batch.Name, &updated, r.stampRestart)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("failed to restart cron job %s in %s: %w", batch.Name, group, err)
	}
	logging.Info(subsystem, "Restarted cron job %s in %s", batch.Name, group)
	return toBatch(&updated), nil
}

// TakeSnapshot captures the raw deployments and cron jobs of group.
func (r *Repository) TakeSnapshot(ctx context.Context, group domain.ServerGroup) (*domain.ClusterSnapshot, error) {
	if _, err := r.cluster(group.Cluster); err != nil {
		return nil, err
	}
	return r.reconciler.TakeSnapshot(ctx, group)
}

// ApplySnapshot restores snapshot into group with the revision guard on.
func (r *Repository) ApplySnapshot(ctx context.Context, group domain.ServerGroup, snapshot *domain.ClusterSnapshot, ignoreImage bool) error {
	_, err := r.RestoreSnapshot(ctx, group, snapshot, reconciler.ApplyOptions{IgnoreImage: ignoreImage})
	return err
}

// RestoreSnapshot restores snapshot into group and reports every entry.
func (r *Repository) RestoreSnapshot(ctx context.Context, group domain.ServerGroup, snapshot *domain.ClusterSnapshot, opts reconciler.ApplyOptions) (*reconciler.ApplyReport, error) {
	if _, err := r.cluster(group.Cluster); err != nil {
		return nil, err
	}
	return r.reconciler.ApplySnapshot(ctx, group, snapshot, opts)
}

type podTemplateMutation func(spec *corev1.PodSpec, annotations *map[string]string) error

func (r *Repository) stampRestart(_ *corev1.PodSpec, annotations *map[string]string) error {
	if *annotations == nil {
		*annotations = make(map[string]string)
	}
	(*annotations)[RestartedAtAnnotation] = r.clock.Now().UTC().Format(time.RFC3339)
	return nil
}

func (r *Repository) mutateDeployment(ctx context.Context, group domain.ServerGroup, name string, into *appsv1.Deployment, mutate podTemplateMutation) error {
	c, err := r.cluster(group.Cluster)
	if err != nil {
		return err
	}
	key := client.ObjectKey{Namespace: c.namespace(group), Name: name}
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		if err := c.client.Get(ctx, key, into); err != nil {
			return err
		}
		template := &into.Spec.Template
		if err := mutate(&template.Spec, &template.Annotations); err != nil {
			return err
		}
		return c.client.Update(ctx, into)
	})
}

func (r *Repository) mutateCronJob(ctx context.Context, group domain.ServerGroup, name string, into *batchv1.CronJob, mutate podTemplateMutation) error {
	c, err := r.cluster(group.Cluster)
	if err != nil {
		return err
	}
	key := client.ObjectKey{Namespace: c.namespace(group), Name: name}
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		if err := c.client.Get(ctx, key, into); err != nil {
			return err
		}
		template := &into.Spec.JobTemplate.Spec.Template
		if err := mutate(&template.Spec, &template.Annotations); err != nil {
			return err
		}
		return c.client.Update(ctx, into)
	})
}

func setImage(spec *corev1.PodSpec, image domain.Image) error {
	if len(spec.Containers) == 0 {
		return fmt.Errorf("no containers")
	}
	spec.Containers[0].Image = image.URL
	return nil
}

func containerImages(spec *corev1.PodSpec) []string {
	images := make([]string, 0, len(spec.Containers))
	for _, c := range spec.Containers {
		images = append(images, c.Image)
	}
	return images
}

func toDeployment(d *appsv1.Deployment) domain.Deployment {
	replicas := int32(1)
	if d.Spec.Replicas != nil {
		replicas = *d.Spec.Replicas
	}
	return domain.Deployment{
		Name:     d.Name,
		Image:    imageOf(containerImages(&d.Spec.Template.Spec)),
		Replicas: replicas,
	}
}

func toBatch(cj *batchv1.CronJob) domain.Batch {
	batch := domain.Batch{
		Name:      cj.Name,
		Image:     imageOf(containerImages(&cj.Spec.JobTemplate.Spec.Template.Spec)),
		Schedule:  cj.Spec.Schedule,
		Suspended: cj.Spec.Suspend != nil && *cj.Spec.Suspend,
	}
	if cj.Status.LastScheduleTime != nil {
		last := cj.Status.LastScheduleTime.UTC()
		batch.LastScheduled = &last
	}
	return batch
}

func toPod(p *corev1.Pod) domain.Pod {
	pod := domain.Pod{
		Name:  p.Name,
		Image: imageOf(containerImages(&p.Spec)),
	}
	for _, status := range p.Status.ContainerStatuses {
		pod.RestartCount += status.RestartCount
	}
	for _, cond := range p.Status.Conditions {
		if cond.Type == corev1.PodReady {
			pod.Ready = cond.Status == corev1.ConditionTrue
		}
	}
	return pod
}

func toScaler(h *autoscalingv2.HorizontalPodAutoscaler) domain.Scaler {
	minimum := int32(1)
	if h.Spec.MinReplicas != nil {
		minimum = *h.Spec.MinReplicas
	}
	return domain.Scaler{
		Name: h.Name,
		Replicas: domain.Replicas{
			Current: h.Status.CurrentReplicas,
			Minimum: minimum,
			Maximum: h.Spec.MaxReplicas,
		},
	}
}
