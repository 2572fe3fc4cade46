package reconciler

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"spacegun/internal/clock"
	"spacegun/internal/domain"
	"spacegun/pkg/logging"
)

const subsystem = "Reconciler"

// Reconciler takes and applies snapshots through a ResourceStore.
type Reconciler struct {
	store   ResourceStore
	clock   clock.Clock
	events  domain.EventRepository
	metrics *Metrics
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock overrides the clock used for snapshot timestamps.
func WithClock(c clock.Clock) Option {
	return func(r *Reconciler) { r.clock = clock.OrReal(c) }
}

// WithEvents sends one notification per applied snapshot to events.
func WithEvents(events domain.EventRepository) Option {
	return func(r *Reconciler) { r.events = events }
}

// WithMetrics records apply outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// New creates a Reconciler on top of store.
func New(store ResourceStore, opts ...Option) *Reconciler {
	r := &Reconciler{
		store: store,
		clock: clock.Real{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TakeSnapshot captures the raw deployments and batches of group.
func (r *Reconciler) TakeSnapshot(ctx context.Context, group domain.ServerGroup) (*domain.ClusterSnapshot, error) {
	snapshot := &domain.ClusterSnapshot{
		Group:     group,
		Timestamp: r.clock.Now().UTC(),
	}

	var err error
	if snapshot.Deployments, err = r.capture(ctx, group, KindDeployment); err != nil {
		return nil, err
	}
	if snapshot.Batches, err = r.capture(ctx, group, KindBatch); err != nil {
		return nil, err
	}

	logging.Info(subsystem, "Took snapshot of %s: %d deployments, %d batches",
		group, len(snapshot.Deployments), len(snapshot.Batches))
	return snapshot, nil
}

func (r *Reconciler) capture(ctx context.Context, group domain.ServerGroup, kind Kind) ([]domain.SnapshotEntry, error) {
	objs, err := r.store.List(ctx, group, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list %ss in %s: %w", kind, group, err)
	}
	entries := make([]domain.SnapshotEntry, 0, len(objs))
	for _, obj := range objs {
		entries = append(entries, domain.SnapshotEntry{Name: resourceName(obj), Data: obj})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// ApplySnapshot restores snapshot into group. The report is always returned
// when the snapshot could be processed; an *ApplyError is returned alongside
// it when at least one resource failed.
func (r *Reconciler) ApplySnapshot(ctx context.Context, group domain.ServerGroup, snapshot *domain.ClusterSnapshot, opts ApplyOptions) (*ApplyReport, error) {
	if snapshot == nil {
		return nil, errors.New("no snapshot to apply")
	}

	report := &ApplyReport{Group: group, SnapshotTimestamp: snapshot.Timestamp}
	for _, entry := range snapshot.Deployments {
		report.Results = append(report.Results, r.applyEntry(ctx, group, KindDeployment, snapshot.Timestamp, entry, opts))
	}
	for _, entry := range snapshot.Batches {
		report.Results = append(report.Results, r.applyEntry(ctx, group, KindBatch, snapshot.Timestamp, entry, opts))
	}

	for _, res := range report.Results {
		r.metrics.Record(res.Kind, res.Outcome)
	}
	logging.Info(subsystem, "Applied snapshot to %s: %s", group, report.Summary())

	if r.events != nil {
		if err := r.events.Log(ctx, report.Event(r.clock.Now())); err != nil {
			logging.Warn(subsystem, "Failed to send snapshot notification for %s: %v", group, err)
		}
	}

	if failures := report.Failures(); len(failures) > 0 {
		return report, &ApplyError{Group: group, Failures: failures}
	}
	return report, nil
}

func (r *Reconciler) applyEntry(ctx context.Context, group domain.ServerGroup, kind Kind, snapshotTime time.Time, entry domain.SnapshotEntry, opts ApplyOptions) ResourceResult {
	result := ResourceResult{Kind: kind, Name: entry.Name}
	fail := func(err error) ResourceResult {
		logging.Error(subsystem, err, "Failed to apply %s %s in %s", kind, entry.Name, group)
		result.Outcome = OutcomeFailed
		result.Err = err
		result.Reason = err.Error()
		return result
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	live, err := r.store.Get(ctx, group, kind, entry.Name)
	if errors.Is(err, ErrNotFound) {
		obj, err := creation(entry.Data, group, snapshotTime)
		if err != nil {
			return fail(err)
		}
		if err := r.store.Create(ctx, group, kind, obj); err != nil {
			return fail(err)
		}
		logging.Info(subsystem, "Created %s %s in %s", kind, entry.Name, group)
		result.Outcome = OutcomeCreated
		return result
	}
	if err != nil {
		return fail(err)
	}

	if !opts.IgnoreRevision {
		if liveRev, snapRev := revision(live), revision(entry.Data); liveRev > snapRev {
			result.Outcome = OutcomeStaleSkip
			result.Reason = fmt.Sprintf("live revision %d is newer than snapshot revision %d", liveRev, snapRev)
			logging.Warn(subsystem, "Skipping %s %s in %s: %s", kind, entry.Name, group, result.Reason)
			return result
		}
	}
	if stamped, ok := stampedAt(live); ok && stamped.After(snapshotTime) {
		result.Outcome = OutcomeStaleSkip
		result.Reason = fmt.Sprintf("restored from a newer snapshot taken at %s", stamped.Format(time.RFC3339))
		logging.Warn(subsystem, "Skipping %s %s in %s: %s", kind, entry.Name, group, result.Reason)
		return result
	}

	liveNorm, err := normalize(live, kind, opts.IgnoreImage)
	if err != nil {
		return fail(err)
	}
	snapNorm, err := normalize(entry.Data, kind, opts.IgnoreImage)
	if err != nil {
		return fail(err)
	}
	if reflect.DeepEqual(liveNorm, snapNorm) {
		logging.Debug(subsystem, "%s %s in %s is up to date", kind, entry.Name, group)
		result.Outcome = OutcomeUnchanged
		return result
	}

	obj, err := replacement(entry.Data, live, kind, snapshotTime, opts.IgnoreImage)
	if err != nil {
		return fail(err)
	}
	if err := r.store.Update(ctx, group, kind, obj); err != nil {
		return fail(err)
	}
	logging.Info(subsystem, "Updated %s %s in %s", kind, entry.Name, group)
	result.Outcome = OutcomeUpdated
	return result
}

// creation builds the object written when the live resource is missing.
func creation(data map[string]interface{}, group domain.ServerGroup, snapshotTime time.Time) (map[string]interface{}, error) {
	obj, err := canonical(data)
	if err != nil {
		return nil, err
	}
	stripServerFields(obj)
	unstructured.RemoveNestedField(obj, "metadata", "resourceVersion")
	dropAnnotations(obj)
	if group.Namespace != "" {
		_ = unstructured.SetNestedField(obj, group.Namespace, "metadata", "namespace")
	}
	setAnnotation(obj, TimestampAnnotation, snapshotTime.UTC().Format(time.RFC3339Nano))
	return obj, nil
}

// replacement builds the object that replaces live: the snapshot data
// carrying the identity and revision of live.
func replacement(data, live map[string]interface{}, kind Kind, snapshotTime time.Time, ignoreImage bool) (map[string]interface{}, error) {
	obj, err := canonical(data)
	if err != nil {
		return nil, err
	}
	stripServerFields(obj)
	dropAnnotations(obj)

	resourceVersion, _, _ := unstructured.NestedString(live, "metadata", "resourceVersion")
	_ = unstructured.SetNestedField(obj, resourceVersion, "metadata", "resourceVersion")
	if namespace, found, _ := unstructured.NestedString(live, "metadata", "namespace"); found {
		_ = unstructured.SetNestedField(obj, namespace, "metadata", "namespace")
	}
	if rev, ok := annotation(live, RevisionAnnotation); ok {
		setAnnotation(obj, RevisionAnnotation, rev)
	}
	if ignoreImage {
		liveCopy, err := canonical(live)
		if err != nil {
			return nil, err
		}
		liveImages := containerImages(liveCopy, kind)
		rewriteImages(obj, kind, func(name, image string) string {
			if liveImage, ok := liveImages[name]; ok {
				return liveImage
			}
			return image
		})
	}
	setAnnotation(obj, TimestampAnnotation, snapshotTime.UTC().Format(time.RFC3339Nano))
	return obj, nil
}
