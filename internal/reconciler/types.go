package reconciler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"spacegun/internal/domain"
)

// Kind identifies the resource types a snapshot covers.
type Kind string

const (
	KindDeployment Kind = "deployment"
	KindBatch      Kind = "batch"
)

// Outcome is the per-resource result of applying a snapshot.
type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeCreated   Outcome = "created"
	OutcomeStaleSkip Outcome = "stale-skip"
	OutcomeFailed    Outcome = "failed"
)

const (
	// RevisionAnnotation is maintained by the Kubernetes deployment controller.
	RevisionAnnotation = "deployment.kubernetes.io/revision"
	// LastAppliedAnnotation is written by kubectl apply.
	LastAppliedAnnotation = "kubectl.kubernetes.io/last-applied-configuration"
	// TimestampAnnotation records the snapshot a resource was last restored from.
	TimestampAnnotation = "spacegun.io/snapshot-timestamp"

	spacegunAnnotationPrefix = "spacegun.io/"
)

// ErrNotFound is returned by a ResourceStore when a resource does not exist.
var ErrNotFound = errors.New("resource not found")

// ResourceStore reads and writes raw resources of a ServerGroup.
type ResourceStore interface {
	List(ctx context.Context, group domain.ServerGroup, kind Kind) ([]map[string]interface{}, error)
	Get(ctx context.Context, group domain.ServerGroup, kind Kind, name string) (map[string]interface{}, error)
	Create(ctx context.Context, group domain.ServerGroup, kind Kind, obj map[string]interface{}) error
	Update(ctx context.Context, group domain.ServerGroup, kind Kind, obj map[string]interface{}) error
}

// ApplyOptions tunes ApplySnapshot.
type ApplyOptions struct {
	// IgnoreImage keeps the live container images.
	IgnoreImage bool
	// IgnoreRevision disables the revision guard. Used to roll back a
	// rollout made by the same pipeline run.
	IgnoreRevision bool
}

// ResourceResult is the outcome for one snapshot entry.
type ResourceResult struct {
	Kind    Kind    `json:"kind" yaml:"kind"`
	Name    string  `json:"name" yaml:"name"`
	Outcome Outcome `json:"outcome" yaml:"outcome"`
	Reason  string  `json:"reason,omitempty" yaml:"reason,omitempty"`
	Err     error   `json:"-" yaml:"-"`
}

// ApplyReport aggregates the outcomes of one ApplySnapshot call.
type ApplyReport struct {
	Group             domain.ServerGroup `json:"group" yaml:"group"`
	SnapshotTimestamp time.Time          `json:"snapshotTimestamp" yaml:"snapshotTimestamp"`
	Results           []ResourceResult   `json:"results" yaml:"results"`
}

// Count returns the number of results with the given outcome.
func (r *ApplyReport) Count(outcome Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == outcome {
			n++
		}
	}
	return n
}

// Failures returns the failed results.
func (r *ApplyReport) Failures() []ResourceResult {
	var failed []ResourceResult
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Summary is a one-line count of every outcome.
func (r *ApplyReport) Summary() string {
	return fmt.Sprintf("%d updated, %d created, %d unchanged, %d stale, %d failed",
		r.Count(OutcomeUpdated), r.Count(OutcomeCreated), r.Count(OutcomeUnchanged),
		r.Count(OutcomeStaleSkip), r.Count(OutcomeFailed))
}

// Event renders the report as one notification. Unchanged resources are
// not listed.
func (r *ApplyReport) Event(now time.Time) domain.Event {
	event := domain.Event{
		Message:     fmt.Sprintf("Applied snapshot from %s to %s", r.SnapshotTimestamp.Format(time.RFC3339), r.Group),
		Description: r.Summary(),
		Timestamp:   now,
		Topics:      []string{"snapshot", r.Group.Cluster},
	}
	for _, res := range r.Results {
		if res.Outcome == OutcomeUnchanged {
			continue
		}
		value := string(res.Outcome)
		if res.Reason != "" {
			value += ": " + res.Reason
		}
		event.Fields = append(event.Fields, domain.EventField{
			Title: fmt.Sprintf("%s %s", res.Kind, res.Name),
			Value: value,
		})
	}
	return event
}

// ApplyError is returned next to the report when at least one entry failed.
type ApplyError struct {
	Group    domain.ServerGroup
	Failures []ResourceResult
}

func (e *ApplyError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, fmt.Sprintf("%s %s (%v)", f.Kind, f.Name, f.Err))
	}
	return fmt.Sprintf("failed to apply %d resources in %s: %s", len(e.Failures), e.Group, strings.Join(names, ", "))
}

func (e *ApplyError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}
