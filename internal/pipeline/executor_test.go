package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spacegun/internal/clock"
	"spacegun/internal/domain"
	"spacegun/internal/testing/mock"
)

type fixture struct {
	clusters *mock.ClusterRepository
	images   *mock.ImageRepository
	events   *mock.EventRepository
	executor *Executor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clusters: mock.NewClusterRepository(),
		images:   mock.NewImageRepository(),
		events:   &mock.EventRepository{},
	}
	f.executor = NewExecutor(Dependencies{
		Clusters:  f.clusters,
		Images:    f.images,
		Events:    f.events,
		Snapshots: f.clusters,
	}, WithClock(clock.NewMock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))))
	return f
}

func image(name, tag string) *domain.Image {
	return &domain.Image{Name: name, Tag: tag, URL: "registry.example.com/" + name + ":" + tag}
}

func healthyHook(t *testing.T, status int) (string, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv.URL, &calls
}

func stepNames(res *RunResult) []string {
	names := make([]string, 0, len(res.Steps))
	for _, s := range res.Steps {
		names = append(names, s.Name)
	}
	return names
}

func TestExecutor_ProbePlanApply(t *testing.T) {
	f := newFixture(t)
	hook, calls := healthyHook(t, http.StatusOK)
	live := domain.ServerGroup{Cluster: "live"}
	f.clusters.AddCluster("live").SetDeployments(live, domain.Deployment{Name: "api", Image: image("svc", "v1")})
	f.images.AddImage("svc", "v1", image("svc", "v1").URL).AddImage("svc", "v2", image("svc", "v2").URL)

	p := &PipelineDescription{
		Name:    "release",
		Cluster: "live",
		Start:   "probe1",
		Steps: []StepDescription{
			{Name: "probe1", Type: StepClusterProbe, Hook: hook, Timeout: "2s", OnSuccess: "plan1"},
			{Name: "plan1", Type: StepPlanImageDeployment, Tag: "v2", OnSuccess: "apply1"},
			{Name: "apply1", Type: StepApplyDeployment},
		},
	}
	require.NoError(t, Validate(p))

	res := f.executor.Run(context.Background(), p)
	require.NoError(t, res.Err)
	assert.True(t, res.Succeeded())
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{"probe1", "plan1", "apply1"}, stepNames(res))
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))

	require.Len(t, f.clusters.DeploymentUpdates, 1)
	update := f.clusters.DeploymentUpdates[0]
	assert.Equal(t, "api", update.Deployment.Name)
	assert.Equal(t, live, update.Group)
	assert.Equal(t, image("svc", "v2").URL, update.Image.URL)

	events := f.events.Events()
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Message, "applied 1 of 1 changes")
	require.Len(t, events[0].Fields, 1)
	assert.Contains(t, events[0].Fields[0].Value, "svc:v1 -> registry.example.com/svc:v2")

	require.NotNil(t, res.Plan)
	assert.Len(t, res.Plan.Deployments, 1)
}

func TestExecutor_FailedProbeTakesFailureEdge(t *testing.T) {
	f := newFixture(t)
	hook, _ := healthyHook(t, http.StatusServiceUnavailable)
	f.clusters.AddCluster("live")

	p := &PipelineDescription{
		Name:    "release",
		Cluster: "live",
		Start:   "probe",
		Steps: []StepDescription{
			{Name: "probe", Type: StepClusterProbe, Hook: hook, OnSuccess: "plan", OnFailure: "report"},
			{Name: "plan", Type: StepPlanImageDeployment, OnSuccess: "apply"},
			{Name: "apply", Type: StepApplyDeployment},
			{Name: "report", Type: StepLogError},
		},
	}
	require.NoError(t, Validate(p))

	res := f.executor.Run(context.Background(), p)
	assert.NoError(t, res.Err)
	assert.Equal(t, []string{"probe", "report"}, stepNames(res))
	assert.Equal(t, StepFailed, res.Steps[0].Outcome)
	assert.Contains(t, res.Steps[0].Error, "status 503")

	events := f.events.Events()
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Description, "status 503")
	assert.Empty(t, f.clusters.DeploymentUpdates)
}

func TestExecutor_ProbeTimeout(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p := &PipelineDescription{
		Name:    "release",
		Cluster: "live",
		Start:   "probe",
		Steps:   []StepDescription{{Name: "probe", Type: StepClusterProbe, Hook: srv.URL, Timeout: "50ms"}},
	}
	res := f.executor.Run(context.Background(), p)
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)

	events := f.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "Pipeline release failed", events[0].Message)
}

func TestExecutor_BothPlannersReachable(t *testing.T) {
	f := newFixture(t)
	pre := domain.ServerGroup{Cluster: "pre", Namespace: "web"}
	live := domain.ServerGroup{Cluster: "live", Namespace: "web"}
	f.clusters.AddCluster("pre", "web").AddCluster("live", "web")
	f.clusters.SetDeployments(pre, domain.Deployment{Name: "api", Image: image("svc", "v3")})
	f.clusters.SetDeployments(live, domain.Deployment{Name: "api", Image: image("svc", "v1")})
	f.images.AddImage("svc", "v2", image("svc", "v2").URL)

	p := &PipelineDescription{
		Name:    "release",
		Cluster: "live",
		Start:   "byImage",
		Steps: []StepDescription{
			{Name: "byImage", Type: StepPlanImageDeployment, Tag: "v2", OnSuccess: "byCluster"},
			{Name: "byCluster", Type: StepPlanClusterDeployment, Cluster: "pre", OnSuccess: "apply"},
			{Name: "apply", Type: StepApplyDeployment},
		},
	}
	require.NoError(t, Validate(p))

	res := f.executor.Run(context.Background(), p)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"byImage", "byCluster", "apply"}, stepNames(res))

	require.Len(t, f.clusters.DeploymentUpdates, 1)
	assert.Equal(t, image("svc", "v3").URL, f.clusters.DeploymentUpdates[0].Image.URL)
}

func TestExecutor_NamespacePromotion(t *testing.T) {
	f := newFixture(t)
	f.clusters.AddCluster("live", "staging", "production")
	f.clusters.SetDeployments(domain.ServerGroup{Cluster: "live", Namespace: "staging"}, domain.Deployment{Name: "api", Image: image("svc", "v5")})
	f.clusters.SetDeployments(domain.ServerGroup{Cluster: "live", Namespace: "production"}, domain.Deployment{Name: "api", Image: image("svc", "v4")})
	f.clusters.SetBatches(domain.ServerGroup{Cluster: "live", Namespace: "production"}, domain.Batch{Name: "cleanup", Image: image("svc", "v4")})
	f.clusters.SetBatches(domain.ServerGroup{Cluster: "live", Namespace: "staging"}, domain.Batch{Name: "cleanup", Image: image("svc", "v5")})

	p := &PipelineDescription{
		Name:    "promote",
		Cluster: "live",
		Start:   "plan",
		Steps: []StepDescription{
			{Name: "plan", Type: StepPlanNamespaceDeployment, Source: &Source{Namespace: "staging"}, Target: "production", OnSuccess: "apply"},
			{Name: "apply", Type: StepApplyDeployment},
		},
	}
	require.NoError(t, Validate(p))

	res := f.executor.Run(context.Background(), p)
	require.NoError(t, res.Err)
	require.Len(t, f.clusters.DeploymentUpdates, 1)
	assert.Equal(t, "production", f.clusters.DeploymentUpdates[0].Group.Namespace)
	require.Len(t, f.clusters.BatchUpdates, 1)
	assert.Equal(t, image("svc", "v5").URL, f.clusters.BatchUpdates[0].Image.URL)
}

func TestExecutor_AppliesDeploymentsBeforeBatchesInPlanOrder(t *testing.T) {
	f := newFixture(t)
	group := domain.ServerGroup{Cluster: "live"}
	f.clusters.AddCluster("live").
		SetDeployments(group,
			domain.Deployment{Name: "web", Image: image("svc", "v1")},
			domain.Deployment{Name: "api", Image: image("svc", "v1")},
		).
		SetBatches(group,
			domain.Batch{Name: "report", Image: image("svc", "v1")},
			domain.Batch{Name: "cleanup", Image: image("svc", "v1")},
		)
	f.images.AddImage("svc", "v2", image("svc", "v2").URL)

	p := &PipelineDescription{
		Name:    "release",
		Cluster: "live",
		Start:   "plan",
		Steps: []StepDescription{
			{Name: "plan", Type: StepPlanImageDeployment, Tag: "v2", OnSuccess: "apply"},
			{Name: "apply", Type: StepApplyDeployment},
		},
	}
	require.NoError(t, Validate(p))

	res := f.executor.Run(context.Background(), p)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{
		"updateDeployment web",
		"updateDeployment api",
		"updateBatch report",
		"updateBatch cleanup",
	}, f.clusters.Calls)
}

func TestExecutor_ApplyFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	group := domain.ServerGroup{Cluster: "live"}
	f.clusters.AddCluster("live").SetDeployments(group,
		domain.Deployment{Name: "api", Image: image("svc", "v1")},
		domain.Deployment{Name: "worker", Image: image("svc", "v1")},
	)
	f.images.AddImage("svc", "v2", image("svc", "v2").URL)
	f.clusters.FailUpdates["worker"] = errors.New("admission denied")

	p := &PipelineDescription{
		Name:    "release",
		Cluster: "live",
		Start:   "snapshot",
		Steps: []StepDescription{
			{Name: "snapshot", Type: StepTakeSnapshot, OnSuccess: "plan"},
			{Name: "plan", Type: StepPlanImageDeployment, Tag: "v2", OnSuccess: "apply"},
			{Name: "apply", Type: StepApplyDeployment, OnFailure: "rollback"},
			{Name: "rollback", Type: StepRollback},
		},
	}
	require.NoError(t, Validate(p))

	res := f.executor.Run(context.Background(), p)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"snapshot", "plan", "apply", "rollback"}, stepNames(res))
	assert.Equal(t, StepFailed, res.Steps[2].Outcome)
	assert.Contains(t, res.Steps[2].Error, "admission denied")

	require.Len(t, f.clusters.DeploymentUpdates, 1, "the healthy entry is still applied")
	require.Len(t, f.clusters.Applies, 1)
	assert.True(t, f.clusters.Applies[0].IgnoreRevision)
	assert.False(t, f.clusters.Applies[0].IgnoreImage)
	assert.Equal(t, group, f.clusters.Applies[0].Group)

	events := f.events.Events()
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Message, "applied 1 of 2 changes")
}

func TestExecutor_RollbackWithoutSnapshotFails(t *testing.T) {
	f := newFixture(t)
	f.clusters.AddCluster("live")
	p := &PipelineDescription{
		Name:    "p",
		Cluster: "live",
		Start:   "rollback",
		Steps:   []StepDescription{{Name: "rollback", Type: StepRollback}},
	}
	res := f.executor.Run(context.Background(), p)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "no snapshot")
	assert.Empty(t, f.clusters.Applies)
}

func TestExecutor_SnapshotsEveryNamespace(t *testing.T) {
	f := newFixture(t)
	f.clusters.AddCluster("live", "a", "b", "c")
	p := &PipelineDescription{
		Name:    "p",
		Cluster: "live",
		Start:   "snapshot",
		Steps: []StepDescription{
			{Name: "snapshot", Type: StepTakeSnapshot, OnSuccess: "rollback"},
			{Name: "rollback", Type: StepRollback},
		},
	}
	res := f.executor.Run(context.Background(), p)
	require.NoError(t, res.Err)
	assert.ElementsMatch(t, []domain.ServerGroup{
		{Cluster: "live", Namespace: "a"},
		{Cluster: "live", Namespace: "b"},
		{Cluster: "live", Namespace: "c"},
	}, f.clusters.Snapshots)

	require.Len(t, f.clusters.Applies, 3)
	assert.Equal(t, "a", f.clusters.Applies[0].Group.Namespace)
	assert.Equal(t, "c", f.clusters.Applies[2].Group.Namespace)
}

func TestExecutor_LogErrorReceivesPreviousError(t *testing.T) {
	f := newFixture(t)
	broken := domain.ServerGroup{Cluster: "live"}
	f.clusters.AddCluster("live")
	f.clusters.FailReads[broken] = errors.New("connection refused")

	p := &PipelineDescription{
		Name:    "p",
		Cluster: "live",
		Start:   "plan",
		Steps: []StepDescription{
			{Name: "plan", Type: StepPlanImageDeployment, Tag: "v2", OnFailure: "report"},
			{Name: "report", Type: StepLogError},
		},
	}
	res := f.executor.Run(context.Background(), p)
	require.NoError(t, res.Err)

	events := f.events.Events()
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Description, "connection refused")
}

func TestExecutor_LogErrorWithoutError(t *testing.T) {
	f := newFixture(t)
	f.clusters.AddCluster("live")
	p := &PipelineDescription{
		Name:    "p",
		Cluster: "live",
		Start:   "report",
		Steps:   []StepDescription{{Name: "report", Type: StepLogError}},
	}
	res := f.executor.Run(context.Background(), p)
	require.NoError(t, res.Err)
	require.Len(t, f.events.Events(), 1)
	assert.Equal(t, "no error", f.events.Events()[0].Description)
}

func TestExecutor_EmptyPlanSendsNothing(t *testing.T) {
	f := newFixture(t)
	group := domain.ServerGroup{Cluster: "live"}
	f.clusters.AddCluster("live").SetDeployments(group, domain.Deployment{Name: "api", Image: image("svc", "v2")})
	f.images.AddImage("svc", "v2", image("svc", "v2").URL)

	p := &PipelineDescription{
		Name:    "p",
		Cluster: "live",
		Start:   "plan",
		Steps: []StepDescription{
			{Name: "plan", Type: StepPlanImageDeployment, Tag: "v2", OnSuccess: "apply"},
			{Name: "apply", Type: StepApplyDeployment},
		},
	}
	res := f.executor.Run(context.Background(), p)
	require.NoError(t, res.Err)
	assert.Empty(t, f.clusters.DeploymentUpdates)
	assert.Empty(t, f.events.Events())
}

func TestExecutor_NotificationFailureDoesNotFailRun(t *testing.T) {
	f := newFixture(t)
	f.events.Err = errors.New("slack down")
	group := domain.ServerGroup{Cluster: "live"}
	f.clusters.AddCluster("live").SetDeployments(group, domain.Deployment{Name: "api", Image: image("svc", "v1")})
	f.images.AddImage("svc", "v2", image("svc", "v2").URL)

	p := &PipelineDescription{
		Name:    "p",
		Cluster: "live",
		Start:   "plan",
		Steps: []StepDescription{
			{Name: "plan", Type: StepPlanImageDeployment, Tag: "v2", OnSuccess: "apply"},
			{Name: "apply", Type: StepApplyDeployment},
		},
	}
	res := f.executor.Run(context.Background(), p)
	require.NoError(t, res.Err)
	assert.Len(t, f.clusters.DeploymentUpdates, 1)
}

func TestExecutor_CancelledContextStops(t *testing.T) {
	f := newFixture(t)
	f.clusters.AddCluster("live")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &PipelineDescription{
		Name:    "p",
		Cluster: "live",
		Start:   "snapshot",
		Steps:   []StepDescription{{Name: "snapshot", Type: StepTakeSnapshot}},
	}
	res := f.executor.Run(ctx, p)
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Empty(t, res.Steps)
}
