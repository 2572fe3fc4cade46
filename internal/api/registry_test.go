package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spacegun/internal/config"
	"spacegun/internal/domain"
	"spacegun/internal/pipeline"
	"spacegun/internal/reconciler"
	"spacegun/internal/scheduler"
	"spacegun/internal/testing/mock"
)

type addRequest struct {
	A int `json:"a"`
	B int `json:"b"`
}

func TestLocalTransport_Call(t *testing.T) {
	r := NewRegistry()
	Register(r, "math", "add", func(ctx context.Context, req addRequest) (int, error) {
		return req.A + req.B, nil
	})
	Register(r, "math", "fail", func(ctx context.Context, _ Empty) (int, error) {
		return 0, errors.New("boom")
	})
	transport := NewLocalTransport(r)
	ctx := context.Background()

	sum, err := Call[addRequest, int](ctx, transport, "math", "add", addRequest{A: 2, B: 3})
	require.NoError(t, err)
	assert.Equal(t, 5, sum)

	_, err = Call[Empty, int](ctx, transport, "math", "fail", Empty{})
	assert.EqualError(t, err, "boom")

	_, err = Call[Empty, int](ctx, transport, "math", "missing", Empty{})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsNotFound(err))

	_, err = transport.Invoke(ctx, "math", "add", []byte(`{"a": "x"}`))
	assert.ErrorIs(t, err, ErrBadRequest)

	assert.Equal(t, []Procedure{{"math", "add"}, {"math", "fail"}}, r.Procedures())
}

func TestLocalTransport_ClientsDispatchThroughRegistry(t *testing.T) {
	repo := mock.NewClusterRepository().AddCluster("live")
	group := domain.ServerGroup{Cluster: "live"}
	repo.SetBatches(group, domain.Batch{Name: "nightly", Schedule: "@daily"})

	images := mock.NewImageRepository().AddImage("svc", "v1", "r/svc:v1")
	events := &mock.EventRepository{}

	r := NewRegistry()
	RegisterClusterService(r, repo)
	RegisterImageRepository(r, images)
	RegisterEventRepository(r, events)
	transport := NewTransport(Standalone, r, "")
	require.IsType(t, &LocalTransport{}, transport)
	ctx := context.Background()

	batches, err := NewClusterClient(transport).Batches(ctx, group)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "@daily", batches[0].Schedule)

	img, err := NewImageClient(transport).Image(ctx, "svc", "v1")
	require.NoError(t, err)
	assert.Equal(t, "r/svc:v1", img.URL)

	require.NoError(t, NewEventClient(transport).Log(ctx, domain.Event{Message: "hello"}))
	require.Len(t, events.Events(), 1)
	assert.Equal(t, "hello", events.Events()[0].Message)

	err = NewClusterClient(transport).ApplySnapshot(ctx, group, nil, false)
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestClusterClient_RestoreSnapshotKeepsReportOnPartialFailure(t *testing.T) {
	group := domain.ServerGroup{Cluster: "live", Namespace: "service"}
	repo := mock.NewClusterRepository().AddCluster("live", "service")
	repo.FailEntries["worker"] = errors.New("admission denied")

	r := NewRegistry()
	RegisterClusterService(r, repo)
	client := NewClusterClient(NewLocalTransport(r))

	snapshot := &domain.ClusterSnapshot{
		Group: group,
		Deployments: []domain.SnapshotEntry{
			{Name: "api", Data: map[string]interface{}{}},
			{Name: "worker", Data: map[string]interface{}{}},
		},
	}
	report, err := client.RestoreSnapshot(context.Background(), group, snapshot, reconciler.ApplyOptions{IgnoreRevision: true})
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Count(reconciler.OutcomeUnchanged))
	assert.Equal(t, 1, report.Count(reconciler.OutcomeFailed))

	var applyErr *reconciler.ApplyError
	require.ErrorAs(t, err, &applyErr)
	assert.Equal(t, group, applyErr.Group)
	require.Len(t, applyErr.Failures, 1)
	assert.Equal(t, "worker", applyErr.Failures[0].Name)
	assert.ErrorContains(t, err, "admission denied")

	require.Len(t, repo.Applies, 1)
	assert.True(t, repo.Applies[0].IgnoreRevision)
}

func TestClusterClient_RestoreSnapshotFailure(t *testing.T) {
	group := domain.ServerGroup{Cluster: "live"}
	repo := mock.NewClusterRepository().AddCluster("live")
	repo.FailRestore = errors.New("cluster unreachable")

	r := NewRegistry()
	RegisterClusterService(r, repo)

	report, err := NewClusterClient(NewLocalTransport(r)).
		RestoreSnapshot(context.Background(), group, &domain.ClusterSnapshot{Group: group}, reconciler.ApplyOptions{})
	assert.ErrorContains(t, err, "cluster unreachable")
	assert.Nil(t, report)
}

type pipelineService struct {
	runCtx context.Context
}

func (s *pipelineService) List() []pipeline.PipelineDescription { return nil }

func (s *pipelineService) Run(ctx context.Context, name string) (*pipeline.RunResult, error) {
	s.runCtx = ctx
	return &pipeline.RunResult{Pipeline: name}, nil
}

func (s *pipelineService) Runs(name string) []pipeline.RunResult { return nil }

func TestPipelineRun_OutlivesCaller(t *testing.T) {
	svc := &pipelineService{}
	r := NewRegistry()
	RegisterPipelineService(r, svc)

	h, err := r.Lookup(ModulePipelines, "run")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h(ctx, []byte(`{"name":"hourly"}`))
	require.NoError(t, err)
	require.NotNil(t, svc.runCtx)
	assert.NoError(t, svc.runCtx.Err())
}

func TestExecutionContextFor(t *testing.T) {
	tests := []struct {
		mode    config.Mode
		want    ExecutionContext
		wantErr bool
	}{
		{config.ModeStandalone, Standalone, false},
		{"", Standalone, false},
		{config.ModeClient, Client, false},
		{config.ModeServer, Server, false},
		{"cluster", Standalone, true},
	}
	for _, tt := range tests {
		got, err := ExecutionContextFor(tt.mode)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	assert.False(t, Client.ExecutesLocally())
	assert.True(t, Server.ExecutesLocally())
	assert.IsType(t, &HTTPTransport{}, NewTransport(Client, nil, "http://localhost:3000"))
}

func TestToRemoteError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
		is     error
	}{
		{NewNotFoundError("pipeline", "x"), http.StatusNotFound, CodeNotFound, ErrNotFound},
		{fmt.Errorf("wrapped: %w", pipeline.ErrUnknownPipeline), http.StatusNotFound, CodeNotFound, ErrNotFound},
		{fmt.Errorf("p: %w", scheduler.ErrAlreadyRunning), http.StatusConflict, CodeConflict, scheduler.ErrAlreadyRunning},
		{fmt.Errorf("%w: nope", ErrBadRequest), http.StatusBadRequest, CodeBadRequest, ErrBadRequest},
		{errors.New("boom"), http.StatusInternalServerError, CodeInternal, nil},
	}
	for _, tt := range tests {
		remote := ToRemoteError(tt.err)
		assert.Equal(t, tt.status, remote.StatusCode, tt.err.Error())
		assert.Equal(t, tt.code, remote.Code)
		assert.Equal(t, tt.err.Error(), remote.Error())
		if tt.is != nil {
			assert.ErrorIs(t, remote, tt.is)
		}
	}
}
