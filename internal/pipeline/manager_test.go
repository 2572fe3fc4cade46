package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spacegun/internal/config"
	"spacegun/internal/domain"
	"spacegun/internal/scheduler"
)

const snapshotPipeline = "cluster: live\ncron: \"@hourly\"\nstart: snapshot\nsteps:\n  - {name: snapshot, type: takeSnapshot}\n"

func writePipeline(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestManager_LoadRegistersCrons(t *testing.T) {
	dir := t.TempDir()
	writePipeline(t, dir, "hourly.yaml", snapshotPipeline)
	writePipeline(t, dir, "manual.yaml", "cluster: live\nstart: a\nsteps:\n  - {name: a, type: takeSnapshot}\n")
	writePipeline(t, dir, "broken.yaml", "cluster: live\nstart: a\nsteps: []\n")

	f := newFixture(t)
	crons := scheduler.NewCronRegistry()
	m := NewManager(dir, f.executor, crons)

	err := m.Load()
	require.Error(t, err)
	var collection *config.ConfigurationErrorCollection
	require.ErrorAs(t, err, &collection)
	assert.Equal(t, 1, collection.Count())

	names := []string{}
	for _, p := range m.List() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"hourly", "manual"}, names)

	registered := crons.Crons()
	require.Len(t, registered, 1)
	assert.Equal(t, "hourly", registered[0].Name)
	assert.False(t, registered[0].IsStarted)

	m.Start()
	assert.True(t, crons.Crons()[0].IsStarted)
	require.NoError(t, m.Stop(context.Background()))
}

func TestManager_RunRecordsHistory(t *testing.T) {
	dir := t.TempDir()
	writePipeline(t, dir, "hourly.yaml", snapshotPipeline)

	f := newFixture(t)
	f.clusters.AddCluster("live")
	m := NewManager(dir, f.executor, nil)
	require.NoError(t, m.Load())

	res, err := m.Run(context.Background(), "hourly")
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	assert.Equal(t, []domain.ServerGroup{{Cluster: "live"}}, f.clusters.Snapshots)

	require.NoError(t, m.Crons().Trigger(context.Background(), "hourly"))
	runs := m.Runs("hourly")
	require.Len(t, runs, 2)
	assert.NotEqual(t, runs[0].RunID, runs[1].RunID)
	assert.Empty(t, m.Runs("other"))

	_, err = m.Run(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownPipeline)
}

func TestManager_RunIsSingleFlight(t *testing.T) {
	f := newFixture(t)
	m := NewManager(t.TempDir(), f.executor, nil)
	m.pipelines["p"] = &PipelineDescription{Name: "p", Cluster: "live", Start: "a", Steps: []StepDescription{{Name: "a", Type: StepTakeSnapshot}}}
	m.running["p"] = true

	_, err := m.Run(context.Background(), "p")
	assert.ErrorIs(t, err, scheduler.ErrAlreadyRunning)
}

func TestManager_Apply(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t)
	crons := scheduler.NewCronRegistry()
	m := NewManager(dir, f.executor, crons)
	require.NoError(t, m.Load())

	path := writePipeline(t, dir, "hourly.yaml", snapshotPipeline)
	m.Apply(Change{Name: "hourly", Operation: OperationCreate, Path: path})
	_, err := m.Get("hourly")
	require.NoError(t, err)
	require.Len(t, crons.Crons(), 1)

	writePipeline(t, dir, "hourly.yaml", "cluster: [")
	m.Apply(Change{Name: "hourly", Operation: OperationUpdate, Path: path})
	p, err := m.Get("hourly")
	require.NoError(t, err, "the previous version stays loaded")
	assert.Equal(t, "@hourly", p.Cron)

	writePipeline(t, dir, "hourly.yaml", "cluster: live\nstart: a\nsteps:\n  - {name: a, type: takeSnapshot}\n")
	m.Apply(Change{Name: "hourly", Operation: OperationUpdate, Path: path})
	assert.Empty(t, crons.Crons())

	m.Apply(Change{Name: "hourly", Operation: OperationDelete, Path: path})
	_, err = m.Get("hourly")
	assert.ErrorIs(t, err, ErrUnknownPipeline)
}

func TestManager_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t)
	m := NewManager(dir, f.executor, nil)
	require.NoError(t, m.Load())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Watch(ctx))

	writePipeline(t, dir, "hourly.yaml", snapshotPipeline)
	assert.Eventually(t, func() bool {
		_, err := m.Get("hourly")
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(dir, "hourly.yaml")))
	assert.Eventually(t, func() bool {
		_, err := m.Get("hourly")
		return err != nil
	}, 5*time.Second, 50*time.Millisecond)
}

func TestMergeOperations(t *testing.T) {
	tests := []struct {
		old, next, want Operation
	}{
		{OperationCreate, OperationUpdate, OperationCreate},
		{OperationCreate, OperationDelete, OperationDelete},
		{OperationUpdate, OperationDelete, OperationDelete},
		{OperationDelete, OperationCreate, OperationCreate},
		{OperationUpdate, OperationUpdate, OperationUpdate},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mergeOperations(tt.old, tt.next), "%s then %s", tt.old, tt.next)
	}
}
