package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.CronRun("deploy", ResultSuccess)
	m.CronRun("deploy", ResultSkipped)
	m.CronRun("deploy", ResultSkipped)
	m.PipelineStep("deploy", "applyDeployment", ResultFailure)
	m.SnapshotOutcome("deployment", "updated")
	m.CacheLookup("deployments", true)

	body := scrape(t, m)
	assert.Contains(t, body, `spacegun_scheduler_runs_total{cron="deploy",result="success"} 1`)
	assert.Contains(t, body, `spacegun_scheduler_runs_total{cron="deploy",result="skipped"} 2`)
	assert.Contains(t, body, `spacegun_pipeline_steps_total{pipeline="deploy",result="failure",type="applyDeployment"} 1`)
	assert.Contains(t, body, `spacegun_reconciler_resources_total{kind="deployment",outcome="updated"} 1`)
	assert.Contains(t, body, `spacegun_cache_lookups_total{cache="deployments",result="hit"} 1`)
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CronRun("x", ResultSuccess)
		m.PipelineRun("x", ResultSuccess, time.Second)
		m.PipelineStep("x", "logError", ResultSuccess)
		m.SnapshotOutcome("batch", "created")
		m.CacheLookup("x", false)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.PipelineRun("deploy", ResultSuccess, 2*time.Second)

	body := scrape(t, m)
	assert.Contains(t, body, `spacegun_pipeline_runs_total{pipeline="deploy",result="success"} 1`)
	assert.Contains(t, body, "spacegun_pipeline_run_duration_seconds")
	assert.Contains(t, body, "go_goroutines")
}
