package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spacegun/internal/config"
)

const validPipeline = `
cluster: live
cron: "*/10 * * * *"
start: probe
steps:
  - name: probe
    type: clusterProbe
    hook: https://pre.example.com/healthz
    timeout: 10s
    onSuccess: plan
  - name: plan
    type: planClusterDeployment
    cluster: pre
    filter:
      resources: [api]
    onSuccess: snapshot
  - name: snapshot
    type: takeSnapshot
    onSuccess: apply
  - name: apply
    type: applyDeployment
    onFailure: rollback
  - name: rollback
    type: rollback
    onFailure: report
  - name: report
    type: logError
`

func TestParse_Valid(t *testing.T) {
	p, err := Parse("deploy-live", []byte(validPipeline))
	require.NoError(t, err)

	assert.Equal(t, "deploy-live", p.Name)
	assert.Equal(t, "live", p.Cluster)
	assert.Equal(t, "probe", p.Start)
	require.Len(t, p.Steps, 6)

	plan, ok := p.Step("plan")
	require.True(t, ok)
	assert.Equal(t, StepPlanClusterDeployment, plan.Type)
	assert.Equal(t, []string{"api"}, plan.Filter.Resources)
	assert.Nil(t, plan.Filter.Namespaces)
	assert.Empty(t, Unreachable(p))
}

func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		contains string
	}{
		{
			name:     "empty document",
			yaml:     "",
			contains: "is empty",
		},
		{
			name:     "unknown field",
			yaml:     "cluster: live\nstart: a\nbogus: true\nsteps:\n  - {name: a, type: logError}\n",
			contains: "bogus",
		},
		{
			name:     "missing cluster",
			yaml:     "start: a\nsteps:\n  - {name: a, type: logError}\n",
			contains: "field 'cluster'",
		},
		{
			name:     "no steps",
			yaml:     "cluster: live\nstart: a\nsteps: []\n",
			contains: "at least one step",
		},
		{
			name:     "unknown start",
			yaml:     "cluster: live\nstart: nope\nsteps:\n  - {name: a, type: logError}\n",
			contains: "references unknown step 'nope'",
		},
		{
			name:     "dangling onSuccess",
			yaml:     "cluster: live\nstart: a\nsteps:\n  - {name: a, type: takeSnapshot, onSuccess: b}\n",
			contains: "field 'steps.a.onSuccess': references unknown step 'b'",
		},
		{
			name:     "dangling onFailure",
			yaml:     "cluster: live\nstart: a\nsteps:\n  - {name: a, type: takeSnapshot, onFailure: b}\n",
			contains: "field 'steps.a.onFailure'",
		},
		{
			name:     "both edges dangling",
			yaml:     "cluster: live\nstart: a\nsteps:\n  - {name: a, type: takeSnapshot, onSuccess: b, onFailure: b}\n",
			contains: "field 'steps.a.onFailure': references unknown step 'b'",
		},
		{
			name:     "duplicate step",
			yaml:     "cluster: live\nstart: a\nsteps:\n  - {name: a, type: logError}\n  - {name: a, type: takeSnapshot}\n",
			contains: "duplicate step name 'a'",
		},
		{
			name:     "unknown type",
			yaml:     "cluster: live\nstart: a\nsteps:\n  - {name: a, type: deployEverything}\n",
			contains: "must be one of",
		},
		{
			name:     "cycle",
			yaml:     "cluster: live\nstart: a\nsteps:\n  - {name: a, type: takeSnapshot, onSuccess: b}\n  - {name: b, type: takeSnapshot, onFailure: a}\n",
			contains: "cycle: a -> b -> a",
		},
		{
			name:     "apply without plan",
			yaml:     "cluster: live\nstart: a\nsteps:\n  - {name: a, type: takeSnapshot, onSuccess: b}\n  - {name: b, type: applyDeployment}\n",
			contains: "field 'steps.b': applyDeployment is reachable without a preceding planning step",
		},
		{
			name:     "apply reachable from a failed plan",
			yaml:     "cluster: live\nstart: a\nsteps:\n  - {name: a, type: planImageDeployment, tag: v2, onSuccess: b, onFailure: b}\n  - {name: b, type: applyDeployment}\n",
			contains: "applyDeployment is reachable without a preceding planning step",
		},
		{
			name:     "probe without hook",
			yaml:     "cluster: live\nstart: a\nsteps:\n  - {name: a, type: clusterProbe}\n",
			contains: "hook",
		},
		{
			name:     "probe with relative hook",
			yaml:     "cluster: live\nstart: a\nsteps:\n  - {name: a, type: clusterProbe, hook: /healthz}\n",
			contains: "absolute http(s) URL",
		},
		{
			name:     "invalid probe timeout",
			yaml:     "cluster: live\nstart: a\nsteps:\n  - {name: a, type: clusterProbe, hook: 'http://x', timeout: soon}\n",
			contains: "not a valid duration",
		},
		{
			name:     "timeout on other step",
			yaml:     "cluster: live\nstart: a\nsteps:\n  - {name: a, type: takeSnapshot, timeout: 5s}\n",
			contains: "only supported by clusterProbe",
		},
		{
			name:     "invalid cron",
			yaml:     "cluster: live\ncron: every monday\nstart: a\nsteps:\n  - {name: a, type: logError}\n",
			contains: "field 'cron'",
		},
		{
			name:     "invalid extractor",
			yaml:     "cluster: live\nstart: a\nsteps:\n  - {name: a, type: planImageDeployment, semanticTagExtractor: '(['}\n",
			contains: "not a valid regular expression",
		},
		{
			name:     "cluster plan against itself",
			yaml:     "cluster: live\nstart: a\nsteps:\n  - {name: a, type: planClusterDeployment, cluster: live}\n",
			contains: "must differ from the pipeline cluster",
		},
		{
			name:     "cluster plan without source",
			yaml:     "cluster: live\nstart: a\nsteps:\n  - {name: a, type: planClusterDeployment}\n",
			contains: "steps.a.cluster",
		},
		{
			name:     "namespace plan with namespace filter",
			yaml:     "cluster: live\nstart: a\nsteps:\n  - {name: a, type: planNamespaceDeployment, source: {namespace: pre}, target: live, filter: {namespaces: [x]}}\n",
			contains: "not allowed for planNamespaceDeployment",
		},
		{
			name:     "namespace plan onto itself",
			yaml:     "cluster: live\nstart: a\nsteps:\n  - {name: a, type: planNamespaceDeployment, source: {namespace: pre}, target: pre}\n",
			contains: "must differ from the source namespace",
		},
		{
			name:     "namespace plan without target",
			yaml:     "cluster: live\nstart: a\nsteps:\n  - {name: a, type: planNamespaceDeployment, source: {namespace: pre}}\n",
			contains: "steps.a.target",
		},
		{
			name:     "filter on non planning step",
			yaml:     "cluster: live\nstart: a\nsteps:\n  - {name: a, type: takeSnapshot, filter: {resources: [api]}}\n",
			contains: "not supported by takeSnapshot",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("p", []byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestValidate_ApplyAfterPlanIsAccepted(t *testing.T) {
	p := &PipelineDescription{
		Name:    "p",
		Cluster: "live",
		Start:   "snapshot",
		Steps: []StepDescription{
			{Name: "snapshot", Type: StepTakeSnapshot, OnSuccess: "plan", OnFailure: "report"},
			{Name: "plan", Type: StepPlanNamespaceDeployment, Source: &Source{Cluster: "pre", Namespace: "live"}, Target: "live", OnSuccess: "apply", OnFailure: "report"},
			{Name: "apply", Type: StepApplyDeployment, OnFailure: "rollback"},
			{Name: "rollback", Type: StepRollback, OnFailure: "report"},
			{Name: "report", Type: StepLogError},
		},
	}
	assert.NoError(t, Validate(p))
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	p := &PipelineDescription{
		Name:  "bad name",
		Start: "a",
		Steps: []StepDescription{
			{Name: "a", Type: StepClusterProbe, OnSuccess: "missing"},
		},
	}
	err := Validate(p)
	require.Error(t, err)

	var verrs config.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	fields := make([]string, 0, len(verrs))
	for _, v := range verrs {
		fields = append(fields, v.Field)
	}
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "cluster")
	assert.Contains(t, fields, "steps.a.onSuccess")
	assert.Contains(t, fields, "steps.a.hook")
}

func TestUnreachable(t *testing.T) {
	p := &PipelineDescription{
		Name:    "p",
		Cluster: "live",
		Start:   "a",
		Steps: []StepDescription{
			{Name: "a", Type: StepTakeSnapshot},
			{Name: "orphan", Type: StepLogError},
		},
	}
	require.NoError(t, Validate(p))
	assert.Equal(t, []string{"orphan"}, Unreachable(p))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	write("deploy-live.yaml", validPipeline)
	write("broken.yml", "cluster: [")
	write("invalid.yaml", "cluster: live\nstart: a\nsteps:\n  - {name: a, type: applyDeployment}\n")
	write("deploy-live.yml", validPipeline)
	write("notes.txt", "ignored")

	pipelines, errs := LoadDir(dir)
	require.Len(t, pipelines, 1)
	assert.Equal(t, "deploy-live", pipelines[0].Name)

	require.True(t, errs.HasErrors())
	assert.Equal(t, 3, errs.Count())
	types := map[string]string{}
	for _, e := range errs.Errors {
		types[e.FileName] = e.ErrorType
	}
	assert.Equal(t, "parse", types["broken.yml"])
	assert.Equal(t, "validation", types["invalid.yaml"])
	assert.Equal(t, "validation", types["deploy-live.yml"])
}

func TestLoadDir_Missing(t *testing.T) {
	pipelines, errs := LoadDir(filepath.Join(t.TempDir(), "nope"))
	assert.Empty(t, pipelines)
	assert.False(t, errs.HasErrors())
}
