package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spacegun/internal/api"
	"spacegun/internal/pipeline"
)

func TestSetVersion(t *testing.T) {
	original := rootCmd.Version
	defer func() { rootCmd.Version = original }()

	SetVersion("1.2.3-test")
	assert.Equal(t, "1.2.3-test", GetVersion())
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "spacegun", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)

	for _, flag := range []string{"config-path", "debug", "output", "no-color"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestVersionTemplate(t *testing.T) {
	testCmd := &cobra.Command{Use: "test", Version: "1.0.0"}
	testCmd.SetVersionTemplate(`{{printf "spacegun version %s\n" .Version}}`)

	var buf bytes.Buffer
	testCmd.SetOut(&buf)
	testCmd.SetArgs([]string{"--version"})
	require.NoError(t, testCmd.Execute())
	assert.Equal(t, "spacegun version 1.0.0\n", buf.String())
}

func TestSubcommands(t *testing.T) {
	found := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		found[c.Name()] = true
	}
	for _, expected := range []string{
		"version", "self-update", "serve", "pipelines", "crons", "clusters", "namespaces",
		"deployments", "batches", "pods", "scalers", "images", "tags", "snapshot",
	} {
		assert.True(t, found[expected], "subcommand %s", expected)
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "generic", err: errors.New("boom"), want: ExitCodeError},
		{name: "not found", err: fmt.Errorf("lookup: %w", api.NewNotFoundError("cluster", "live")), want: ExitCodeNotFound},
		{name: "unknown pipeline", err: fmt.Errorf("%w: dev", pipeline.ErrUnknownPipeline), want: ExitCodeNotFound},
		{name: "pipeline failed", err: &pipelineFailedError{name: "dev", err: errors.New("step failed")}, want: ExitCodePipelineFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getExitCode(tt.err))
		})
	}
}

func TestPipelinesValidate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hourly.yaml"),
		[]byte("cluster: live\ncron: \"@hourly\"\nstart: snapshot\nsteps:\n  - {name: snapshot, type: takeSnapshot}\n"), 0644))

	c := newPipelinesValidateCmd()
	var out, errOut bytes.Buffer
	c.SetOut(&out)
	c.SetErr(&errOut)
	c.SetArgs([]string{dir})
	require.NoError(t, c.Execute())
	assert.Contains(t, out.String(), "hourly")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("cluster: live\nstart: a\nsteps: []\n"), 0644))
	c = newPipelinesValidateCmd()
	c.SetOut(&out)
	c.SetErr(&errOut)
	c.SetArgs([]string{dir})
	err := c.Execute()
	assert.ErrorContains(t, err, "1 of 2 pipeline files are invalid")
	assert.Contains(t, errOut.String(), "broken.yaml")
}

func TestPipelinesList_Standalone(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pipelines"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("kubeconfig: "+filepath.Join(dir, "missing")+"\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pipelines", "hourly.yaml"),
		[]byte("cluster: live\ncron: \"@hourly\"\nstart: snapshot\nsteps:\n  - {name: snapshot, type: takeSnapshot}\n"), 0644))

	original := configPath
	originalFormat := outputFormat
	defer func() { configPath, outputFormat = original, originalFormat }()
	configPath = dir
	outputFormat = "yaml"

	c := newPipelinesListCmd()
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetArgs(nil)
	require.NoError(t, c.Execute())
	assert.Contains(t, out.String(), "name: hourly")
	assert.Contains(t, out.String(), "cluster: live")
}
