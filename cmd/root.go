package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"spacegun/internal/api"
	"spacegun/internal/app"
	"spacegun/internal/formatting"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeNotFound indicates that a named cluster, image or pipeline does not exist.
	ExitCodeNotFound = 2
	// ExitCodePipelineFailed indicates that a pipeline ran and failed.
	ExitCodePipelineFailed = 3
)

var (
	configPath   string
	debug        bool
	outputFormat string
	noColor      bool
)

// rootCmd represents the base command for the spacegun application.
var rootCmd = &cobra.Command{
	Use:   "spacegun",
	Short: "Keep Kubernetes deployments on the images you want",
	Long: `spacegun keeps Kubernetes deployments and cron jobs on the images you want.

Pipelines describe how a cluster is updated: plan updates from a registry or
from another cluster, apply them, take or restore snapshots, and notify Slack.
Pipelines run on a cron schedule under 'spacegun serve' or on demand with
'spacegun pipelines run'.`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "spacegun version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if api.IsNotFound(err) {
		return ExitCodeNotFound
	}
	var failed *pipelineFailedError
	if errors.As(err, &failed) {
		return ExitCodePipelineFailed
	}
	return ExitCodeError
}

// pipelineFailedError is returned when a pipeline ran but its last step failed.
type pipelineFailedError struct {
	name string
	err  error
}

func (e *pipelineFailedError) Error() string {
	return "pipeline " + e.name + " failed: " + e.err.Error()
}

func (e *pipelineFailedError) Unwrap() error {
	return e.err
}

// newApplication bootstraps spacegun for one command. Logs are discarded
// unless --debug is set, so that stdout stays parseable.
func newApplication() (*app.Application, error) {
	cfg := app.NewConfig(debug, configPath)
	cfg.Silent = !debug
	return app.NewApplication(cfg)
}

// newFormatter returns the formatter selected by --output.
func newFormatter(cmd *cobra.Command) (formatting.Formatter, error) {
	return formatting.New(formatting.Options{
		Format: formatting.OutputFormat(outputFormat),
		Color:  !noColor,
		Out:    cmd.OutOrStdout(),
	})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", "", "Configuration directory (default $HOME/.config/spacegun)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", string(formatting.FormatTable), "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored table output")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
