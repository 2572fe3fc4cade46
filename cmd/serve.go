package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"spacegun/internal/app"
	"spacegun/internal/config"
)

var serveMode string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run pipelines on their cron schedules",
	Long: `Loads the pipelines from <config-path>/pipelines and runs each one on its
cron schedule. Pipeline files are watched and reloaded when they change.

In server mode the procedures are also served over HTTP on server.host and
server.port, so that spacegun in client mode can use this instance. Under
systemd, a socket passed by socket activation is used instead, and readiness
is reported with sd_notify.

The mode comes from config.yaml unless --mode is given.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(debug, configPath)
	if serveMode != "" {
		switch m := config.Mode(serveMode); m {
		case config.ModeStandalone, config.ModeServer:
			cfg.Mode = m
		default:
			return fmt.Errorf("--mode must be %s or %s", config.ModeStandalone, config.ModeServer)
		}
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return application.Serve(cmd.Context())
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveMode, "mode", "", "Override the configured mode (standalone or server)")
}
