package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"spacegun/internal/formatting"
)

func newCronsCmd() *cobra.Command {
	c := &cobra.Command{
		Use:     "crons",
		Aliases: []string{"cron"},
		Short:   "Show and trigger pipeline crons",
		Args:    cobra.NoArgs,
		RunE:    runCronsList,
	}
	c.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the registered crons and their next runs",
		Args:  cobra.NoArgs,
		RunE:  runCronsList,
	})
	c.AddCommand(&cobra.Command{
		Use:   "trigger NAME",
		Short: "Run a cron now",
		Long: `Runs the pipeline behind a cron now. The run is skipped with an error when
the same pipeline is already running.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication()
			if err != nil {
				return err
			}
			if err := application.Services().Pipelines.Trigger(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Triggered %s\n", args[0])
			return nil
		},
	})
	return c
}

func runCronsList(cmd *cobra.Command, args []string) error {
	application, err := newApplication()
	if err != nil {
		return err
	}
	crons := application.Services().Pipelines.Crons()

	view := formatting.View{Headers: []string{"NAME", "CRON", "STARTED", "RUNNING", "LAST RUN", "NEXT RUNS"}, Empty: "No crons registered"}
	for _, c := range crons {
		view.Rows = append(view.Rows, []string{c.Name, c.Expression, yesNo(c.IsStarted), yesNo(c.IsRunning), timeCell(c.LastRun), timesCell(c.NextRuns)})
	}
	return write(cmd, crons, view)
}

func init() {
	rootCmd.AddCommand(newCronsCmd())
}
