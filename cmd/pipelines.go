package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"spacegun/internal/config"
	"spacegun/internal/formatting"
	"spacegun/internal/pipeline"
)

func newPipelinesCmd() *cobra.Command {
	c := &cobra.Command{
		Use:     "pipelines",
		Aliases: []string{"pipeline"},
		Short:   "List, run and validate pipelines",
	}
	c.AddCommand(newPipelinesListCmd(), newPipelinesRunCmd(), newPipelinesRunsCmd(), newPipelinesValidateCmd())
	return c
}

func newPipelinesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the loaded pipelines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication()
			if err != nil {
				return err
			}
			pipelines := application.Services().Pipelines.List()

			view := formatting.View{Headers: []string{"NAME", "CLUSTER", "CRON", "START", "STEPS"}, Empty: "No pipelines found"}
			for _, p := range pipelines {
				view.Rows = append(view.Rows, []string{p.Name, p.Cluster, p.Cron, p.Start, strconv.Itoa(len(p.Steps))})
			}
			return write(cmd, pipelines, view)
		},
	}
}

func newPipelinesRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run NAME",
		Short: "Run a pipeline now",
		Long: `Runs a pipeline now and prints the executed steps. A pipeline runs at most
once at a time; running one that is already in progress fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication()
			if err != nil {
				return err
			}

			s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			s.Writer = cmd.ErrOrStderr()
			s.Suffix = fmt.Sprintf(" Running pipeline %s...", args[0])
			s.Start()
			res, err := application.Services().Pipelines.Run(cmd.Context(), args[0])
			if err != nil || !res.Succeeded() {
				s.FinalMSG = text.FgRed.Sprintf("Pipeline %s failed", args[0]) + "\n"
			}
			s.Stop()
			if err != nil {
				return err
			}

			if err := write(cmd, res, stepsView(res)); err != nil {
				return err
			}
			if !res.Succeeded() {
				runErr := res.Err
				if runErr == nil {
					runErr = errors.New(res.Error)
				}
				return &pipelineFailedError{name: res.Pipeline, err: runErr}
			}
			return nil
		},
	}
}

func stepsView(res *pipeline.RunResult) formatting.View {
	view := formatting.View{Headers: []string{"STEP", "TYPE", "OUTCOME", "DURATION", "ERROR"}, Empty: "No steps ran"}
	for _, step := range res.Steps {
		view.Rows = append(view.Rows, []string{step.Name, string(step.Type), step.Outcome, step.Duration.Round(time.Millisecond).String(), step.Error})
	}
	return view
}

func newPipelinesRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs [NAME]",
		Short: "Show recent pipeline runs, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication()
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			runs := application.Services().Pipelines.Runs(name)

			view := formatting.View{Headers: []string{"RUN", "PIPELINE", "STARTED", "DURATION", "STEPS", "ERROR"}, Empty: "No runs recorded"}
			for _, r := range runs {
				steps := make([]string, 0, len(r.Steps))
				for _, s := range r.Steps {
					steps = append(steps, s.Name)
				}
				view.Rows = append(view.Rows, []string{
					r.RunID,
					r.Pipeline,
					r.StartedAt.Local().Format(time.DateTime),
					r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
					strings.Join(steps, " → "),
					r.Error,
				})
			}
			return write(cmd, runs, view)
		},
	}
}

func newPipelinesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [DIR]",
		Short: "Check pipeline files without running them",
		Long: `Parses and validates every pipeline file in DIR, or in the pipelines
directory below --config-path. Steps that can never run are reported as
warnings.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := pipelinesDir(args)
			if err != nil {
				return err
			}
			pipelines, errs := pipeline.LoadDir(dir)

			out := cmd.OutOrStdout()
			for _, p := range pipelines {
				fmt.Fprintf(out, "%s %s\n", text.FgGreen.Sprint("✓"), p.Name)
				for _, step := range pipeline.Unreachable(p) {
					fmt.Fprintf(out, "  %s step %s is unreachable from %s\n", text.FgYellow.Sprint("!"), step, p.Start)
				}
			}
			if errs.HasErrors() {
				fmt.Fprintln(cmd.ErrOrStderr(), errs.GetDetailedReport())
				return fmt.Errorf("%d of %d pipeline files are invalid", errs.Count(), errs.Count()+len(pipelines))
			}
			return nil
		},
	}
}

func pipelinesDir(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	base := configPath
	if base == "" {
		var err error
		if base, err = config.GetDefaultConfigPath(); err != nil {
			return "", err
		}
	}
	return config.PipelinesPath(base), nil
}

func init() {
	rootCmd.AddCommand(newPipelinesCmd())
}
