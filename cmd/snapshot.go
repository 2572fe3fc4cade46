package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"spacegun/internal/artifacts"
	"spacegun/internal/formatting"
	"spacegun/internal/reconciler"
)

func newSnapshotCmd() *cobra.Command {
	c := &cobra.Command{
		Use:     "snapshot",
		Aliases: []string{"snapshots"},
		Short:   "Save cluster snapshots and restore them",
	}
	c.AddCommand(newSnapshotSaveCmd(), newSnapshotApplyCmd())
	return c
}

func newSnapshotSaveCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "save CLUSTER",
		Short: "Save a snapshot of the deployments and cron jobs of a cluster",
		Long: `Takes a snapshot of every managed namespace of CLUSTER, or only of
--namespace, and saves it as an artifact below snapshots/.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication()
			if err != nil {
				return err
			}
			services := application.Services()
			groups, err := groupsOf(cmd.Context(), services.Clusters, args[0])
			if err != nil {
				return err
			}

			for _, group := range groups {
				snapshot, err := services.Clusters.TakeSnapshot(cmd.Context(), group)
				if err != nil {
					return fmt.Errorf("failed to snapshot %s: %w", group, err)
				}
				name, err := artifacts.SaveSnapshot(cmd.Context(), services.Artifacts, snapshot)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s/%s (%d deployments, %d batches)\n",
					artifacts.SnapshotPath(group), name, len(snapshot.Deployments), len(snapshot.Batches))
			}
			return nil
		},
	}
	c.Flags().StringVarP(&namespaceFlag, "namespace", "n", "", "Only this namespace")
	return c
}

func newSnapshotApplyCmd() *cobra.Command {
	var opts reconciler.ApplyOptions
	c := &cobra.Command{
		Use:   "apply CLUSTER",
		Short: "Restore the latest saved snapshot of a cluster",
		Long: `Applies the latest saved snapshot of every managed namespace of CLUSTER,
or only of --namespace. Resources changed after the snapshot was taken are
skipped unless --ignore-revision is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication()
			if err != nil {
				return err
			}
			services := application.Services()
			groups, err := groupsOf(cmd.Context(), services.Clusters, args[0])
			if err != nil {
				return err
			}

			view := formatting.View{Headers: []string{"GROUP", "KIND", "NAME", "OUTCOME", "REASON"}, Empty: "Nothing to restore"}
			reports := make([]*reconciler.ApplyReport, 0, len(groups))
			for _, group := range groups {
				snapshot, err := artifacts.LatestSnapshot(cmd.Context(), services.Artifacts, group)
				if err != nil {
					return err
				}
				// Failed entries are listed in the report and counted below.
				report, err := services.Clusters.RestoreSnapshot(cmd.Context(), group, snapshot, opts)
				if report == nil {
					return fmt.Errorf("failed to restore %s: %w", group, err)
				}
				reports = append(reports, report)
				for _, r := range report.Results {
					view.Rows = append(view.Rows, []string{group.String(), string(r.Kind), r.Name, string(r.Outcome), r.Reason})
				}
			}
			if err := write(cmd, reports, view); err != nil {
				return err
			}
			for _, report := range reports {
				if n := report.Count(reconciler.OutcomeFailed); n > 0 {
					return fmt.Errorf("%d resources of %s could not be restored", n, report.Group)
				}
			}
			return nil
		},
	}
	c.Flags().StringVarP(&namespaceFlag, "namespace", "n", "", "Only this namespace")
	c.Flags().BoolVar(&opts.IgnoreImage, "ignore-image", false, "Keep the current images")
	c.Flags().BoolVar(&opts.IgnoreRevision, "ignore-revision", false, "Also restore resources changed after the snapshot")
	return c
}

func init() {
	rootCmd.AddCommand(newSnapshotCmd())
}
