package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"spacegun/internal/api"
	"spacegun/internal/domain"
	"spacegun/internal/formatting"
)

var namespaceFlag string

func newClustersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clusters",
		Short: "List the configured clusters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication()
			if err != nil {
				return err
			}
			clusters := application.Services().Clusters.Clusters()

			view := formatting.View{Headers: []string{"CLUSTER"}, Empty: "No clusters configured"}
			for _, c := range clusters {
				view.Rows = append(view.Rows, []string{c})
			}
			return write(cmd, clusters, view)
		},
	}
}

func newNamespacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "namespaces CLUSTER",
		Short: "List the namespaces spacegun manages in a cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication()
			if err != nil {
				return err
			}
			namespaces, err := application.Services().Clusters.Namespaces(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			view := formatting.View{Headers: []string{"NAMESPACE"}, Empty: fmt.Sprintf("Cluster %s is not split into namespaces", args[0])}
			for _, ns := range namespaces {
				view.Rows = append(view.Rows, []string{ns})
			}
			return write(cmd, namespaces, view)
		},
	}
}

// groupsOf returns the server groups of cluster: the --namespace one, every
// managed namespace, or the whole cluster when it is not split.
func groupsOf(ctx context.Context, clusters *api.ClusterClient, cluster string) ([]domain.ServerGroup, error) {
	if namespaceFlag != "" {
		return []domain.ServerGroup{{Cluster: cluster, Namespace: namespaceFlag}}, nil
	}
	namespaces, err := clusters.Namespaces(ctx, cluster)
	if err != nil {
		return nil, err
	}
	if len(namespaces) == 0 {
		return []domain.ServerGroup{{Cluster: cluster}}, nil
	}
	groups := make([]domain.ServerGroup, 0, len(namespaces))
	for _, ns := range namespaces {
		groups = append(groups, domain.ServerGroup{Cluster: cluster, Namespace: ns})
	}
	return groups, nil
}

// grouped is one server group and its resources, as printed by json and yaml.
type grouped[T any] struct {
	Group     domain.ServerGroup `json:"group" yaml:"group"`
	Resources []T                `json:"resources" yaml:"resources"`
}

// resourceCmd builds a command listing one kind of resource of a cluster.
func resourceCmd[T any](use, short string, headers []string,
	list func(*api.ClusterClient) func(context.Context, domain.ServerGroup) ([]T, error),
	row func(T) []string,
) *cobra.Command {
	c := &cobra.Command{
		Use:   use + " CLUSTER",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication()
			if err != nil {
				return err
			}
			clusters := application.Services().Clusters
			groups, err := groupsOf(cmd.Context(), clusters, args[0])
			if err != nil {
				return err
			}

			view := formatting.View{Headers: append([]string{"NAMESPACE"}, headers...), Empty: fmt.Sprintf("No %s found", use)}
			data := make([]grouped[T], 0, len(groups))
			for _, group := range groups {
				resources, err := list(clusters)(cmd.Context(), group)
				if err != nil {
					return fmt.Errorf("failed to list %s of %s: %w", use, group, err)
				}
				data = append(data, grouped[T]{Group: group, Resources: resources})
				for _, r := range resources {
					ns := group.Namespace
					if ns == "" {
						ns = "-"
					}
					view.Rows = append(view.Rows, append([]string{ns}, row(r)...))
				}
			}
			return write(cmd, data, view)
		},
	}
	c.Flags().StringVarP(&namespaceFlag, "namespace", "n", "", "Only this namespace")
	return c
}

func newDeploymentsCmd() *cobra.Command {
	return resourceCmd("deployments", "List the deployments of a cluster",
		[]string{"NAME", "IMAGE", "REPLICAS"},
		func(c *api.ClusterClient) func(context.Context, domain.ServerGroup) ([]domain.Deployment, error) {
			return c.Deployments
		},
		func(d domain.Deployment) []string {
			return []string{d.Name, imageCell(d.Image), strconv.Itoa(int(d.Replicas))}
		})
}

func newBatchesCmd() *cobra.Command {
	return resourceCmd("batches", "List the cron jobs of a cluster",
		[]string{"NAME", "IMAGE", "SCHEDULE", "SUSPENDED", "LAST SCHEDULED"},
		func(c *api.ClusterClient) func(context.Context, domain.ServerGroup) ([]domain.Batch, error) {
			return c.Batches
		},
		func(b domain.Batch) []string {
			return []string{b.Name, imageCell(b.Image), b.Schedule, yesNo(b.Suspended), timeCell(b.LastScheduled)}
		})
}

func newPodsCmd() *cobra.Command {
	return resourceCmd("pods", "List the pods of a cluster",
		[]string{"NAME", "IMAGE", "READY", "RESTARTS"},
		func(c *api.ClusterClient) func(context.Context, domain.ServerGroup) ([]domain.Pod, error) {
			return c.Pods
		},
		func(p domain.Pod) []string {
			return []string{p.Name, imageCell(p.Image), yesNo(p.Ready), strconv.Itoa(int(p.RestartCount))}
		})
}

func newScalersCmd() *cobra.Command {
	return resourceCmd("scalers", "List the horizontal pod autoscalers of a cluster",
		[]string{"NAME", "CURRENT", "MIN", "MAX"},
		func(c *api.ClusterClient) func(context.Context, domain.ServerGroup) ([]domain.Scaler, error) {
			return c.Scalers
		},
		func(s domain.Scaler) []string {
			return []string{s.Name, strconv.Itoa(int(s.Replicas.Current)), strconv.Itoa(int(s.Replicas.Minimum)), strconv.Itoa(int(s.Replicas.Maximum))}
		})
}

func init() {
	rootCmd.AddCommand(newClustersCmd(), newNamespacesCmd(), newDeploymentsCmd(), newBatchesCmd(), newPodsCmd(), newScalersCmd())
}
