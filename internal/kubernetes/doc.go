// Package kubernetes implements the cluster repository on top of
// controller-runtime clients, one per kubeconfig context.
//
// Deployments map to apps/v1 Deployments, batches to batch/v1 CronJobs,
// pods to core/v1 Pods and scalers to autoscaling/v2
// HorizontalPodAutoscalers. Snapshots are taken and applied by the
// reconciler through an unstructured ResourceStore, so every field of the
// live object is preserved.
//
// A cluster is split into the namespaces listed in the configuration that
// exist in the cluster. Without a namespace list every cluster is treated as
// a single group and resources are read from the default namespace of its
// kubeconfig context.
package kubernetes
