package domain

import "time"

// SnapshotEntry holds the full raw representation of one resource.
type SnapshotEntry struct {
	Name string                 `json:"name" yaml:"name"`
	Data map[string]interface{} `json:"data" yaml:"data"`
}

// ClusterSnapshot is the captured state of the deployments and batches of a
// ServerGroup.
type ClusterSnapshot struct {
	Group       ServerGroup     `json:"group" yaml:"group"`
	Timestamp   time.Time       `json:"timestamp" yaml:"timestamp"`
	Deployments []SnapshotEntry `json:"deployments" yaml:"deployments"`
	Batches     []SnapshotEntry `json:"batches" yaml:"batches"`
}
