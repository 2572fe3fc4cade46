package domain

import (
	"fmt"
	"time"
)

// ServerGroup addresses a deployable scope. An empty Namespace stands for a
// cluster that is not split into namespaces.
type ServerGroup struct {
	Cluster   string `json:"cluster" yaml:"cluster"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

func (g ServerGroup) String() string {
	if g.Namespace == "" {
		return g.Cluster
	}
	return fmt.Sprintf("%s/%s", g.Cluster, g.Namespace)
}

// Image is a container image. URL is the canonical pull reference while Name
// is the repository-local identifier used to match resources to registry
// images across clusters.
type Image struct {
	Name string `json:"name" yaml:"name"`
	Tag  string `json:"tag,omitempty" yaml:"tag,omitempty"`
	URL  string `json:"url" yaml:"url"`
}

// DeployableResource is implemented by every resource a plan can target.
type DeployableResource interface {
	ResourceName() string
	CurrentImage() *Image
}

// Deployment is a long running workload.
type Deployment struct {
	Name     string `json:"name" yaml:"name"`
	Image    *Image `json:"image,omitempty" yaml:"image,omitempty"`
	Replicas int32  `json:"replicas" yaml:"replicas"`
}

func (d Deployment) ResourceName() string { return d.Name }
func (d Deployment) CurrentImage() *Image { return d.Image }

// Batch is a scheduled job.
type Batch struct {
	Name          string     `json:"name" yaml:"name"`
	Image         *Image     `json:"image,omitempty" yaml:"image,omitempty"`
	Schedule      string     `json:"schedule" yaml:"schedule"`
	Suspended     bool       `json:"suspended,omitempty" yaml:"suspended,omitempty"`
	LastScheduled *time.Time `json:"lastScheduled,omitempty" yaml:"lastScheduled,omitempty"`
}

func (b Batch) ResourceName() string { return b.Name }
func (b Batch) CurrentImage() *Image { return b.Image }

// Pod is a read-only view of a running pod.
type Pod struct {
	Name         string `json:"name" yaml:"name"`
	Image        *Image `json:"image,omitempty" yaml:"image,omitempty"`
	RestartCount int32  `json:"restartCount" yaml:"restartCount"`
	Ready        bool   `json:"ready" yaml:"ready"`
}

// Replicas describes the scaling window of a Scaler.
type Replicas struct {
	Current int32 `json:"current" yaml:"current"`
	Minimum int32 `json:"minimum" yaml:"minimum"`
	Maximum int32 `json:"maximum" yaml:"maximum"`
}

// Scaler is a read-only view of a horizontal autoscaler.
type Scaler struct {
	Name     string   `json:"name" yaml:"name"`
	Replicas Replicas `json:"replicas" yaml:"replicas"`
}

// SameImage reports whether a target image already equals the wanted image.
// A missing current image never matches.
func SameImage(current *Image, wanted Image) bool {
	return current != nil && current.URL == wanted.URL
}
