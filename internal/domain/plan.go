package domain

// DeploymentPlan is the unit of planned change: set Deployable in Group to
// Image. Producing a plan never mutates cluster state.
type DeploymentPlan[T DeployableResource] struct {
	Group      ServerGroup `json:"group" yaml:"group"`
	Deployable T           `json:"deployable" yaml:"deployable"`
	Image      Image       `json:"image" yaml:"image"`
}

// Diagnostic records a resource a planner reported and skipped.
type Diagnostic struct {
	Group    ServerGroup `json:"group" yaml:"group"`
	Resource string      `json:"resource" yaml:"resource"`
	Reason   string      `json:"reason" yaml:"reason"`
}

// JobPlan is the batched output of a planning pass.
type JobPlan struct {
	Name        string                       `json:"name" yaml:"name"`
	Deployments []DeploymentPlan[Deployment] `json:"deployments" yaml:"deployments"`
	Batches     []DeploymentPlan[Batch]      `json:"batches" yaml:"batches"`
	Diagnostics []Diagnostic                 `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// NewJobPlan returns an empty plan.
func NewJobPlan(name string) *JobPlan {
	return &JobPlan{
		Name:        name,
		Deployments: []DeploymentPlan[Deployment]{},
		Batches:     []DeploymentPlan[Batch]{},
	}
}

// IsEmpty reports whether the plan has nothing to apply.
func (p *JobPlan) IsEmpty() bool {
	return p == nil || (len(p.Deployments) == 0 && len(p.Batches) == 0)
}

// Merge appends the entries of other, keeping their order.
func (p *JobPlan) Merge(other *JobPlan) {
	if other == nil {
		return
	}
	p.Deployments = append(p.Deployments, other.Deployments...)
	p.Batches = append(p.Batches, other.Batches...)
	p.Diagnostics = append(p.Diagnostics, other.Diagnostics...)
}

// AddDiagnostic records a skipped resource.
func (p *JobPlan) AddDiagnostic(group ServerGroup, resource, reason string) {
	p.Diagnostics = append(p.Diagnostics, Diagnostic{Group: group, Resource: resource, Reason: reason})
}
