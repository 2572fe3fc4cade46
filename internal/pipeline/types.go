package pipeline

import (
	"spacegun/internal/domain"
)

// StepType is one of the fixed set of step kinds.
type StepType string

const (
	StepClusterProbe            StepType = "clusterProbe"
	StepPlanImageDeployment     StepType = "planImageDeployment"
	StepPlanClusterDeployment   StepType = "planClusterDeployment"
	StepPlanNamespaceDeployment StepType = "planNamespaceDeployment"
	StepApplyDeployment         StepType = "applyDeployment"
	StepTakeSnapshot            StepType = "takeSnapshot"
	StepRollback                StepType = "rollback"
	StepLogError                StepType = "logError"
)

// StepTypes lists every valid step type.
var StepTypes = []StepType{
	StepClusterProbe,
	StepPlanImageDeployment,
	StepPlanClusterDeployment,
	StepPlanNamespaceDeployment,
	StepApplyDeployment,
	StepTakeSnapshot,
	StepRollback,
	StepLogError,
}

// IsPlanning reports whether the step produces a JobPlan.
func (t StepType) IsPlanning() bool {
	switch t {
	case StepPlanImageDeployment, StepPlanClusterDeployment, StepPlanNamespaceDeployment:
		return true
	}
	return false
}

// Source is the origin of a namespace promotion.
type Source struct {
	Cluster   string `yaml:"cluster,omitempty" json:"cluster,omitempty"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// StepDescription is one node of a pipeline's step graph. Which fields apply
// depends on Type.
type StepDescription struct {
	Name      string   `yaml:"name" json:"name"`
	Type      StepType `yaml:"type" json:"type"`
	OnSuccess string   `yaml:"onSuccess,omitempty" json:"onSuccess,omitempty"`
	OnFailure string   `yaml:"onFailure,omitempty" json:"onFailure,omitempty"`

	// clusterProbe
	Hook    string `yaml:"hook,omitempty" json:"hook,omitempty"`
	Timeout string `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// planImageDeployment
	Tag                  string `yaml:"tag,omitempty" json:"tag,omitempty"`
	SemanticTagExtractor string `yaml:"semanticTagExtractor,omitempty" json:"semanticTagExtractor,omitempty"`

	// planClusterDeployment
	Cluster string `yaml:"cluster,omitempty" json:"cluster,omitempty"`

	// planNamespaceDeployment
	Source *Source `yaml:"source,omitempty" json:"source,omitempty"`
	Target string  `yaml:"target,omitempty" json:"target,omitempty"`

	Filter *domain.Filter `yaml:"filter,omitempty" json:"filter,omitempty"`
}

// PipelineDescription is a loaded pipeline. It is immutable once loaded.
type PipelineDescription struct {
	Name    string            `yaml:"name,omitempty" json:"name"`
	Cluster string            `yaml:"cluster" json:"cluster"`
	Cron    string            `yaml:"cron,omitempty" json:"cron,omitempty"`
	Start   string            `yaml:"start" json:"start"`
	Steps   []StepDescription `yaml:"steps" json:"steps"`
}

// Step returns the step called name.
func (p *PipelineDescription) Step(name string) (*StepDescription, bool) {
	for i := range p.Steps {
		if p.Steps[i].Name == name {
			return &p.Steps[i], true
		}
	}
	return nil, false
}
