package pipeline

import (
	"fmt"
	"strings"

	"spacegun/internal/config"
	"spacegun/internal/dependency"
	"spacegun/internal/scheduler"
)

// Validate checks a pipeline for structural problems and returns every one
// found as config.ValidationErrors.
func Validate(p *PipelineDescription) error {
	var errs config.ValidationErrors

	errs.Append("name", config.ValidateEntityName(p.Name, "pipeline"))
	errs.Append("cluster", config.ValidateRequired("cluster", p.Cluster, "pipeline"))
	errs.Append("start", config.ValidateRequired("start", p.Start, "pipeline"))
	if p.Cron != "" {
		if _, err := scheduler.ParseExpression(p.Cron); err != nil {
			errs.Add("cron", err.Error(), p.Cron)
		}
	}
	if len(p.Steps) == 0 {
		errs.Add("steps", "must have at least one step for pipeline")
		return errs
	}

	allowed := make([]string, len(StepTypes))
	for i, t := range StepTypes {
		allowed[i] = string(t)
	}

	names := make(map[string]bool, len(p.Steps))
	for i, step := range p.Steps {
		if step.Name == "" {
			errs.Add(fmt.Sprintf("steps[%d].name", i), "step name cannot be empty")
			continue
		}
		if names[step.Name] {
			errs.Add(fmt.Sprintf("steps[%d].name", i), fmt.Sprintf("duplicate step name '%s'", step.Name))
		}
		names[step.Name] = true
	}

	for _, step := range p.Steps {
		if step.Name == "" {
			continue
		}
		field := fmt.Sprintf("steps.%s", step.Name)
		if err := config.ValidateOneOf(field+".type", string(step.Type), allowed); err != nil {
			errs.Append(field+".type", err)
			continue
		}
		validateStep(&errs, field, p, step)
	}

	for _, edge := range stepGraph(p).Dangling() {
		if edge.From == "" {
			continue
		}
		field := fmt.Sprintf("steps.%s.%s", edge.From, stepEdges[edge.Index])
		errs.Add(field, fmt.Sprintf("references unknown step '%s'", edge.To), string(edge.To))
	}

	if p.Start != "" && !names[p.Start] {
		errs.Add("start", fmt.Sprintf("references unknown step '%s'", p.Start), p.Start)
	}
	if errs.HasErrors() {
		return errs
	}

	if cycle := stepGraph(p).FindCycle(); cycle != nil {
		parts := make([]string, len(cycle))
		for i, id := range cycle {
			parts[i] = string(id)
		}
		errs.Add("steps", "contain a cycle: "+strings.Join(parts, " -> "))
		return errs
	}

	for _, name := range unplannedApplies(p) {
		errs.Add(fmt.Sprintf("steps.%s", name), "applyDeployment is reachable without a preceding planning step")
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateStep(errs *config.ValidationErrors, field string, p *PipelineDescription, step StepDescription) {
	if step.Timeout != "" {
		if step.Type != StepClusterProbe {
			errs.Add(field+".timeout", "is only supported by clusterProbe steps")
		} else {
			errs.Append(field+".timeout", config.ValidateDuration(field+".timeout", step.Timeout))
		}
	}

	switch step.Type {
	case StepClusterProbe:
		if step.Hook == "" {
			errs.Add(field+".hook", "is required for clusterProbe steps")
		} else {
			errs.Append(field+".hook", config.ValidateURL(field+".hook", step.Hook))
		}

	case StepPlanImageDeployment:
		if step.SemanticTagExtractor != "" {
			errs.Append(field+".semanticTagExtractor", config.ValidatePattern(field+".semanticTagExtractor", step.SemanticTagExtractor))
		}

	case StepPlanClusterDeployment:
		switch step.Cluster {
		case "":
			errs.Add(field+".cluster", "is required for planClusterDeployment steps")
		case p.Cluster:
			errs.Add(field+".cluster", "must differ from the pipeline cluster", step.Cluster)
		}

	case StepPlanNamespaceDeployment:
		if step.Source == nil || step.Source.Namespace == "" {
			errs.Add(field+".source.namespace", "is required for planNamespaceDeployment steps")
		}
		if step.Target == "" {
			errs.Add(field+".target", "is required for planNamespaceDeployment steps")
		}
		if step.Filter != nil && step.Filter.Namespaces != nil {
			errs.Add(field+".filter.namespaces", "is not allowed for planNamespaceDeployment steps")
		}
		if step.Source != nil && step.Target != "" &&
			(step.Source.Cluster == "" || step.Source.Cluster == p.Cluster) &&
			step.Source.Namespace == step.Target {
			errs.Add(field+".target", "must differ from the source namespace", step.Target)
		}
	}

	if !step.Type.IsPlanning() && step.Filter != nil {
		errs.Add(field+".filter", fmt.Sprintf("is not supported by %s steps", step.Type))
	}
}

// stepEdges names the edges of a step node, in the order stepGraph adds them.
var stepEdges = [...]string{"onSuccess", "onFailure"}

func stepGraph(p *PipelineDescription) *dependency.Graph {
	g := dependency.New()
	for _, step := range p.Steps {
		g.AddNode(dependency.Node{
			ID:    dependency.NodeID(step.Name),
			Label: string(step.Type),
			Edges: []dependency.NodeID{dependency.NodeID(step.OnSuccess), dependency.NodeID(step.OnFailure)},
		})
	}
	return g
}

// Unreachable returns the steps that can never run because no path from the
// start step leads to them.
func Unreachable(p *PipelineDescription) []string {
	reachable := make(map[dependency.NodeID]bool)
	for _, id := range stepGraph(p).Reachable(dependency.NodeID(p.Start)) {
		reachable[id] = true
	}
	var res []string
	for _, step := range p.Steps {
		if !reachable[dependency.NodeID(step.Name)] {
			res = append(res, step.Name)
		}
	}
	return res
}

// unplannedApplies walks the graph tracking whether a plan is available. A
// plan exists only after a planning step succeeded, so only the onSuccess edge
// of a planning step carries it. The graph is acyclic at this point.
func unplannedApplies(p *PipelineDescription) []string {
	type visit struct {
		name    string
		planned bool
	}
	seen := make(map[visit]bool)
	flagged := make(map[string]bool)
	var res []string

	var walk func(name string, planned bool)
	walk = func(name string, planned bool) {
		v := visit{name, planned}
		if name == "" || seen[v] {
			return
		}
		seen[v] = true
		step, ok := p.Step(name)
		if !ok {
			return
		}
		if step.Type == StepApplyDeployment && !planned && !flagged[name] {
			flagged[name] = true
			res = append(res, name)
		}
		walk(step.OnSuccess, planned || step.Type.IsPlanning())
		walk(step.OnFailure, planned)
	}
	walk(p.Start, false)
	return res
}
