package domain

// Filter is an allow-list restricting which namespaces and resources a
// planning step considers. A nil Filter, or a nil field, means no restriction.
type Filter struct {
	Namespaces []string `json:"namespaces,omitempty" yaml:"namespaces,omitempty"`
	Resources  []string `json:"resources,omitempty" yaml:"resources,omitempty"`
}

// MatchesServerGroup checks the namespace allow-list. Groups without a
// namespace always match.
func MatchesServerGroup(f *Filter, group ServerGroup) bool {
	if f == nil || f.Namespaces == nil || group.Namespace == "" {
		return true
	}
	return contains(f.Namespaces, group.Namespace)
}

// MatchesResource checks the resource allow-list.
func MatchesResource(f *Filter, resource DeployableResource) bool {
	if f == nil || f.Resources == nil {
		return true
	}
	return contains(f.Resources, resource.ResourceName())
}

// Matches is the conjunction of both checks.
func Matches(f *Filter, group ServerGroup, resource DeployableResource) bool {
	return MatchesServerGroup(f, group) && MatchesResource(f, resource)
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
