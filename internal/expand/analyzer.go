package expand

import (
	"sort"

	"github.com/sourceplane/apphost/internal/topology"
)

// ResourceSummary is the merged view of a resource used by listings
type ResourceSummary struct {
	Name            string   `json:"name" yaml:"name"`
	Kind            string   `json:"kind" yaml:"kind"`
	Environment     string   `json:"environment,omitempty" yaml:"environment,omitempty"`
	EnvironmentKind string   `json:"environmentKind,omitempty" yaml:"environmentKind,omitempty"`
	Endpoints       []string `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
	ConfigKeys      []string `json:"configKeys,omitempty" yaml:"configKeys,omitempty"`
	HasConnection   bool     `json:"hasConnection" yaml:"hasConnection"`
	Dependencies    []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Dependents      []string `json:"dependents,omitempty" yaml:"dependents,omitempty"`
}

// ResourceAnalyzer provides analysis of resources and their resolved properties
type ResourceAnalyzer struct {
	graph    *topology.Graph
	resolver *DependencyResolver
}

// NewResourceAnalyzer creates a new resource analyzer
func NewResourceAnalyzer(graph *topology.Graph) *ResourceAnalyzer {
	return &ResourceAnalyzer{
		graph:    graph,
		resolver: NewDependencyResolver(graph),
	}
}

// GetResourceByName returns the summary of a single resource
func (ra *ResourceAnalyzer) GetResourceByName(name string) (*ResourceSummary, bool) {
	r, ok := ra.graph.Resource(name)
	if !ok {
		return nil, false
	}
	return ra.summarize(r), true
}

// ListAll lists all resources sorted by name
func (ra *ResourceAnalyzer) ListAll() []*ResourceSummary {
	resources := ra.graph.Resources()
	result := make([]*ResourceSummary, 0, len(resources))
	for _, r := range resources {
		result = append(result, ra.summarize(r))
	}
	return result
}

// ByEnvironment groups summaries by environment name; unassigned resources
// are grouped under the empty name.
func (ra *ResourceAnalyzer) ByEnvironment() map[string][]*ResourceSummary {
	groups := make(map[string][]*ResourceSummary)
	for _, s := range ra.ListAll() {
		groups[s.Environment] = append(groups[s.Environment], s)
	}
	return groups
}

func (ra *ResourceAnalyzer) summarize(r *topology.Resource) *ResourceSummary {
	s := &ResourceSummary{
		Name:          r.Name,
		Kind:          r.Kind.String(),
		Environment:   r.EnvironmentName(),
		HasConnection: r.ConnectionString != nil,
		Dependencies:  ra.resolver.GetDependencies(r.Name),
		Dependents:    ra.resolver.GetDependents(r.Name),
	}
	if r.Environment != nil {
		s.EnvironmentKind = r.Environment.Kind.String()
	}
	for _, ep := range r.Endpoints {
		s.Endpoints = append(s.Endpoints, ep.Scheme)
	}
	for key := range r.Config() {
		s.ConfigKeys = append(s.ConfigKeys, key)
	}
	sort.Strings(s.ConfigKeys)
	return s
}
