package expand

import (
	"path"
	"sort"

	"github.com/sourceplane/apphost/internal/topology"
)

// DependencyResolver provides utilities for resolving resource dependencies
type DependencyResolver struct {
	graph *topology.Graph
}

// NewDependencyResolver creates a new dependency resolver
func NewDependencyResolver(graph *topology.Graph) *DependencyResolver {
	return &DependencyResolver{graph: graph}
}

// GetDependencies returns all direct dependencies of a resource
func (dr *DependencyResolver) GetDependencies(resourceName string) []string {
	return dr.graph.Successors(resourceName)
}

// GetDependents returns all resources that depend on the given resource
func (dr *DependencyResolver) GetDependents(resourceName string) []string {
	return dr.graph.Predecessors(resourceName)
}

// GetTransitiveDependencies returns all transitive dependencies of a resource
func (dr *DependencyResolver) GetTransitiveDependencies(resourceName string) map[string]bool {
	return dr.walk(resourceName, dr.GetDependencies)
}

// GetTransitiveDependents returns all resources that transitively depend on the given resource
func (dr *DependencyResolver) GetTransitiveDependents(resourceName string) map[string]bool {
	return dr.walk(resourceName, dr.GetDependents)
}

func (dr *DependencyResolver) walk(start string, next func(string) []string) map[string]bool {
	result := make(map[string]bool)
	visited := make(map[string]bool)

	var traverse func(string)
	traverse = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true

		for _, n := range next(name) {
			result[n] = true
			traverse(n)
		}
	}

	traverse(start)
	return result
}

// ResolveResourceSet takes a set of selected resources and returns them
// together with everything they transitively depend on, so a partial
// publish still has every input it needs.
func (dr *DependencyResolver) ResolveResourceSet(selected map[string]bool) map[string]bool {
	included := make(map[string]bool)
	for name := range selected {
		included[name] = true
		for dep := range dr.GetTransitiveDependencies(name) {
			included[dep] = true
		}
	}
	return included
}

// CategorizeDependencies takes selected resources and returns three sets:
// - Selected: the original selection
// - Dependencies: resources needed by the selection
// - Dependents: resources that depend on the selection
func (dr *DependencyResolver) CategorizeDependencies(selectedResources map[string]bool) (
	selected map[string]bool,
	dependencies map[string]bool,
	dependents map[string]bool,
) {
	selected = make(map[string]bool)
	dependencies = make(map[string]bool)
	dependents = make(map[string]bool)

	for name := range selectedResources {
		selected[name] = true
	}

	for name := range selectedResources {
		for dep := range dr.GetTransitiveDependencies(name) {
			if !selected[dep] {
				dependencies[dep] = true
			}
		}
		for dept := range dr.GetTransitiveDependents(name) {
			if !selected[dept] {
				dependents[dept] = true
			}
		}
	}

	return
}

// Select returns the resource names matching any of the given patterns.
// Patterns use path.Match syntax, so "image*" selects every resource whose
// name starts with image.
func (dr *DependencyResolver) Select(patterns []string) (map[string]bool, error) {
	selected := make(map[string]bool)
	for _, pattern := range patterns {
		matched := false
		for _, name := range dr.graph.Names() {
			ok, err := path.Match(pattern, name)
			if err != nil {
				return nil, err
			}
			if ok {
				selected[name] = true
				matched = true
			}
		}
		if !matched {
			return nil, &NoMatchError{Pattern: pattern}
		}
	}
	return selected, nil
}

// NoMatchError reports a selection pattern that matched no resource
type NoMatchError struct {
	Pattern string
}

func (e *NoMatchError) Error() string {
	return "no resource matches " + e.Pattern
}

// Sorted returns the members of set in name order
func Sorted(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
