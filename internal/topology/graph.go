package topology

import (
	"fmt"
	"maps"
	"slices"
)

// Graph is the immutable topology: resources as nodes, wait-for edges from a
// resource to each resource it depends on.
type Graph struct {
	parameters   map[string]*Parameter
	environments map[string]*Environment
	resources    map[string]*Resource
	successors   map[string][]string
	predecessors map[string][]string
	order        []string
}

func newGraph(parameters map[string]*Parameter, environments map[string]*Environment, resources map[string]*Resource) (*Graph, error) {
	g := &Graph{
		parameters:   parameters,
		environments: environments,
		resources:    resources,
		successors:   make(map[string][]string, len(resources)),
		predecessors: make(map[string][]string, len(resources)),
	}

	for name, r := range resources {
		g.successors[name] = slices.Clone(r.DependsOn)
		if _, ok := g.predecessors[name]; !ok {
			g.predecessors[name] = nil
		}
		for _, dep := range r.DependsOn {
			g.predecessors[dep] = append(g.predecessors[dep], name)
		}
	}
	for name := range g.predecessors {
		slices.Sort(g.predecessors[name])
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, &CycleError{Cycle: cycle}
	}

	order, err := g.topologicalSort()
	if err != nil {
		return nil, err
	}
	g.order = order
	return g, nil
}

// findCycle performs DFS over the wait-for edges and returns the first cycle
// found, or nil.
func (g *Graph) findCycle() []string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var path []string
	var cycle []string

	var dfs func(string) bool
	dfs = func(node string) bool {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, next := range g.successors[node] {
			if !visited[next] {
				if dfs(next) {
					return true
				}
			} else if onStack[next] {
				start := slices.Index(path, next)
				cycle = append(slices.Clone(path[start:]), next)
				return true
			}
		}

		onStack[node] = false
		path = path[:len(path)-1]
		return false
	}

	for _, name := range g.Names() {
		if !visited[name] && dfs(name) {
			return cycle
		}
	}
	return nil
}

// topologicalSort orders resources dependencies first using Kahn's
// algorithm, breaking ties by name.
func (g *Graph) topologicalSort() ([]string, error) {
	remaining := make(map[string]int, len(g.resources))
	for name, deps := range g.successors {
		remaining[name] = len(deps)
	}

	var queue []string
	for name, n := range remaining {
		if n == 0 {
			queue = append(queue, name)
		}
	}
	slices.Sort(queue)

	sorted := make([]string, 0, len(g.resources))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		sorted = append(sorted, current)

		for _, dependent := range g.predecessors[current] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
		slices.Sort(queue)
	}

	if len(sorted) != len(g.resources) {
		return nil, fmt.Errorf("failed to topologically sort resources: %w", ErrCycleDetected)
	}
	return sorted, nil
}

// Resource returns the named resource.
func (g *Graph) Resource(name string) (*Resource, bool) {
	r, ok := g.resources[name]
	return r, ok
}

// Names returns all resource names in sorted order.
func (g *Graph) Names() []string {
	return slices.Sorted(maps.Keys(g.resources))
}

// Resources returns all resources sorted by name.
func (g *Graph) Resources() []*Resource {
	names := g.Names()
	out := make([]*Resource, len(names))
	for i, name := range names {
		out[i] = g.resources[name]
	}
	return out
}

// Parameter returns the named parameter.
func (g *Graph) Parameter(name string) (*Parameter, bool) {
	p, ok := g.parameters[name]
	return p, ok
}

// Parameters returns all parameters sorted by name.
func (g *Graph) Parameters() []*Parameter {
	names := slices.Sorted(maps.Keys(g.parameters))
	out := make([]*Parameter, len(names))
	for i, name := range names {
		out[i] = g.parameters[name]
	}
	return out
}

// Environment returns the named environment.
func (g *Graph) Environment(name string) (*Environment, bool) {
	e, ok := g.environments[name]
	return e, ok
}

// Environments returns all environments sorted by name.
func (g *Graph) Environments() []*Environment {
	names := slices.Sorted(maps.Keys(g.environments))
	out := make([]*Environment, len(names))
	for i, name := range names {
		out[i] = g.environments[name]
	}
	return out
}

// Successors returns the resources name waits for.
func (g *Graph) Successors(name string) []string {
	return slices.Clone(g.successors[name])
}

// Predecessors returns the resources waiting for name.
func (g *Graph) Predecessors(name string) []string {
	return slices.Clone(g.predecessors[name])
}

// InEnvironment returns the resources assigned to the named environment,
// sorted by name.
func (g *Graph) InEnvironment(env string) []*Resource {
	var out []*Resource
	for _, r := range g.Resources() {
		if r.Environment != nil && r.Environment.Name == env {
			out = append(out, r)
		}
	}
	return out
}

// TopologicalOrder returns resource names with every dependency before its
// dependents.
func (g *Graph) TopologicalOrder() []string {
	return slices.Clone(g.order)
}
