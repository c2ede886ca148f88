package render

import (
	"fmt"
	"strings"

	"github.com/sourceplane/apphost/internal/topology"
)

const unassigned = "(no environment)"

// TopologyViewer provides human-readable visualization of a topology graph
type TopologyViewer struct {
	graph *topology.Graph
}

// NewTopologyViewer creates a new topology viewer
func NewTopologyViewer(graph *topology.Graph) *TopologyViewer {
	return &TopologyViewer{graph: graph}
}

// ViewTree returns a tree of resources grouped by environment
func (tv *TopologyViewer) ViewTree() string {
	resources := tv.graph.Resources()
	if len(resources) == 0 {
		return "No resources in topology"
	}

	type group struct {
		title     string
		resources []*topology.Resource
	}
	var groups []group
	for _, env := range tv.graph.Environments() {
		rs := tv.graph.InEnvironment(env.Name)
		if len(rs) == 0 {
			continue
		}
		groups = append(groups, group{title: fmt.Sprintf("%s [%s]", env.Name, env.Kind), resources: rs})
	}
	var loose []*topology.Resource
	for _, r := range resources {
		if r.Environment == nil {
			loose = append(loose, r)
		}
	}
	if len(loose) > 0 {
		groups = append(groups, group{title: unassigned, resources: loose})
	}

	var sb strings.Builder
	for i, g := range groups {
		isLastGroup := i == len(groups)-1

		groupPrefix, groupConnector := "├─ ", "│  "
		if isLastGroup {
			groupPrefix, groupConnector = "└─ ", "   "
		}
		sb.WriteString(groupPrefix + g.title + "\n")

		for j, r := range g.resources {
			isLastResource := j == len(g.resources)-1

			resPrefix := groupConnector + "├─ "
			resConnector := groupConnector + "│  "
			if isLastResource {
				resPrefix = groupConnector + "└─ "
				resConnector = groupConnector + "   "
			}
			sb.WriteString(fmt.Sprintf("%s%s [%s]\n", resPrefix, r.Name, r.Kind))

			lines := tv.resourceLines(r)
			for k, line := range lines {
				prefix := resConnector + "├─ "
				if k == len(lines)-1 {
					prefix = resConnector + "└─ "
				}
				sb.WriteString(prefix + line + "\n")
			}
		}
	}

	sb.WriteString("═══════════════════════════════════════════════════════════\n")
	sb.WriteString(fmt.Sprintf("Summary: %d environments, %d resources, %d parameters\n",
		len(tv.graph.Environments()), len(resources), len(tv.graph.Parameters())))

	return sb.String()
}

func (tv *TopologyViewer) resourceLines(r *topology.Resource) []string {
	var lines []string
	for _, dep := range r.DependsOn {
		lines = append(lines, "(waits for) "+dep)
	}
	config := r.Config()
	for _, key := range sortedKeys(config) {
		lines = append(lines, fmt.Sprintf("%s = %s", key, describe(tv.graph, config[key])))
	}
	if r.ConnectionString != nil {
		lines = append(lines, "(connection string) "+r.ConnectionString.String())
	}
	return lines
}

// describe renders a config value without resolving it. Secret parameters
// are shown by name only.
func describe(graph *topology.Graph, v topology.Value) string {
	switch v.Kind {
	case topology.ValueLiteral:
		return fmt.Sprintf("%q", v.Text)
	case topology.ValueParameter:
		if p, ok := graph.Parameter(v.Parameter); ok && p.Secret {
			return fmt.Sprintf("parameter(%s, secret)", v.Parameter)
		}
		return v.String()
	default:
		return v.String()
	}
}

// ViewResource shows a dependency-focused view of one resource
func (tv *TopologyViewer) ViewResource(name string) string {
	r, ok := tv.graph.Resource(name)
	if !ok {
		return fmt.Sprintf("No resource found: %s", name)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s [%s]\n", r.Name, r.Kind))
	sb.WriteString("═══════════════════════════════════════════════════════════\n\n")

	env := unassigned
	if r.Environment != nil {
		env = fmt.Sprintf("%s [%s]", r.Environment.Name, r.Environment.Kind)
	}
	sb.WriteString(fmt.Sprintf("Environment: %s\n", env))

	if len(r.Endpoints) > 0 {
		sb.WriteString("Endpoints:\n")
		for _, ep := range r.Endpoints {
			line := "  " + ep.Scheme
			if ep.Port > 0 {
				line += fmt.Sprintf(":%d", ep.Port)
			}
			if ep.External {
				line += " (external)"
			}
			sb.WriteString(line + "\n")
		}
	}

	writeList(&sb, "Waits for", tv.graph.Successors(name))
	writeList(&sb, "Needed by", tv.graph.Predecessors(name))

	config := r.Config()
	if len(config) > 0 {
		sb.WriteString("Config:\n")
		for _, key := range sortedKeys(config) {
			sb.WriteString(fmt.Sprintf("  %s = %s\n", key, describe(tv.graph, config[key])))
		}
	}

	return sb.String()
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(title + ":\n")
	for i, item := range items {
		prefix := "├─ "
		if i == len(items)-1 {
			prefix = "└─ "
		}
		sb.WriteString("  " + prefix + item + "\n")
	}
}
