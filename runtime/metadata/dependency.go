package metadata

import (
	"fmt"
	"sort"
)

// DependencyGraph captures which named types refer to which.
type DependencyGraph struct {
	Nodes map[string]*DependencyNode `json:"nodes"` // Named types indexed by type name
	Edges []DependencyEdge           `json:"edges"`
}

// DependencyNode is one named type in the graph.
type DependencyNode struct {
	Name  string `json:"name"`
	Group Group  `json:"group"` // models or inputs
}

// DependencyEdge links a named type to a type used by one of its properties.
type DependencyEdge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Property string `json:"property"` // Property path on the From side
	Many     bool   `json:"many"`     // The property is an array
}

// DependencyOptions configures dependency graph queries
type DependencyOptions struct {
	Depth   int  // Maximum traversal depth (0 = unlimited)
	Reverse bool // Follow edges backwards (find what depends on this)
}

// BuildDependencyGraph constructs the graph of named models and inputs
func BuildDependencyGraph(app *Application) *DependencyGraph {
	graph := &DependencyGraph{
		Nodes: make(map[string]*DependencyNode),
	}
	if app == nil {
		return graph
	}

	for _, g := range []Group{GroupModels, GroupInputs} {
		for _, m := range app.Group(g) {
			graph.Nodes[m.TypeName] = &DependencyNode{Name: m.TypeName, Group: g}
		}
	}

	for _, g := range []Group{GroupModels, GroupInputs} {
		for _, m := range app.Group(g) {
			from := m.TypeName
			for _, p := range m.Properties {
				p.Walk(func(node *TypeMetadata, _ []string) bool {
					if _, ok := graph.Nodes[node.TypeName]; !ok {
						return true
					}
					graph.Edges = append(graph.Edges, DependencyEdge{
						From:     from,
						To:       node.TypeName,
						Property: node.PropertyPath,
						Many:     node.Array,
					})
					// Nested named types belong to their own node
					return false
				})
			}
		}
	}

	return graph
}

// Dependencies extracts the subgraph reachable from name
func (g *DependencyGraph) Dependencies(name string, opts DependencyOptions) (*DependencyGraph, error) {
	if _, ok := g.Nodes[name]; !ok {
		return nil, fmt.Errorf("type not found: %s", name)
	}

	result := &DependencyGraph{
		Nodes: map[string]*DependencyNode{name: g.Nodes[name]},
	}

	visited := map[string]bool{name: true}
	queue := []depthNode{{id: name, depth: 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		var edges []DependencyEdge
		if opts.Reverse {
			edges = g.incoming(current.id)
		} else {
			edges = g.outgoing(current.id)
		}

		for _, edge := range edges {
			result.Edges = append(result.Edges, edge)

			next := edge.To
			if opts.Reverse {
				next = edge.From
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			result.Nodes[next] = g.Nodes[next]

			if opts.Depth == 0 || current.depth+1 < opts.Depth {
				queue = append(queue, depthNode{id: next, depth: current.depth + 1})
			}
		}
	}

	return result, nil
}

// depthNode tracks a node and its depth during traversal
type depthNode struct {
	id    string
	depth int
}

func (g *DependencyGraph) outgoing(id string) []DependencyEdge {
	var result []DependencyEdge
	for _, edge := range g.Edges {
		if edge.From == id {
			result = append(result, edge)
		}
	}
	return result
}

func (g *DependencyGraph) incoming(id string) []DependencyEdge {
	var result []DependencyEdge
	for _, edge := range g.Edges {
		if edge.To == id {
			result = append(result, edge)
		}
	}
	return result
}

// Cycles returns every dependency cycle, each closed by repeating its first node
func (g *DependencyGraph) Cycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	// Sorted start order keeps the output stable
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var visit func(id string, path []string)
	visit = func(id string, path []string) {
		visited[id] = true
		onStack[id] = true
		path = append(path, id)

		for _, edge := range g.outgoing(id) {
			next := edge.To
			if onStack[next] {
				for i, n := range path {
					if n == next {
						cycle := append([]string{}, path[i:]...)
						cycles = append(cycles, append(cycle, next))
						break
					}
				}
			} else if !visited[next] {
				visit(next, path)
			}
		}

		onStack[id] = false
	}

	for _, id := range ids {
		if !visited[id] {
			visit(id, nil)
		}
	}
	return cycles
}
