package task

import (
	"fmt"
	"sort"
	"strings"
)

// Graph is a dependency DAG over task names. It validates batches of task
// definitions that may reference each other in any order.
type Graph struct {
	nodes map[string]struct{}
	edges map[string]map[string]struct{} // task -> set of tasks it depends on
}

// NewGraph creates an empty dependency graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]struct{}),
		edges: make(map[string]map[string]struct{}),
	}
}

// AddNode adds a task to the graph.
func (g *Graph) AddNode(name string) {
	g.nodes[name] = struct{}{}

	if _, ok := g.edges[name]; !ok {
		g.edges[name] = make(map[string]struct{})
	}
}

// AddEdge records that source depends on target. Both must be nodes.
func (g *Graph) AddEdge(source, target string) {
	if _, ok := g.nodes[target]; !ok {
		return
	}

	if _, ok := g.edges[source]; !ok {
		g.edges[source] = make(map[string]struct{})
	}

	g.edges[source][target] = struct{}{}
}

// Has reports whether name is a node.
func (g *Graph) Has(name string) bool {
	_, ok := g.nodes[name]

	return ok
}

// Nodes returns all node names, sorted.
func (g *Graph) Nodes() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// DependenciesOf returns the names that the given node depends on, sorted.
func (g *Graph) DependenciesOf(name string) []string {
	deps := make([]string, 0, len(g.edges[name]))
	for dep := range g.edges[name] {
		deps = append(deps, dep)
	}

	sort.Strings(deps)

	return deps
}

// TopologicalSort returns the nodes with every dependency ahead of its
// dependents (Kahn's algorithm, ties broken alphabetically). It fails with
// the first detected cycle.
func (g *Graph) TopologicalSort() ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for name := range g.nodes {
		inDegree[name] = 0
	}

	// Edges mean "source depends on target", so target must come first.
	dependents := make(map[string][]string)

	for source, targets := range g.edges {
		for target := range targets {
			dependents[target] = append(dependents[target], source)
			inDegree[source]++
		}
	}

	var queue []string

	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}

	sort.Strings(queue)

	result := make([]string, 0, len(g.nodes))

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, dep := range dependents[node] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				i := sort.SearchStrings(queue, dep)
				queue = append(queue, "")
				copy(queue[i+1:], queue[i:])
				queue[i] = dep
			}
		}
	}

	if len(result) != len(g.nodes) {
		if cycles := g.DetectCycles(); len(cycles) > 0 {
			return nil, fmt.Errorf("dependency cycle detected: %s", FormatCycle(cycles[0]))
		}

		return nil, fmt.Errorf("dependency cycle detected in graph")
	}

	return result, nil
}

// DetectCycles returns all unique cycles in the graph. Each cycle is closed
// ([a, b, a]) and reported once regardless of its starting node. Nodes are
// visited in sorted order so the result is deterministic.
func (g *Graph) DetectCycles() [][]string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	seen := make(map[string]bool)
	path := make([]string, 0)

	var cycles [][]string

	var dfs func(node string)
	dfs = func(node string) {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, dep := range g.DependenciesOf(node) {
			if !visited[dep] {
				dfs(dep)
				continue
			}

			if !onStack[dep] {
				continue
			}

			start := len(path) - 1
			for start >= 0 && path[start] != dep {
				start--
			}

			cycle := append(append([]string{}, path[start:]...), dep)

			key := normalizeCycle(cycle)
			if !seen[key] {
				seen[key] = true
				cycles = append(cycles, cycle)
			}
		}

		path = path[:len(path)-1]
		onStack[node] = false
	}

	for _, name := range g.Nodes() {
		if !visited[name] {
			dfs(name)
		}
	}

	return cycles
}

// FormatCycle renders a closed cycle as "a → b → a".
func FormatCycle(cycle []string) string {
	return strings.Join(cycle, " → ")
}

// normalizeCycle produces a canonical key for a closed cycle by rotating it
// so that the lexicographically smallest node comes first.
func normalizeCycle(cycle []string) string {
	if len(cycle) <= 1 {
		return strings.Join(cycle, "→")
	}

	nodes := cycle[:len(cycle)-1]

	minIdx := 0
	for i := 1; i < len(nodes); i++ {
		if nodes[i] < nodes[minIdx] {
			minIdx = i
		}
	}

	var b strings.Builder

	for i := range nodes {
		if i > 0 {
			b.WriteString("→")
		}

		b.WriteString(nodes[(minIdx+i)%len(nodes)])
	}

	return b.String()
}
