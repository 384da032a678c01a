package registry

import (
	"sort"

	"github.com/conneroisu/protoplast/internal/schematic"
)

// Edge is one template-to-template reference declared by a schematic.
type Edge struct {
	From   string
	To     string
	Target schematic.Target
	// Index is the position of the declaring schematic in From
	Index int
}

// DependencyAnalyzer reports on the static template graph held by a Store.
// It is used for inspection and validation; per-request resolution is the
// tree package's job.
type DependencyAnalyzer struct {
	store *Store
	kinds *schematic.Registry
}

// NewDependencyAnalyzer creates a new dependency analyzer
func NewDependencyAnalyzer(store *Store, kinds *schematic.Registry) *DependencyAnalyzer {
	return &DependencyAnalyzer{
		store: store,
		kinds: kinds,
	}
}

// Edges returns the dependency edges of one template in declaration order.
// Schematics whose dependency cannot be extracted are skipped.
func (da *DependencyAnalyzer) Edges(template *Template) []Edge {
	var edges []Edge
	for i, s := range template.Schematics {
		dep, err := da.kinds.Dependency(s)
		if err != nil || dep == nil {
			continue
		}
		edges = append(edges, Edge{From: template.ID, To: dep.Template, Target: dep.Target, Index: i})
	}
	return edges
}

// GetDependencyGraph returns the full dependency graph as id -> referenced
// ids, in declaration order.
func (da *DependencyAnalyzer) GetDependencyGraph() map[string][]string {
	graph := make(map[string][]string)

	for id, template := range da.store.GetAll() {
		deps := make([]string, 0)
		for _, edge := range da.Edges(template) {
			deps = append(deps, edge.To)
		}
		graph[id] = deps
	}

	return graph
}

// GetDependents returns the ids of templates that reference id, sorted.
func (da *DependencyAnalyzer) GetDependents(id string) []string {
	var dependents []string

	for name, deps := range da.GetDependencyGraph() {
		for _, dep := range deps {
			if dep == id {
				dependents = append(dependents, name)
				break
			}
		}
	}

	sort.Strings(dependents)
	return dependents
}

// MissingDependencies returns, for each template referencing an id absent
// from the store, the absent ids.
func (da *DependencyAnalyzer) MissingDependencies() map[string][]string {
	missing := make(map[string][]string)
	graph := da.GetDependencyGraph()

	for name, deps := range graph {
		for _, dep := range deps {
			if _, ok := graph[dep]; !ok {
				missing[name] = append(missing[name], dep)
			}
		}
	}

	return missing
}

// DetectCircularDependencies returns the cycles found by a depth-first walk
// of the graph, each as a closed path (first id repeated at the end). Every
// group of mutually dependent templates is reported at least once. Roots are
// visited in sorted order so the result is stable.
func (da *DependencyAnalyzer) DetectCircularDependencies() [][]string {
	var cycles [][]string
	graph := da.GetDependencyGraph()

	roots := make([]string, 0, len(graph))
	for id := range graph {
		roots = append(roots, id)
	}
	sort.Strings(roots)

	visited := make(map[string]bool)
	seen := make(map[string]bool)

	for _, root := range roots {
		if visited[root] {
			continue
		}
		recStack := make(map[string]bool)
		da.detectCycleDFS(root, graph, visited, recStack, nil, func(cycle []string) {
			key := canonicalCycleKey(cycle)
			if !seen[key] {
				seen[key] = true
				cycles = append(cycles, cycle)
			}
		})
	}

	return cycles
}

// detectCycleDFS performs DFS to detect cycles
func (da *DependencyAnalyzer) detectCycleDFS(id string, graph map[string][]string, visited, recStack map[string]bool, path []string, report func([]string)) {
	visited[id] = true
	recStack[id] = true
	path = append(path, id)

	for _, dep := range graph[id] {
		if recStack[dep] {
			// Found cycle - extract it from the path
			for i, p := range path {
				if p == dep {
					cycle := make([]string, len(path)-i+1)
					copy(cycle, path[i:])
					cycle[len(cycle)-1] = dep
					report(cycle)
					break
				}
			}
			continue
		}
		if _, exists := graph[dep]; !exists || visited[dep] {
			continue
		}
		da.detectCycleDFS(dep, graph, visited, recStack, path, report)
	}

	recStack[id] = false
}

// canonicalCycleKey identifies a cycle independent of its starting point.
func canonicalCycleKey(cycle []string) string {
	ring := cycle[:len(cycle)-1]
	start := 0
	for i, id := range ring {
		if id < ring[start] {
			start = i
		}
	}
	key := ""
	for i := range ring {
		key += ring[(start+i)%len(ring)] + "\x00"
	}
	return key
}
