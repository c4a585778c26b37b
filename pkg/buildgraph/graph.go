package buildgraph

import (
	"fmt"
	"sort"
)

// Graph holds the full set of targets for a build. It supports the queries
// the codegen orchestrator needs (Dependents, Walk, DependencyOrder) and
// in-place mutation (AddTarget plus the edge/label methods on Target).
//
// Graph methods are not safe for concurrent mutation; a pass that reads and
// mutates the graph from multiple goroutines must serialize the mutations.
type Graph struct {
	targets map[string]*Target
}

// NewGraph creates an empty build graph.
func NewGraph() *Graph {
	return &Graph{targets: make(map[string]*Target)}
}

// AddTarget registers a target in the graph.
// Returns an error if a target with the same ID already exists.
func (g *Graph) AddTarget(t *Target) error {
	if t == nil {
		return fmt.Errorf("target cannot be nil")
	}
	if t.ID == "" {
		return fmt.Errorf("target ID cannot be empty")
	}
	if _, exists := g.targets[t.ID]; exists {
		return fmt.Errorf("duplicate target ID: %s", t.ID)
	}
	g.targets[t.ID] = t
	return nil
}

// Target looks up a target by ID.
func (g *Graph) Target(id string) (*Target, bool) {
	t, ok := g.targets[id]
	return t, ok
}

// Targets returns all targets in the graph sorted by ID.
func (g *Graph) Targets() []*Target {
	out := make([]*Target, 0, len(g.targets))
	for _, t := range g.targets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of targets in the graph.
func (g *Graph) Len() int {
	return len(g.targets)
}

// Dependents maps each target satisfying from to the targets satisfying on
// that it directly depends on. Targets with no matching dependencies are
// omitted from the result.
//
// This is the query the codegen orchestrator uses to find which consumers
// pull in which generation sources.
func (g *Graph) Dependents(on, from Predicate) map[*Target][]*Target {
	result := make(map[*Target][]*Target)
	for _, t := range g.Targets() {
		if !from(t) {
			continue
		}
		var matched []*Target
		for _, dep := range t.deps {
			if on(dep) {
				matched = append(matched, dep)
			}
		}
		if len(matched) > 0 {
			result[t] = matched
		}
	}
	return result
}

// Walk returns the transitive closure of start's dependency subgraph
// restricted to targets matching visit: start is included if it matches, and
// traversal only descends through matching targets. The result is in
// depth-first discovery order following edge order.
func (g *Graph) Walk(start *Target, visit Predicate) []*Target {
	var out []*Target
	seen := make(map[string]bool)

	var walk func(t *Target)
	walk = func(t *Target) {
		if seen[t.ID] || !visit(t) {
			return
		}
		seen[t.ID] = true
		out = append(out, t)
		for _, dep := range t.deps {
			walk(dep)
		}
	}
	walk(start)
	return out
}

// DependencyOrder sorts the given targets so that every target appears after
// its direct dependencies within the set (dependencies first). Targets not in
// the set are ignored when ordering. Ties are broken by target ID so the
// order is deterministic.
//
// Returns an error naming a member of the cycle if the subset is cyclic.
func (g *Graph) DependencyOrder(targets []*Target) ([]*Target, error) {
	inSet := make(map[string]*Target, len(targets))
	for _, t := range targets {
		inSet[t.ID] = t
	}

	// Kahn's algorithm over edges internal to the subset, with a sorted
	// frontier for determinism.
	indegree := make(map[string]int, len(targets))
	dependents := make(map[string][]*Target)
	for _, t := range targets {
		indegree[t.ID] += 0
		for _, dep := range t.deps {
			if _, ok := inSet[dep.ID]; ok {
				indegree[t.ID]++
				dependents[dep.ID] = append(dependents[dep.ID], t)
			}
		}
	}

	var frontier []*Target
	for id, deg := range indegree {
		if deg == 0 {
			frontier = append(frontier, inSet[id])
		}
	}
	sortByID(frontier)

	out := make([]*Target, 0, len(targets))
	for len(frontier) > 0 {
		t := frontier[0]
		frontier = frontier[1:]
		out = append(out, t)

		var released []*Target
		for _, d := range dependents[t.ID] {
			indegree[d.ID]--
			if indegree[d.ID] == 0 {
				released = append(released, d)
			}
		}
		sortByID(released)
		frontier = append(frontier, released...)
	}

	if len(out) != len(targets) {
		for id, deg := range indegree {
			if deg > 0 {
				return nil, fmt.Errorf("dependency cycle involving target %s", id)
			}
		}
	}
	return out, nil
}

func sortByID(targets []*Target) {
	sort.Slice(targets, func(i, j int) bool { return targets[i].ID < targets[j].ID })
}
