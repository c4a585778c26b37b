package buildgraph

import (
	"fmt"
	"sort"
)

// Predicate selects targets. Predicates are used to scope graph queries:
// "is this a generation source", "does this target consume Java output", etc.
type Predicate func(*Target) bool

// Target represents a single node in the build graph.
// Targets are created once per graph and identified by ID; dependency edges
// are ordered and deduplicated. A target must not be shared between graphs.
type Target struct {
	// ID uniquely identifies the target within its graph (e.g. "src/thrift:api").
	ID string

	// Sources are the paths of the files whose content determines this
	// target's build output. They feed the target's fingerprint.
	Sources []string

	deps   []*Target
	depSet map[string]bool
	labels map[string]bool
}

// NewTarget creates a target with the given ID and source files.
func NewTarget(id string, sources ...string) *Target {
	return &Target{
		ID:      id,
		Sources: sources,
		depSet:  make(map[string]bool),
		labels:  make(map[string]bool),
	}
}

// AddDependency appends an edge from t to dep. Adding an existing edge is a
// no-op, so edge order is the order of first insertion.
func (t *Target) AddDependency(dep *Target) {
	if dep == nil || t.depSet[dep.ID] {
		return
	}
	t.depSet[dep.ID] = true
	t.deps = append(t.deps, dep)
}

// ReplaceDependency redirects the edge t→old to point at new instead,
// preserving the edge's position. Returns an error if no edge to old exists.
func (t *Target) ReplaceDependency(old, new *Target) error {
	if !t.depSet[old.ID] {
		return fmt.Errorf("target %s has no dependency on %s", t.ID, old.ID)
	}
	for i, d := range t.deps {
		if d.ID == old.ID {
			if t.depSet[new.ID] {
				// Edge to new already exists: drop the old edge instead of
				// creating a duplicate.
				t.deps = append(t.deps[:i], t.deps[i+1:]...)
			} else {
				t.deps[i] = new
				t.depSet[new.ID] = true
			}
			break
		}
	}
	delete(t.depSet, old.ID)
	return nil
}

// Dependencies returns the target's direct dependencies in edge order.
// The returned slice is a copy; mutating it does not affect the target.
func (t *Target) Dependencies() []*Target {
	out := make([]*Target, len(t.deps))
	copy(out, t.deps)
	return out
}

// DependsOn reports whether t has a direct edge to dep.
func (t *Target) DependsOn(dep *Target) bool {
	return t.depSet[dep.ID]
}

// AddLabel attaches a label to the target. Labels mark target roles, such as
// "synthetic" for targets created by the codegen orchestrator.
func (t *Target) AddLabel(label string) {
	t.labels[label] = true
}

// HasLabel reports whether the target carries the given label.
func (t *Target) HasLabel(label string) bool {
	return t.labels[label]
}

// Labels returns the target's labels sorted alphabetically.
func (t *Target) Labels() []string {
	out := make([]string, 0, len(t.labels))
	for l := range t.labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func (t *Target) String() string {
	return t.ID
}
