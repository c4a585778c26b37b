// Package buildgraph provides the dependency graph that Warren builds are
// planned against. Targets are the nodes of the graph: each has a stable ID,
// an ordered list of dependency edges, a set of labels, and the source files
// that feed its fingerprint.
//
// The graph is the shared substrate for all Warren components (codegen
// orchestrator, invalidation engine, CLI). It is mutated in place during a
// pass: the codegen orchestrator adds synthetic targets and rewires edges so
// that downstream consumers depend on generated code without knowing
// generation occurred.
//
// Graph reads (Dependents, Walk, DependencyOrder) are deterministic: targets
// are visited in edge order, and map-backed listings are sorted by target ID.
package buildgraph
