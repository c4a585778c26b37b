package codegen

import (
	"sort"

	"github.com/dyluth/warren/pkg/buildgraph"
)

// plan is the immutable outcome of discovery: per-language assignments plus
// the bookkeeping splicing needs. It is computed as a pure function over a
// graph snapshot; no graph mutation happens until splicing applies it.
type plan struct {
	// languages in processing order (sorted by name).
	languages []Language

	// byLang maps language name → assigned generation sources, sorted by ID.
	// Languages with no assigned sources are absent.
	byLang map[string][]*buildgraph.Target

	// dependeesBySource maps a generation source to the non-generation-source
	// targets that directly depend on it, sorted by ID.
	dependeesBySource map[*buildgraph.Target][]*buildgraph.Target

	// unconsumed holds the dependee→sources entries no language claimed.
	unconsumed map[*buildgraph.Target][]*buildgraph.Target
}

// discover computes which generation sources each language requires.
//
// For every language, in name order, it scans the consumers of generation
// sources; each consumer matching the language's predicate is consumed
// (claimed) and the generation sources reachable from its direct source
// dependencies are assigned to the language. Consumption is destructive and
// global across languages: a consumer claimed by one language is unavailable
// to later languages in the same pass, so a source satisfying several
// languages' predicates via a single consumer is assigned to whichever
// language scans first - alphabetical order makes that deterministic. A
// source can still be assigned to multiple languages through independent,
// not-yet-claimed consumers.
//
// Forced languages bypass the scan entirely and are assigned every in-scope
// generation source, without consuming any consumer entries.
func (o *Orchestrator) discover(gentargets []*buildgraph.Target) *plan {
	isGen := o.gen.IsGenTarget
	notGen := func(t *buildgraph.Target) bool { return !isGen(t) }

	sourcesByDependee := o.graph.Dependents(isGen, notGen)

	inScope := make(map[*buildgraph.Target]bool, len(gentargets))
	for _, t := range gentargets {
		inScope[t] = true
	}

	p := &plan{
		byLang:            make(map[string][]*buildgraph.Target),
		dependeesBySource: make(map[*buildgraph.Target][]*buildgraph.Target),
	}

	for dependee, sources := range sourcesByDependee {
		for _, src := range sources {
			p.dependeesBySource[src] = append(p.dependeesBySource[src], dependee)
		}
	}
	for _, dependees := range p.dependeesBySource {
		sort.Slice(dependees, func(i, j int) bool { return dependees[i].ID < dependees[j].ID })
	}

	p.languages = append(p.languages, o.gen.Languages()...)
	sort.Slice(p.languages, func(i, j int) bool { return p.languages[i].Name < p.languages[j].Name })

	// remaining is the consumable view of sourcesByDependee; claims remove
	// entries for all later languages.
	remaining := make(map[*buildgraph.Target][]*buildgraph.Target, len(sourcesByDependee))
	for dependee, sources := range sourcesByDependee {
		remaining[dependee] = sources
	}

	for _, lang := range p.languages {
		var assigned []*buildgraph.Target
		if o.opts.ForceLanguages[lang.Name] {
			assigned = append(assigned, gentargets...)
		} else {
			found := make(map[*buildgraph.Target]bool)
			for _, dependee := range sortedTargets(remaining) {
				if !lang.Consumes(dependee) {
					continue
				}
				sources := remaining[dependee]
				delete(remaining, dependee)
				for _, src := range sources {
					for _, reachable := range o.graph.Walk(src, isGen) {
						found[reachable] = true
					}
				}
			}
			for src := range found {
				if inScope[src] {
					assigned = append(assigned, src)
				}
			}
		}

		if len(assigned) > 0 {
			sort.Slice(assigned, func(i, j int) bool { return assigned[i].ID < assigned[j].ID })
			p.byLang[lang.Name] = assigned
		}
	}

	p.unconsumed = remaining
	return p
}

// sortedTargets returns the keys of a target-keyed map sorted by ID.
func sortedTargets[V any](m map[*buildgraph.Target]V) []*buildgraph.Target {
	out := make([]*buildgraph.Target, 0, len(m))
	for t := range m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
