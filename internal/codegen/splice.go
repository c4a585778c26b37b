package codegen

import (
	"fmt"

	"github.com/dyluth/warren/pkg/buildgraph"
)

// splice rewires the graph so consumers depend on generated code. It runs
// unconditionally for every assigned generation source, cached or freshly
// generated, and must reconstruct the same graph shape either way.
//
// Within a language, sources are processed dependencies-first so that a
// source's generated dependencies already have synthetic counterparts when
// its own edges are rewired. A generated dependency assigned to a different
// language resolves through that language's forward product map; if it has
// no counterpart anywhere, the graph would end up inconsistent, so splicing
// fails fast naming the offending edge.
func (o *Orchestrator) splice(p *plan, result *Result) error {
	for _, lang := range p.languages {
		assigned := p.byLang[lang.Name]
		if len(assigned) == 0 {
			continue
		}

		ordered, err := o.graph.DependencyOrder(assigned)
		if err != nil {
			return fmt.Errorf("cannot order %s generation sources for splicing: %w", lang.Name, err)
		}
		// Record the splice order for callers inspecting the result.
		result.AssignedByLang[lang.Name] = ordered

		forward := o.registry.Forward(lang.Name)
		reverse := o.registry.Reverse(lang.Name)

		synthetics := make(map[*buildgraph.Target]*buildgraph.Target, len(ordered))
		for _, source := range ordered {
			dependees := p.dependeesBySource[source]
			syn, err := o.gen.SyntheticTarget(lang.Name, source, dependees)
			if err != nil {
				return fmt.Errorf("failed to create synthetic target for %s in %s: %w", source.ID, lang.Name, err)
			}
			syn.AddLabel(SyntheticLabel)
			if err := o.graph.AddTarget(syn); err != nil {
				return fmt.Errorf("failed to register synthetic target: %w", err)
			}
			synthetics[source] = syn

			forward.Add(source, []*buildgraph.Target{syn})
			reverse.Add(syn, []*buildgraph.Target{source})

			// Transfer the source's dependencies to its synthetic
			// counterpart, retargeting generated-to-generated edges.
			for _, dep := range source.Dependencies() {
				if !o.gen.IsGenTarget(dep) {
					syn.AddDependency(dep)
					continue
				}
				counterpart, err := o.syntheticFor(dep, synthetics, lang.Name)
				if err != nil {
					return fmt.Errorf("splicing %s for %s: %w", source.ID, lang.Name, err)
				}
				syn.AddDependency(counterpart)
			}

			// Redirect consumers at the synthetic target. A consumer whose
			// edge was already redirected by an earlier language gains an
			// additional edge instead.
			for _, dependee := range dependees {
				if dependee.DependsOn(source) {
					if err := dependee.ReplaceDependency(source, syn); err != nil {
						return fmt.Errorf("failed to redirect %s -> %s: %w", dependee.ID, source.ID, err)
					}
				} else {
					dependee.AddDependency(syn)
				}
			}

			result.Synthetic = append(result.Synthetic, syn)
		}
	}
	return nil
}

// syntheticFor resolves the synthetic counterpart of a generated dependency.
// The per-pass map for the current language is authoritative; a dependency
// converted in an earlier pass is looked up in the current language's
// forward product map before any other language's, so a counterpart that
// exists for several languages resolves to the matching one. A missing
// counterpart is a contract violation, not a case to silently fall through:
// a direct edge to the source would leave the generated subgraph
// inconsistent.
func (o *Orchestrator) syntheticFor(dep *buildgraph.Target, synthetics map[*buildgraph.Target]*buildgraph.Target, lang string) (*buildgraph.Target, error) {
	if syn, ok := synthetics[dep]; ok {
		return syn, nil
	}
	if products := o.registry.Forward(lang).Get(dep); len(products) > 0 {
		return products[0], nil
	}
	for _, other := range o.registry.Languages() {
		if other == lang {
			continue
		}
		if products := o.registry.Forward(other).Get(dep); len(products) > 0 {
			return products[0], nil
		}
	}
	return nil, fmt.Errorf("generation source %s has no synthetic counterpart (not assigned to %s and absent from all product maps)", dep.ID, lang)
}
