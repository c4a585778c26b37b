// Package codegen implements the Warren code generation orchestrator: the
// machinery shared by every generator kind that supports multiple output
// languages (thrift → java/python, protobuf → go, and so on).
//
// An execution pass has three phases, run in order:
//
//  1. Discovery: determine, per language, which generation-source targets
//     are actually required by some consumer of that language.
//  2. Generation: of the discovered targets, regenerate only those whose
//     fingerprints changed since the last run, restoring unchanged output
//     from the artifact cache where possible, and write fresh output back
//     to the cache in one batch per versioned target set.
//  3. Splicing: create one synthetic target per (language, source) pair and
//     rewire the graph so consumers depend on generated code transparently.
//
// Splicing always runs, for cache hits and fresh generation alike, so the
// graph shape is identical regardless of where the artifacts came from.
package codegen

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/dyluth/warren/internal/cache"
	"github.com/dyluth/warren/internal/fingerprint"
	"github.com/dyluth/warren/internal/products"
	"github.com/dyluth/warren/pkg/buildgraph"
)

// SyntheticLabel marks targets created by the orchestrator to hold generated
// output. Synthetic targets are recreated every pass; only their artifacts
// are cached.
const SyntheticLabel = "synthetic"

// Language pairs a generated output language with the predicate that selects
// the non-generation-source targets consuming that language's output.
type Language struct {
	Name     string
	Consumes buildgraph.Predicate
}

// Generator is the contract a concrete generator kind implements. The
// orchestrator owns discovery, invalidation, caching and splicing; the
// generator owns only what is inherently language- and tool-specific.
type Generator interface {
	// IsGenTarget reports whether target is a generation source this
	// generator handles.
	IsGenTarget(t *buildgraph.Target) bool

	// Languages returns the capability map: every language this generator
	// can produce, with its consumer predicate.
	Languages() []Language

	// Generate generates code in lang for the given generation-source
	// targets and returns the artifact paths produced, for caching. A
	// generator may return no artifacts, meaning nothing cacheable was
	// produced (e.g. an empty source set). Any error is fatal for the pass.
	Generate(ctx context.Context, lang string, targets []*buildgraph.Target) ([]string, error)

	// SyntheticTarget creates the synthetic target that will hold the
	// sources generated for source in lang. The orchestrator labels the
	// target, registers it, and wires its dependencies; the generator only
	// names it and declares its (generated) source files.
	SyntheticTarget(lang string, source *buildgraph.Target, dependees []*buildgraph.Target) (*buildgraph.Target, error)
}

// Options carries the recognized configuration surface of a pass.
type Options struct {
	// ForceLanguages skips reachability discovery for the named languages:
	// every in-scope generation source is assigned to them.
	ForceLanguages map[string]bool

	// CacheEnabled gates all artifact cache reads and writes.
	CacheEnabled bool

	// WriteToCache gates cache writes only; reads are still allowed when
	// CacheEnabled is set.
	WriteToCache bool
}

// Result summarizes one execution pass.
type Result struct {
	RunID string

	// AssignedByLang maps each language to the generation sources assigned
	// to it by discovery, in splice order.
	AssignedByLang map[string][]*buildgraph.Target

	// GeneratedSets counts versioned target sets that were freshly generated.
	GeneratedSets int

	// CacheHits counts invalid sets recovered from the artifact cache.
	CacheHits int

	// CacheWrites counts batched cache writes performed.
	CacheWrites int

	// Synthetic lists the synthetic targets created by splicing.
	Synthetic []*buildgraph.Target
}

// Orchestrator runs code generation passes over a build graph. It does not
// own the graph: it mutates it in place by adding synthetic targets and
// rewiring edges.
type Orchestrator struct {
	graph    *buildgraph.Graph
	gen      Generator
	registry *products.Registry
	inval    *fingerprint.Invalidator
	cache    cache.ArtifactCache // nil when no cache is configured
	opts     Options
}

// New creates an orchestrator. artifactCache may be nil if no cache is
// configured; caching is then skipped entirely.
func New(graph *buildgraph.Graph, gen Generator, registry *products.Registry, inval *fingerprint.Invalidator, artifactCache cache.ArtifactCache, opts Options) *Orchestrator {
	return &Orchestrator{
		graph:    graph,
		gen:      gen,
		registry: registry,
		inval:    inval,
		cache:    artifactCache,
		opts:     opts,
	}
}

// Execute runs one full pass over the given targets: discovery, generation
// of the invalid subset, and graph splicing. Targets that are not generation
// sources are used only as consumers during discovery.
//
// On generator failure the pass stops, but work already completed (generated
// sets, cache writes, validated fingerprints) remains valid.
func (o *Orchestrator) Execute(ctx context.Context, targets []*buildgraph.Target) (*Result, error) {
	result := &Result{
		RunID:          uuid.New().String(),
		AssignedByLang: make(map[string][]*buildgraph.Target),
	}

	var gentargets []*buildgraph.Target
	for _, t := range targets {
		if o.gen.IsGenTarget(t) {
			gentargets = append(gentargets, t)
		}
	}

	plan := o.discover(gentargets)
	o.warnUnconsumed(plan)
	for lang, assigned := range plan.byLang {
		result.AssignedByLang[lang] = assigned
	}

	if err := o.generate(ctx, plan, result); err != nil {
		return nil, err
	}

	if err := o.splice(plan, result); err != nil {
		return nil, err
	}

	o.logEvent("pass_complete", map[string]interface{}{
		"run_id":       result.RunID,
		"generated":    result.GeneratedSets,
		"cache_hits":   result.CacheHits,
		"cache_writes": result.CacheWrites,
		"synthetic":    len(result.Synthetic),
	})
	return result, nil
}

// logEvent logs a structured event in JSON format.
func (o *Orchestrator) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	if _, ok := data["level"]; !ok {
		data["level"] = "info"
	}
	data["component"] = "codegen"
	data["event_type"] = eventType

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Codegen] Failed to marshal log event: %v", err)
		return
	}
	log.Println(string(jsonData))
}

// warnUnconsumed reports dependee→source entries no language claimed. This
// indicates generation sources with no matching language; a configuration
// smell, not an error.
func (o *Orchestrator) warnUnconsumed(plan *plan) {
	if len(plan.unconsumed) == 0 {
		return
	}
	mapping := make(map[string][]string, len(plan.unconsumed))
	for _, dependee := range sortedTargets(plan.unconsumed) {
		mapping[dependee.ID] = targetIDs(plan.unconsumed[dependee])
	}
	o.logEvent("unconsumed_gen_targets", map[string]interface{}{
		"level":   "warn",
		"message": "left with unexpected unconsumed gen targets",
		"targets": mapping,
	})
}

func targetIDs(targets []*buildgraph.Target) []string {
	ids := make([]string, len(targets))
	for i, t := range targets {
		ids[i] = t.ID
	}
	return ids
}
