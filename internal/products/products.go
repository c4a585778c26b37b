// Package products tracks what the codegen orchestrator produced, per
// language. For every language it keeps two directions: the forward map from
// a generation source to the synthetic target carrying its generated output,
// and the reverse map from a synthetic target back to its originating
// sources. Downstream tooling uses these to trace generated output to the
// hand-written input it came from.
//
// A Registry is created per execution pass and passed explicitly to the
// orchestrator; there is no global registry.
package products

import (
	"sort"
	"sync"

	"github.com/dyluth/warren/pkg/buildgraph"
)

// ProductMap associates targets with the targets produced from them, rooted
// at a build output directory.
type ProductMap struct {
	mu      sync.RWMutex
	root    string
	entries map[string][]*buildgraph.Target // target ID → products
	targets map[string]*buildgraph.Target   // target ID → key target
}

// NewProductMap creates a product map whose artifacts live under root.
func NewProductMap(root string) *ProductMap {
	return &ProductMap{
		root:    root,
		entries: make(map[string][]*buildgraph.Target),
		targets: make(map[string]*buildgraph.Target),
	}
}

// Root returns the build output root the mapped products live under.
func (m *ProductMap) Root() string {
	return m.root
}

// Add records that products were produced from target. Repeated calls for
// the same target append.
func (m *ProductMap) Add(target *buildgraph.Target, products []*buildgraph.Target) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets[target.ID] = target
	m.entries[target.ID] = append(m.entries[target.ID], products...)
}

// Get returns the products recorded for target, or nil if none.
func (m *ProductMap) Get(target *buildgraph.Target) []*buildgraph.Target {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*buildgraph.Target, len(m.entries[target.ID]))
	copy(out, m.entries[target.ID])
	if len(out) == 0 {
		return nil
	}
	return out
}

// Targets returns the key targets of the map sorted by ID.
func (m *ProductMap) Targets() []*buildgraph.Target {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*buildgraph.Target, 0, len(m.targets))
	for _, t := range m.targets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Registry holds the per-language product maps for one execution pass.
// Safe for concurrent use.
type Registry struct {
	mu   sync.Mutex
	root string
	maps map[string]*ProductMap
}

// NewRegistry creates a registry whose product maps are rooted at root.
func NewRegistry(root string) *Registry {
	return &Registry{root: root, maps: make(map[string]*ProductMap)}
}

// Forward returns the forward map (generation source → synthetic targets)
// for a language, creating it on first use.
func (r *Registry) Forward(lang string) *ProductMap {
	return r.get(lang)
}

// Reverse returns the reverse map (synthetic target → generation sources)
// for a language, creating it on first use.
func (r *Registry) Reverse(lang string) *ProductMap {
	return r.get(lang + ":rev")
}

// Languages returns the language names with a forward map, sorted.
func (r *Registry) Languages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for name := range r.maps {
		if len(name) > 4 && name[len(name)-4:] == ":rev" {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) get(name string) *ProductMap {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.maps[name]
	if !ok {
		m = NewProductMap(r.root)
		r.maps[name] = m
	}
	return m
}
