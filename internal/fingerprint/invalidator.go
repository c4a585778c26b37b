package fingerprint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dyluth/warren/pkg/buildgraph"
)

// VersionedTargetSet is a partition of targets sharing one invalidation
// fingerprint. It is the unit of cache write batching: all artifacts
// generated for the set's targets, across every language, are cached under
// Key in a single write.
type VersionedTargetSet struct {
	Key     CacheKey
	Targets []*buildgraph.Target
}

// Check is the result of partitioning targets into valid and invalid sets.
type Check struct {
	// Invalid holds the versioned target sets whose fingerprints differ from
	// the previous run, sorted by key ID.
	Invalid []*VersionedTargetSet

	// Valid holds the sets whose fingerprints are unchanged, sorted by key ID.
	Valid []*VersionedTargetSet
}

// All returns every versioned target set, valid and invalid, sorted by key ID.
func (c *Check) All() []*VersionedTargetSet {
	out := make([]*VersionedTargetSet, 0, len(c.Invalid)+len(c.Valid))
	out = append(out, c.Invalid...)
	out = append(out, c.Valid...)
	sort.Slice(out, func(i, j int) bool { return out[i].Key.ID < out[j].Key.ID })
	return out
}

// Invalidator partitions targets into valid and invalid versioned target
// sets by comparing current fingerprints against the state persisted by the
// previous run. Fingerprints are transitive: a target's fingerprint folds in
// the fingerprints of everything it depends on, so a change in a dependency
// also invalidates its dependents.
type Invalidator struct {
	statePath string
	previous  map[string]string // target ID → fingerprint from last successful run
	current   map[string]string // target ID → fingerprint validated this run
}

// stateFile is the on-disk format of the fingerprint state.
type stateFile struct {
	Version      string            `json:"version"`
	Fingerprints map[string]string `json:"fingerprints"`
}

const stateFileVersion = "1"

// NewInvalidator loads fingerprint state from statePath. A missing state
// file is not an error: every target is simply invalid on the first run.
func NewInvalidator(statePath string) (*Invalidator, error) {
	iv := &Invalidator{
		statePath: statePath,
		previous:  make(map[string]string),
		current:   make(map[string]string),
	}

	data, err := os.ReadFile(statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return iv, nil
		}
		return nil, fmt.Errorf("failed to read fingerprint state: %w", err)
	}

	var sf stateFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse fingerprint state %s: %w", statePath, err)
	}
	if sf.Version != stateFileVersion {
		// Unknown state version: treat as a cold start rather than failing
		// the build.
		return iv, nil
	}
	if sf.Fingerprints != nil {
		iv.previous = sf.Fingerprints
	}
	return iv, nil
}

// Fingerprint computes the transitive fingerprint of a target: its own
// source digest combined with the fingerprints of its direct dependencies
// (which are themselves transitive). Results are memoized in memo, which
// callers share across a run.
func (iv *Invalidator) Fingerprint(t *buildgraph.Target, memo map[string]string) (string, error) {
	if fp, ok := memo[t.ID]; ok {
		if fp == "" {
			return "", fmt.Errorf("dependency cycle involving target %s", t.ID)
		}
		return fp, nil
	}
	memo[t.ID] = "" // in-progress marker for cycle detection

	own, err := HashFiles(t.Sources)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint target %s: %w", t.ID, err)
	}

	parts := []string{t.ID, own}
	for _, dep := range t.Dependencies() {
		depFP, err := iv.Fingerprint(dep, memo)
		if err != nil {
			return "", err
		}
		parts = append(parts, depFP)
	}

	fp := Combine(parts...)
	memo[t.ID] = fp
	return fp, nil
}

// Partition computes fingerprints for the given targets and splits them into
// invalid and valid versioned target sets. Each target forms its own set
// (the degenerate partition); the VersionedTargetSet type carries multiple
// targets so callers batch per set, not per target.
//
// Dependent invalidation is inherent: fingerprints are transitive, so a
// changed dependency changes every dependent's fingerprint too.
func (iv *Invalidator) Partition(targets []*buildgraph.Target) (*Check, error) {
	memo := make(map[string]string)
	check := &Check{}

	sorted := append([]*buildgraph.Target(nil), targets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, t := range sorted {
		fp, err := iv.Fingerprint(t, memo)
		if err != nil {
			return nil, err
		}
		vt := &VersionedTargetSet{
			Key:     CacheKey{ID: t.ID, Fingerprint: fp},
			Targets: []*buildgraph.Target{t},
		}
		if iv.previous[t.ID] == fp {
			iv.current[t.ID] = fp
			check.Valid = append(check.Valid, vt)
		} else {
			check.Invalid = append(check.Invalid, vt)
		}
	}
	return check, nil
}

// MarkValid records that the given set was successfully brought up to date
// this run. Marked fingerprints are persisted by Save.
func (iv *Invalidator) MarkValid(vt *VersionedTargetSet) {
	iv.current[vt.Key.ID] = vt.Key.Fingerprint
}

// Save persists the fingerprints validated this run, atomically replacing
// the state file. Only targets seen this run are kept: state for deleted
// targets ages out.
func (iv *Invalidator) Save() error {
	sf := stateFile{
		Version:      stateFileVersion,
		Fingerprints: iv.current,
	}
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode fingerprint state: %w", err)
	}

	dir := filepath.Dir(iv.statePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "fingerprints-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write fingerprint state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close fingerprint state: %w", err)
	}
	if err := os.Rename(tmpName, iv.statePath); err != nil {
		return fmt.Errorf("failed to replace fingerprint state: %w", err)
	}
	return nil
}
