// Package cache provides the Warren artifact cache: a map from a build-input
// fingerprint to the set of artifacts that build produced. Entries are written
// once per versioned target set and restored on later runs so unchanged
// targets never regenerate.
//
// Two backends are provided: a local filesystem cache and a Redis cache.
// Both satisfy ArtifactCache and share the same semantics: per-key atomic
// replacement, misses are not errors, and deletes are idempotent.
//
// Note throughout the distinction between the artifact root (where artifacts
// are originally built and where the cache restores them to) and the cache
// root (where the artifacts are stored).
package cache

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dyluth/warren/internal/fingerprint"
)

// ArtifactCache stores sets of build artifacts keyed by fingerprint.
//
// The cache key must uniquely identify the inputs (sources, flags, tool
// versions) needed to build the artifacts. All artifact paths must be under
// the backend's artifact root.
type ArtifactCache interface {
	// TryInsert caches artifacts under key, atomically replacing any existing
	// entry: a concurrent reader sees the old entry, no entry, or the new
	// entry, never a half-written one. This is the only cache write that may
	// return an error; use Insert for the never-fails wrapper.
	TryInsert(ctx context.Context, key fingerprint.CacheKey, artifacts []string) error

	// Has reports whether an entry exists for key. No side effects.
	Has(ctx context.Context, key fingerprint.CacheKey) (bool, error)

	// UseCachedFiles materializes the artifacts cached under key back beneath
	// the artifact root. Returns true if a usable entry was found and
	// restored. A cache miss returns (false, nil), not an error.
	UseCachedFiles(ctx context.Context, key fingerprint.CacheKey) (bool, error)

	// Delete removes the entry for key. Deleting a non-existent key is a
	// no-op, never an error.
	Delete(ctx context.Context, key fingerprint.CacheKey) error
}

// EntryInfo describes one cache entry for inspection tooling.
type EntryInfo struct {
	Key           fingerprint.CacheKey `json:"key"`
	ArtifactCount int                  `json:"artifact_count"`
	SizeBytes     int64                `json:"size_bytes"`
	CreatedAtMs   int64                `json:"created_at_ms"`
}

// Lister is implemented by backends that can enumerate their entries.
// Used by `warren cache ls`.
type Lister interface {
	Entries(ctx context.Context) ([]EntryInfo, error)
}

// Error wraps a cache backend failure with the operation and key involved.
type Error struct {
	Op  string
	Key fingerprint.CacheKey
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("artifact cache %s failed for %s: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Insert caches the output of a build. It never returns an error: caching is
// an optimization, not a build-correctness requirement, so a cache failure
// must never fail the surrounding build.
//
// Artifact paths that do not exist on disk are silently dropped before the
// write - a no-op generation (e.g. on an empty source set) is valid. If the
// underlying TryInsert fails, the failure is logged and the entry is deleted
// best-effort so no partial entry survives; a failure of that cleanup is
// logged at debug severity and swallowed.
func Insert(ctx context.Context, c ArtifactCache, key fingerprint.CacheKey, artifacts []string) {
	existing := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		if _, err := os.Stat(a); err == nil {
			existing = append(existing, a)
		}
	}

	if err := c.TryInsert(ctx, key, existing); err != nil {
		log.Printf("[Cache] Error while writing to artifact cache: %v. Deleting, just in case.", err)
		if delErr := c.Delete(ctx, key); delErr != nil {
			log.Printf("[Cache] debug: failed to delete %s on error: %v", key, delErr)
		}
	}
}

// fingerprintKey aliases the cache key type; backends use it to keep method
// signatures short.
type fingerprintKey = fingerprint.CacheKey

// manifest is the per-entry metadata both backends store alongside the
// artifact bytes.
type manifest struct {
	ID          string   `json:"id"`
	Fingerprint string   `json:"fingerprint"`
	Paths       []string `json:"paths"` // artifact paths relative to the artifact root
	CreatedAtMs int64    `json:"created_at_ms"`
}
