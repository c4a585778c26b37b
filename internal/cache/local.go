package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LocalCache is a filesystem-backed artifact cache. Entries live under
// cacheRoot in sharded directories keyed by fingerprint
// (cacheRoot/ab/cdef.../), each holding a manifest.json and a files/ tree
// mirroring the artifacts' paths relative to the artifact root.
//
// Writes build the entry in a temp directory and move it into place with a
// single rename, so readers never observe a half-written entry.
type LocalCache struct {
	artifactRoot string
	cacheRoot    string
}

const manifestName = "manifest.json"

// NewLocalCache creates a local cache. All cached artifacts must be under
// artifactRoot; entries are stored under cacheRoot.
func NewLocalCache(artifactRoot, cacheRoot string) (*LocalCache, error) {
	if artifactRoot == "" {
		return nil, fmt.Errorf("artifact root cannot be empty")
	}
	if cacheRoot == "" {
		return nil, fmt.Errorf("cache root cannot be empty")
	}
	absArtifact, err := filepath.Abs(artifactRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve artifact root: %w", err)
	}
	absCache, err := filepath.Abs(cacheRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache root: %w", err)
	}
	return &LocalCache{artifactRoot: absArtifact, cacheRoot: absCache}, nil
}

// TryInsert implements ArtifactCache.
func (c *LocalCache) TryInsert(ctx context.Context, key fingerprintKey, artifacts []string) error {
	if err := validateKey(key); err != nil {
		return &Error{Op: "insert", Key: key, Err: err}
	}

	rels, err := c.relativize(artifacts)
	if err != nil {
		return &Error{Op: "insert", Key: key, Err: err}
	}

	if err := os.MkdirAll(c.cacheRoot, 0o755); err != nil {
		return &Error{Op: "insert", Key: key, Err: err}
	}

	tmpDir, err := os.MkdirTemp(c.cacheRoot, "insert-tmp-*")
	if err != nil {
		return &Error{Op: "insert", Key: key, Err: err}
	}
	defer os.RemoveAll(tmpDir)

	for i, rel := range rels {
		dst := filepath.Join(tmpDir, "files", filepath.FromSlash(rel))
		if err := copyFile(artifacts[i], dst); err != nil {
			return &Error{Op: "insert", Key: key, Err: err}
		}
	}

	m := manifest{
		ID:          key.ID,
		Fingerprint: key.Fingerprint,
		Paths:       rels,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return &Error{Op: "insert", Key: key, Err: err}
	}
	if err := os.WriteFile(filepath.Join(tmpDir, manifestName), data, 0o644); err != nil {
		return &Error{Op: "insert", Key: key, Err: err}
	}

	final := c.entryDir(key)
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return &Error{Op: "insert", Key: key, Err: err}
	}
	// Replace any existing entry. The window between remove and rename means a
	// concurrent reader can miss, but it can never see a partial entry.
	if err := os.RemoveAll(final); err != nil {
		return &Error{Op: "insert", Key: key, Err: err}
	}
	if err := os.Rename(tmpDir, final); err != nil {
		return &Error{Op: "insert", Key: key, Err: err}
	}
	return nil
}

// Has implements ArtifactCache.
func (c *LocalCache) Has(ctx context.Context, key fingerprintKey) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, &Error{Op: "has", Key: key, Err: err}
	}
	_, err := os.Stat(filepath.Join(c.entryDir(key), manifestName))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &Error{Op: "has", Key: key, Err: err}
	}
	return true, nil
}

// UseCachedFiles implements ArtifactCache. A corrupt entry (manifest present
// but artifact bytes missing) is deleted and reported as a miss.
func (c *LocalCache) UseCachedFiles(ctx context.Context, key fingerprintKey) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, &Error{Op: "use", Key: key, Err: err}
	}

	entry := c.entryDir(key)
	m, err := readManifest(entry)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &Error{Op: "use", Key: key, Err: err}
	}

	for _, rel := range m.Paths {
		src := filepath.Join(entry, "files", filepath.FromSlash(rel))
		dst := filepath.Join(c.artifactRoot, filepath.FromSlash(rel))
		if err := copyFile(src, dst); err != nil {
			if os.IsNotExist(err) {
				// Entry is corrupt: drop it and treat as a miss.
				os.RemoveAll(entry)
				return false, nil
			}
			return false, &Error{Op: "use", Key: key, Err: err}
		}
	}
	return true, nil
}

// Delete implements ArtifactCache.
func (c *LocalCache) Delete(ctx context.Context, key fingerprintKey) error {
	if err := validateKey(key); err != nil {
		return &Error{Op: "delete", Key: key, Err: err}
	}
	if err := os.RemoveAll(c.entryDir(key)); err != nil {
		return &Error{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// Entries implements Lister, walking the sharded cache directories.
func (c *LocalCache) Entries(ctx context.Context) ([]EntryInfo, error) {
	var out []EntryInfo

	shards, err := os.ReadDir(c.cacheRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache root: %w", err)
	}

	for _, shard := range shards {
		if !shard.IsDir() || strings.HasPrefix(shard.Name(), "insert-tmp-") {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(c.cacheRoot, shard.Name()))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(c.cacheRoot, shard.Name(), entry.Name())
			m, err := readManifest(dir)
			if err != nil {
				continue
			}
			info := EntryInfo{
				Key:           fingerprintKey{ID: m.ID, Fingerprint: m.Fingerprint},
				ArtifactCount: len(m.Paths),
				CreatedAtMs:   m.CreatedAtMs,
			}
			for _, rel := range m.Paths {
				if st, err := os.Stat(filepath.Join(dir, "files", filepath.FromSlash(rel))); err == nil {
					info.SizeBytes += st.Size()
				}
			}
			out = append(out, info)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.Fingerprint < out[j].Key.Fingerprint
	})
	return out, nil
}

func (c *LocalCache) entryDir(key fingerprintKey) string {
	fp := key.Fingerprint
	return filepath.Join(c.cacheRoot, fp[:2], fp[2:])
}

// relativize converts artifact paths into slash-normalized paths relative to
// the artifact root, rejecting paths outside it.
func (c *LocalCache) relativize(artifacts []string) ([]string, error) {
	rels := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		abs, err := filepath.Abs(a)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(c.artifactRoot, abs)
		if err != nil {
			return nil, err
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("artifact %q is not under artifact root %q", a, c.artifactRoot)
		}
		rels = append(rels, filepath.ToSlash(rel))
	}
	return rels, nil
}

func readManifest(entryDir string) (*manifest, error) {
	data, err := os.ReadFile(filepath.Join(entryDir, manifestName))
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// validateKey ensures a key is usable as a storage address.
func validateKey(key fingerprintKey) error {
	if key.Fingerprint == "" {
		return fmt.Errorf("cache key fingerprint is empty")
	}
	if len(key.Fingerprint) < 3 {
		return fmt.Errorf("cache key fingerprint %q is too short", key.Fingerprint)
	}
	if strings.ContainsAny(key.Fingerprint, `/\`) {
		return fmt.Errorf("cache key fingerprint %q must not contain path separators", key.Fingerprint)
	}
	return nil
}
