package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisCache is a Redis-backed artifact cache for sharing entries between
// machines. Each entry is a Redis hash holding the manifest plus the raw
// bytes of every artifact.
//
// All keys are namespaced so multiple Warren projects can safely share one
// Redis server.
//
// Key pattern: warren:{namespace}:artifact:{fingerprint}
type RedisCache struct {
	rdb          *redis.Client
	artifactRoot string
	namespace    string
}

// manifestField is the hash field holding the entry manifest. Artifact
// fields are prefixed so they can never collide with it.
const (
	manifestField       = "__manifest"
	artifactFieldPrefix = "file:"
)

// NewRedisCache creates a Redis artifact cache. All cached artifacts must be
// under artifactRoot. The namespace must be non-empty and is typically the
// project name.
func NewRedisCache(redisOpts *redis.Options, namespace, artifactRoot string) (*RedisCache, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}
	if artifactRoot == "" {
		return nil, fmt.Errorf("artifact root cannot be empty")
	}
	absArtifact, err := filepath.Abs(artifactRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve artifact root: %w", err)
	}
	return &RedisCache{
		rdb:          redis.NewClient(redisOpts),
		artifactRoot: absArtifact,
		namespace:    namespace,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// entryKey returns the Redis key for a cache entry.
// Pattern: warren:{namespace}:artifact:{fingerprint}
func (c *RedisCache) entryKey(fp string) string {
	return fmt.Sprintf("warren:%s:artifact:%s", c.namespace, fp)
}

// stagingKey returns a unique Redis key for staging an entry before the
// atomic RENAME into place.
// Pattern: warren:{namespace}:staging:{uuid}
func (c *RedisCache) stagingKey() string {
	return fmt.Sprintf("warren:%s:staging:%s", c.namespace, uuid.New().String())
}

// TryInsert implements ArtifactCache. The entry is written to a staging key
// and moved into place with RENAME, which atomically replaces any existing
// entry: readers never observe a half-written hash.
func (c *RedisCache) TryInsert(ctx context.Context, key fingerprintKey, artifacts []string) error {
	if err := validateKey(key); err != nil {
		return &Error{Op: "insert", Key: key, Err: err}
	}

	fields := map[string]interface{}{}
	rels := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		rel, err := c.relativize(a)
		if err != nil {
			return &Error{Op: "insert", Key: key, Err: err}
		}
		contents, err := os.ReadFile(a)
		if err != nil {
			return &Error{Op: "insert", Key: key, Err: err}
		}
		rels = append(rels, rel)
		fields[artifactFieldPrefix+rel] = contents
	}

	m := manifest{
		ID:          key.ID,
		Fingerprint: key.Fingerprint,
		Paths:       rels,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	manifestJSON, err := json.Marshal(m)
	if err != nil {
		return &Error{Op: "insert", Key: key, Err: err}
	}
	fields[manifestField] = manifestJSON

	staging := c.stagingKey()
	if err := c.rdb.HSet(ctx, staging, fields).Err(); err != nil {
		return &Error{Op: "insert", Key: key, Err: err}
	}
	if err := c.rdb.Rename(ctx, staging, c.entryKey(key.Fingerprint)).Err(); err != nil {
		// Clean up the orphaned staging key before surfacing the failure.
		c.rdb.Del(ctx, staging)
		return &Error{Op: "insert", Key: key, Err: err}
	}
	return nil
}

// Has implements ArtifactCache.
func (c *RedisCache) Has(ctx context.Context, key fingerprintKey) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, &Error{Op: "has", Key: key, Err: err}
	}
	n, err := c.rdb.Exists(ctx, c.entryKey(key.Fingerprint)).Result()
	if err != nil {
		return false, &Error{Op: "has", Key: key, Err: err}
	}
	return n > 0, nil
}

// UseCachedFiles implements ArtifactCache.
func (c *RedisCache) UseCachedFiles(ctx context.Context, key fingerprintKey) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, &Error{Op: "use", Key: key, Err: err}
	}

	fields, err := c.rdb.HGetAll(ctx, c.entryKey(key.Fingerprint)).Result()
	if err != nil {
		return false, &Error{Op: "use", Key: key, Err: err}
	}
	// HGetAll returns an empty map for non-existent keys.
	if len(fields) == 0 {
		return false, nil
	}

	manifestJSON, ok := fields[manifestField]
	if !ok {
		return false, &Error{Op: "use", Key: key, Err: fmt.Errorf("entry has no manifest")}
	}
	var m manifest
	if err := json.Unmarshal([]byte(manifestJSON), &m); err != nil {
		return false, &Error{Op: "use", Key: key, Err: fmt.Errorf("failed to parse manifest: %w", err)}
	}

	for _, rel := range m.Paths {
		contents, ok := fields[artifactFieldPrefix+rel]
		if !ok {
			return false, &Error{Op: "use", Key: key, Err: fmt.Errorf("entry is missing artifact %q", rel)}
		}
		dst := filepath.Join(c.artifactRoot, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return false, &Error{Op: "use", Key: key, Err: err}
		}
		if err := os.WriteFile(dst, []byte(contents), 0o644); err != nil {
			return false, &Error{Op: "use", Key: key, Err: err}
		}
	}
	return true, nil
}

// Delete implements ArtifactCache.
func (c *RedisCache) Delete(ctx context.Context, key fingerprintKey) error {
	if err := validateKey(key); err != nil {
		return &Error{Op: "delete", Key: key, Err: err}
	}
	if err := c.rdb.Del(ctx, c.entryKey(key.Fingerprint)).Err(); err != nil {
		return &Error{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// Entries implements Lister, using SCAN so listing never blocks the server.
func (c *RedisCache) Entries(ctx context.Context) ([]EntryInfo, error) {
	pattern := fmt.Sprintf("warren:%s:artifact:*", c.namespace)
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()

	var out []EntryInfo
	for iter.Next(ctx) {
		fields, err := c.rdb.HGetAll(ctx, iter.Val()).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read cache entry %s: %w", iter.Val(), err)
		}
		manifestJSON, ok := fields[manifestField]
		if !ok {
			continue
		}
		var m manifest
		if err := json.Unmarshal([]byte(manifestJSON), &m); err != nil {
			continue
		}
		info := EntryInfo{
			Key:           fingerprintKey{ID: m.ID, Fingerprint: m.Fingerprint},
			ArtifactCount: len(m.Paths),
			CreatedAtMs:   m.CreatedAtMs,
		}
		for _, rel := range m.Paths {
			info.SizeBytes += int64(len(fields[artifactFieldPrefix+rel]))
		}
		out = append(out, info)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan cache entries: %w", err)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.Fingerprint < out[j].Key.Fingerprint
	})
	return out, nil
}

func (c *RedisCache) relativize(artifact string) (string, error) {
	abs, err := filepath.Abs(artifact)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(c.artifactRoot, abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact %q is not under artifact root %q", artifact, c.artifactRoot)
	}
	return filepath.ToSlash(rel), nil
}
