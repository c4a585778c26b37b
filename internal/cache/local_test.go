package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/warren/internal/fingerprint"
)

func setupLocalCache(t *testing.T) cacheFixture {
	t.Helper()
	root := t.TempDir()
	c, err := NewLocalCache(filepath.Join(root, "out"), filepath.Join(root, "cache"))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "out"), 0o755))
	return cacheFixture{cache: c, artifactRoot: filepath.Join(root, "out")}
}

func TestLocalCacheConformance(t *testing.T) {
	runConformance(t, setupLocalCache)
}

func TestNewLocalCache(t *testing.T) {
	t.Run("rejects empty artifact root", func(t *testing.T) {
		_, err := NewLocalCache("", "cache")
		assert.Error(t, err)
	})

	t.Run("rejects empty cache root", func(t *testing.T) {
		_, err := NewLocalCache("out", "")
		assert.Error(t, err)
	})
}

func TestLocalCacheEntries(t *testing.T) {
	fx := setupLocalCache(t)
	c := fx.cache.(*LocalCache)
	ctx := context.Background()

	t.Run("empty cache lists nothing", func(t *testing.T) {
		entries, err := c.Entries(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("lists inserted entries with sizes", func(t *testing.T) {
		a := filepath.Join(fx.artifactRoot, "gen", "api.java")
		require.NoError(t, os.MkdirAll(filepath.Dir(a), 0o755))
		require.NoError(t, os.WriteFile(a, []byte("public class Api {}"), 0o644))

		key := fingerprint.CacheKey{ID: "thrift:api", Fingerprint: "abc123def456"}
		require.NoError(t, c.TryInsert(ctx, key, []string{a}))

		entries, err := c.Entries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, key, entries[0].Key)
		assert.Equal(t, 1, entries[0].ArtifactCount)
		assert.Equal(t, int64(len("public class Api {}")), entries[0].SizeBytes)
		assert.Greater(t, entries[0].CreatedAtMs, int64(0))
	})
}

func TestLocalCacheCorruptEntryIsMiss(t *testing.T) {
	fx := setupLocalCache(t)
	c := fx.cache.(*LocalCache)
	ctx := context.Background()

	a := filepath.Join(fx.artifactRoot, "gen", "api.java")
	require.NoError(t, os.MkdirAll(filepath.Dir(a), 0o755))
	require.NoError(t, os.WriteFile(a, []byte("x"), 0o644))

	key := fingerprint.CacheKey{ID: "thrift:api", Fingerprint: "abc123def456"}
	require.NoError(t, c.TryInsert(ctx, key, []string{a}))

	// Corrupt the entry by removing the stored bytes but not the manifest.
	require.NoError(t, os.RemoveAll(filepath.Join(c.cacheRoot, "ab", "c123def456", "files")))

	used, err := c.UseCachedFiles(ctx, key)
	require.NoError(t, err)
	assert.False(t, used)

	// The corrupt entry was dropped entirely.
	found, err := c.Has(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)
}
