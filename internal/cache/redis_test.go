package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/warren/internal/fingerprint"
)

// setupRedisCache creates a cache backed by a miniredis instance.
func setupRedisCache(t *testing.T) cacheFixture {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	artifactRoot := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(artifactRoot, 0o755))

	c, err := NewRedisCache(&redis.Options{Addr: mr.Addr()}, "test-project", artifactRoot)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return cacheFixture{cache: c, artifactRoot: artifactRoot}
}

func TestRedisCacheConformance(t *testing.T) {
	runConformance(t, setupRedisCache)
}

func TestNewRedisCache(t *testing.T) {
	t.Run("rejects empty namespace", func(t *testing.T) {
		_, err := NewRedisCache(&redis.Options{Addr: "localhost:6379"}, "", "out")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "namespace cannot be empty")
	})

	t.Run("rejects empty artifact root", func(t *testing.T) {
		_, err := NewRedisCache(&redis.Options{Addr: "localhost:6379"}, "p", "")
		assert.Error(t, err)
	})
}

func TestRedisCachePing(t *testing.T) {
	fx := setupRedisCache(t)
	c := fx.cache.(*RedisCache)
	assert.NoError(t, c.Ping(context.Background()))
}

func TestRedisCacheEntries(t *testing.T) {
	fx := setupRedisCache(t)
	c := fx.cache.(*RedisCache)
	ctx := context.Background()

	a := filepath.Join(fx.artifactRoot, "gen", "api.py")
	require.NoError(t, os.MkdirAll(filepath.Dir(a), 0o755))
	require.NoError(t, os.WriteFile(a, []byte("class Api: pass"), 0o644))

	keys := []fingerprint.CacheKey{
		{ID: "thrift:api", Fingerprint: "bbb222bbb222"},
		{ID: "thrift:base", Fingerprint: "aaa111aaa111"},
	}
	for _, key := range keys {
		require.NoError(t, c.TryInsert(ctx, key, []string{a}))
	}

	entries, err := c.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Sorted by fingerprint.
	assert.Equal(t, "aaa111aaa111", entries[0].Key.Fingerprint)
	assert.Equal(t, "bbb222bbb222", entries[1].Key.Fingerprint)
	assert.Equal(t, int64(len("class Api: pass")), entries[0].SizeBytes)
}

func TestRedisCacheNoStagingLeak(t *testing.T) {
	fx := setupRedisCache(t)
	c := fx.cache.(*RedisCache)
	ctx := context.Background()

	a := filepath.Join(fx.artifactRoot, "api.go")
	require.NoError(t, os.WriteFile(a, []byte("package api"), 0o644))

	key := fingerprint.CacheKey{ID: "x", Fingerprint: "abc123def456"}
	require.NoError(t, c.TryInsert(ctx, key, []string{a}))

	// Only the final entry key may remain after an insert.
	staged, err := c.rdb.Keys(ctx, "warren:test-project:staging:*").Result()
	require.NoError(t, err)
	assert.Empty(t, staged)
}
