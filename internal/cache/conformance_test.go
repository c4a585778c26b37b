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

// cacheFixture is one backend under conformance test.
type cacheFixture struct {
	cache        ArtifactCache
	artifactRoot string
}

// runConformance exercises the ArtifactCache contract against a backend.
// Both backends must behave identically for every case here.
func runConformance(t *testing.T, setup func(t *testing.T) cacheFixture) {
	key := fingerprint.CacheKey{ID: "thrift:api", Fingerprint: "abc123def456"}
	ctx := context.Background()

	writeArtifact := func(t *testing.T, fx cacheFixture, rel, content string) string {
		t.Helper()
		p := filepath.Join(fx.artifactRoot, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}

	t.Run("has on empty cache is false", func(t *testing.T) {
		fx := setup(t)
		found, err := fx.cache.Has(ctx, key)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("insert then has", func(t *testing.T) {
		fx := setup(t)
		a := writeArtifact(t, fx, "gen/api.java", "public class Api {}")

		require.NoError(t, fx.cache.TryInsert(ctx, key, []string{a}))

		found, err := fx.cache.Has(ctx, key)
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("use cached files restores artifacts", func(t *testing.T) {
		fx := setup(t)
		a := writeArtifact(t, fx, "gen/api.java", "public class Api {}")
		require.NoError(t, fx.cache.TryInsert(ctx, key, []string{a}))

		// Simulate a clean checkout: the built artifact is gone.
		require.NoError(t, os.Remove(a))

		used, err := fx.cache.UseCachedFiles(ctx, key)
		require.NoError(t, err)
		require.True(t, used)

		restored, err := os.ReadFile(a)
		require.NoError(t, err)
		assert.Equal(t, "public class Api {}", string(restored))
	})

	t.Run("use on miss returns false without error", func(t *testing.T) {
		fx := setup(t)
		used, err := fx.cache.UseCachedFiles(ctx, key)
		require.NoError(t, err)
		assert.False(t, used)
	})

	t.Run("insert replaces existing entry", func(t *testing.T) {
		fx := setup(t)
		old := writeArtifact(t, fx, "gen/old.java", "old")
		require.NoError(t, fx.cache.TryInsert(ctx, key, []string{old}))

		fresh := writeArtifact(t, fx, "gen/new.java", "new")
		require.NoError(t, fx.cache.TryInsert(ctx, key, []string{fresh}))

		require.NoError(t, os.Remove(old))
		require.NoError(t, os.Remove(fresh))

		used, err := fx.cache.UseCachedFiles(ctx, key)
		require.NoError(t, err)
		require.True(t, used)

		// Only the new entry's artifact comes back.
		_, err = os.Stat(fresh)
		assert.NoError(t, err)
		_, err = os.Stat(old)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("delete removes entry", func(t *testing.T) {
		fx := setup(t)
		a := writeArtifact(t, fx, "gen/api.java", "x")
		require.NoError(t, fx.cache.TryInsert(ctx, key, []string{a}))
		require.NoError(t, fx.cache.Delete(ctx, key))

		found, err := fx.cache.Has(ctx, key)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("delete of non-existent key is a no-op", func(t *testing.T) {
		fx := setup(t)
		assert.NoError(t, fx.cache.Delete(ctx, key))
	})

	t.Run("empty artifact set is a valid entry", func(t *testing.T) {
		fx := setup(t)
		require.NoError(t, fx.cache.TryInsert(ctx, key, nil))

		found, err := fx.cache.Has(ctx, key)
		require.NoError(t, err)
		assert.True(t, found)

		used, err := fx.cache.UseCachedFiles(ctx, key)
		require.NoError(t, err)
		assert.True(t, used)
	})

	t.Run("artifact outside artifact root is rejected", func(t *testing.T) {
		fx := setup(t)
		outside := filepath.Join(t.TempDir(), "escape.java")
		require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))

		err := fx.cache.TryInsert(ctx, key, []string{outside})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not under artifact root")

		// A failed insert must not leave a partial entry behind.
		found, hasErr := fx.cache.Has(ctx, key)
		require.NoError(t, hasErr)
		assert.False(t, found)
	})

	t.Run("short fingerprint is rejected", func(t *testing.T) {
		fx := setup(t)
		err := fx.cache.TryInsert(ctx, fingerprint.CacheKey{ID: "x", Fingerprint: "ab"}, nil)
		assert.Error(t, err)
	})
}
