package fingerprint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestHashFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.thrift", "struct A {}")
	b := writeFile(t, dir, "b.thrift", "struct B {}")

	t.Run("order does not matter", func(t *testing.T) {
		fp1, err := HashFiles([]string{a, b})
		require.NoError(t, err)
		fp2, err := HashFiles([]string{b, a})
		require.NoError(t, err)
		assert.Equal(t, fp1, fp2)
	})

	t.Run("duplicates do not matter", func(t *testing.T) {
		fp1, err := HashFiles([]string{a, b})
		require.NoError(t, err)
		fp2, err := HashFiles([]string{a, a, b})
		require.NoError(t, err)
		assert.Equal(t, fp1, fp2)
	})

	t.Run("content change changes the fingerprint", func(t *testing.T) {
		fp1, err := HashFiles([]string{a})
		require.NoError(t, err)

		writeFile(t, dir, "a.thrift", "struct A { 1: string name }")
		fp2, err := HashFiles([]string{a})
		require.NoError(t, err)
		assert.NotEqual(t, fp1, fp2)
	})

	t.Run("missing file contributes its name only", func(t *testing.T) {
		missing := filepath.Join(dir, "nope.thrift")
		fp1, err := HashFiles([]string{missing})
		require.NoError(t, err)
		fp2, err := HashFiles([]string{missing})
		require.NoError(t, err)
		assert.Equal(t, fp1, fp2)
	})

	t.Run("empty set has a stable fingerprint", func(t *testing.T) {
		fp1, err := HashFiles(nil)
		require.NoError(t, err)
		fp2, err := HashFiles([]string{})
		require.NoError(t, err)
		assert.Equal(t, fp1, fp2)
	})
}

func TestCombine(t *testing.T) {
	t.Run("is order sensitive", func(t *testing.T) {
		assert.NotEqual(t, Combine("a", "b"), Combine("b", "a"))
	})

	t.Run("length prefixing prevents aliasing", func(t *testing.T) {
		assert.NotEqual(t, Combine("ab", "c"), Combine("a", "bc"))
	})
}

func TestCacheKeyString(t *testing.T) {
	k := CacheKey{ID: "thrift:api", Fingerprint: "0123456789abcdef0123"}
	assert.Equal(t, "thrift:api@0123456789ab", k.String())

	short := CacheKey{ID: "x", Fingerprint: "abc"}
	assert.Equal(t, "x@abc", short.String())
}
