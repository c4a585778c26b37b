package products

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/warren/pkg/buildgraph"
)

func TestProductMap(t *testing.T) {
	src := buildgraph.NewTarget("thrift:api")
	syn := buildgraph.NewTarget("thrift:api.java")

	t.Run("add and get", func(t *testing.T) {
		m := NewProductMap("/out")
		m.Add(src, []*buildgraph.Target{syn})

		got := m.Get(src)
		require.Len(t, got, 1)
		assert.Equal(t, "thrift:api.java", got[0].ID)
		assert.Equal(t, "/out", m.Root())
	})

	t.Run("get of unknown target is nil", func(t *testing.T) {
		m := NewProductMap("/out")
		assert.Nil(t, m.Get(src))
	})

	t.Run("repeated add appends", func(t *testing.T) {
		m := NewProductMap("/out")
		other := buildgraph.NewTarget("thrift:api.py")
		m.Add(src, []*buildgraph.Target{syn})
		m.Add(src, []*buildgraph.Target{other})
		assert.Len(t, m.Get(src), 2)
	})

	t.Run("targets sorted by ID", func(t *testing.T) {
		m := NewProductMap("/out")
		b := buildgraph.NewTarget("b")
		a := buildgraph.NewTarget("a")
		m.Add(b, nil)
		m.Add(a, nil)

		targets := m.Targets()
		require.Len(t, targets, 2)
		assert.Equal(t, "a", targets[0].ID)
		assert.Equal(t, "b", targets[1].ID)
	})
}

func TestRegistry(t *testing.T) {
	t.Run("forward and reverse maps are distinct", func(t *testing.T) {
		r := NewRegistry("/out")
		fwd := r.Forward("java")
		rev := r.Reverse("java")
		assert.NotSame(t, fwd, rev)

		// Same map is returned on repeat access.
		assert.Same(t, fwd, r.Forward("java"))
		assert.Same(t, rev, r.Reverse("java"))
	})

	t.Run("languages excludes reverse maps", func(t *testing.T) {
		r := NewRegistry("/out")
		r.Forward("python")
		r.Reverse("python")
		r.Forward("java")

		assert.Equal(t, []string{"java", "python"}, r.Languages())
	})
}
