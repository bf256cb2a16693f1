package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := New[int]()

	_, ok := r.Get("missing")
	assert.False(t, ok)

	r.Add("writer", 1)
	r.Add("editor", 2)
	v, ok := r.Get("writer")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, loaded := r.GetOrAdd("editor", func() int { return 99 })
	assert.True(t, loaded)
	assert.Equal(t, 2, v)

	v, loaded = r.GetOrAdd("outliner", func() int { return 3 })
	assert.False(t, loaded)
	assert.Equal(t, 3, v)

	assert.Equal(t, []string{"editor", "outliner", "writer"}, r.Names())

	r.Del("editor")
	assert.Equal(t, []string{"outliner", "writer"}, r.Names())
}

func TestRegistryGetOrAddConcurrent(t *testing.T) {
	r := New[*int]()
	var wg sync.WaitGroup
	results := make([]*int, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = r.GetOrAdd("shared", func() *int { n := i; return &n })
		}(i)
	}
	wg.Wait()
	for _, p := range results {
		assert.Same(t, results[0], p)
	}
}
