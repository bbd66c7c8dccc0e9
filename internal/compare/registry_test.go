package compare

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crocs-muni/scrutiny-viz/internal/schema"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	assert.Equal(t, []string{"algperf", "basic", "cplc"}, r.Names())

	for _, name := range r.Names() {
		f, ok := r.Lookup(name)
		require.True(t, ok, name)
		c, err := f(nil)
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Name())
	}
}

func TestRegistryNamesAreCaseInsensitive(t *testing.T) {
	r := Default()
	res, err := r.Resolve("  CPLC ")
	require.NoError(t, err)
	assert.Equal(t, "cplc", res.Name)
	assert.Nil(t, res.Warning)
}

func TestRegistryFallsBackToBasic(t *testing.T) {
	r := Default()
	res, err := r.Resolve("fuzzy")
	require.NoError(t, err)

	assert.Equal(t, "basic", res.Name)
	assert.Equal(t, "fuzzy", res.Requested)
	require.NotNil(t, res.Warning)
	assert.True(t, IsNotFoundWarning(res.Warning))
	assert.Contains(t, res.Warning.Error(), `"fuzzy"`)

	c, err := res.Factory(nil)
	require.NoError(t, err)
	assert.Equal(t, "basic", c.Name())
}

func TestRegistryWithoutFallback(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("basic")
	assert.Error(t, err)
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register("  ", NewBasic))
	assert.Error(t, r.Register("x", nil))
	require.NoError(t, r.Register("Custom", func(*schema.Tree) (Comparator, error) { return Basic{}, nil }))

	_, ok := r.Lookup("custom")
	assert.True(t, ok)
	assert.Panics(t, func() { r.MustRegister("", NewBasic) })
}

func TestRegistryConcurrentUse(t *testing.T) {
	r := Default()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Resolve("algperf")
			_ = r.Names()
		}()
	}
	wg.Wait()
}
