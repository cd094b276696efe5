package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInMemoryCache(t *testing.T) {
	cache := NewInMemoryCache[string]()

	assert.NotNil(t, cache)
	assert.NotNil(t, cache.items)
	assert.Empty(t, cache.items)
}

func TestInMemoryCache_GetSet(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value []string
	}{
		{name: "single_value", key: "maxaro", value: []string{"A1"}},
		{name: "several_values", key: "x2o", value: []string{"A1", "B2", "C3"}},
		{name: "nil_value", key: "tegeldepot", value: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewInMemoryCache[[]string]()

			val, found := cache.Get(tt.key)
			assert.False(t, found)
			assert.Nil(t, val)

			cache.Set(tt.key, tt.value)

			val, found = cache.Get(tt.key)
			assert.True(t, found)
			assert.Equal(t, tt.value, val)

			cache.Set(tt.key, []string{"overwritten"})
			val, found = cache.Get(tt.key)
			assert.True(t, found)
			assert.Equal(t, []string{"overwritten"}, val)
		})
	}
}

func TestInMemoryCache_Delete(t *testing.T) {
	cache := NewInMemoryCache[int]()
	cache.Set("a", 1)
	cache.Set("b", 2)

	cache.Delete("a")
	cache.Delete("missing")

	_, found := cache.Get("a")
	assert.False(t, found)
	assert.Equal(t, 1, cache.Len())
}

func TestInMemoryCache_GetOrLoad(t *testing.T) {
	cache := NewInMemoryCache[int]()
	calls := 0
	load := func() (int, error) {
		calls++
		return 42, nil
	}

	v, err := cache.GetOrLoad("answer", load)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = cache.GetOrLoad("answer", load)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls, "second lookup should be served from cache")
}

func TestInMemoryCache_GetOrLoadErrorNotCached(t *testing.T) {
	cache := NewInMemoryCache[int]()
	boom := errors.New("boom")

	_, err := cache.GetOrLoad("k", func() (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)

	_, found := cache.Get("k")
	assert.False(t, found)

	v, err := cache.GetOrLoad("k", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestInMemoryCache_Concurrency(t *testing.T) {
	cache := NewInMemoryCache[int]()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", i%10)
			cache.Set(key, i)
			_, _ = cache.Get(key)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, cache.Len())
}
