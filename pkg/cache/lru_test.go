package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/switchkit/pkg/cache"
)

func TestLRU(t *testing.T) {
	t.Parallel()

	t.Run("put and get", func(t *testing.T) {
		t.Parallel()
		c := cache.NewLRU[string, int](2)
		c.Put("a", 1)

		v, ok := c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 1, v)

		_, ok = c.Get("missing")
		assert.False(t, ok)
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		t.Parallel()
		c := cache.NewLRU[string, int](2)
		c.Put("a", 1)
		c.Put("b", 2)
		c.Get("a")
		c.Put("c", 3)

		_, ok := c.Get("b")
		assert.False(t, ok)
		_, ok = c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("update keeps single entry", func(t *testing.T) {
		t.Parallel()
		c := cache.NewLRU[string, int](2)
		c.Put("a", 1)
		c.Put("a", 5)

		v, _ := c.Get("a")
		assert.Equal(t, 5, v)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("expires entries", func(t *testing.T) {
		t.Parallel()
		now := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
		c := cache.NewLRU[string, int](2, cache.WithTTL(time.Minute), cache.WithClock(func() time.Time { return now }))
		c.Put("a", 1)

		_, ok := c.Get("a")
		assert.True(t, ok)

		now = now.Add(time.Minute)
		_, ok = c.Get("a")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("remove and purge", func(t *testing.T) {
		t.Parallel()
		c := cache.NewLRU[string, int](3)
		c.Put("a", 1)
		c.Put("b", 2)
		c.Remove("a")
		assert.Equal(t, 1, c.Len())
		c.Purge()
		assert.Equal(t, 0, c.Len())
	})

	t.Run("panics on zero capacity", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { cache.NewLRU[string, int](0) })
	})
}
