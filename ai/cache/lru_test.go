package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct{ t time.Time }

func (m *manualClock) now() time.Time { return m.t }

func newTestCache(capacity int, ttl time.Duration) (*LRUCache[string, int], *manualClock) {
	clock := &manualClock{t: time.Unix(1_700_000_000, 0)}
	c := NewLRUCache[string, int](capacity, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUCache_Defaults(t *testing.T) {
	c := NewLRUCache[string, int](0, 0)
	assert.Equal(t, 1000, c.Capacity())
	assert.Equal(t, 5*time.Minute, c.defaultTTL)
	assert.Zero(t, c.Len())
}

func TestLRUCache_SetGet(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("a", 2)
	v, _ = c.Get("a")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())

	_, ok = c.Get("missing")
	assert.False(t, ok)

	hits, misses := c.Stats()
	assert.Equal(t, uint64(2), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)

	c.Set("short", 1)
	c.SetWithTTL("long", 2, time.Hour)

	clock.t = clock.t.Add(2 * time.Minute)

	_, ok := c.Get("short")
	assert.False(t, ok, "expired entry is dropped")
	_, ok = c.Get("long")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestLRUCache_Eviction(t *testing.T) {
	c, _ := newTestCache(3, time.Minute)

	c.Set("k1", 1)
	c.Set("k2", 2)
	c.Set("k3", 3)
	c.Get("k1") // k2 becomes least recently used
	c.Set("k4", 4)

	_, ok := c.Get("k2")
	assert.False(t, ok)
	for _, k := range []string{"k1", "k3", "k4"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
	assert.Equal(t, 3, c.Len())
}

func TestLRUCache_RemoveClear(t *testing.T) {
	c, _ := newTestCache(3, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))
	c.Clear()
	assert.Zero(t, c.Len())
}

func TestLRUCache_Concurrent(t *testing.T) {
	c := NewLRUCache[int, int](50, time.Minute)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Set(g*1000+i, i)
				c.Get(g*1000 + i/2)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 50)
}
