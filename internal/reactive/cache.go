package reactive

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/zjrosen/strata/internal/cachemanager"
)

// ComputeFunc produces a derived value.
type ComputeFunc func() any

// entry boxes a computed value so nil results are cacheable.
type entry struct {
	value any
}

// Cache is a lazily evaluated, invalidatable cache of named derived values.
type Cache struct {
	computes  map[string]ComputeFunc
	names     []string
	gen       atomic.Uint64
	rt        *cachemanager.ReadThroughCache[string, entry]
	destroyed atomic.Bool
}

// NewCache builds a cache over computes. With caching disabled every read
// recomputes, which is useful when debugging getters with side effects.
func NewCache(computes map[string]ComputeFunc, caching bool) *Cache {
	c := &Cache{
		computes: computes,
		names:    make([]string, 0, len(computes)),
	}
	for name := range computes {
		c.names = append(c.names, name)
	}
	slices.Sort(c.names)

	c.rt = cachemanager.NewReadThroughCache[string, entry](
		cachemanager.NewInMemoryCacheManager[string, entry]("getters"),
		c.load,
		!caching,
	)
	return c
}

// load computes the getter named by a "gen:name" key.
func (c *Cache) load(_ context.Context, key string) (entry, error) {
	_, name, _ := strings.Cut(key, ":")
	return entry{value: c.computes[name]()}, nil
}

// Get returns the value named name, computing it on first access after an
// invalidation. The second result is false for unknown names and after the
// cache has been destroyed.
func (c *Cache) Get(name string) (any, bool) {
	if c.destroyed.Load() {
		return nil, false
	}
	if _, ok := c.computes[name]; !ok {
		return nil, false
	}
	// Keys carry the generation so a compute racing an invalidation can only
	// populate a generation nobody reads any more.
	key := strconv.FormatUint(c.gen.Load(), 10) + ":" + name
	e, _ := c.rt.Get(context.Background(), key)
	return e.value, true
}

// Has reports whether name is a known derived value.
func (c *Cache) Has(name string) bool {
	_, ok := c.computes[name]
	return ok
}

// Names returns every derived value name in lexical order.
func (c *Cache) Names() []string {
	return slices.Clone(c.names)
}

// Invalidate drops every cached value.
func (c *Cache) Invalidate() {
	c.gen.Add(1)
	c.rt.Flush(context.Background())
}

// Destroy invalidates the cache and makes every later Get miss.
func (c *Cache) Destroy() {
	c.destroyed.Store(true)
	c.Invalidate()
}

// Stats reports cache hits, misses and flushes.
func (c *Cache) Stats() cachemanager.Stats {
	return c.rt.Stats()
}

// Destroyed reports whether Destroy has run.
func (c *Cache) Destroyed() bool {
	return c.destroyed.Load()
}
