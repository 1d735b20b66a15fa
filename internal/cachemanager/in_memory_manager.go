package cachemanager

import (
	"context"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/strata/internal/log"
)

// janitorInterval is go-cache's sweep period. Nothing expires, so the sweep
// only has to exist, not run often.
const janitorInterval = time.Hour

// InMemoryCacheManager is the go-cache implementation of CacheManager.
type InMemoryCacheManager[K ~string, V any] struct {
	name  string
	items *gocache.Cache

	hits    atomic.Int64
	misses  atomic.Int64
	flushes atomic.Int64
}

// NewInMemoryCacheManager creates an empty cache. name labels its log lines.
func NewInMemoryCacheManager[K ~string, V any](name string) *InMemoryCacheManager[K, V] {
	return &InMemoryCacheManager[K, V]{
		name:  name,
		items: gocache.New(gocache.NoExpiration, janitorInterval),
	}
}

// Get returns the value under key. A value of the wrong type is logged and
// treated as a miss.
func (c *InMemoryCacheManager[K, V]) Get(_ context.Context, key K) (V, bool) {
	var zero V
	raw, ok := c.items.Get(string(key))
	if !ok {
		c.misses.Add(1)
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		log.Error(log.CatCache, "cached value has unexpected type", "cache", c.name, "key", key)
		c.misses.Add(1)
		return zero, false
	}
	c.hits.Add(1)
	return v, true
}

// Set stores value under key until the next Flush.
func (c *InMemoryCacheManager[K, V]) Set(_ context.Context, key K, value V) {
	c.items.Set(string(key), value, gocache.NoExpiration)
}

// Flush drops every entry.
func (c *InMemoryCacheManager[K, V]) Flush(_ context.Context) {
	dropped := c.items.ItemCount()
	c.items.Flush()
	c.flushes.Add(1)
	log.Debug(log.CatCache, "cache flushed", "cache", c.name, "entries", dropped)
}

// Len returns the number of stored entries.
func (c *InMemoryCacheManager[K, V]) Len() int {
	return c.items.ItemCount()
}

// Stats returns hit, miss and flush counts.
func (c *InMemoryCacheManager[K, V]) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Flushes: c.flushes.Load()}
}
