package cachemanager

import "context"

// ReadThroughCache computes a value on a miss and keeps it until the backing
// cache is flushed. Concurrent misses on one key may each compute; getters
// are pure, so the duplicate only costs time.
type ReadThroughCache[K ~string, V any] struct {
	cache  CacheManager[K, V]
	load   func(ctx context.Context, key K) (V, error)
	bypass bool
}

// NewReadThroughCache wraps cache. With bypass set every Get calls load and
// nothing is stored.
func NewReadThroughCache[K ~string, V any](
	cache CacheManager[K, V],
	load func(ctx context.Context, key K) (V, error),
	bypass bool,
) *ReadThroughCache[K, V] {
	return &ReadThroughCache[K, V]{cache: cache, load: load, bypass: bypass}
}

// Get returns the cached value for key, loading it on a miss. Failed loads
// are not cached.
func (r *ReadThroughCache[K, V]) Get(ctx context.Context, key K) (V, error) {
	if r.bypass {
		return r.load(ctx, key)
	}
	if v, ok := r.cache.Get(ctx, key); ok {
		return v, nil
	}
	v, err := r.load(ctx, key)
	if err != nil {
		return v, err
	}
	r.cache.Set(ctx, key, v)
	return v, nil
}

// Flush empties the backing cache.
func (r *ReadThroughCache[K, V]) Flush(ctx context.Context) {
	r.cache.Flush(ctx)
}

// Stats reports the backing cache's counters.
func (r *ReadThroughCache[K, V]) Stats() Stats {
	return r.cache.Stats()
}
