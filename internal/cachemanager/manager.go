// Package cachemanager keeps computed getter values between commits.
package cachemanager

import "context"

// CacheManager holds values by key until they are flushed. Entries never
// expire on their own; the store flushes after every committing section.
type CacheManager[K ~string, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	Set(ctx context.Context, key K, value V)
	Flush(ctx context.Context)
	Len() int
	Stats() Stats
}

// Stats counts cache traffic since creation.
type Stats struct {
	Hits    int64
	Misses  int64
	Flushes int64
}
