package cachemanager

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type getterName string

type cartTotal struct {
	Items int
	Sum   float64
}

func TestInMemoryCacheManager_StoresUntilFlush(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryCacheManager[getterName, cartTotal]("getters")

	_, ok := cache.Get(ctx, "cart/total")
	require.False(t, ok)

	total := cartTotal{Items: 2, Sum: 9.5}
	cache.Set(ctx, "cart/total", total)
	got, ok := cache.Get(ctx, "cart/total")
	require.True(t, ok)
	require.Equal(t, total, got)
	require.Equal(t, 1, cache.Len())

	cache.Flush(ctx)
	_, ok = cache.Get(ctx, "cart/total")
	require.False(t, ok)
	require.Zero(t, cache.Len())

	require.Equal(t, Stats{Hits: 1, Misses: 2, Flushes: 1}, cache.Stats())
}

func TestInMemoryCacheManager_WrongTypeIsAMiss(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("getters")
	cache.items.Set("count", 123, 0)

	got, ok := cache.Get(context.Background(), "count")
	require.False(t, ok)
	require.Empty(t, got)
	require.Equal(t, int64(1), cache.Stats().Misses)
}

func TestReadThroughCache_LoadsOncePerFlush(t *testing.T) {
	ctx := context.Background()
	loads := map[getterName]int{}
	rt := NewReadThroughCache[getterName, string](
		NewInMemoryCacheManager[getterName, string]("getters"),
		func(_ context.Context, key getterName) (string, error) {
			loads[key]++
			return fmt.Sprintf("%s#%d", key, loads[key]), nil
		},
		false,
	)

	for range 3 {
		v, err := rt.Get(ctx, "double")
		require.NoError(t, err)
		require.Equal(t, "double#1", v)
	}

	rt.Flush(ctx)
	v, err := rt.Get(ctx, "double")
	require.NoError(t, err)
	require.Equal(t, "double#2", v)
	require.Equal(t, Stats{Hits: 2, Misses: 2, Flushes: 1}, rt.Stats())
}

func TestReadThroughCache_BypassAlwaysLoads(t *testing.T) {
	loads := 0
	backing := NewInMemoryCacheManager[string, int]("getters")
	rt := NewReadThroughCache[string, int](backing,
		func(context.Context, string) (int, error) {
			loads++
			return loads, nil
		},
		true,
	)

	for i := 1; i <= 3; i++ {
		v, err := rt.Get(context.Background(), "count")
		require.NoError(t, err)
		require.Equal(t, i, v)
	}
	require.Zero(t, backing.Len())
}

func TestReadThroughCache_FailedLoadIsNotCached(t *testing.T) {
	boom := errors.New("boom")
	backing := NewInMemoryCacheManager[string, int]("getters")
	rt := NewReadThroughCache[string, int](backing,
		func(context.Context, string) (int, error) { return 0, boom },
		false,
	)

	_, err := rt.Get(context.Background(), "count")
	require.ErrorIs(t, err, boom)
	require.Zero(t, backing.Len())
}
