package reactive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCache_LazyAndCached(t *testing.T) {
	calls := 0
	x := 1
	c := NewCache(map[string]ComputeFunc{
		"double": func() any { calls++; return x * 2 },
	}, true)

	require.Equal(t, 0, calls, "nothing is computed before the first read")

	v, ok := c.Get("double")
	require.True(t, ok)
	require.Equal(t, 2, v)

	x = 5
	v, _ = c.Get("double")
	require.Equal(t, 2, v, "cached until invalidated")
	require.Equal(t, 1, calls)

	c.Invalidate()
	v, _ = c.Get("double")
	require.Equal(t, 10, v)
	require.Equal(t, 2, calls)

	stats := c.Stats()
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(2), stats.Misses)
	require.Equal(t, int64(1), stats.Flushes)
}

func TestCache_NilValuesAreCached(t *testing.T) {
	calls := 0
	c := NewCache(map[string]ComputeFunc{
		"nothing": func() any { calls++; return nil },
	}, true)

	for i := 0; i < 3; i++ {
		v, ok := c.Get("nothing")
		require.True(t, ok)
		require.Nil(t, v)
	}
	require.Equal(t, 1, calls)
}

func TestCache_CachingDisabled(t *testing.T) {
	calls := 0
	c := NewCache(map[string]ComputeFunc{
		"n": func() any { calls++; return calls },
	}, false)

	v1, _ := c.Get("n")
	v2, _ := c.Get("n")
	require.Equal(t, 1, v1)
	require.Equal(t, 2, v2)
}

func TestCache_UnknownAndDestroyed(t *testing.T) {
	c := NewCache(map[string]ComputeFunc{
		"b": func() any { return "b" },
		"a": func() any { return "a" },
	}, true)

	_, ok := c.Get("missing")
	require.False(t, ok)
	require.Equal(t, []string{"a", "b"}, c.Names())
	require.True(t, c.Has("a"))

	c.Destroy()
	require.True(t, c.Destroyed())
	_, ok = c.Get("a")
	require.False(t, ok)
}

func TestNextTick_RunsLater(t *testing.T) {
	done := make(chan struct{})
	NextTick(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "NextTick callback never ran")
	}
}
