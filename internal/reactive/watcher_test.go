package reactive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWatcher_FiresOncePerDistinctChange(t *testing.T) {
	value := 1
	var got [][2]any
	w := NewWatcher(func() any { return value }, func(n, o any) {
		got = append(got, [2]any{n, o})
	}, false)

	require.False(t, w.Check(), "unchanged value must not fire")

	value = 2
	require.True(t, w.Check())
	require.False(t, w.Check(), "same value observed twice fires once")

	value = 3
	require.True(t, w.Check())

	require.Equal(t, [][2]any{{2, 1}, {3, 2}}, got)
}

func TestWatcher_DetectsInPlaceMapChanges(t *testing.T) {
	state := map[string]any{"items": []any{"a"}}
	fired := 0
	w := NewWatcher(func() any { return state }, func(n, o any) {
		fired++
		require.Equal(t, []any{"a"}, o.(map[string]any)["items"])
	}, false)

	state["items"] = append(state["items"].([]any), "b")
	require.True(t, w.Check())
	require.Equal(t, 1, fired)
}

func TestWatcher_DetectsInPlaceTypedSliceChanges(t *testing.T) {
	scores := []int{1, 2}
	var got [][2]any
	w := NewWatcher(func() any { return scores }, func(n, o any) {
		got = append(got, [2]any{n, o})
	}, false)

	scores[0] = 99
	require.True(t, w.Check())
	require.False(t, w.Check())
	require.Len(t, got, 1)
	require.Equal(t, []int{1, 2}, got[0][1])
	require.Equal(t, []int{99, 2}, got[0][0])
}

func TestWatcher_Immediate(t *testing.T) {
	var old any = "unset"
	NewWatcher(func() any { return 7 }, func(n, o any) { old = o }, true)
	require.Nil(t, old)
}

func TestWatcher_Stop(t *testing.T) {
	value := 1
	fired := false
	w := NewWatcher(func() any { return value }, func(n, o any) { fired = true }, false)

	w.Stop()
	w.Stop()
	value = 2
	require.False(t, w.Check())
	require.False(t, fired)
	require.True(t, w.Stopped())
}
