package demo

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/strata/internal/manifest"
	"github.com/zjrosen/strata/pkg/store"
)

func newDemoStore(t *testing.T) *store.Store {
	t.Helper()
	m, err := manifest.Parse(bytes.NewReader(Manifest()))
	require.NoError(t, err)
	def, err := m.Definition(Catalog())
	require.NoError(t, err)
	s, err := store.New(def)
	require.NoError(t, err)
	return s
}

func TestCounter(t *testing.T) {
	s := newDemoStore(t)
	ctx := context.Background()

	require.NoError(t, s.Commit(ctx, "add", nil))
	require.NoError(t, s.Commit(ctx, "add", 4.0))
	require.Equal(t, 5, s.State()["count"])
	require.Equal(t, 10, s.Getters().Get("double"))

	v, err := s.Dispatch(ctx, "addLater", 2).Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, 7, v)

	require.NoError(t, s.Commit(ctx, "reset", nil))
	require.Equal(t, 0, s.State()["count"])
}

func TestTodos(t *testing.T) {
	s := newDemoStore(t)
	ctx := context.Background()

	n, err := s.Dispatch(ctx, "todos/addMany", []any{"a", "b", "c"}).Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	require.NoError(t, s.Commit(ctx, "todos/toggle", 1))
	require.NoError(t, s.Commit(ctx, "todos/toggle", 9))
	require.Equal(t, 2, s.Getters().Get("todos/remaining"))

	require.NoError(t, s.Commit(ctx, "todos/clearDone", nil))
	items := s.State()["todos"].(store.State)["items"].([]any)
	require.Len(t, items, 2)
	require.Equal(t, "c", items[1].(map[string]any)["text"])

	err = s.Dispatch(ctx, "todos/addMany", "x").Err()
	require.ErrorContains(t, err, "payload must be a list")
}

func TestUI(t *testing.T) {
	s := newDemoStore(t)

	require.NoError(t, s.Commit(context.Background(), "ui/setTheme", "light"))
	require.Equal(t, "light", s.Getters().Get("ui/theme"))
	require.Equal(t, "[light] double=0 todos/remaining=0 ui/theme=light", s.Getters().Get("ui/status"))
}

func TestCatalogCoversExampleManifest(t *testing.T) {
	m, err := manifest.Parse(bytes.NewReader(Manifest()))
	require.NoError(t, err)
	_, err = m.Definition(Catalog())
	require.NoError(t, err)
	require.NotEmpty(t, Scenario())
}
