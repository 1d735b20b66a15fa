package manifest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/strata/pkg/store"
)

func testCatalog() *Catalog {
	return NewCatalog().
		Mutation("set", func(s store.State, payload any) { s["value"] = payload }).
		Action("forward", func(ac *store.ActionContext, payload any) (any, error) {
			return nil, ac.Commit("set", payload)
		}).
		Getter("value", func(s store.State, _ store.Getters, _ store.State, _ store.Getters) any {
			return s["value"]
		})
}

const nestedManifest = `
state:
  value: root
mutations:
  set: set
getters:
  value: value
modules:
  child:
    namespaced: true
    state:
      value: child
      tags: [a, b]
    mutations:
      set: set
    actions:
      forward: forward
    getters:
      value: value
    modules:
      empty:
`

func TestParse_BuildsDefinition(t *testing.T) {
	m, err := Parse(strings.NewReader(nestedManifest))
	require.NoError(t, err)

	def, err := m.Definition(testCatalog())
	require.NoError(t, err)

	s, err := store.New(def)
	require.NoError(t, err)

	require.Equal(t, "root", s.Getters().Get("value"))
	require.Equal(t, "child", s.Getters().Get("child/value"))
	require.True(t, s.HasAction("child/forward"))

	require.NoError(t, s.Dispatch(context.Background(), "child/forward", "new").Err())
	require.Equal(t, "new", s.Getters().Get("child/value"))
	require.Equal(t, "root", s.Getters().Get("value"))

	_, ok := s.Module([]string{"child", "empty"})
	require.True(t, ok)
}

func TestDefinition_StateIsFreshPerRegistration(t *testing.T) {
	m, err := Parse(strings.NewReader("state:\n  list: [1]\n"))
	require.NoError(t, err)
	def, err := m.Definition(NewCatalog())
	require.NoError(t, err)

	s, err := store.New(&store.Definition{})
	require.NoError(t, err)
	require.NoError(t, s.RegisterModule([]string{"one"}, def))
	require.NoError(t, s.RegisterModule([]string{"two"}, def))

	one := s.State()["one"].(store.State)
	two := s.State()["two"].(store.State)
	one["list"] = append(one["list"].([]any), 2)
	require.Equal(t, []any{1}, two["list"])
	require.Equal(t, []any{1}, m.State["list"])
}

func TestDefinition_ReportsEveryUnknownHandler(t *testing.T) {
	m, err := Parse(strings.NewReader(`
mutations:
  a: missingMutation
modules:
  child:
    actions:
      b: missingAction
    getters:
      c: missingGetter
`))
	require.NoError(t, err)

	_, err = m.Definition(testCatalog())
	require.ErrorIs(t, err, ErrUnknownHandler)
	require.Contains(t, err.Error(), `mutation a -> "missingMutation"`)
	require.Contains(t, err.Error(), `action child.b -> "missingAction"`)
	require.Contains(t, err.Error(), `getter child.c -> "missingGetter"`)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader("mutaions:\n  a: b\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "mutaions")
}

func TestParse_Empty(t *testing.T) {
	m, err := Parse(strings.NewReader(""))
	require.NoError(t, err)

	def, err := m.Definition(NewCatalog())
	require.NoError(t, err)
	require.Nil(t, def.Modules)
}

func TestLoadDefinition(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.yaml")
	require.NoError(t, os.WriteFile(path, []byte(nestedManifest), 0o644))

	def, err := LoadDefinition(path, testCatalog())
	require.NoError(t, err)
	require.True(t, def.Modules["child"].Namespaced)

	_, err = LoadDefinition(filepath.Join(dir, "missing.yaml"), testCatalog())
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("mutations:\n  a: nope\n"), 0o644))
	_, err = LoadDefinition(bad, testCatalog())
	require.ErrorIs(t, err, ErrUnknownHandler)
	require.Contains(t, err.Error(), bad)
}

func TestCatalog_Names(t *testing.T) {
	mutations, actions, getters := testCatalog().Names()
	require.Equal(t, []string{"set"}, mutations)
	require.Equal(t, []string{"forward"}, actions)
	require.Equal(t, []string{"value"}, getters)
}
