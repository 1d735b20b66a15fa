package scenario

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/strata/internal/demo"
	"github.com/zjrosen/strata/internal/manifest"
	"github.com/zjrosen/strata/pkg/store"
)

func demoStore(t *testing.T) *store.Store {
	t.Helper()
	m, err := manifest.Parse(bytes.NewReader(demo.Manifest()))
	require.NoError(t, err)
	def, err := m.Definition(demo.Catalog())
	require.NoError(t, err)
	s, err := store.New(def, store.WithStrict(true))
	require.NoError(t, err)
	return s
}

func TestRun_DemoScenario(t *testing.T) {
	s := demoStore(t)
	sc, err := Parse(bytes.NewReader(demo.Scenario()))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, NewRunner(s, demo.Catalog(), &out).Run(context.Background(), sc))

	docs := strings.Split(out.String(), "# final\n")
	require.Len(t, docs, 2)
	require.Contains(t, docs[0], "# after register\n")
	require.Contains(t, docs[0], "theme: contrast")

	var final map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(docs[1]), &final))
	state := final["state"].(map[string]any)
	require.Equal(t, 7, state["count"])
	require.NotContains(t, state, "flags")
	getters := final["getters"].(map[string]any)
	require.Equal(t, 14, getters["double"])
	require.Equal(t, 2, getters["todos/remaining"])
}

func TestRun_ExpectationFailure(t *testing.T) {
	s := demoStore(t)
	sc, err := Parse(strings.NewReader(`
steps:
  - commit: add
    payload: 1
  - expect:
      count: 2
      missing.path: 1
    getters:
      double: 2
      nope: 0
`))
	require.NoError(t, err)

	err = NewRunner(s, demo.Catalog(), &bytes.Buffer{}).Run(context.Background(), sc)
	require.ErrorIs(t, err, ErrExpectation)
	require.Contains(t, err.Error(), "step 2 (expect)")
	require.Contains(t, err.Error(), "state count: got 1, want 2")
	require.Contains(t, err.Error(), "state missing.path: missing")
	require.Contains(t, err.Error(), "getter nope: unknown")
	require.NotContains(t, err.Error(), "getter double")
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	s := demoStore(t)
	sc, err := Parse(strings.NewReader(`
steps:
  - commit: unknownMutation
  - commit: add
`))
	require.NoError(t, err)

	err = NewRunner(s, demo.Catalog(), &bytes.Buffer{}).Run(context.Background(), sc)
	require.ErrorIs(t, err, store.ErrUnknownMutation)
	require.Equal(t, 0, s.State()["count"])
}

func TestRun_ReplaceAndRejectedDispatch(t *testing.T) {
	s := demoStore(t)
	sc, err := Parse(strings.NewReader(`
steps:
  - replace:
      count: 40
      todos: {items: []}
      ui: {theme: dark}
  - expect:
      count: 40
    getters:
      double: 80
  - dispatch: todos/addMany
    payload: not a list
`))
	require.NoError(t, err)

	err = NewRunner(s, demo.Catalog(), &bytes.Buffer{}).Run(context.Background(), sc)
	require.Error(t, err)
	require.Contains(t, err.Error(), "step 3 (dispatch)")
	require.Contains(t, err.Error(), "payload must be a list")
}

func TestParse_RejectsBadSteps(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{name: "empty step", doc: "steps:\n  - payload: 1\n", wantErr: "no operation"},
		{name: "two operations", doc: "steps:\n  - commit: a\n    dispatch: b\n", wantErr: "several operations"},
		{name: "register without module", doc: "steps:\n  - register: [a]\n", wantErr: "needs a module"},
		{name: "unknown field", doc: "steps:\n  - comit: a\n", wantErr: "comit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, demo.Scenario(), 0o644))

	sc, err := Load(path)
	require.NoError(t, err)
	require.NotEmpty(t, sc.Steps)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLookupPath(t *testing.T) {
	root := map[string]any{
		"a": map[string]any{"list": []any{"x", map[string]any{"y": 1}}},
	}

	v, ok := lookupPath(root, "a.list.1.y")
	require.True(t, ok)
	require.Equal(t, 1, v)

	for _, path := range []string{"a.list.5", "a.list.x", "a.nope", "a.list.0.deeper"} {
		_, ok := lookupPath(root, path)
		require.False(t, ok, path)
	}
}
