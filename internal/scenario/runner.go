package scenario

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/strata/internal/log"
	"github.com/zjrosen/strata/internal/manifest"
	"github.com/zjrosen/strata/internal/reactive"
	"github.com/zjrosen/strata/pkg/store"
)

// DefaultActionTimeout bounds how long a dispatch step waits for its
// future.
const DefaultActionTimeout = 10 * time.Second

// Runner executes scenarios against a store.
type Runner struct {
	store   *store.Store
	catalog *manifest.Catalog
	out     io.Writer
	timeout time.Duration
}

// NewRunner creates a runner. Snapshots are written to out; register steps
// resolve handlers through catalog.
func NewRunner(s *store.Store, catalog *manifest.Catalog, out io.Writer) *Runner {
	return &Runner{store: s, catalog: catalog, out: out, timeout: DefaultActionTimeout}
}

// WithTimeout sets the dispatch wait limit.
func (r *Runner) WithTimeout(d time.Duration) *Runner {
	r.timeout = d
	return r
}

// Run executes every step in order and stops at the first failure.
func (r *Runner) Run(ctx context.Context, sc *Scenario) error {
	for i, step := range sc.Steps {
		kind, err := step.Kind()
		if err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		log.Debug(log.CatScenario, "running step", "index", i+1, "kind", kind)
		if err := r.runStep(ctx, kind, step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, kind, err)
		}
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, kind string, step Step) error {
	switch kind {
	case KindCommit:
		return r.store.Commit(ctx, step.Commit, step.Payload)

	case KindDispatch:
		waitCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		_, err := r.store.Dispatch(ctx, step.Dispatch, step.Payload).Wait(waitCtx)
		return err

	case KindRegister:
		def, err := step.Module.Definition(r.catalog)
		if err != nil {
			return err
		}
		return r.store.RegisterModule(step.Register, def)

	case KindUnregister:
		return r.store.UnregisterModule(step.Unregister)

	case KindReplace:
		state, _ := reactive.Snapshot(step.Replace).(map[string]any)
		r.store.ReplaceState(state)
		return nil

	case KindSnapshot:
		return r.snapshot(step.Snapshot)

	case KindExpect:
		return r.expect(step)
	}
	return fmt.Errorf("%w: %s", ErrInvalidStep, kind)
}

func (r *Runner) snapshot(label string) error {
	var doc map[string]any
	r.store.Read(func(state store.State, getters store.Getters) {
		doc = map[string]any{
			"state":   reactive.Snapshot(state),
			"getters": getters.Map(),
		}
	})

	if _, err := fmt.Fprintf(r.out, "# %s\n", label); err != nil {
		return err
	}
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return enc.Close()
}

func (r *Runner) expect(step Step) error {
	var failures []string
	r.store.Read(func(state store.State, getters store.Getters) {
		for _, path := range sortedKeys(step.Expect) {
			got, ok := lookupPath(state, path)
			if !ok {
				failures = append(failures, fmt.Sprintf("state %s: missing", path))
				continue
			}
			if want := step.Expect[path]; !reactive.Equal(got, want) {
				failures = append(failures, fmt.Sprintf("state %s: got %v, want %v", path, got, want))
			}
		}
		for _, name := range sortedKeys(step.Getters) {
			got, ok := getters.Lookup(name)
			if !ok {
				failures = append(failures, fmt.Sprintf("getter %s: unknown", name))
				continue
			}
			if want := step.Getters[name]; !reactive.Equal(got, want) {
				failures = append(failures, fmt.Sprintf("getter %s: got %v, want %v", name, got, want))
			}
		}
	})
	if len(failures) > 0 {
		return fmt.Errorf("%w: %s", ErrExpectation, strings.Join(failures, "; "))
	}
	return nil
}

// lookupPath walks a dotted path through maps and list indices.
func lookupPath(root map[string]any, path string) (any, bool) {
	var current any = root
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			current = node[i]
		default:
			return nil, false
		}
	}
	return current, true
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
