package store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/zjrosen/strata/internal/log"
	"github.com/zjrosen/strata/internal/reactive"
)

// CallOption adjusts a commit or dispatch made through a local context.
type CallOption func(*callOptions)

type callOptions struct {
	root bool
}

// Root sends the call to the global name instead of prefixing it with the
// calling module's namespace.
func Root() CallOption {
	return func(o *callOptions) { o.root = true }
}

func applyCallOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Typed is implemented by payloads that carry their own operation type,
// for object-style commits and dispatches.
type Typed interface {
	Type() string
}

// Context is a module's view of the store: commits and dispatches are
// prefixed with the module namespace, and State and Getters resolve the
// module's slice of the live tree on every call.
type Context struct {
	store     *Store
	namespace string
	path      []string
}

func (s *Store) makeLocalContext(namespace string, path []string) *Context {
	return &Context{store: s, namespace: namespace, path: slices.Clone(path)}
}

// Namespace returns the prefix applied to local operation names.
func (c *Context) Namespace() string { return c.namespace }

// Path returns the module path.
func (c *Context) Path() []string { return slices.Clone(c.path) }

// State returns the module's current state slice, or nil when the branch no
// longer exists.
func (c *Context) State() State {
	return nestedState(c.store.State(), c.path)
}

// Getters returns the module's getters under their local names.
func (c *Context) Getters() Getters {
	g := c.store.Getters()
	g.prefix = c.namespace
	return g
}

// Commit commits typ relative to the module namespace.
func (c *Context) Commit(ctx context.Context, typ string, payload any, opts ...CallOption) error {
	if c.namespace == "" {
		return c.store.Commit(ctx, typ, payload)
	}
	o := applyCallOptions(opts)
	global := typ
	if !o.root {
		global = c.namespace + typ
		if !c.store.HasMutation(global) {
			log.Error(log.CatStore, "unknown local mutation type", "type", typ, "global", global)
			return fmt.Errorf("%w: %s (global %s)", ErrUnknownMutation, typ, global)
		}
	}
	return c.store.Commit(ctx, global, payload)
}

// CommitPayload commits p under p.Type().
func (c *Context) CommitPayload(ctx context.Context, p Typed, opts ...CallOption) error {
	return c.Commit(ctx, p.Type(), p, opts...)
}

// Dispatch dispatches typ relative to the module namespace.
func (c *Context) Dispatch(ctx context.Context, typ string, payload any, opts ...CallOption) *Future {
	if c.namespace == "" {
		return c.store.Dispatch(ctx, typ, payload)
	}
	o := applyCallOptions(opts)
	global := typ
	if !o.root {
		global = c.namespace + typ
		if !c.store.HasAction(global) {
			log.Error(log.CatStore, "unknown local action type", "type", typ, "global", global)
			return Rejected(fmt.Errorf("%w: %s (global %s)", ErrUnknownAction, typ, global))
		}
	}
	return c.store.Dispatch(ctx, global, payload)
}

// DispatchPayload dispatches p under p.Type().
func (c *Context) DispatchPayload(ctx context.Context, p Typed, opts ...CallOption) *Future {
	return c.Dispatch(ctx, p.Type(), p, opts...)
}

// ActionContext is what an action handler receives: the module's local
// context bound to the dispatch's ctx, plus root state and getters.
type ActionContext struct {
	ctx   context.Context
	local *Context
}

// Context returns the ctx the action was dispatched with.
func (a *ActionContext) Context() context.Context { return a.ctx }

// Commit commits relative to the module namespace.
func (a *ActionContext) Commit(typ string, payload any, opts ...CallOption) error {
	return a.local.Commit(a.ctx, typ, payload, opts...)
}

// CommitPayload commits p under p.Type(), relative to the module namespace.
func (a *ActionContext) CommitPayload(p Typed, opts ...CallOption) error {
	return a.local.CommitPayload(a.ctx, p, opts...)
}

// Dispatch dispatches relative to the module namespace.
func (a *ActionContext) Dispatch(typ string, payload any, opts ...CallOption) *Future {
	return a.local.Dispatch(a.ctx, typ, payload, opts...)
}

// State returns the module's state slice.
func (a *ActionContext) State() State { return a.local.State() }

// Getters returns the module's local getters.
func (a *ActionContext) Getters() Getters { return a.local.Getters() }

// RootState returns the whole state tree.
func (a *ActionContext) RootState() State { return a.local.store.State() }

// RootGetters returns every getter under its global name.
func (a *ActionContext) RootGetters() Getters { return a.local.store.Getters() }

// Getters reads derived values. A local view strips its namespace prefix:
// inside "cart/" the getter "cart/total" is "total".
type Getters struct {
	cache  *reactive.Cache
	prefix string
}

// Lookup evaluates the getter named name.
func (g Getters) Lookup(name string) (any, bool) {
	if g.cache == nil {
		return nil, false
	}
	return g.cache.Get(g.prefix + name)
}

// Get evaluates the getter named name, returning nil when it does not exist.
func (g Getters) Get(name string) any {
	v, _ := g.Lookup(name)
	return v
}

// Keys returns the getter names visible in this view, in lexical order.
func (g Getters) Keys() []string {
	if g.cache == nil {
		return nil
	}
	var keys []string
	for _, name := range g.cache.Names() {
		if local, ok := strings.CutPrefix(name, g.prefix); ok {
			keys = append(keys, local)
		}
	}
	return keys
}

// Map evaluates every getter in the view.
func (g Getters) Map() map[string]any {
	out := make(map[string]any)
	for _, key := range g.Keys() {
		out[key] = g.Get(key)
	}
	return out
}

// GetAs evaluates a getter and asserts its type.
func GetAs[T any](g Getters, name string) (T, bool) {
	var zero T
	v, ok := g.Lookup(name)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

func nestedState(root State, path []string) State {
	current := root
	for _, key := range path {
		next, ok := current[key].(State)
		if !ok {
			return nil
		}
		current = next
	}
	return current
}
