package store

import (
	"fmt"
	"maps"
	"slices"
)

// Module is a compiled node of the module tree.
type Module struct {
	runtime    bool
	namespaced bool
	state      State

	mutations map[string]MutationHandler
	actions   map[string]ActionHandler
	getters   map[string]GetterFunc

	children map[string]*Module
	order    []string

	context *Context
}

func newModule(def *Definition, runtime bool) (*Module, error) {
	if def == nil {
		return nil, ErrNilDefinition
	}
	state, err := initialState(def.State)
	if err != nil {
		return nil, err
	}
	return &Module{
		runtime:    runtime,
		namespaced: def.Namespaced,
		state:      state,
		mutations:  def.Mutations,
		actions:    def.Actions,
		getters:    def.Getters,
		children:   make(map[string]*Module),
	}, nil
}

func initialState(raw any) (State, error) {
	switch s := raw.(type) {
	case nil:
		return State{}, nil
	case State:
		if s == nil {
			return State{}, nil
		}
		return s, nil
	case StateFunc:
		return orEmpty(s()), nil
	case func() State:
		return orEmpty(s()), nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrInvalidState, raw)
	}
}

func orEmpty(s State) State {
	if s == nil {
		return State{}
	}
	return s
}

// Runtime reports whether the module was registered after construction.
// Only runtime modules can be unregistered.
func (m *Module) Runtime() bool { return m.runtime }

// Namespaced reports whether the module contributes its key to namespaces.
func (m *Module) Namespaced() bool { return m.namespaced }

// State returns the state the module was created with. After ReplaceState
// the live slice is reachable through Context().State() instead.
func (m *Module) State() State { return m.state }

// Context returns the local context installed for the module, or nil before
// installation.
func (m *Module) Context() *Context { return m.context }

// Child returns the child registered under key.
func (m *Module) Child(key string) (*Module, bool) {
	c, ok := m.children[key]
	return c, ok
}

// ChildKeys returns child keys in insertion order.
func (m *Module) ChildKeys() []string {
	return slices.Clone(m.order)
}

func (m *Module) addChild(key string, child *Module) {
	if _, ok := m.children[key]; !ok {
		m.order = append(m.order, key)
	}
	m.children[key] = child
}

func (m *Module) removeChild(key string) {
	if _, ok := m.children[key]; !ok {
		return
	}
	delete(m.children, key)
	m.order = slices.DeleteFunc(m.order, func(k string) bool { return k == key })
}

// update swaps the namespacing flag and whichever operation tables def
// carries. Children and state are left alone.
func (m *Module) update(def *Definition) {
	m.namespaced = def.Namespaced
	if def.Actions != nil {
		m.actions = def.Actions
	}
	if def.Mutations != nil {
		m.mutations = def.Mutations
	}
	if def.Getters != nil {
		m.getters = def.Getters
	}
}

func (m *Module) forEachChild(fn func(child *Module, key string)) {
	for _, key := range m.order {
		fn(m.children[key], key)
	}
}

func (m *Module) forEachMutation(fn func(h MutationHandler, key string)) {
	forEachSorted(m.mutations, fn)
}

func (m *Module) forEachAction(fn func(h ActionHandler, key string)) {
	forEachSorted(m.actions, fn)
}

func (m *Module) forEachGetter(fn func(g GetterFunc, key string)) {
	forEachSorted(m.getters, fn)
}

func forEachSorted[V any](table map[string]V, fn func(v V, key string)) {
	if table == nil {
		return
	}
	for _, key := range slices.Sorted(maps.Keys(table)) {
		fn(table[key], key)
	}
}
