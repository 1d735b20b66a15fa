package store

// State is a node of the state tree. Module states are grafted into their
// parent's State by reference under the module key.
type State = map[string]any

// StateFunc produces a fresh initial state. Use it for definitions that are
// registered more than once so each instance owns its own map.
type StateFunc func() State

// MutationHandler changes its module's state slice. It receives only that
// slice and the payload.
type MutationHandler func(state State, payload any)

// ActionHandler orchestrates commits and other dispatches. Returning a
// *Future as the value makes the action asynchronous; any other value
// resolves the dispatch immediately, and a non-nil error rejects it.
type ActionHandler func(ctx *ActionContext, payload any) (any, error)

// GetterFunc derives a value from module-local and root state and getters.
type GetterFunc func(state State, getters Getters, rootState State, rootGetters Getters) any

// Definition is the raw, user supplied description of a module.
//
// State accepts a State (or map[string]any), a StateFunc, a func() State, or
// nil for an empty state. Tables and child modules are visited in lexical key
// order, since Go maps carry no declaration order.
type Definition struct {
	Namespaced bool
	State      any
	Mutations  map[string]MutationHandler
	Actions    map[string]ActionHandler
	Getters    map[string]GetterFunc
	Modules    map[string]*Definition
}
