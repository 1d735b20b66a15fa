package store

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/zjrosen/strata/internal/log"
)

type (
	mutationFunc func(payload any)
	actionFunc   func(ctx context.Context, payload any) *Future
	getterFunc   func() any
)

// registry is the compiled lookup table for one version of the module tree.
// A published registry is never modified; changes install into a clone.
type registry struct {
	mutations  map[string][]mutationFunc
	actions    map[string][]actionFunc
	getters    map[string]getterFunc
	namespaces map[string]*Module
}

func newRegistry() *registry {
	return &registry{
		mutations:  make(map[string][]mutationFunc),
		actions:    make(map[string][]actionFunc),
		getters:    make(map[string]getterFunc),
		namespaces: make(map[string]*Module),
	}
}

func (r *registry) clone() *registry {
	out := &registry{
		mutations:  make(map[string][]mutationFunc, len(r.mutations)),
		actions:    make(map[string][]actionFunc, len(r.actions)),
		getters:    maps.Clone(r.getters),
		namespaces: maps.Clone(r.namespaces),
	}
	for name, chain := range r.mutations {
		out.mutations[name] = slices.Clone(chain)
	}
	for name, chain := range r.actions {
		out.actions[name] = slices.Clone(chain)
	}
	return out
}

// installModule compiles m and its descendants into reg. Unless hot is set,
// each non-root module's state is grafted into its parent's branch of
// rootState.
func (s *Store) installModule(reg *registry, rootState State, path []string, m *Module, hot bool) {
	namespace, err := s.tree.Namespace(path)
	if err != nil {
		log.ErrorErr(log.CatModule, "cannot resolve namespace", err, "path", joinPath(path))
		return
	}

	if m.namespaced {
		if existing, ok := reg.namespaces[namespace]; ok && existing != m {
			log.Error(log.CatModule, ErrDuplicateNamespace.Error(), "namespace", namespace, "path", joinPath(path))
		} else {
			reg.namespaces[namespace] = m
		}
	}

	if len(path) > 0 && !hot {
		parentPath, key := path[:len(path)-1], path[len(path)-1]
		parentState := nestedState(rootState, parentPath)
		if parentState == nil {
			log.Warn(log.CatModule, "parent state missing, module state not attached", "path", joinPath(path))
		} else {
			s.withCommit(func() {
				parentState[key] = m.state
			})
		}
	}

	local := s.makeLocalContext(namespace, path)
	m.context = local

	m.forEachMutation(func(h MutationHandler, key string) {
		s.registerMutation(reg, namespace+key, h, local)
	})
	m.forEachAction(func(h ActionHandler, key string) {
		s.registerAction(reg, namespace+key, h, local)
	})
	m.forEachGetter(func(g GetterFunc, key string) {
		s.registerGetter(reg, namespace+key, g, local)
	})
	m.forEachChild(func(child *Module, key string) {
		s.installModule(reg, rootState, appendPath(path, key), child, hot)
	})
}

// namespaceConflict reports a namespaced module in the subtree at path whose
// namespace is already claimed in reg or by another module of the subtree.
func (s *Store) namespaceConflict(reg *registry, path []string, m *Module) error {
	namespace, err := s.tree.Namespace(path)
	if err != nil {
		return err
	}
	claimed := make(map[string]bool, len(reg.namespaces))
	for ns := range reg.namespaces {
		claimed[ns] = true
	}

	var walk func(ns string, m *Module) error
	walk = func(ns string, m *Module) error {
		if m.namespaced {
			if claimed[ns] {
				return fmt.Errorf("%w: %s", ErrDuplicateNamespace, ns)
			}
			claimed[ns] = true
		}
		var err error
		m.forEachChild(func(child *Module, key string) {
			if err != nil {
				return
			}
			childNS := ns
			if child.namespaced {
				childNS += key + "/"
			}
			err = walk(childNS, child)
		})
		return err
	}
	return walk(namespace, m)
}

func (s *Store) registerMutation(reg *registry, name string, h MutationHandler, local *Context) {
	reg.mutations[name] = append(reg.mutations[name], func(payload any) {
		h(local.State(), payload)
	})
}

func (s *Store) registerAction(reg *registry, name string, h ActionHandler, local *Context) {
	reg.actions[name] = append(reg.actions[name], func(ctx context.Context, payload any) *Future {
		f := normalizeResult(h(&ActionContext{ctx: ctx, local: local}, payload))
		if s.devtools == nil {
			return f
		}
		return f.onReject(func(err error) {
			s.devtools.Emit(EventError, err)
		})
	})
}

func (s *Store) registerGetter(reg *registry, name string, g GetterFunc, local *Context) {
	if _, ok := reg.getters[name]; ok {
		log.Error(log.CatGetter, ErrDuplicateGetter.Error(), "type", name)
		return
	}
	reg.getters[name] = func() any {
		return g(local.State(), local.Getters(), s.State(), s.Getters())
	}
}
