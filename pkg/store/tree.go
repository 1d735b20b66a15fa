package store

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/zjrosen/strata/internal/log"
)

// Tree owns the root module. Every other module is reachable only through
// its parent.
type Tree struct {
	root *Module
}

// NewTree compiles rootDef and every nested definition as static modules.
func NewTree(rootDef *Definition) (*Tree, error) {
	root, err := newModule(rootDef, false)
	if err != nil {
		return nil, err
	}
	t := &Tree{root: root}
	for _, key := range sortedKeys(rootDef.Modules) {
		if err := t.Register([]string{key}, rootDef.Modules[key], false); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Root returns the root module.
func (t *Tree) Root() *Module { return t.root }

// Get resolves path from the root. An empty path is the root.
func (t *Tree) Get(path []string) (*Module, bool) {
	m := t.root
	for _, key := range path {
		child, ok := m.Child(key)
		if !ok {
			return nil, false
		}
		m = child
	}
	return m, true
}

// Namespace concatenates key + "/" for every namespaced module on path.
func (t *Tree) Namespace(path []string) (string, error) {
	var sb strings.Builder
	m := t.root
	for i, key := range path {
		child, ok := m.Child(key)
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrModuleNotFound, joinPath(path[:i+1]))
		}
		if child.namespaced {
			sb.WriteString(key)
			sb.WriteByte('/')
		}
		m = child
	}
	return sb.String(), nil
}

// Register compiles def and its nested definitions with the same runtime
// flag, then attaches the finished subtree under path. A failure anywhere in
// the subtree leaves the tree unchanged.
func (t *Tree) Register(path []string, def *Definition, runtime bool) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: cannot register the root module", ErrInvalidPath)
	}
	if def == nil {
		return fmt.Errorf("%w: %s", ErrNilDefinition, joinPath(path))
	}
	parentPath, key := path[:len(path)-1], path[len(path)-1]
	parent, ok := t.Get(parentPath)
	if !ok {
		return fmt.Errorf("%w: parent of %s", ErrModuleNotFound, joinPath(path))
	}
	if _, exists := parent.Child(key); exists {
		return fmt.Errorf("%w: %s", ErrModuleExists, joinPath(path))
	}

	m, err := buildModule(path, def, runtime)
	if err != nil {
		return err
	}
	parent.addChild(key, m)
	log.Debug(log.CatModule, "module registered", "path", joinPath(path), "runtime", runtime)
	return nil
}

// buildModule compiles def and its descendants without attaching them.
func buildModule(path []string, def *Definition, runtime bool) (*Module, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: %s", ErrNilDefinition, joinPath(path))
	}
	m, err := newModule(def, runtime)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", joinPath(path), err)
	}
	for _, childKey := range sortedKeys(def.Modules) {
		child, err := buildModule(appendPath(path, childKey), def.Modules[childKey], runtime)
		if err != nil {
			return nil, err
		}
		m.addChild(childKey, child)
	}
	return m, nil
}

// Unregister detaches the module at path. Static modules are left in place
// and the call reports false.
func (t *Tree) Unregister(path []string) (bool, error) {
	if len(path) == 0 {
		return false, fmt.Errorf("%w: cannot unregister the root module", ErrInvalidPath)
	}
	parentPath, key := path[:len(path)-1], path[len(path)-1]
	parent, ok := t.Get(parentPath)
	if !ok {
		return false, fmt.Errorf("%w: parent of %s", ErrModuleNotFound, joinPath(path))
	}
	child, ok := parent.Child(key)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrModuleNotFound, joinPath(path))
	}
	if !child.runtime {
		return false, nil
	}
	parent.removeChild(key)
	log.Debug(log.CatModule, "module unregistered", "path", joinPath(path))
	return true, nil
}

// Update walks the tree and rootDef in lockstep, replacing operation tables.
// A key with no existing module aborts that level of the walk; the returned
// error joins one ErrStructuralMismatch per aborted level. Everything visited
// before the abort stays updated.
func (t *Tree) Update(rootDef *Definition) error {
	if rootDef == nil {
		return ErrNilDefinition
	}
	return updateModule(nil, t.root, rootDef)
}

func updateModule(path []string, target *Module, def *Definition) error {
	target.update(def)

	var errs []error
	for _, key := range sortedKeys(def.Modules) {
		child, ok := target.Child(key)
		if !ok {
			childPath := joinPath(appendPath(path, key))
			log.Warn(log.CatHot, "trying to add a new module on hot reloading, manual reload is needed", "module", childPath)
			errs = append(errs, fmt.Errorf("%w: %s", ErrStructuralMismatch, childPath))
			break
		}
		if err := updateModule(appendPath(path, key), child, def.Modules[key]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	if m == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(m))
}

func appendPath(path []string, key string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, key)
}

func joinPath(path []string) string {
	if len(path) == 0 {
		return "<root>"
	}
	return strings.Join(path, ".")
}
