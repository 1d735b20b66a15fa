// Package manifest builds store definitions from YAML documents. Handlers
// are named in the document and resolved against a Catalog of Go funcs.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/strata/internal/log"
	"github.com/zjrosen/strata/internal/reactive"
	"github.com/zjrosen/strata/pkg/store"
)

// ErrUnknownHandler is returned when a manifest names a handler the catalog
// does not have.
var ErrUnknownHandler = errors.New("unknown handler")

// Manifest describes one module. Operation tables map the local operation
// name to a catalog handler name.
type Manifest struct {
	Namespaced bool                 `yaml:"namespaced"`
	State      map[string]any       `yaml:"state"`
	Mutations  map[string]string    `yaml:"mutations"`
	Actions    map[string]string    `yaml:"actions"`
	Getters    map[string]string    `yaml:"getters"`
	Modules    map[string]*Manifest `yaml:"modules"`
}

// Parse decodes a manifest. Unknown fields are rejected.
func Parse(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return &m, nil
		}
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is user-provided manifest
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debug(log.CatManifest, "manifest loaded", "path", path, "modules", len(m.Modules))
	return m, nil
}

// LoadDefinition loads the manifest at path and resolves it against c.
func LoadDefinition(path string, c *Catalog) (*store.Definition, error) {
	m, err := Load(path)
	if err != nil {
		return nil, err
	}
	def, err := m.Definition(c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Definition resolves every handler name against c. All unknown names are
// reported together.
func (m *Manifest) Definition(c *Catalog) (*store.Definition, error) {
	var errs []error
	def := m.definition(c, "", &errs)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return def, nil
}

func (m *Manifest) definition(c *Catalog, path string, errs *[]error) *store.Definition {
	def := &store.Definition{
		Namespaced: m.Namespaced,
		State:      freshState(m.State),
	}

	if len(m.Mutations) > 0 {
		def.Mutations = make(map[string]store.MutationHandler, len(m.Mutations))
		for _, local := range sortedKeys(m.Mutations) {
			if h, ok := c.mutations[m.Mutations[local]]; ok {
				def.Mutations[local] = h
			} else {
				*errs = append(*errs, unknown("mutation", path, local, m.Mutations[local]))
			}
		}
	}
	if len(m.Actions) > 0 {
		def.Actions = make(map[string]store.ActionHandler, len(m.Actions))
		for _, local := range sortedKeys(m.Actions) {
			if h, ok := c.actions[m.Actions[local]]; ok {
				def.Actions[local] = h
			} else {
				*errs = append(*errs, unknown("action", path, local, m.Actions[local]))
			}
		}
	}
	if len(m.Getters) > 0 {
		def.Getters = make(map[string]store.GetterFunc, len(m.Getters))
		for _, local := range sortedKeys(m.Getters) {
			if g, ok := c.getters[m.Getters[local]]; ok {
				def.Getters[local] = g
			} else {
				*errs = append(*errs, unknown("getter", path, local, m.Getters[local]))
			}
		}
	}

	if len(m.Modules) > 0 {
		def.Modules = make(map[string]*store.Definition, len(m.Modules))
		for _, key := range sortedKeys(m.Modules) {
			child := m.Modules[key]
			if child == nil {
				child = &Manifest{}
			}
			def.Modules[key] = child.definition(c, joinKey(path, key), errs)
		}
	}
	return def
}

// freshState returns a factory so every registration of the definition gets
// its own copy of the literal state.
func freshState(literal map[string]any) store.StateFunc {
	return func() store.State {
		if literal == nil {
			return store.State{}
		}
		s, _ := reactive.Snapshot(literal).(map[string]any)
		return s
	}
}

func unknown(kind, path, local, handler string) error {
	where := local
	if path != "" {
		where = path + "." + local
	}
	log.Error(log.CatManifest, "unknown handler", "kind", kind, "operation", where, "handler", handler)
	return fmt.Errorf("%w: %s %s -> %q", ErrUnknownHandler, kind, where, handler)
}

func joinKey(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
