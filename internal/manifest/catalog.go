package manifest

import (
	"github.com/zjrosen/strata/pkg/store"
)

// Catalog names Go handlers so manifests can refer to them.
type Catalog struct {
	mutations map[string]store.MutationHandler
	actions   map[string]store.ActionHandler
	getters   map[string]store.GetterFunc
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		mutations: make(map[string]store.MutationHandler),
		actions:   make(map[string]store.ActionHandler),
		getters:   make(map[string]store.GetterFunc),
	}
}

// Mutation registers h under name, replacing any previous handler.
func (c *Catalog) Mutation(name string, h store.MutationHandler) *Catalog {
	c.mutations[name] = h
	return c
}

// Action registers h under name, replacing any previous handler.
func (c *Catalog) Action(name string, h store.ActionHandler) *Catalog {
	c.actions[name] = h
	return c
}

// Getter registers g under name, replacing any previous getter.
func (c *Catalog) Getter(name string, g store.GetterFunc) *Catalog {
	c.getters[name] = g
	return c
}

// Names returns every registered handler name by kind.
func (c *Catalog) Names() (mutations, actions, getters []string) {
	return sortedKeys(c.mutations), sortedKeys(c.actions), sortedKeys(c.getters)
}
