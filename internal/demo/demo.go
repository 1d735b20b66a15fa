// Package demo provides a handler catalog and an example manifest for
// trying strata from the command line.
//
// Actions commit local mutation names, so a manifest using them must bind
// the matching mutation under that name: counter.addLater commits "add",
// todo.addMany commits "add".
package demo

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/zjrosen/strata/internal/manifest"
	"github.com/zjrosen/strata/pkg/store"
)

//go:embed store.yaml
var exampleManifest []byte

//go:embed scenario.yaml
var exampleScenario []byte

// Manifest returns the example manifest.
func Manifest() []byte { return append([]byte(nil), exampleManifest...) }

// Scenario returns the example scenario, written against Manifest.
func Scenario() []byte { return append([]byte(nil), exampleScenario...) }

// Catalog returns every demo handler.
func Catalog() *manifest.Catalog {
	c := manifest.NewCatalog()
	registerCounter(c)
	registerTodo(c)
	registerUI(c)
	return c
}

func registerCounter(c *manifest.Catalog) {
	c.Mutation("counter.add", func(s store.State, payload any) {
		s["count"] = toInt(s["count"], 0) + toInt(payload, 1)
	})
	c.Mutation("counter.reset", func(s store.State, _ any) {
		s["count"] = 0
	})
	c.Getter("counter.double", func(s store.State, _ store.Getters, _ store.State, _ store.Getters) any {
		return toInt(s["count"], 0) * 2
	})
	c.Action("counter.addLater", func(ac *store.ActionContext, payload any) (any, error) {
		return store.Go(func() (any, error) {
			if err := ac.Commit("add", payload); err != nil {
				return nil, err
			}
			return ac.State()["count"], nil
		}), nil
	})
}

func registerTodo(c *manifest.Catalog) {
	c.Mutation("todo.add", func(s store.State, payload any) {
		s["items"] = append(items(s), map[string]any{"text": fmt.Sprint(payload), "done": false})
	})
	c.Mutation("todo.toggle", func(s store.State, payload any) {
		list := items(s)
		i := toInt(payload, -1)
		if i < 0 || i >= len(list) {
			return
		}
		if item, ok := list[i].(map[string]any); ok {
			done, _ := item["done"].(bool)
			item["done"] = !done
		}
	})
	c.Mutation("todo.clearDone", func(s store.State, _ any) {
		var kept []any
		for _, it := range items(s) {
			if item, ok := it.(map[string]any); ok && item["done"] == true {
				continue
			}
			kept = append(kept, it)
		}
		if kept == nil {
			kept = []any{}
		}
		s["items"] = kept
	})
	c.Getter("todo.remaining", func(s store.State, _ store.Getters, _ store.State, _ store.Getters) any {
		n := 0
		for _, it := range items(s) {
			if item, ok := it.(map[string]any); ok && item["done"] != true {
				n++
			}
		}
		return n
	})
	c.Action("todo.addMany", func(ac *store.ActionContext, payload any) (any, error) {
		list, ok := payload.([]any)
		if !ok {
			return nil, fmt.Errorf("todo.addMany: payload must be a list, got %T", payload)
		}
		for _, text := range list {
			if err := ac.Commit("add", text); err != nil {
				return nil, err
			}
		}
		return len(list), nil
	})
}

func registerUI(c *manifest.Catalog) {
	c.Mutation("ui.setTheme", func(s store.State, payload any) {
		s["theme"] = fmt.Sprint(payload)
	})
	c.Getter("ui.theme", func(s store.State, _ store.Getters, _ store.State, _ store.Getters) any {
		return s["theme"]
	})
	// ui.status summarizes every getter in the store by global name.
	c.Getter("ui.status", func(s store.State, _ store.Getters, _ store.State, root store.Getters) any {
		var parts []string
		for _, name := range root.Keys() {
			if strings.HasSuffix(name, "status") {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s=%v", name, root.Get(name)))
		}
		return fmt.Sprintf("[%v] %s", s["theme"], strings.Join(parts, " "))
	})
}

func items(s store.State) []any {
	list, _ := s["items"].([]any)
	return list
}

func toInt(v any, fallback int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	default:
		return fallback
	}
}
