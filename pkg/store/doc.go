// Package store implements a mutation-controlled container for
// tree-structured application state.
//
// A Store is built from a root Definition. Definitions declare state,
// mutations (synchronous state changes), actions (possibly asynchronous
// orchestration) and getters (derived values), and nest into modules. A
// namespaced module prefixes the names of everything it declares with its
// key, so "cart" declaring mutation "add" registers "cart/add".
//
//	s, err := store.New(&store.Definition{
//		State: store.State{"count": 0},
//		Mutations: map[string]store.MutationHandler{
//			"inc": func(st store.State, p any) { st["count"] = st["count"].(int) + p.(int) },
//		},
//	})
//	_ = s.Commit(ctx, "inc", 5)
//
// State only changes inside a committing section. With strict mode enabled
// the store compares the live tree against the last committed snapshot at
// every entry point and panics with ErrInvariantViolation when something
// changed it out of band.
//
// Mutation handlers run on the committing goroutine and must not commit
// themselves. Actions run on the dispatching goroutine and express
// asynchronous work by returning a *Future.
package store
