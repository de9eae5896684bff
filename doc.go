// Package depcache implements a keyed in-memory cache whose entries are tagged
// with owner types. Types form a dependency graph: invalidating a type deletes
// every entry tagged with it or with any type it reaches through the graph.
//
// Components:
//   - Provider[V]: the store. Owns values, TTL and capacity eviction, and reports
//     every stored value's exit through a callback (go-cache, ristretto,
//     bigcache, redis adapters under provider/).
//   - Dependency graph: AddDependency(Order, User) means cached Orders embed User
//     data, so keys tagged Order are also recorded under User and invalidating
//     User drops them. Cycles are fine.
//   - Type index: type -> keys. A key is recorded under the closure of its types
//     computed when it is tagged; later edge changes do not retag it.
//   - Exit callbacks are the only path that removes index memberships.
//     InvalidateType and Remove just delete from the provider.
//   - GetOrCreate: hits never block; misses for the same key run the factory
//     once (per-key by default, one population per cache with
//     Options.SerializePopulation).
//
// Typical use:
//
//	c, _ := depcache.New(depcache.Options[Order]{Provider: gocache.New[Order](gocache.Config{})})
//	c.AddDependency("Order", "User")
//	o, err := c.GetOrCreate(ctx, "order:42", []depcache.Type{"Order"},
//		func(ctx context.Context, e *depcache.Entry) (Order, error) { return loadOrder(ctx, 42) })
//	...
//	_ = c.InvalidateType(ctx, "User") // drops order:42 too
package depcache
