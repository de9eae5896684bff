package depcache

import (
	"context"
	"time"

	pr "github.com/unkn0wn-root/depcache/provider"
)

// Factory builds the value for a missing key. e is the entry being populated;
// the factory may tag it with more types or change its TTL/cost.
type Factory[V any] func(ctx context.Context, e *Entry) (V, error)

// CostFunc computes the admission weight of a value; used when the entry has
// no explicit cost.
type CostFunc[V any] func(key string, v V) int64

// Cache is a keyed cache with type-dependency invalidation.
// V is the caller's value type; serialization, if any, is the provider's concern.
type Cache[V any] interface {
	Enabled() bool
	Close(context.Context) error

	// Dependency graph
	AddDependency(from, to Type)
	RemoveDependency(from, to Type) bool
	Dependencies() []Edge
	Dependents(t Type) []Type
	Closure(roots ...Type) []Type

	// Tagging
	TagKey(key string, types ...Type) error
	Keys(t Type) []string

	// Values
	Get(ctx context.Context, key string) (v V, ok bool, err error)
	Set(ctx context.Context, key string, value V, types []Type, opts ...EntryOption) error
	GetOrCreate(ctx context.Context, key string, types []Type, factory Factory[V], opts ...EntryOption) (V, error)

	// Invalidation
	InvalidateType(ctx context.Context, t Type) error
	InvalidateTypes(ctx context.Context, types ...Type) error
	Remove(ctx context.Context, key string) error
}

// Options tune the cache.
// Only Provider is required (and not even that when Disabled).
type Options[V any] struct {
	Provider pr.Provider[V]

	Logger     Logger        // if nil, NopLogger is used
	Hooks      Hooks         // if nil, NopHooks is used
	DefaultTTL time.Duration // 0 => 10m; <0 => no expiry
	Disabled   bool          // default false (enabled); disabled caches always run the factory
	Cost       CostFunc[V]   // default 1

	// SerializePopulation admits one population per cache instead of one per key.
	SerializePopulation bool

	// Dependencies are added to the graph at construction.
	Dependencies []Edge
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}

// NewNop returns a disabled cache: GetOrCreate always calls the factory and
// nothing is stored. The dependency graph still works.
func NewNop[V any]() Cache[V] {
	c, _ := newCache[V](Options[V]{Disabled: true})
	return c
}
