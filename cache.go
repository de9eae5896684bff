package depcache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	pr "github.com/unkn0wn-root/depcache/provider"
)

type cache[V any] struct {
	provider   pr.Provider[V]
	log        Logger
	hooks      Hooks
	enabled    bool
	defaultTTL time.Duration
	cost       CostFunc[V]

	graph   *graph
	index   *typeIndex
	entries *xsync.MapOf[string, *Entry] // live entry per key
	gate    gate
	locks   stripes
	seq     atomic.Uint64
	closed  atomic.Bool
}

var _ Cache[struct{}] = (*cache[struct{}])(nil)

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Provider == nil && !opts.Disabled {
		return nil, ErrProviderRequired
	}

	c := &cache[V]{
		provider: opts.Provider,
		enabled:  !opts.Disabled,
		graph:    newGraph(),
		index:    newTypeIndex(),
		entries:  xsync.NewMapOf[string, *Entry](),
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.defaultTTL = coalesce[time.Duration](opts.DefaultTTL, defaultTTL)
	if c.defaultTTL < 0 {
		c.defaultTTL = 0
	}
	if opts.Cost != nil {
		c.cost = opts.Cost
	} else {
		c.cost = func(string, V) int64 { return 1 }
	}

	if opts.SerializePopulation {
		c.gate = newGlobalGate()
	} else {
		c.gate = &keyGate{}
	}

	for _, e := range opts.Dependencies {
		c.graph.add(e.From, e.To)
	}
	return c, nil
}

func (c *cache[V]) Enabled() bool { return c.enabled }

// Close closes the provider and retires every entry it did not report.
// Further operations on values fail with ErrClosed.
func (c *cache[V]) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	if c.provider != nil {
		if err = c.provider.Close(ctx); err != nil {
			c.hooks.ProviderError("close", "", err)
		}
	}
	c.entries.Range(func(_ string, e *Entry) bool {
		c.retire(e, pr.ReasonClosed)
		return true
	})
	return err
}

func (c *cache[V]) AddDependency(from, to Type) {
	if c.graph.add(from, to) {
		c.log.Debug("dependency added", Fields{"from": from, "to": to})
	}
}

func (c *cache[V]) RemoveDependency(from, to Type) bool {
	ok := c.graph.remove(from, to)
	if ok {
		c.log.Debug("dependency removed", Fields{"from": from, "to": to})
	}
	return ok
}

func (c *cache[V]) Dependencies() []Edge { return c.graph.edges() }

// Dependents returns the direct targets of t's edges, sorted.
func (c *cache[V]) Dependents(t Type) []Type { return c.graph.dependents(t) }

// Closure returns roots and every type reachable from them, sorted.
func (c *cache[V]) Closure(roots ...Type) []Type {
	out := c.graph.closure(roots)
	slices.Sort(out)
	return out
}

// Keys returns the keys currently recorded under t, sorted.
func (c *cache[V]) Keys(t Type) []string { return c.index.keys(t) }

// TagKey records key under the closure of types. If the cache holds no entry
// for key, the tags are kept on a detached entry and carried over to the next
// value stored for key.
func (c *cache[V]) TagKey(key string, types ...Type) error {
	if err := checkTypes(types); err != nil {
		return err
	}
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.enabled {
		return nil
	}
	for {
		e, ok := c.entries.Load(key)
		if !ok {
			ne := c.newEntry(key, nil)
			ne.state.Store(uint32(stateDetached))
			e, _ = c.entries.LoadOrStore(key, ne)
		}
		if c.tag(e, types) {
			return nil
		}
		// retired under us; the next Load sees its successor or nothing
	}
}

func (c *cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if c.closed.Load() {
		return zero, false, ErrClosed
	}
	if !c.enabled {
		return zero, false, nil
	}
	return c.probe(ctx, key)
}

// probe reads key from the provider. Values the cache does not track (written
// by someone else, or left behind by a retired entry) count as misses.
func (c *cache[V]) probe(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if e, ok := c.entries.Load(key); !ok || e.loadState() == stateDetached {
		return zero, false, nil
	}
	v, ok, err := c.provider.Get(ctx, key)
	if err != nil {
		c.hooks.ProviderError("get", key, err)
		return zero, false, err
	}
	return v, ok, nil
}

// Set stores value under key tagged with types, replacing any previous value.
// A Set that races an invalidation of one of its types is dropped.
func (c *cache[V]) Set(ctx context.Context, key string, value V, types []Type, opts ...EntryOption) error {
	if err := checkTypes(types); err != nil {
		return err
	}
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.enabled {
		return nil
	}

	e := c.newEntry(key, opts)
	l := c.locks.lock(key)
	defer l.Unlock()
	c.install(e)
	c.tag(e, types)
	return c.storeLocked(ctx, e, value)
}

// GetOrCreate returns the stored value for key or builds it with factory.
// Concurrent misses for the same key run factory once and share its result.
// Factory errors are returned verbatim and nothing is left behind for key.
func (c *cache[V]) GetOrCreate(ctx context.Context, key string, types []Type, factory Factory[V], opts ...EntryOption) (V, error) {
	var zero V
	if factory == nil {
		return zero, ErrNilFactory
	}
	if err := checkTypes(types); err != nil {
		return zero, err
	}
	if c.closed.Load() {
		return zero, ErrClosed
	}
	if !c.enabled {
		return factory(ctx, c.newEntry(key, opts))
	}

	if v, ok, err := c.probe(ctx, key); err == nil && ok {
		return v, nil
	}

	r, err := c.gate.do(ctx, key, func(ctx context.Context) (any, error) {
		// another population may have finished while we waited
		if v, ok, err := c.probe(ctx, key); err == nil && ok {
			return v, nil
		}
		return c.populate(ctx, key, types, factory, opts)
	})
	if err != nil {
		return zero, err
	}
	v, _ := r.(V)
	return v, nil
}

func (c *cache[V]) populate(ctx context.Context, key string, types []Type, factory Factory[V], opts []EntryOption) (V, error) {
	e := c.newEntry(key, opts)
	l := c.locks.lock(key)
	c.install(e)
	c.tag(e, types)
	l.Unlock()
	defer func() {
		// a panicking hook or provider must not leave e installed
		if r := recover(); r != nil {
			c.retire(e, pr.ReasonDiscarded)
			panic(r)
		}
	}()

	v, err := c.build(ctx, e, factory)
	if err != nil {
		c.retire(e, pr.ReasonDiscarded)
		c.hooks.FactoryFailed(key, err)
		c.log.Debug("factory failed", errFields(key, err))
		var zero V
		return zero, err
	}

	l = c.locks.lock(key)
	defer l.Unlock()
	// the caller gets its value even if the provider refused it
	_ = c.storeLocked(ctx, e, v)
	return v, nil
}

func (c *cache[V]) build(ctx context.Context, e *Entry, factory Factory[V]) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrFactoryPanic, r)
		}
	}()
	return factory(ctx, e)
}

// storeLocked hands v to the provider. Caller holds e.key's stripe.
func (c *cache[V]) storeLocked(ctx context.Context, e *Entry, v V) error {
	if cur, _ := c.entries.Load(e.key); cur != e || e.stale.Load() {
		c.retire(e, pr.ReasonDiscarded)
		c.hooks.PopulateDiscarded(e.key)
		c.log.Debug("value not stored (invalidated while building)", Fields{"key": e.key})
		return nil
	}

	ttl, cost := e.storage()
	if cost <= 0 {
		cost = c.cost(e.key, v)
	}
	ok, err := c.provider.Set(ctx, e.key, v, pr.EntryOptions{TTL: ttl, Cost: cost}, func(r pr.Reason) {
		c.retire(e, r)
	})
	if err != nil {
		c.retire(e, pr.ReasonDiscarded)
		c.hooks.ProviderError("set", e.key, err)
		c.log.Warn("provider set failed", errFields(e.key, err))
		return err
	}
	if !ok {
		c.retire(e, pr.ReasonRejected)
		c.hooks.ProviderSetRejected(e.key)
		c.log.Debug("set rejected by provider (pressure)", Fields{"key": e.key})
		return nil
	}
	if !e.casState(statePending, stateStored) {
		return nil // already reported gone
	}
	// InvalidateType marks stale before reading the state; one of the two sides
	// always sees the other and deletes.
	if e.stale.Load() {
		c.del(ctx, e.key)
	}
	return nil
}

// InvalidateType deletes every key recorded under t when called. Keys tagged
// afterwards are not affected. Index memberships are dropped by the provider's
// exit callbacks, not here.
func (c *cache[V]) InvalidateType(ctx context.Context, t Type) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.enabled {
		return nil
	}

	refs := c.index.snapshot(t)
	var ierr *InvalidateError
	for _, r := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		cur, ok := c.entries.Load(r.key)
		if !ok {
			continue
		}
		if cur.id == r.id {
			cur.stale.Store(true)
			if cur.loadState() == stateDetached {
				// nothing stored by us, so no exit will ever come
				c.retire(cur, pr.ReasonRemoved)
			}
		}
		if err := c.provider.Del(ctx, r.key); err != nil {
			c.hooks.ProviderError("del", r.key, err)
			if ierr == nil {
				ierr = &InvalidateError{Type: t, Total: len(refs)}
			}
			ierr.add(r.key, err)
		}
	}

	c.hooks.TypeInvalidated(t, len(refs))
	c.log.Debug("type invalidated", Fields{"type": t, "keys": len(refs)})
	if ierr != nil {
		return ierr
	}
	return nil
}

// InvalidateTypes invalidates each distinct type; errors are joined.
func (c *cache[V]) InvalidateTypes(ctx context.Context, types ...Type) error {
	seen := make(map[Type]struct{}, len(types))
	var errs []error
	for _, t := range types {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if err := c.InvalidateType(ctx, t); err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Remove deletes key from the provider. A build in flight for key is not stored.
func (c *cache[V]) Remove(ctx context.Context, key string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.enabled {
		return nil
	}
	if cur, ok := c.entries.Load(key); ok {
		cur.stale.Store(true)
		if cur.loadState() == stateDetached {
			c.retire(cur, pr.ReasonRemoved)
		}
	}
	if err := c.provider.Del(ctx, key); err != nil {
		c.hooks.ProviderError("del", key, err)
		return err
	}
	return nil
}

func (c *cache[V]) del(ctx context.Context, key string) {
	if err := c.provider.Del(ctx, key); err != nil {
		c.hooks.ProviderError("del", key, err)
		c.log.Warn("provider delete failed", errFields(key, err))
	}
}

func (c *cache[V]) newEntry(key string, opts []EntryOption) *Entry {
	e := &Entry{
		key:   key,
		id:    c.seq.Add(1),
		types: make(map[Type]struct{}),
		ttl:   c.defaultTTL,
	}
	if c.enabled {
		e.owner = c
	}
	for _, o := range opts {
		o(e)
	}
	if e.ttl < 0 {
		e.ttl = 0
	}
	return e
}

// install makes e the live entry for its key. Caller holds the key's stripe.
func (c *cache[V]) install(e *Entry) {
	prev, loaded := c.entries.LoadAndStore(e.key, e)
	if !loaded || prev == e {
		return
	}
	switch prev.loadState() {
	case stateDetached:
		c.tag(e, prev.Types())
		c.retire(prev, pr.ReasonReplaced)
	case statePending:
		prev.stale.Store(true)
		c.retire(prev, pr.ReasonReplaced)
	}
	// A stored predecessor keeps its memberships until the provider reports
	// its value gone (normally as replaced when e is stored).
}

// tag records e under the closure of types. It fails only if e is retired.
func (c *cache[V]) tag(e *Entry, types []Type) bool {
	closure := c.graph.closure(types)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loadState() == stateRetired {
		return false
	}
	for _, t := range closure {
		if _, ok := e.types[t]; ok {
			continue
		}
		e.types[t] = struct{}{}
		c.index.record(t, e.key, e.id)
	}
	return true
}

// retire is the exit callback: it forgets e's memberships and drops e from the
// entry table. Runs at most once per entry and never panics into the provider.
func (c *cache[V]) retire(e *Entry, reason pr.Reason) {
	e.retireOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("exit callback panicked", Fields{"key": e.key, "reason": reason.String(), "panic": r})
				c.hooks.ExitCallbackPanic(e.key, r)
			}
		}()
		for _, t := range e.markRetired() {
			c.index.forget(t, e.key, e.id)
		}
		c.entries.Compute(e.key, func(cur *Entry, loaded bool) (*Entry, bool) {
			return cur, !loaded || cur == e
		})
		c.hooks.EntryEvicted(e.key, reason)
	})
}
