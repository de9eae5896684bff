package depcache

import (
	"context"
	"slices"
	"sync"
)

// Invalidator is what a ChangeTracker drives once a unit of work commits.
// Cache implements it.
type Invalidator interface {
	InvalidateTypes(ctx context.Context, types ...Type) error
}

// ChangeTracker collects the types changed by a unit of work (typically a DB
// transaction) and invalidates them only after it succeeds.
type ChangeTracker struct {
	inv Invalidator
	log Logger
}

func NewChangeTracker(inv Invalidator, log Logger) *ChangeTracker {
	return &ChangeTracker{inv: inv, log: coalesce[Logger](log, NopLogger{})}
}

// Begin starts collecting changes.
func (t *ChangeTracker) Begin() *Changes {
	return &Changes{tracker: t, types: make(map[Type]struct{})}
}

// Run calls fn with a fresh Changes that is also reachable through ctx
// (RecordChange). The recorded types are invalidated if fn returns nil and
// dropped otherwise; fn's error is returned as-is.
func (t *ChangeTracker) Run(ctx context.Context, fn func(ctx context.Context, ch *Changes) error) error {
	ch := t.Begin()
	if err := fn(WithChanges(ctx, ch), ch); err != nil {
		ch.Discard()
		return err
	}
	return ch.Commit(ctx)
}

// Changes is the set of types changed by one unit of work.
type Changes struct {
	tracker *ChangeTracker

	mu    sync.Mutex
	types map[Type]struct{}
	done  bool
}

// Record notes changed types. Calls after Commit or Discard are ignored.
func (c *Changes) Record(types ...Type) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	for _, t := range types {
		if t != "" {
			c.types[t] = struct{}{}
		}
	}
}

// Types returns the recorded types, sorted.
func (c *Changes) Types() []Type {
	c.mu.Lock()
	out := make([]Type, 0, len(c.types))
	for t := range c.types {
		out = append(out, t)
	}
	c.mu.Unlock()
	slices.Sort(out)
	return out
}

// Commit invalidates the recorded types. Only the first Commit has effect.
func (c *Changes) Commit(ctx context.Context) error {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return nil
	}
	c.done = true
	c.mu.Unlock()

	types := c.Types()
	if len(types) == 0 {
		return nil
	}
	err := c.tracker.inv.InvalidateTypes(ctx, types...)
	if err != nil {
		c.tracker.log.Warn("invalidation after commit failed", Fields{"types": types, "err": err})
	}
	return err
}

// Discard drops the recorded types.
func (c *Changes) Discard() {
	c.mu.Lock()
	c.done = true
	c.types = make(map[Type]struct{})
	c.mu.Unlock()
}

type changesKey struct{}

// WithChanges attaches ch to ctx so code deeper in the call chain can record
// into it.
func WithChanges(ctx context.Context, ch *Changes) context.Context {
	return context.WithValue(ctx, changesKey{}, ch)
}

// ChangesFrom returns the Changes attached to ctx, if any.
func ChangesFrom(ctx context.Context) (*Changes, bool) {
	ch, ok := ctx.Value(changesKey{}).(*Changes)
	return ch, ok && ch != nil
}

// RecordChange records types into the Changes carried by ctx. It reports
// false when ctx carries none.
func RecordChange(ctx context.Context, types ...Type) bool {
	ch, ok := ChangesFrom(ctx)
	if ok {
		ch.Record(types...)
	}
	return ok
}
