package depcache

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// gate admits populations. Waiting honours ctx; a caller that gives up never
// leaves the gate held.
type gate interface {
	do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error)
}

// keyGate collapses concurrent populations of the same key into one flight and
// lets different keys populate in parallel. The flight outlives callers that
// abandon it, so the entry it created is always stored or discarded.
type keyGate struct {
	g singleflight.Group
}

func (k *keyGate) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	flight := context.WithoutCancel(ctx)
	// singleflight re-panics in its own goroutine, where nobody can recover
	ch := k.g.DoChan(key, func() (any, error) { return guard(flight, fn) })
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.Val, r.Err
	}
}

// globalGate admits one population per cache at a time.
type globalGate struct {
	sem *semaphore.Weighted
}

func newGlobalGate() *globalGate { return &globalGate{sem: semaphore.NewWeighted(1)} }

func (g *globalGate) do(ctx context.Context, _ string, fn func(context.Context) (any, error)) (any, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer g.sem.Release(1)
	return guard(ctx, fn)
}

// guard turns a panic escaping a population (from a hook or the provider; the
// factory is recovered earlier) into ErrPopulatePanic.
func guard(ctx context.Context, fn func(context.Context) (any, error)) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("%w: %v", ErrPopulatePanic, r)
		}
	}()
	return fn(ctx)
}
