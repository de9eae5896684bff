// Package asynchook moves hook delivery off the cache's hot paths. Events are
// queued to a fixed worker pool and dropped when the queue is full.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{EvictedEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := depcache.New[User](depcache.Options[User]{
//	    Provider: gocache.New[User](gocache.Config{}),
//	    Hooks:    hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/depcache"
	pr "github.com/unkn0wn-root/depcache/provider"
)

type Hooks struct {
	inner   depcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	mu      sync.RWMutex // guards send vs close
	dropped atomic.Uint64
}

var _ depcache.Hooks = (*Hooks)(nil)

func New(inner depcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}
	if inner == nil {
		inner = depcache.NopHooks{}
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				h.run(f)
			}
		}()
	}
	return h
}

// run keeps a worker alive when the inner hook panics.
func (h *Hooks) run(f func()) {
	defer func() { _ = recover() }()
	f()
}

// Close drains queued events and stops the workers. Events after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed.Store(true)
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports how many events were dropped.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed.Load() {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) EntryEvicted(k string, r pr.Reason) { h.try(func() { h.inner.EntryEvicted(k, r) }) }
func (h *Hooks) TypeInvalidated(t depcache.Type, n int) {
	h.try(func() { h.inner.TypeInvalidated(t, n) })
}
func (h *Hooks) FactoryFailed(k string, err error) { h.try(func() { h.inner.FactoryFailed(k, err) }) }
func (h *Hooks) PopulateDiscarded(k string)        { h.try(func() { h.inner.PopulateDiscarded(k) }) }
func (h *Hooks) ProviderError(op, k string, err error) {
	h.try(func() { h.inner.ProviderError(op, k, err) })
}
func (h *Hooks) ProviderSetRejected(k string) { h.try(func() { h.inner.ProviderSetRejected(k) }) }
func (h *Hooks) ExitCallbackPanic(k string, v any) {
	h.try(func() { h.inner.ExitCallbackPanic(k, v) })
}
