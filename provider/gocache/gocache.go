// Package gocache adapts patrickmn/go-cache as an in-process depcache provider.
// Values are kept as-is (no serialization).
package gocache

import (
	"context"
	"sync"
	"time"

	gc "github.com/patrickmn/go-cache"

	pr "github.com/unkn0wn-root/depcache/provider"
)

type item[V any] struct {
	value V
	exp   time.Time // zero => no TTL
	exit  *pr.Exit
}

func (it *item[V]) expired(now time.Time) bool {
	return !it.exp.IsZero() && !now.Before(it.exp)
}

type Provider[V any] struct {
	c  *gc.Cache
	mu sync.Mutex // serializes Set so every overwritten item is reported
}

var _ pr.Provider[struct{}] = (*Provider[struct{}])(nil)

type Config struct {
	// CleanupInterval is the janitor period for expired items; 0 => 1m, <0 disables it.
	CleanupInterval time.Duration
}

func New[V any](cfg Config) *Provider[V] {
	interval := cfg.CleanupInterval
	if interval == 0 {
		interval = time.Minute
	}
	p := &Provider[V]{c: gc.New(gc.NoExpiration, interval)}
	p.c.OnEvicted(p.onEvicted)
	return p
}

func (p *Provider[V]) onEvicted(_ string, v interface{}) {
	it, ok := v.(*item[V])
	if !ok {
		return
	}
	reason := pr.ReasonRemoved
	if it.expired(time.Now()) {
		reason = pr.ReasonExpired
	}
	it.exit.Fire(reason)
}

func (p *Provider[V]) Get(_ context.Context, key string) (V, bool, error) {
	var zero V
	v, ok := p.c.Get(key)
	if !ok {
		return zero, false, nil
	}
	it, ok := v.(*item[V])
	if !ok {
		// self-heal: drop unexpected entry shape
		p.c.Delete(key)
		return zero, false, nil
	}
	return it.value, true, nil
}

// Set stores value. ttl<=0 => no expiry.
func (p *Provider[V]) Set(_ context.Context, key string, value V, opts pr.EntryOptions, onExit pr.ExitFunc) (bool, error) {
	it := &item[V]{value: value, exit: pr.NewExit(onExit)}
	ttl := time.Duration(gc.NoExpiration)
	if opts.TTL > 0 {
		ttl = opts.TTL
		it.exp = time.Now().Add(opts.TTL)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, found := p.c.Get(key); found {
		if old, ok := prev.(*item[V]); ok {
			old.exit.Fire(pr.ReasonReplaced)
		}
	}
	// go-cache overwrites silently; an expired item the janitor has not swept
	// yet is only reported through Delete.
	p.c.Delete(key)
	p.c.Set(key, it, ttl)
	return true, nil
}

func (p *Provider[V]) Del(_ context.Context, key string) error {
	p.c.Delete(key)
	return nil
}

// DeleteExpired sweeps expired items now instead of waiting for the janitor.
func (p *Provider[V]) DeleteExpired() { p.c.DeleteExpired() }

// Len reports the number of items, including expired ones not yet swept.
func (p *Provider[V]) Len() int { return p.c.ItemCount() }

// Close reports every remaining item as closed and empties the store.
func (p *Provider[V]) Close(_ context.Context) error {
	p.mu.Lock()
	items := p.c.Items()
	p.c.Flush()
	p.mu.Unlock()
	for _, gi := range items {
		if it, ok := gi.Object.(*item[V]); ok {
			it.exit.Fire(pr.ReasonClosed)
		}
	}
	return nil
}
