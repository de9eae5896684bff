// Package ristretto adapts dgraph-io/ristretto as a cost-aware in-process
// depcache provider. Exit notifications come from ristretto's OnEvict, OnReject
// and OnExit hooks.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/depcache/provider"
)

type item[V any] struct {
	value V
	exit  *pr.Exit
}

type Provider[V any] struct {
	c *rc.Cache
}

var _ pr.Provider[struct{}] = (*Provider[struct{}])(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
	// Cost in Ristretto is provided by the caller (depcache passes EntryOptions.Cost).
}

func New[V any](cfg Config) (*Provider[V], error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
		OnEvict: func(i *rc.Item) {
			reason := pr.ReasonCapacity
			if !i.Expiration.IsZero() && !time.Now().Before(i.Expiration) {
				reason = pr.ReasonExpired
			}
			fire[V](i.Value, reason)
		},
		OnReject: func(i *rc.Item) { fire[V](i.Value, pr.ReasonRejected) },
		// Catch-all for deletes and updates; OnEvict/OnReject run first when they apply.
		OnExit: func(v interface{}) { fire[V](v, pr.ReasonRemoved) },
	})
	if err != nil {
		return nil, err
	}
	return &Provider[V]{c: c}, nil
}

func fire[V any](v interface{}, reason pr.Reason) {
	if it, ok := v.(*item[V]); ok {
		it.exit.Fire(reason)
	}
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
		p.c.Del(key)
		return zero, false, nil
	}
	return it.value, true, nil
}

// Set admits value through ristretto's buffers and waits until it is applied so a
// following Get observes it. A value dropped by the set buffer reports ok=false.
func (p *Provider[V]) Set(_ context.Context, key string, value V, opts pr.EntryOptions, onExit pr.ExitFunc) (bool, error) {
	it := &item[V]{value: value, exit: pr.NewExit(onExit)}
	cost := opts.Cost
	if cost <= 0 {
		cost = 1
	}
	ttl := opts.TTL
	if ttl < 0 {
		ttl = 0
	}
	if !p.c.SetWithTTL(key, it, cost, ttl) {
		return false, nil
	}
	p.c.Wait()
	return true, nil
}

func (p *Provider[V]) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

func (p *Provider[V]) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes ristretto counters if enabled (not part of provider.Provider).
func (p *Provider[V]) Metrics() *rc.Metrics { return p.c.Metrics }
