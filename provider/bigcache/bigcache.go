// Package bigcache adapts allegro/bigcache as a depcache provider. Values are
// serialized with a codec and framed with the entry sequence so bigcache's
// removal callback, which only sees bytes, can be matched to the right Set.
//
// bigcache has a single LifeWindow for all entries: per-entry TTL and Cost are
// ignored.
package bigcache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"
	"github.com/cespare/xxhash/v2"

	"github.com/unkn0wn-root/depcache/codec"
	"github.com/unkn0wn-root/depcache/internal/wire"
	pr "github.com/unkn0wn-root/depcache/provider"
)

var ErrNilCodec = errors.New("bigcache provider: nil codec")

type Provider[V any] struct {
	c     *bc.BigCache
	codec codec.Codec[V]
	exits *pr.ExitTable
}

var _ pr.Provider[struct{}] = (*Provider[struct{}])(nil)

type Config struct {
	LifeWindow         time.Duration // 0 => 10m
	CleanWindow        time.Duration
	Shards             int // power of two
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

type hasher struct{}

func (hasher) Sum64(s string) uint64 { return xxhash.Sum64String(s) }

func New[V any](ctx context.Context, cfg Config, cd codec.Codec[V]) (*Provider[V], error) {
	if cd == nil {
		return nil, ErrNilCodec
	}
	life := cfg.LifeWindow
	if life <= 0 {
		life = 10 * time.Minute
	}
	conf := bc.DefaultConfig(life)
	conf.Hasher = hasher{}
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.Shards > 0 {
		conf.Shards = cfg.Shards
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}

	p := &Provider[V]{codec: cd, exits: pr.NewExitTable()}
	conf.OnRemoveWithReason = p.onRemove

	c, err := bc.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	p.c = c
	return p, nil
}

// onRemove runs under a bigcache shard lock.
func (p *Provider[V]) onRemove(key string, entry []byte, reason bc.RemoveReason) {
	seq, ok := wire.PeekSeq(entry)
	if !ok {
		return
	}
	p.exits.Take(key, seq).Fire(mapReason(reason))
}

func mapReason(r bc.RemoveReason) pr.Reason {
	switch r {
	case bc.Expired:
		return pr.ReasonExpired
	case bc.NoSpace:
		return pr.ReasonCapacity
	default:
		return pr.ReasonRemoved
	}
}

func (p *Provider[V]) Get(_ context.Context, key string) (V, bool, error) {
	var zero V
	b, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	_, payload, err := wire.DecodeEntry(b)
	if err != nil {
		// self-heal: drop bytes we did not write
		_ = p.c.Delete(key)
		return zero, false, nil
	}
	v, err := p.codec.Decode(payload)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (p *Provider[V]) Set(_ context.Context, key string, value V, _ pr.EntryOptions, onExit pr.ExitFunc) (bool, error) {
	payload, err := p.codec.Encode(value)
	if err != nil {
		return false, err
	}
	seq := p.exits.Next()
	prev := p.exits.Put(key, seq, onExit)

	if err := p.c.Set(key, wire.EncodeEntry(seq, payload)); err != nil {
		// Leave nothing behind: the previous bytes may or may not survive a
		// failed write, so drop them and report the predecessor as removed.
		_ = p.c.Delete(key)
		p.exits.Take(key, seq)
		prev.Fire(pr.ReasonRemoved)
		return false, err
	}
	// bigcache overwrites in place without a callback.
	prev.Fire(pr.ReasonReplaced)
	return true, nil
}

func (p *Provider[V]) Del(_ context.Context, key string) error {
	err := p.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

// Len reports the number of entries, including expired ones not yet cleaned.
func (p *Provider[V]) Len() int { return p.c.Len() }

func (p *Provider[V]) Close(_ context.Context) error {
	err := p.c.Close()
	for _, e := range p.exits.Drain() {
		e.Fire(pr.ReasonClosed)
	}
	return err
}
