// Package redis adapts a go-redis client as a depcache provider.
//
// Redis has no per-key callback, so exits are tracked locally: Del and
// replacement are reported directly; expiry and eviction are reported from
// keyspace notifications when Config.Notifications is set. Keys written by
// other processes are never reported.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/depcache/codec"
	"github.com/unkn0wn-root/depcache/internal/wire"
	pr "github.com/unkn0wn-root/depcache/provider"
)

var (
	ErrNilClient = errors.New("redis provider: nil client")
	ErrNilCodec  = errors.New("redis provider: nil codec")
)

type Redis[V any] struct {
	rdb         goredis.UniversalClient
	codec       codec.Codec[V]
	prefix      string
	closeClient bool
	exits       *pr.ExitTable
	// keyMu orders Set, Del and notification handling per key, so the exit
	// table and the server agree on which write a key currently holds.
	keyMu [64]sync.Mutex

	sub       *goredis.PubSub
	done      chan struct{}
	closeOnce sync.Once
}

var _ pr.Provider[struct{}] = (*Redis[struct{}])(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool   // set true only if this provider exclusively owns the client
	Prefix      string // prepended to every key

	// Notifications subscribes to expired/evicted keyevents of DB.
	Notifications bool
	DB            int
	// ConfigureServer issues CONFIG SET notify-keyspace-events before subscribing.
	ConfigureServer bool
}

func New[V any](ctx context.Context, cfg Config, cd codec.Codec[V]) (*Redis[V], error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	if cd == nil {
		return nil, ErrNilCodec
	}
	p := &Redis[V]{
		rdb:         cfg.Client,
		codec:       cd,
		prefix:      cfg.Prefix,
		closeClient: cfg.CloseClient,
		exits:       pr.NewExitTable(),
	}
	if !cfg.Notifications {
		return p, nil
	}

	if cfg.ConfigureServer {
		if err := p.rdb.ConfigSet(ctx, "notify-keyspace-events", "Exe").Err(); err != nil {
			return nil, fmt.Errorf("redis provider: enable keyspace events: %w", err)
		}
	}
	expired := fmt.Sprintf("__keyevent@%d__:expired", cfg.DB)
	evicted := fmt.Sprintf("__keyevent@%d__:evicted", cfg.DB)
	sub := p.rdb.PSubscribe(ctx, expired, evicted)
	// wait for the subscription to be confirmed so no event is missed after New returns
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis provider: subscribe: %w", err)
	}
	p.sub = sub
	p.done = make(chan struct{})
	go p.listen(sub.Channel(), expired)
	return p, nil
}

func (p *Redis[V]) lock(key string) *sync.Mutex {
	m := &p.keyMu[xxhash.Sum64String(key)%uint64(len(p.keyMu))]
	m.Lock()
	return m
}

func (p *Redis[V]) listen(ch <-chan *goredis.Message, expired string) {
	defer close(p.done)
	for msg := range ch {
		key, ok := strings.CutPrefix(msg.Payload, p.prefix)
		if !ok {
			continue
		}
		reason := pr.ReasonCapacity
		if msg.Channel == expired {
			reason = pr.ReasonExpired
		}
		p.reportGone(key, msg.Payload, reason)
	}
}

func (p *Redis[V]) reportGone(key, rkey string, reason pr.Reason) {
	l := p.lock(key)
	defer l.Unlock()
	seq, ok := p.exits.Seq(key)
	if !ok {
		return
	}
	// The key may have been written again after the event was published.
	n, err := p.rdb.Exists(context.Background(), rkey).Result()
	if err != nil || n > 0 {
		return
	}
	p.exits.Take(key, seq).Fire(reason)
}

func (p *Redis[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	b, err := p.rdb.Get(ctx, p.prefix+key).Bytes()
	if err == goredis.Nil {
		return zero, false, nil // miss
	}
	if err != nil {
		return zero, false, err // transport/server error
	}
	_, payload, err := wire.DecodeEntry(b)
	if err != nil {
		return zero, false, nil // foreign or corrupt bytes: treat as miss
	}
	v, err := p.codec.Decode(payload)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (p *Redis[V]) Set(ctx context.Context, key string, value V, opts pr.EntryOptions, onExit pr.ExitFunc) (bool, error) {
	payload, err := p.codec.Encode(value)
	if err != nil {
		return false, err
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 0 // treat non-positive TTLs as "no expiry" per provider contract
	}

	l := p.lock(key)
	defer l.Unlock()
	seq := p.exits.Next()
	prev := p.exits.Put(key, seq, onExit)
	if err := p.rdb.Set(ctx, p.prefix+key, wire.EncodeEntry(seq, payload), ttl).Err(); err != nil {
		// outcome unknown: make sure neither value stays reachable
		_ = p.rdb.Del(ctx, p.prefix+key).Err()
		p.exits.Take(key, seq)
		prev.Fire(pr.ReasonRemoved)
		return false, err
	}
	prev.Fire(pr.ReasonReplaced)
	return true, nil
}

// Del reports the exit of the value it actually deleted: GETDEL returns its
// bytes and their sequence picks the record. A tracked key the server no longer
// holds expired unnoticed and is reported as such.
func (p *Redis[V]) Del(ctx context.Context, key string) error {
	l := p.lock(key)
	defer l.Unlock()
	b, err := p.rdb.GetDel(ctx, p.prefix+key).Bytes()
	if err == goredis.Nil {
		if seq, ok := p.exits.Seq(key); ok {
			p.exits.Take(key, seq).Fire(pr.ReasonExpired)
		}
		return nil
	}
	if err != nil {
		return err
	}
	if seq, ok := wire.PeekSeq(b); ok {
		p.exits.Take(key, seq).Fire(pr.ReasonRemoved)
	}
	return nil
}

// Close stops the notification listener, reports every tracked key as closed
// and releases the client when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis[V]) Close(context.Context) error {
	var err error
	p.closeOnce.Do(func() {
		if p.sub != nil {
			_ = p.sub.Close()
			<-p.done
		}
		for _, e := range p.exits.Drain() {
			e.Fire(pr.ReasonClosed)
		}
		if p.closeClient {
			if cerr := p.rdb.Close(); cerr != nil && !errors.Is(cerr, goredis.ErrClosed) {
				err = cerr
			}
		}
	})
	return err
}

// Key returns the redis key used for a cache key.
func (p *Redis[V]) Key(key string) string { return p.prefix + key }
