// Package provider defines the storage abstraction used by depcache.
//
// A provider owns entry contents, expiration and capacity-based eviction. depcache
// only tracks the keys it stored there and reacts to the exit notification each
// Set registers. Providers are free to keep values in-process (go-cache, ristretto)
// or serialize them (bigcache, redis) as long as Get returns a value equal to the
// one previously passed to Set.
//
// Important: exit callbacks are invoked from inside the provider's own eviction
// machinery, sometimes while it holds internal locks. They MUST NOT call back into
// the provider.
package provider

import (
	"context"
	"sync"
	"time"
)

// Reason tells why an entry left the store.
type Reason uint8

const (
	ReasonRemoved   Reason = iota + 1 // explicit Del
	ReasonExpired                     // TTL elapsed
	ReasonCapacity                    // evicted under memory or cost pressure
	ReasonReplaced                    // overwritten by a newer Set for the same key
	ReasonRejected                    // admission policy refused the value after Set returned
	ReasonClosed                      // store disposed
	ReasonDiscarded                   // never reached the store (factory failed or was invalidated mid-build)
)

func (r Reason) String() string {
	switch r {
	case ReasonRemoved:
		return "removed"
	case ReasonExpired:
		return "expired"
	case ReasonCapacity:
		return "capacity"
	case ReasonReplaced:
		return "replaced"
	case ReasonRejected:
		return "rejected"
	case ReasonClosed:
		return "closed"
	case ReasonDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// ExitFunc is notified once when the value stored by a Set leaves the store.
type ExitFunc func(Reason)

// EntryOptions are per-entry storage hints. They are opaque to depcache.
type EntryOptions struct {
	// TTL <= 0 means no expiry.
	TTL time.Duration
	// Cost is the admission weight for cost-aware stores; ignored elsewhere.
	Cost int64
}

// Provider is a keyed value store that reports entry exits.
// Must be safe for concurrent use.
type Provider[V any] interface {
	// Get returns (value, true, nil) on hit; (zero, false, nil) on miss.
	// If an IO/remote error happens, return (zero, false, err).
	Get(ctx context.Context, key string) (V, bool, error)

	// Set stores value and registers onExit for it. onExit fires at most once, when
	// this value leaves the store for any reason (including being replaced).
	// Returns ok=false when the store rejected the write; in that case, and when
	// err != nil, onExit is never invoked.
	Set(ctx context.Context, key string, value V, opts EntryOptions, onExit ExitFunc) (ok bool, err error)

	// Del removes a key if present. Removing a stored value triggers its onExit.
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// Exit guards an ExitFunc so that racing notification paths (explicit delete,
// expiry sweep, replacement) deliver it exactly once.
type Exit struct {
	once sync.Once
	fn   ExitFunc
}

func NewExit(fn ExitFunc) *Exit { return &Exit{fn: fn} }

// Fire invokes the wrapped callback on the first call only. A nil Exit or nil
// callback is a no-op.
func (e *Exit) Fire(r Reason) {
	if e == nil || e.fn == nil {
		return
	}
	e.once.Do(func() { e.fn(r) })
}
