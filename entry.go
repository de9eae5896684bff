package depcache

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

type entryState uint32

const (
	statePending  entryState = iota // created, value not stored yet
	stateStored                     // value handed to the provider
	stateDetached                   // tagged via TagKey, nothing stored by the cache
	stateRetired                    // gone; memberships forgotten
)

type tagger interface {
	tag(e *Entry, types []Type) bool
}

// Entry is the cache's handle for one stored (or about to be stored) value.
// A Factory receives the Entry it populates and may adjust its storage options
// or tag it with additional types before returning.
type Entry struct {
	key   string
	id    uint64
	owner tagger

	state atomic.Uint32
	stale atomic.Bool // invalidated or replaced while pending

	mu    sync.Mutex
	types map[Type]struct{}
	ttl   time.Duration
	cost  int64

	retireOnce sync.Once
}

// EntryOption adjusts an entry before its factory runs.
type EntryOption func(*Entry)

// WithTTL overrides the cache's DefaultTTL. d < 0 means no expiry.
func WithTTL(d time.Duration) EntryOption {
	return func(e *Entry) { e.SetTTL(d) }
}

// WithCost sets the admission weight reported to cost-aware providers.
func WithCost(n int64) EntryOption {
	return func(e *Entry) { e.SetCost(n) }
}

func (e *Entry) Key() string { return e.key }

// Types returns the types the entry is tagged with, closure included.
func (e *Entry) Types() []Type {
	e.mu.Lock()
	out := make([]Type, 0, len(e.types))
	for t := range e.types {
		out = append(out, t)
	}
	e.mu.Unlock()
	slices.Sort(out)
	return out
}

// Tag adds types (and their dependents) to the entry. It is a no-op for an
// entry that is no longer live or belongs to a disabled cache.
func (e *Entry) Tag(types ...Type) {
	if e.owner == nil || len(types) == 0 {
		return
	}
	e.owner.tag(e, types)
}

func (e *Entry) SetTTL(d time.Duration) {
	e.mu.Lock()
	e.ttl = d
	e.mu.Unlock()
}

func (e *Entry) SetCost(n int64) {
	e.mu.Lock()
	e.cost = n
	e.mu.Unlock()
}

// Invalidated reports whether one of the entry's types was invalidated (or the
// key removed or overwritten) while its value was being built. Such a value is
// returned to the caller but never stored.
func (e *Entry) Invalidated() bool { return e.stale.Load() }

func (e *Entry) loadState() entryState { return entryState(e.state.Load()) }

func (e *Entry) casState(from, to entryState) bool {
	return e.state.CompareAndSwap(uint32(from), uint32(to))
}

// markRetired flips the entry to retired and returns the types it held.
// Afterwards tagging it fails, so the returned set is final.
func (e *Entry) markRetired() []Type {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Store(uint32(stateRetired))
	out := make([]Type, 0, len(e.types))
	for t := range e.types {
		out = append(out, t)
	}
	return out
}

func (e *Entry) storage() (time.Duration, int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ttl, e.cost
}
