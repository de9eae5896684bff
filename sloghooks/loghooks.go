// Package sloghooks reports depcache hook events through log/slog with
// sampling for the high-volume ones and key redaction.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/depcache"
	pr "github.com/unkn0wn-root/depcache/provider"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	EvictedEvery   uint64
	DiscardedEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	evictedCtr   atomic.Uint64
	discardedCtr atomic.Uint64
}

var _ depcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) EntryEvicted(key string, reason pr.Reason) {
	if h.l == nil || !sample(h.opts.EvictedEvery, &h.evictedCtr) {
		return
	}
	h.l.Debug("depcache.entry_evicted",
		"key", h.redact(key),
		"reason", reason.String())
}

func (h *Hooks) TypeInvalidated(t depcache.Type, keys int) {
	if h.l == nil {
		return
	}
	h.l.Info("depcache.type_invalidated",
		"type", string(t),
		"keys", keys)
}

func (h *Hooks) FactoryFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("depcache.factory_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) PopulateDiscarded(key string) {
	if h.l == nil || !sample(h.opts.DiscardedEvery, &h.discardedCtr) {
		return
	}
	h.l.Debug("depcache.populate_discarded",
		"key", h.redact(key))
}

func (h *Hooks) ProviderError(op, key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("depcache.provider_error",
		"op", op,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) ProviderSetRejected(key string) {
	if h.l == nil {
		return
	}
	h.l.Warn("depcache.provider_set_rejected",
		"key", h.redact(key))
}

func (h *Hooks) ExitCallbackPanic(key string, v any) {
	if h.l == nil {
		return
	}
	h.l.Error("depcache.exit_callback_panic",
		"key", h.redact(key),
		"panic", v)
}
