package depcache

import pr "github.com/unkn0wn-root/depcache/provider"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// EntryEvicted runs inside provider eviction callbacks.
type Hooks interface {
	// An entry left the cache: provider exit, discard, replacement or Close.
	EntryEvicted(key string, reason pr.Reason)

	// An invalidation pass deleted keys snapshotted from t's bucket.
	TypeInvalidated(t Type, keys int)

	// A factory returned an error (or panicked). The entry was discarded.
	FactoryFailed(key string, err error)

	// A built value was returned but not stored: the key was invalidated,
	// removed or overwritten while the factory ran.
	PopulateDiscarded(key string)

	// Provider call failed. op ∈ {"get", "set", "del", "close"}
	ProviderError(op, key string, err error)

	// Provider returned ok=false on Set (admission/backpressure).
	ProviderSetRejected(key string)

	// Exit bookkeeping or a hook panicked inside a provider callback; swallowed.
	ExitCallbackPanic(key string, v any)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) EntryEvicted(string, pr.Reason)      {}
func (NopHooks) TypeInvalidated(Type, int)           {}
func (NopHooks) FactoryFailed(string, error)         {}
func (NopHooks) PopulateDiscarded(string)            {}
func (NopHooks) ProviderError(string, string, error) {}
func (NopHooks) ProviderSetRejected(string)          {}
func (NopHooks) ExitCallbackPanic(string, any)       {}
