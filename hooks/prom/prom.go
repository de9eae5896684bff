// Package prom exports depcache hook events as Prometheus counters.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/depcache"
	pr "github.com/unkn0wn-root/depcache/provider"
)

type Hooks struct {
	evicted       *prometheus.CounterVec
	invalidated   *prometheus.CounterVec
	invalidKeys   *prometheus.CounterVec
	factoryFail   prometheus.Counter
	discarded     prometheus.Counter
	providerErr   *prometheus.CounterVec
	setRejected   prometheus.Counter
	callbackPanic prometheus.Counter
}

var _ depcache.Hooks = (*Hooks)(nil)

// New registers the counters with reg (prometheus.DefaultRegisterer when nil).
// name becomes the constant "cache" label so several caches can share a registry.
func New(reg prometheus.Registerer, name string) (*Hooks, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	cl := prometheus.Labels{"cache": name}
	counter := func(n, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "depcache", Name: n, Help: help, ConstLabels: cl,
		})
	}
	vec := func(n, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "depcache", Name: n, Help: help, ConstLabels: cl,
		}, labels)
	}

	h := &Hooks{
		evicted:       vec("entries_evicted_total", "Entries that left the cache, by reason.", "reason"),
		invalidated:   vec("type_invalidations_total", "InvalidateType calls, by type.", "type"),
		invalidKeys:   vec("type_invalidated_keys_total", "Keys deleted by InvalidateType, by type.", "type"),
		factoryFail:   counter("factory_failures_total", "Factories that returned an error or panicked."),
		discarded:     counter("populate_discarded_total", "Built values not stored because they were invalidated meanwhile."),
		providerErr:   vec("provider_errors_total", "Failed provider calls, by operation.", "op"),
		setRejected:   counter("provider_set_rejected_total", "Values the provider refused to admit."),
		callbackPanic: counter("exit_callback_panics_total", "Panics recovered inside exit callbacks."),
	}
	for _, c := range []prometheus.Collector{
		h.evicted, h.invalidated, h.invalidKeys, h.factoryFail,
		h.discarded, h.providerErr, h.setRejected, h.callbackPanic,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) EntryEvicted(_ string, r pr.Reason) { h.evicted.WithLabelValues(r.String()).Inc() }

// TypeInvalidated labels by type; keep the set of types bounded.
func (h *Hooks) TypeInvalidated(t depcache.Type, keys int) {
	h.invalidated.WithLabelValues(string(t)).Inc()
	h.invalidKeys.WithLabelValues(string(t)).Add(float64(keys))
}

func (h *Hooks) FactoryFailed(string, error)         { h.factoryFail.Inc() }
func (h *Hooks) PopulateDiscarded(string)            { h.discarded.Inc() }
func (h *Hooks) ProviderError(op, _ string, _ error) { h.providerErr.WithLabelValues(op).Inc() }
func (h *Hooks) ProviderSetRejected(string)          { h.setRejected.Inc() }
func (h *Hooks) ExitCallbackPanic(string, any)       { h.callbackPanic.Inc() }
