// Package stats reports depcache hook events to a bool64/stats tracker.
package stats

import (
	"context"

	"github.com/bool64/stats"

	"github.com/unkn0wn-root/depcache"
	pr "github.com/unkn0wn-root/depcache/provider"
)

// Metric names.
const (
	MetricEvicted      = "depcache_evicted"
	MetricInvalidated  = "depcache_type_invalidated"
	MetricFactoryError = "depcache_factory_failed"
	MetricDiscarded    = "depcache_populate_discarded"
	MetricProviderErr  = "depcache_provider_error"
	MetricSetRejected  = "depcache_set_rejected"
	MetricPanic        = "depcache_exit_callback_panic"
)

type Hooks struct {
	st   stats.Tracker
	name string
}

var _ depcache.Hooks = Hooks{}

// New tags every metric with "name".
func New(st stats.Tracker, name string) Hooks {
	if st == nil {
		st = stats.NoOp{}
	}
	return Hooks{st: st, name: name}
}

func (h Hooks) add(metric string, v float64, labels ...string) {
	h.st.Add(context.Background(), metric, v, append(labels, "name", h.name)...)
}

func (h Hooks) EntryEvicted(_ string, r pr.Reason) { h.add(MetricEvicted, 1, "reason", r.String()) }
func (h Hooks) TypeInvalidated(t depcache.Type, keys int) {
	h.add(MetricInvalidated, float64(keys), "type", string(t))
}
func (h Hooks) FactoryFailed(string, error)         { h.add(MetricFactoryError, 1) }
func (h Hooks) PopulateDiscarded(string)            { h.add(MetricDiscarded, 1) }
func (h Hooks) ProviderError(op, _ string, _ error) { h.add(MetricProviderErr, 1, "op", op) }
func (h Hooks) ProviderSetRejected(string)          { h.add(MetricSetRejected, 1) }
func (h Hooks) ExitCallbackPanic(string, any)       { h.add(MetricPanic, 1) }
