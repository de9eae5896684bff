package prom

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/depcache"
	pr "github.com/unkn0wn-root/depcache/provider"
	"github.com/unkn0wn-root/depcache/provider/gocache"
)

func TestHooks_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	h, err := New(reg, "orders")
	require.NoError(t, err)

	h.EntryEvicted("k", pr.ReasonExpired)
	h.EntryEvicted("k", pr.ReasonExpired)
	h.TypeInvalidated("User", 3)
	h.ProviderError("del", "k", errors.New("down"))

	require.Equal(t, 2.0, testutil.ToFloat64(h.evicted.WithLabelValues("expired")))
	require.Equal(t, 1.0, testutil.ToFloat64(h.invalidated.WithLabelValues("User")))
	require.Equal(t, 3.0, testutil.ToFloat64(h.invalidKeys.WithLabelValues("User")))
	require.Equal(t, 1.0, testutil.ToFloat64(h.providerErr.WithLabelValues("del")))

	_, err = New(reg, "orders")
	require.Error(t, err, "duplicate registration must fail")
}

func TestHooks_WiredIntoCache(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	h, err := New(reg, "orders")
	require.NoError(t, err)

	c, err := depcache.New[string](depcache.Options[string]{
		Provider: gocache.New[string](gocache.Config{}),
		Hooks:    h,
	})
	require.NoError(t, err)
	defer c.Close(ctx)

	_, err = c.GetOrCreate(ctx, "k", []depcache.Type{"Order"}, func(context.Context, *depcache.Entry) (string, error) {
		return "", errors.New("boom")
	})
	require.Error(t, err)
	require.NoError(t, c.Set(ctx, "k", "v", []depcache.Type{"Order"}))
	require.NoError(t, c.InvalidateType(ctx, "Order"))

	require.Equal(t, 1.0, testutil.ToFloat64(h.factoryFail))
	require.Equal(t, 1.0, testutil.ToFloat64(h.evicted.WithLabelValues("discarded")))
	require.Equal(t, 1.0, testutil.ToFloat64(h.evicted.WithLabelValues("removed")))
	require.Equal(t, 1.0, testutil.ToFloat64(h.invalidKeys.WithLabelValues("Order")))
}
