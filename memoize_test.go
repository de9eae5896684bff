package depcache

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type getOrder struct{ id string }

func (q getOrder) CacheKey() string   { return "order:" + q.id }
func (q getOrder) CacheTypes() []Type { return []Type{"Order"} }

type plainQuery struct{ id string }

func TestMemoize(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, newMemProvider[string](), nil)

	var calls atomic.Int64
	h := Memoize[any, string](c, func(_ context.Context, req any) (string, error) {
		calls.Add(1)
		switch q := req.(type) {
		case getOrder:
			return "order " + q.id, nil
		case plainQuery:
			return "plain " + q.id, nil
		}
		return "", nil
	})

	for i := 0; i < 3; i++ {
		v, err := h(ctx, getOrder{id: "1"})
		require.NoError(t, err)
		require.Equal(t, "order 1", v)
	}
	require.EqualValues(t, 1, calls.Load())
	require.Equal(t, []string{"order:1"}, c.Keys("Order"))

	for i := 0; i < 2; i++ {
		_, err := h(ctx, plainQuery{id: "1"})
		require.NoError(t, err)
	}
	require.EqualValues(t, 3, calls.Load(), "non-cacheable requests pass through")

	require.NoError(t, c.InvalidateType(ctx, "Order"))
	_, err := h(ctx, getOrder{id: "1"})
	require.NoError(t, err)
	require.EqualValues(t, 4, calls.Load())
}

func TestMemoize_DisabledCachePassesThrough(t *testing.T) {
	var calls atomic.Int64
	h := Memoize[getOrder, string](NewNop[string](), func(context.Context, getOrder) (string, error) {
		calls.Add(1)
		return "v", nil
	})
	for i := 0; i < 2; i++ {
		_, err := h(context.Background(), getOrder{id: "1"})
		require.NoError(t, err)
	}
	require.EqualValues(t, 2, calls.Load())
}
