package depcache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recInvalidator struct {
	mu    sync.Mutex
	calls [][]Type
	err   error
}

func (r *recInvalidator) InvalidateTypes(_ context.Context, types ...Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, types)
	return r.err
}

func TestChangeTracker_RunCommitsOnSuccess(t *testing.T) {
	inv := &recInvalidator{}
	tr := NewChangeTracker(inv, nil)

	err := tr.Run(context.Background(), func(ctx context.Context, ch *Changes) error {
		ch.Record("Order", "User")
		require.True(t, RecordChange(ctx, "Invoice", "Order"))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, [][]Type{{"Invoice", "Order", "User"}}, inv.calls)
}

func TestChangeTracker_RunDiscardsOnFailure(t *testing.T) {
	inv := &recInvalidator{}
	tr := NewChangeTracker(inv, nil)
	rollback := errors.New("tx rolled back")

	err := tr.Run(context.Background(), func(_ context.Context, ch *Changes) error {
		ch.Record("Order")
		return rollback
	})
	require.ErrorIs(t, err, rollback)
	require.Empty(t, inv.calls)
}

func TestChanges_CommitOnceAndIgnoreLateRecords(t *testing.T) {
	inv := &recInvalidator{}
	ch := NewChangeTracker(inv, nil).Begin()
	ctx := context.Background()

	require.NoError(t, ch.Commit(ctx), "nothing recorded: no invalidation")
	require.Empty(t, inv.calls)

	ch = NewChangeTracker(inv, nil).Begin()
	ch.Record("A", "")
	require.NoError(t, ch.Commit(ctx))
	require.NoError(t, ch.Commit(ctx))
	ch.Record("B")
	require.Equal(t, [][]Type{{"A"}}, inv.calls)
}

func TestChanges_CommitReturnsInvalidationError(t *testing.T) {
	inv := &recInvalidator{err: errors.New("partial")}
	ch := NewChangeTracker(inv, nil).Begin()
	ch.Record("A")
	require.ErrorIs(t, ch.Commit(context.Background()), inv.err)
}

func TestRecordChange_WithoutChanges(t *testing.T) {
	require.False(t, RecordChange(context.Background(), "A"))
	_, ok := ChangesFrom(context.Background())
	require.False(t, ok)
}

func TestChangeTracker_DrivesCache(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, newMemProvider[string](), nil)
	c.AddDependency("Order", "User")
	require.NoError(t, c.Set(ctx, "order:1", "v", typesOf("Order")))

	tr := NewChangeTracker(c, nil)
	require.NoError(t, tr.Run(ctx, func(ctx context.Context, _ *Changes) error {
		RecordChange(ctx, "User")
		return nil
	}))

	_, ok, _ := c.Get(ctx, "order:1")
	require.False(t, ok)
}
