package gocache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pr "github.com/unkn0wn-root/depcache/provider"
)

type exits struct {
	mu sync.Mutex
	m  map[string][]pr.Reason
}

func (e *exits) on(tag string) pr.ExitFunc {
	return func(r pr.Reason) {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.m == nil {
			e.m = make(map[string][]pr.Reason)
		}
		e.m[tag] = append(e.m[tag], r)
	}
}

func (e *exits) get(tag string) []pr.Reason {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.m[tag]
}

func TestProvider_Reasons(t *testing.T) {
	ctx := context.Background()
	p := New[int](Config{CleanupInterval: -1})
	var ex exits

	ok, err := p.Set(ctx, "k", 1, pr.EntryOptions{}, ex.on("v1"))
	require.NoError(t, err)
	require.True(t, ok)
	_, _ = p.Set(ctx, "k", 2, pr.EntryOptions{}, ex.on("v2"))
	require.Equal(t, []pr.Reason{pr.ReasonReplaced}, ex.get("v1"))

	v, hit, err := p.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, 2, v)

	require.NoError(t, p.Del(ctx, "k"))
	require.Equal(t, []pr.Reason{pr.ReasonRemoved}, ex.get("v2"))
	require.NoError(t, p.Del(ctx, "k"), "deleting a missing key is fine")

	_, _ = p.Set(ctx, "t", 3, pr.EntryOptions{TTL: 5 * time.Millisecond}, ex.on("ttl"))
	time.Sleep(15 * time.Millisecond)
	_, hit, _ = p.Get(ctx, "t")
	require.False(t, hit)
	p.DeleteExpired()
	require.Equal(t, []pr.Reason{pr.ReasonExpired}, ex.get("ttl"))

	_, _ = p.Set(ctx, "c", 4, pr.EntryOptions{}, ex.on("close"))
	require.Equal(t, 1, p.Len())
	require.NoError(t, p.Close(ctx))
	require.Equal(t, []pr.Reason{pr.ReasonClosed}, ex.get("close"))
	require.Zero(t, p.Len())
}

func TestProvider_OverwriteOfUnsweptExpiredItem(t *testing.T) {
	ctx := context.Background()
	p := New[int](Config{CleanupInterval: -1})
	var ex exits

	_, _ = p.Set(ctx, "k", 1, pr.EntryOptions{TTL: time.Millisecond}, ex.on("old"))
	time.Sleep(5 * time.Millisecond)
	_, _ = p.Set(ctx, "k", 2, pr.EntryOptions{}, ex.on("new"))

	require.Equal(t, []pr.Reason{pr.ReasonExpired}, ex.get("old"))
	require.Empty(t, ex.get("new"))
}
