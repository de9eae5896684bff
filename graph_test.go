package depcache

import (
	"slices"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func sortedClosure(g *graph, roots ...Type) []Type {
	out := g.closure(roots)
	slices.Sort(out)
	return out
}

func TestGraph_ClosureChain(t *testing.T) {
	g := newGraph()
	g.add("A", "B")
	g.add("B", "C")

	require.Equal(t, []Type{"A", "B", "C"}, sortedClosure(g, "A"))
	require.Equal(t, []Type{"B", "C"}, sortedClosure(g, "B"))
	require.Equal(t, []Type{"C"}, sortedClosure(g, "C"))
}

func TestGraph_ClosureCycleTerminates(t *testing.T) {
	g := newGraph()
	g.add("A", "B")
	g.add("B", "A")
	g.add("C", "C")

	require.Equal(t, []Type{"A", "B"}, sortedClosure(g, "A"))
	require.Equal(t, []Type{"C"}, sortedClosure(g, "C"))
	require.Equal(t, []Type{"A", "B", "C"}, sortedClosure(g, "A", "C", "B", "A"))
}

func TestGraph_DeepChainIsIterative(t *testing.T) {
	g := newGraph()
	const depth = 100_000
	prev := Type("t0")
	for i := 1; i <= depth; i++ {
		next := Type("t" + strconv.Itoa(i))
		g.add(prev, next)
		prev = next
	}
	require.Len(t, g.closure([]Type{"t0"}), depth+1)
}

func TestGraph_AddIsIdempotent(t *testing.T) {
	g := newGraph()
	require.True(t, g.add("A", "B"))
	require.False(t, g.add("A", "B"))
	require.Equal(t, []Edge{{From: "A", To: "B"}}, g.edges())
}

func TestGraph_RemoveAndDependents(t *testing.T) {
	g := newGraph()
	g.add("A", "C")
	g.add("A", "B")
	require.Equal(t, []Type{"B", "C"}, g.dependents("A"))

	require.True(t, g.remove("A", "C"))
	require.False(t, g.remove("A", "C"))
	require.False(t, g.remove("X", "Y"))
	require.Equal(t, []Type{"A", "B"}, sortedClosure(g, "A"))

	require.True(t, g.remove("A", "B"))
	require.Empty(t, g.edges())
	require.Empty(t, g.dependents("A"))
}
