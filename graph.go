package depcache

import (
	"cmp"
	"slices"
	"sync"
)

// graph is the directed type dependency graph. A key tagged with a type is
// recorded under every type reachable from it. Cycles and self-edges are allowed.
type graph struct {
	mu  sync.RWMutex
	adj map[Type]map[Type]struct{}
}

func newGraph() *graph {
	return &graph{adj: make(map[Type]map[Type]struct{})}
}

// add inserts from->to and reports whether it was new.
func (g *graph) add(from, to Type) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	out, ok := g.adj[from]
	if !ok {
		out = make(map[Type]struct{})
		g.adj[from] = out
	}
	if _, dup := out[to]; dup {
		return false
	}
	out[to] = struct{}{}
	return true
}

// remove deletes from->to and reports whether it existed. Closures already
// captured by tagged entries are not revisited.
func (g *graph) remove(from, to Type) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	out, ok := g.adj[from]
	if !ok {
		return false
	}
	if _, ok := out[to]; !ok {
		return false
	}
	delete(out, to)
	if len(out) == 0 {
		delete(g.adj, from)
	}
	return true
}

// closure returns every type reachable from roots, roots included, each once.
// Order is unspecified.
func (g *graph) closure(roots []Type) []Type {
	seen := make(map[Type]struct{}, len(roots))
	out := make([]Type, 0, len(roots))
	stack := make([]Type, 0, len(roots))
	for _, r := range roots {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		stack = append(stack, r)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, t)
		for next := range g.adj[t] {
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			stack = append(stack, next)
		}
	}
	return out
}

// dependents returns the direct successors of t, sorted.
func (g *graph) dependents(t Type) []Type {
	g.mu.RLock()
	out := make([]Type, 0, len(g.adj[t]))
	for to := range g.adj[t] {
		out = append(out, to)
	}
	g.mu.RUnlock()
	slices.Sort(out)
	return out
}

// edges returns all edges sorted by (From, To).
func (g *graph) edges() []Edge {
	g.mu.RLock()
	var out []Edge
	for from, tos := range g.adj {
		for to := range tos {
			out = append(out, Edge{From: from, To: to})
		}
	}
	g.mu.RUnlock()
	slices.SortFunc(out, func(a, b Edge) int {
		if c := cmp.Compare(a.From, b.From); c != 0 {
			return c
		}
		return cmp.Compare(a.To, b.To)
	})
	return out
}
