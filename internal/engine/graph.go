package engine

import "container/heap"

// depGraph orders named nodes so every edge's source precedes its target.
// Node rank (insertion order) breaks ties between ready nodes, which keeps the
// output deterministic and as close to contribution order as the edges allow.
type depGraph struct {
	names    []string
	index    map[string]int
	outgoing [][]int
	indeg    []int
	seen     map[[2]int]bool
}

func newDepGraph(names []string) *depGraph {
	g := &depGraph{
		names:    names,
		index:    make(map[string]int, len(names)),
		outgoing: make([][]int, len(names)),
		indeg:    make([]int, len(names)),
		seen:     make(map[[2]int]bool),
	}
	for i, n := range names {
		g.index[n] = i
	}
	return g
}

// addEdge records that before must precede after. Unknown names are ignored.
func (g *depGraph) addEdge(before, after string) {
	u, okU := g.index[before]
	v, okV := g.index[after]
	if !okU || !okV {
		return
	}
	e := [2]int{u, v}
	if g.seen[e] {
		return
	}
	g.seen[e] = true
	g.outgoing[u] = append(g.outgoing[u], v)
	g.indeg[v]++
}

type rankHeap []int

func (h rankHeap) Len() int           { return len(h) }
func (h rankHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h rankHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *rankHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *rankHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// sort returns the topological order, or nil and one cycle witness
// (first node repeated at the end) when the graph is cyclic.
func (g *depGraph) sort() ([]string, []string) {
	indeg := make([]int, len(g.indeg))
	copy(indeg, g.indeg)

	ready := &rankHeap{}
	for i, d := range indeg {
		if d == 0 {
			heap.Push(ready, i)
		}
	}
	out := make([]string, 0, len(g.names))
	for ready.Len() > 0 {
		u := heap.Pop(ready).(int)
		out = append(out, g.names[u])
		for _, v := range g.outgoing[u] {
			indeg[v]--
			if indeg[v] == 0 {
				heap.Push(ready, v)
			}
		}
	}
	if len(out) == len(g.names) {
		return out, nil
	}
	return nil, g.findCycle()
}

func (g *depGraph) findCycle() []string {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(g.names))
	parent := make([]int, len(g.names))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, v := range g.outgoing[u] {
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				// back edge u -> v closes v ... u -> v
				cycle = append(cycle, v)
				for cur := u; cur != -1 && cur != v; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}
	for i := range g.names {
		if color[i] == white && dfs(i) {
			break
		}
	}

	out := make([]string, 0, len(cycle))
	for i := len(cycle) - 1; i >= 0; i-- {
		out = append(out, g.names[cycle[i]])
	}
	return out
}
