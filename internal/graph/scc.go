// Package graph holds small directed-graph utilities shared by the reasoner.
package graph

import "slices"

// Directed is a directed graph over comparable node keys. Nodes keep their
// insertion order so every traversal is deterministic.
type Directed[N comparable] struct {
	index map[N]int
	nodes []N
	adj   [][]int
}

// NewDirected creates an empty graph.
func NewDirected[N comparable]() *Directed[N] {
	return &Directed[N]{index: make(map[N]int)}
}

// AddNode adds n if it is not present yet and returns its dense index.
func (g *Directed[N]) AddNode(n N) int {
	if i, ok := g.index[n]; ok {
		return i
	}
	i := len(g.nodes)
	g.index[n] = i
	g.nodes = append(g.nodes, n)
	g.adj = append(g.adj, nil)
	return i
}

// AddEdge adds the edge from -> to, creating missing nodes. Parallel edges
// are kept; they do not change the components.
func (g *Directed[N]) AddEdge(from, to N) {
	f := g.AddNode(from)
	t := g.AddNode(to)
	g.adj[f] = append(g.adj[f], t)
}

// Nodes returns the nodes in insertion order.
func (g *Directed[N]) Nodes() []N {
	return g.nodes
}

// Len returns the number of nodes.
func (g *Directed[N]) Len() int {
	return len(g.nodes)
}

// Successors returns the direct successors of n.
func (g *Directed[N]) Successors(n N) []N {
	i, ok := g.index[n]
	if !ok {
		return nil
	}
	out := make([]N, 0, len(g.adj[i]))
	for _, j := range g.adj[i] {
		out = append(out, g.nodes[j])
	}
	return out
}

// Components is the result of an SCC decomposition.
type Components[N comparable] struct {
	// Members lists the nodes of each component in topological order of
	// the condensation: every edge between different components goes from
	// a lower to a higher component index.
	Members [][]N
	// Of maps each node to its component index.
	Of map[N]int
}

// StronglyConnected computes the strongly connected components of g with
// Tarjan's algorithm. The traversal is iterative, so deep dependency chains
// do not grow the goroutine stack.
func StronglyConnected[N comparable](g *Directed[N]) Components[N] {
	n := len(g.nodes)
	const unvisited = -1

	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = unvisited
	}

	var (
		stack   []int
		counter int
		// Tarjan emits components sinks first; reversed at the end.
		emitted [][]int
	)

	type frame struct {
		node int
		next int
	}

	for root := 0; root < n; root++ {
		if index[root] != unvisited {
			continue
		}
		call := []frame{{node: root}}
		index[root], low[root] = counter, counter
		counter++
		stack = append(stack, root)
		onStack[root] = true

		for len(call) > 0 {
			top := &call[len(call)-1]
			v := top.node
			if top.next < len(g.adj[v]) {
				w := g.adj[v][top.next]
				top.next++
				switch {
				case index[w] == unvisited:
					index[w], low[w] = counter, counter
					counter++
					stack = append(stack, w)
					onStack[w] = true
					call = append(call, frame{node: w})
				case onStack[w]:
					low[v] = min(low[v], index[w])
				}
				continue
			}

			if low[v] == index[v] {
				var comp []int
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					comp = append(comp, w)
					if w == v {
						break
					}
				}
				emitted = append(emitted, comp)
			}
			call = call[:len(call)-1]
			if len(call) > 0 {
				parent := call[len(call)-1].node
				low[parent] = min(low[parent], low[v])
			}
		}
	}

	out := Components[N]{
		Members: make([][]N, len(emitted)),
		Of:      make(map[N]int, n),
	}
	for i := range emitted {
		comp := emitted[len(emitted)-1-i]
		members := make([]N, len(comp))
		// Keep members in insertion order.
		slices.Sort(comp)
		for j, idx := range comp {
			members[j] = g.nodes[idx]
			out.Of[g.nodes[idx]] = i
		}
		out.Members[i] = members
	}
	return out
}
