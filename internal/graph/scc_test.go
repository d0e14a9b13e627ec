package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStronglyConnected_Cycle(t *testing.T) {
	g := NewDirected[string]()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("c", "a")
	g.AddEdge("c", "d")

	comps := StronglyConnected(g)
	require.Len(t, comps.Members, 2)
	assert.Equal(t, []string{"a", "b", "c"}, comps.Members[0])
	assert.Equal(t, []string{"d"}, comps.Members[1])
	assert.Equal(t, comps.Of["a"], comps.Of["c"])
	assert.NotEqual(t, comps.Of["a"], comps.Of["d"])
}

func TestStronglyConnected_TopologicalOrder(t *testing.T) {
	g := NewDirected[int]()
	// Insert sinks first so insertion order disagrees with the edges.
	g.AddNode(4)
	g.AddNode(3)
	g.AddEdge(1, 2)
	g.AddEdge(2, 3)
	g.AddEdge(1, 4)
	g.AddEdge(4, 3)

	comps := StronglyConnected(g)
	require.Len(t, comps.Members, 4)
	for _, from := range g.Nodes() {
		for _, to := range g.Successors(from) {
			assert.Less(t, comps.Of[from], comps.Of[to], "edge %d -> %d", from, to)
		}
	}
}

func TestStronglyConnected_SelfLoopAndIsolated(t *testing.T) {
	g := NewDirected[string]()
	g.AddEdge("p", "p")
	g.AddNode("q")

	comps := StronglyConnected(g)
	assert.Len(t, comps.Members, 2)
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, []string{"p"}, g.Successors("p"))
	assert.Nil(t, g.Successors("missing"))
}

func TestStronglyConnected_DeepChain(t *testing.T) {
	g := NewDirected[int]()
	const n = 100000
	for i := 0; i < n; i++ {
		g.AddEdge(i, i+1)
	}
	comps := StronglyConnected(g)
	assert.Len(t, comps.Members, n+1)
	assert.Equal(t, 0, comps.Of[0])
	assert.Equal(t, n, comps.Of[n])
}

func TestStronglyConnected_Empty(t *testing.T) {
	comps := StronglyConnected(NewDirected[string]())
	assert.Empty(t, comps.Members)
	assert.Empty(t, comps.Of)
}
