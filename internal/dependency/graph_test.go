package dependency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(nodes ...Node) *Graph {
	g := New()
	for _, n := range nodes {
		g.AddNode(n)
	}
	return g
}

func TestGraph_AddNodeCopies(t *testing.T) {
	edges := []NodeID{"b"}
	g := build(Node{ID: "a", Edges: edges})
	edges[0] = "mutated"

	assert.Equal(t, []NodeID{"b"}, g.Successors("a"))
	assert.Nil(t, g.Get("missing"))
}

func TestGraph_SuccessorsSkipEmptyEdges(t *testing.T) {
	g := build(Node{ID: "a", Edges: []NodeID{"", "b", ""}}, Node{ID: "b"})
	assert.Equal(t, []NodeID{"b"}, g.Successors("a"))
}

func TestGraph_Dangling(t *testing.T) {
	g := build(
		Node{ID: "probe", Edges: []NodeID{"plan", "missing"}},
		Node{ID: "plan", Edges: []NodeID{"apply"}},
	)
	assert.Equal(t, []Edge{
		{From: "probe", To: "missing", Index: 1},
		{From: "plan", To: "apply", Index: 0},
	}, g.Dangling())
}

func TestGraph_FindCycle(t *testing.T) {
	tests := []struct {
		name  string
		nodes []Node
		cycle bool
	}{
		{
			name: "linear",
			nodes: []Node{
				{ID: "a", Edges: []NodeID{"b"}},
				{ID: "b", Edges: []NodeID{"c"}},
				{ID: "c"},
			},
		},
		{
			name: "diamond",
			nodes: []Node{
				{ID: "a", Edges: []NodeID{"b", "c"}},
				{ID: "b", Edges: []NodeID{"d"}},
				{ID: "c", Edges: []NodeID{"d"}},
				{ID: "d"},
			},
		},
		{
			name:  "self loop",
			nodes: []Node{{ID: "a", Edges: []NodeID{"a"}}},
			cycle: true,
		},
		{
			name: "back edge",
			nodes: []Node{
				{ID: "a", Edges: []NodeID{"b"}},
				{ID: "b", Edges: []NodeID{"c"}},
				{ID: "c", Edges: []NodeID{"", "a"}},
			},
			cycle: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cycle := build(tt.nodes...).FindCycle()
			if !tt.cycle {
				assert.Nil(t, cycle)
				return
			}
			require.NotEmpty(t, cycle)
			assert.Equal(t, cycle[0], cycle[len(cycle)-1])
		})
	}
}

func TestGraph_Reachable(t *testing.T) {
	g := build(
		Node{ID: "start", Edges: []NodeID{"ok", "fail"}},
		Node{ID: "ok"},
		Node{ID: "fail", Edges: []NodeID{"missing"}},
		Node{ID: "orphan"},
	)
	assert.Equal(t, []NodeID{"fail", "ok", "start"}, g.Reachable("start"))
	assert.Nil(t, g.Reachable("missing"))
}
