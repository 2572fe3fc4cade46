package dependency

import "sort"

// NodeID is the unique identifier for a node inside a graph.
type NodeID string

// Node is a vertex with its outgoing edges. Edges may repeat or be empty
// strings; empty edges are ignored.
type Node struct {
	ID    NodeID
	Label string
	Edges []NodeID
}

// Graph is a very small directed graph helper.
type Graph struct {
	nodes map[NodeID]*Node
	order []NodeID
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[NodeID]*Node)}
}

// AddNode adds (or replaces) a node in the graph.
func (g *Graph) AddNode(n Node) {
	if g.nodes == nil {
		g.nodes = make(map[NodeID]*Node)
	}
	if _, exists := g.nodes[n.ID]; !exists {
		g.order = append(g.order, n.ID)
	}
	// Copy to avoid external mutations
	copied := n
	copied.Edges = append([]NodeID(nil), n.Edges...)
	g.nodes[n.ID] = &copied
}

// Get returns a pointer to the stored node or nil if it does not exist.
func (g *Graph) Get(id NodeID) *Node {
	return g.nodes[id]
}

// Successors returns the non-empty outgoing edges of id.
func (g *Graph) Successors(id NodeID) []NodeID {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	var res []NodeID
	for _, e := range n.Edges {
		if e != "" {
			res = append(res, e)
		}
	}
	return res
}

// Edge is a directed edge. Index is its position in the edges of From.
type Edge struct {
	From  NodeID
	To    NodeID
	Index int
}

// Dangling returns the edges pointing at nodes that do not exist.
func (g *Graph) Dangling() []Edge {
	var res []Edge
	for _, nid := range g.order {
		for i, to := range g.nodes[nid].Edges {
			if to == "" {
				continue
			}
			if _, ok := g.nodes[to]; !ok {
				res = append(res, Edge{From: nid, To: to, Index: i})
			}
		}
	}
	return res
}

// FindCycle returns the nodes of one cycle, first node repeated at the end,
// or nil when the graph is acyclic.
func (g *Graph) FindCycle() []NodeID {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[NodeID]int, len(g.nodes))
	var stack []NodeID
	var cycle []NodeID

	var visit func(id NodeID) bool
	visit = func(id NodeID) bool {
		state[id] = visiting
		stack = append(stack, id)
		for _, next := range g.Successors(id) {
			if _, ok := g.nodes[next]; !ok {
				continue
			}
			switch state[next] {
			case visiting:
				for i, s := range stack {
					if s == next {
						cycle = append(append([]NodeID{}, stack[i:]...), next)
						return true
					}
				}
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for _, id := range g.order {
		if state[id] == unvisited && visit(id) {
			return cycle
		}
	}
	return nil
}

// Reachable returns every node reachable from start, start included, sorted.
func (g *Graph) Reachable(start NodeID) []NodeID {
	if _, ok := g.nodes[start]; !ok {
		return nil
	}
	seen := map[NodeID]bool{start: true}
	queue := []NodeID{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range g.Successors(id) {
			if _, ok := g.nodes[next]; ok && !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	res := make([]NodeID, 0, len(seen))
	for id := range seen {
		res = append(res, id)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}
