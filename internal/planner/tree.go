package planner

import (
	"github.com/Garsondee/Flag-Sense/internal/arena"
	"github.com/paulmach/orb"
)

// Node is one accepted position in the planner tree. Parent is the index of the
// node it was grown from, or -1 for the root.
type Node struct {
	Pos    orb.Point
	Parent int
}

// Tree is the node arena built by one Plan call. A node's parent always has a
// smaller index than the node itself, so index 0 is the root.
type Tree struct {
	Nodes []Node
}

// Len returns the number of nodes.
func (t Tree) Len() int { return len(t.Nodes) }

// Depth returns the number of parent hops from node i to the root.
func (t Tree) Depth(i int) int {
	d := 0
	for n := t.Nodes[i].Parent; n >= 0; n = t.Nodes[n].Parent {
		d++
	}
	return d
}

// PathTo returns the positions from the root to node i.
func (t Tree) PathTo(i int) []orb.Point {
	var path []orb.Point
	for n := i; n >= 0; n = t.Nodes[n].Parent {
		path = append(path, t.Nodes[n].Pos)
	}
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}

// Closest returns the index of the node nearest p, or -1 for an empty tree.
// Ties go to the older node.
func (t Tree) Closest(p orb.Point) int {
	best, bestD := -1, 0.0
	for i, n := range t.Nodes {
		if d := arena.Dist(n.Pos, p); best < 0 || d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

// Edges returns one segment per non-root node, from parent to child.
func (t Tree) Edges() []arena.Segment {
	if len(t.Nodes) < 2 {
		return nil
	}
	edges := make([]arena.Segment, 0, len(t.Nodes)-1)
	for _, n := range t.Nodes {
		if n.Parent < 0 {
			continue
		}
		edges = append(edges, arena.Segment{A: t.Nodes[n.Parent].Pos, B: n.Pos})
	}
	return edges
}

// Clone returns a deep copy, safe to hand to another goroutine.
func (t Tree) Clone() Tree {
	return Tree{Nodes: append([]Node(nil), t.Nodes...)}
}
