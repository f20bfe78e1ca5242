// Package searchtree implements the arena-addressed node tree that
// actors expand during beam search. Nodes are addressed by integer id
// rather than linked by pointer, so the tree has no parent/child
// ownership cycles and dumps trivially for debugging.
package searchtree

import (
	"fmt"
	"sync"

	"github.com/appdotbuild/agent/pkg/llm"
	"github.com/appdotbuild/agent/pkg/workspace"
)

// NodeID addresses a node within a Tree's arena.
type NodeID int

// NoParent is the parent id of the root node.
const NoParent NodeID = -1

// BaseData is the payload every node carries.
type BaseData struct {
	// Workspace is this node's own clone, independent of its parent's.
	Workspace workspace.Workspace

	// Messages is the ordered list of conversation messages produced at
	// this node (not cumulative — concatenate along the trajectory for
	// the full history).
	Messages []llm.Message

	// Files is the delta written at this node: path -> content. Not
	// cumulative; merge along the trajectory (last writer wins) for the
	// full working set.
	Files map[string]string
}

// Node is a vertex of the search tree.
type Node struct {
	ID       NodeID
	Parent   NodeID
	Children []NodeID
	Data     BaseData
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Tree is an arena of nodes, addressed by NodeID, never by pointer
// graph. Safe for concurrent expansion of distinct frontier nodes;
// appending a child takes the tree-wide lock briefly.
type Tree struct {
	mu    sync.Mutex
	nodes []*Node
}

// New creates a tree with a single root node holding the given payload.
func New(root BaseData) *Tree {
	t := &Tree{}
	t.nodes = append(t.nodes, &Node{ID: 0, Parent: NoParent, Data: root})
	return t
}

// Root returns the tree's root node id. Always 0.
func (t *Tree) Root() NodeID { return 0 }

// Get returns the node for id. Panics on an invalid id — callers only
// ever hold ids this tree itself produced.
func (t *Tree) Get(id NodeID) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(id) < 0 || int(id) >= len(t.nodes) {
		panic(fmt.Sprintf("searchtree: invalid node id %d", id))
	}
	return t.nodes[id]
}

// AddChild appends a new node as a child of parent and returns its id.
func (t *Tree) AddChild(parent NodeID, data BaseData) NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := NodeID(len(t.nodes))
	node := &Node{ID: id, Parent: parent, Data: data}
	t.nodes = append(t.nodes, node)
	t.nodes[parent].Children = append(t.nodes[parent].Children, id)
	return id
}

// Leaves returns the ids of all current leaf nodes, in insertion order.
func (t *Tree) Leaves() []NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()

	var leaves []NodeID
	for _, n := range t.nodes {
		if n.IsLeaf() {
			leaves = append(leaves, n.ID)
		}
	}
	return leaves
}

// Trajectory returns the sequence of node ids from the root to id,
// inclusive, root first.
func (t *Tree) Trajectory(id NodeID) []NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()

	var rev []NodeID
	cur := id
	for {
		rev = append(rev, cur)
		parent := t.nodes[cur].Parent
		if parent == NoParent {
			break
		}
		cur = parent
	}
	// reverse in place
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// Files merges the file deltas along the trajectory ending at id; later
// nodes (closer to id) win on path conflicts.
func (t *Tree) Files(id NodeID) map[string]string {
	traj := t.Trajectory(id)
	out := make(map[string]string)
	for _, nid := range traj {
		n := t.Get(nid)
		for path, content := range n.Data.Files {
			out[path] = content
		}
	}
	return out
}

// Messages concatenates the message lists along the trajectory ending
// at id, root first.
func (t *Tree) Messages(id NodeID) []llm.Message {
	traj := t.Trajectory(id)
	var out []llm.Message
	for _, nid := range traj {
		n := t.Get(nid)
		out = append(out, n.Data.Messages...)
	}
	return out
}

// Size returns the number of nodes currently in the arena.
func (t *Tree) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.nodes)
}
