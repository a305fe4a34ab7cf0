package dom

import (
	"sync/atomic"
)

// NodeMap maps tag identifiers to element nodes
type NodeMap map[TagID]*Node

// IDs returns the identifiers present in the map
func (m NodeMap) IDs() []TagID {
	ids := make([]TagID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	return ids
}

// Tree is a snapshot of a document's structure.
//
// A Tree built by a full parse has trustworthy offsets on every node
// (FullBuild). After an incremental update only the re-parsed region's
// offsets are current and callers must consult the range markers instead.
type Tree struct {
	Root      *Node
	NodeMap   NodeMap
	FullBuild bool
	Timestamp int64
}

// NewTree wraps root in a Tree with a freshly built node map
func NewTree(root *Node) *Tree {
	return &Tree{Root: root, NodeMap: BuildNodeMap(root)}
}

// BuildNodeMap walks root collecting every element that carries an identifier
func BuildNodeMap(root *Node) NodeMap {
	nodeMap := make(NodeMap)
	if root == nil {
		return nodeMap
	}
	root.Walk(func(n *Node) bool {
		if n.IsElement() && n.TagID != 0 {
			nodeMap[n.TagID] = n
		}
		return true
	})
	return nodeMap
}

// IDAllocator issues tag identifiers. Identifiers are never reused.
type IDAllocator struct {
	last atomic.Int64
}

// NewIDAllocator creates an allocator whose first identifier is 1
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// Allocate returns an identifier distinct from every one issued before
func (a *IDAllocator) Allocate() TagID {
	return TagID(a.last.Add(1))
}

// Last returns the most recently issued identifier
func (a *IDAllocator) Last() TagID {
	return TagID(a.last.Load())
}
