package dom

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TagID names one logical element across successive document states
type TagID int

// String returns the decimal form used in injected attributes
func (id TagID) String() string {
	return strconv.Itoa(int(id))
}

// Position is a zero-based line/column location. Ch counts bytes.
type Position struct {
	Line int `json:"line"`
	Ch   int `json:"ch"`
}

// Less reports whether p comes before o
func (p Position) Less(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Ch < o.Ch
}

// Node is one element or text run of a parsed document.
//
// Parent is a non-owning back reference used for ancestor walks; a node is
// owned by exactly one Children slice.
type Node struct {
	Tag        string            // empty for text nodes
	Attributes map[string]string // element attributes
	Content    string            // text content (text nodes only)

	TagID  TagID  // element identifier
	TextID string // text node identifier, see TextNodeID

	Start    int // offset of '<' (or first text byte)
	OpenEnd  int // offset just past the open tag's '>'
	End      int // offset just past the node
	StartPos Position
	EndPos   Position

	Parent   *Node
	Children []*Node

	AttributeSignature string
	ChildSignature     string
	Signature          string
}

// IsElement returns true if this is an element node
func (n *Node) IsElement() bool {
	return n.Tag != ""
}

// IsText returns true if this is a text node
func (n *Node) IsText() bool {
	return n.Tag == ""
}

// Key returns the identifier as a string for either kind of node
func (n *Node) Key() string {
	if n.IsText() {
		return n.TextID
	}
	return n.TagID.String()
}

// Update recomputes the signatures of n from its attributes and its
// children's signatures. Children must already be up to date.
func (n *Node) Update() {
	if n.IsText() {
		n.Signature = hash(n.Content)
		return
	}

	keys := make([]string, 0, len(n.Attributes))
	for k := range n.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var attrs strings.Builder
	for _, k := range keys {
		attrs.WriteString(k)
		attrs.WriteByte('=')
		attrs.WriteString(n.Attributes[k])
		attrs.WriteByte(0)
	}
	n.AttributeSignature = hash(attrs.String())

	var children, subtree strings.Builder
	for _, child := range n.Children {
		if child.IsElement() {
			fmt.Fprintf(&children, "/%d", child.TagID)
			fmt.Fprintf(&subtree, "/%d:%s", child.TagID, child.Signature)
		} else {
			children.WriteString("/t:" + child.Signature)
			subtree.WriteString("/t:" + child.Signature)
		}
	}
	n.ChildSignature = hash(children.String())
	n.Signature = hash(n.Tag + ":" + n.AttributeSignature + ":" + subtree.String())
}

// UpdateAll recomputes signatures for the whole subtree rooted at n
func (n *Node) UpdateAll() {
	for _, child := range n.Children {
		child.UpdateAll()
	}
	n.Update()
}

// Walk visits n and its descendants in document order until fn returns false
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, child := range n.Children {
		if !child.Walk(fn) {
			return false
		}
	}
	return true
}

// ChildIndex returns the index of child among n's children by identity, or -1
func (n *Node) ChildIndex(child *Node) int {
	for i, c := range n.Children {
		if c == child {
			return i
		}
	}
	return -1
}

// HasAncestorWithID reports whether any ancestor of n carries id
func (n *Node) HasAncestorWithID(id TagID) bool {
	for a := n.Parent; a != nil; a = a.Parent {
		if a.TagID == id {
			return true
		}
	}
	return false
}

// GetTextContent returns the concatenated text content of the node and its children
func (n *Node) GetTextContent() string {
	if n.IsText() {
		return n.Content
	}

	var text strings.Builder
	for _, child := range n.Children {
		text.WriteString(child.GetTextContent())
	}
	return text.String()
}

// GetPath returns a path string for the node (for debugging and identification)
func (n *Node) GetPath() string {
	name := n.Tag
	if n.IsText() {
		name = "text()"
	}
	if n.Parent == nil {
		return name
	}

	parentPath := n.Parent.GetPath()
	if n.IsText() {
		return parentPath + "/" + name
	}

	// Position among siblings with the same tag
	position := 0
	for _, sibling := range n.Parent.Children {
		if sibling == n {
			break
		}
		if sibling.Tag == n.Tag {
			position++
		}
	}

	if position > 0 {
		return fmt.Sprintf("%s/%s[%d]", parentPath, name, position+1)
	}
	return parentPath + "/" + name
}

// TextNodeID derives an identifier for a text node from its position among
// its siblings: "<parent>.0" when it is the first child, otherwise the
// previous sibling's identifier with a "t" suffix.
func TextNodeID(n *Node) string {
	parent := n.Parent
	if parent == nil {
		return ""
	}
	i := parent.ChildIndex(n)
	if i <= 0 {
		return parent.TagID.String() + ".0"
	}
	return parent.Children[i-1].Key() + "t"
}

func hash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
