// Package remote converts trees reported by a rendering runtime into the
// node shape used by the sync engine.
package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/livefir/livesync/internal/dom"
)

// Node kinds on the wire
const (
	ElementNode = "element"
	TextNode    = "text"
)

// ErrNoRoot is returned when a reported tree has no element to anchor on
var ErrNoRoot = errors.New("remote tree has no root element")

// Node is one node of a tree as serialized by the runtime
type Node struct {
	Type       string            `json:"type"`
	Tag        string            `json:"tag,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Content    string            `json:"content,omitempty"`
	Children   []*Node           `json:"children,omitempty"`
}

// Decode reads a serialized tree
func Decode(data []byte) (*Node, error) {
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("failed to decode remote tree: %w", err)
	}
	return &n, nil
}

// Convert turns a reported tree into a local tree. The identifier of each
// element is read from, and then removed from, its attrName attribute. When
// an element carries rootID it becomes the root, so wrappers the runtime
// added around the document are dropped.
func Convert(rn *Node, attrName string, rootID dom.TagID) (*dom.Tree, error) {
	if rn == nil || rn.Type != ElementNode {
		return nil, ErrNoRoot
	}

	root := convertNode(rn, nil, attrName)
	nodeMap := dom.BuildNodeMap(root)

	if rootID != 0 {
		if n, ok := nodeMap[rootID]; ok && n != root {
			n.Parent = nil
			root = n
			nodeMap = dom.BuildNodeMap(root)
		}
	}

	root.UpdateAll()
	return &dom.Tree{Root: root, NodeMap: nodeMap}, nil
}

func convertNode(rn *Node, parent *dom.Node, attrName string) *dom.Node {
	if rn.Type == TextNode {
		return &dom.Node{Content: rn.Content, Parent: parent}
	}

	n := &dom.Node{
		Tag:        strings.ToLower(rn.Tag),
		Attributes: make(map[string]string, len(rn.Attributes)),
		Parent:     parent,
	}
	for k, v := range rn.Attributes {
		if k == attrName {
			if id, err := strconv.Atoi(v); err == nil {
				n.TagID = dom.TagID(id)
			}
			continue
		}
		n.Attributes[k] = v
	}

	for _, child := range rn.Children {
		if child.Type != ElementNode && child.Type != TextNode {
			continue
		}
		n.Children = append(n.Children, convertNode(child, n, attrName))
	}

	// text identifiers depend on the preceding sibling's key
	for _, child := range n.Children {
		if child.IsText() {
			child.TextID = dom.TextNodeID(child)
		}
	}
	return n
}
