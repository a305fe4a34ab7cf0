package remote

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// containerTag wraps fragments that have more than one top-level node
const containerTag = "fragment-container"

// FromHTML parses rendered markup the way a browser would, implied html,
// head and body elements included, and returns the document element
func FromHTML(markup string) (*Node, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	for child := doc.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode {
			return convertHTML(child), nil
		}
	}
	return nil, ErrNoRoot
}

// FromFragment parses an HTML fragment (without html/body wrapper)
func FromFragment(markup string) (*Node, error) {
	if strings.TrimSpace(markup) == "" {
		return nil, fmt.Errorf("empty fragment")
	}

	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML fragment: %w", err)
	}

	// Filter out empty text nodes and extract from html/body wrapper if present
	var valid []*html.Node
	for _, node := range nodes {
		for _, extracted := range extractFromWrappers(node) {
			switch extracted.Type {
			case html.TextNode:
				if strings.TrimSpace(extracted.Data) != "" {
					valid = append(valid, extracted)
				}
			case html.ElementNode:
				valid = append(valid, extracted)
			}
		}
	}

	if len(valid) == 0 {
		return nil, ErrNoRoot
	}

	if len(valid) == 1 && valid[0].Type == html.ElementNode {
		return convertHTML(valid[0]), nil
	}

	// Multiple nodes, wrap in a virtual container
	container := &Node{Type: ElementNode, Tag: containerTag}
	for _, node := range valid {
		container.Children = append(container.Children, convertHTML(node))
	}
	return container, nil
}

// extractFromWrappers extracts content from html/body wrappers
func extractFromWrappers(node *html.Node) []*html.Node {
	if node.Type != html.ElementNode {
		return []*html.Node{node}
	}

	switch node.DataAtom {
	case atom.Html:
		var result []*html.Node
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.ElementNode && child.DataAtom == atom.Head {
				continue
			}
			result = append(result, extractFromWrappers(child)...)
		}
		return result
	case atom.Body:
		var result []*html.Node
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			result = append(result, child)
		}
		return result
	}
	return []*html.Node{node}
}

// convertHTML recursively converts an html.Node into the wire shape.
// Comments and doctypes are dropped.
func convertHTML(node *html.Node) *Node {
	if node.Type == html.TextNode {
		return &Node{Type: TextNode, Content: node.Data}
	}

	n := &Node{Type: ElementNode, Tag: node.Data}
	if len(node.Attr) > 0 {
		n.Attributes = make(map[string]string, len(node.Attr))
		for _, attr := range node.Attr {
			n.Attributes[attr.Key] = attr.Val
		}
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != html.ElementNode && child.Type != html.TextNode {
			continue
		}
		n.Children = append(n.Children, convertHTML(child))
	}
	return n
}
