package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// IDResolver picks the identifier for a freshly opened element. At call
// time the node's Tag, Attributes, Start, StartPos and Parent chain are set.
// Returning 0 asks the builder to allocate a new identifier.
type IDResolver func(n *Node) TagID

// ParseOptions positions the parsed text inside a larger document
type ParseOptions struct {
	StartOffset int      // absolute offset of text[0]
	StartPos    Position // position of text[0]
	Resolve     IDResolver
}

// Builder turns markup into a Tree whose nodes carry absolute byte offsets
// and line/column positions. It streams tokens from the x/net/html tokenizer
// and keeps its own element stack, so offsets map one to one onto the source.
type Builder struct {
	ids *IDAllocator
}

// NewBuilder creates a builder allocating identifiers from ids
func NewBuilder(ids *IDAllocator) *Builder {
	if ids == nil {
		ids = NewIDAllocator()
	}
	return &Builder{ids: ids}
}

// Parse builds a tree from text. It fails with a *ParseError when the markup
// is not well-formed: unclosed elements, stray end tags, a truncated tag, or
// more than one top-level element.
func (b *Builder) Parse(text string, opts ParseOptions) (*Tree, error) {
	s := &parseState{
		builder:   b,
		text:      text,
		opts:      opts,
		z:         html.NewTokenizer(strings.NewReader(text)),
		positions: positionTracker{text: text, base: opts.StartPos, pos: opts.StartPos},
		nodeMap:   make(NodeMap),
	}
	return s.run()
}

type parseState struct {
	builder   *Builder
	text      string
	opts      ParseOptions
	z         *html.Tokenizer
	offset    int
	positions positionTracker
	stack     []*Node
	root      *Node
	nodeMap   NodeMap
}

func (s *parseState) run() (*Tree, error) {
	for {
		tt := s.z.Next()
		rawLen := len(s.z.Raw())
		start := s.offset
		end := start + rawLen
		s.offset = end

		switch tt {
		case html.ErrorToken:
			if err := s.z.Err(); err != io.EOF {
				return nil, s.errorAt(start, err.Error())
			}
			if rawLen > 0 || end < len(s.text) {
				return nil, s.errorAt(start, "unexpected end of input inside a tag")
			}
			return s.finish()

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := s.z.TagName()
			tag := string(name)
			attrs := make(map[string]string)
			for hasAttr {
				k, v, more := s.z.TagAttr()
				if _, dup := attrs[string(k)]; !dup {
					attrs[string(k)] = string(v)
				}
				hasAttr = more
			}
			if err := s.openElement(tag, attrs, start, end, tt == html.SelfClosingTagToken); err != nil {
				return nil, err
			}

		case html.EndTagToken:
			name, _ := s.z.TagName()
			if err := s.closeElement(string(name), start, end); err != nil {
				return nil, err
			}

		case html.TextToken:
			s.addText(string(s.z.Text()), start, end)

		default:
			// comments and doctypes carry no structure
		}
	}
}

func (s *parseState) top() *Node {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

func (s *parseState) pop() {
	s.stack = s.stack[:len(s.stack)-1]
}

func (s *parseState) openElement(tag string, attrs map[string]string, start, end int, selfClosing bool) error {
	for top := s.top(); top != nil && closedBy(top.Tag, tag); top = s.top() {
		s.closeNode(top, start)
		s.pop()
	}

	parent := s.top()
	if parent == nil && s.root != nil {
		return s.errorAt(start, fmt.Sprintf("unexpected <%s> after the root element", tag))
	}

	n := &Node{
		Tag:        tag,
		Attributes: attrs,
		Start:      s.abs(start),
		OpenEnd:    s.abs(end),
		StartPos:   s.positions.at(start),
		Parent:     parent,
	}
	n.TagID = s.resolve(n)
	s.nodeMap[n.TagID] = n

	if parent != nil {
		parent.Children = append(parent.Children, n)
	} else {
		s.root = n
	}

	if selfClosing || IsVoidElement(tag) {
		s.closeNode(n, end)
		return nil
	}
	s.stack = append(s.stack, n)
	return nil
}

func (s *parseState) closeElement(tag string, start, end int) error {
	if IsVoidElement(tag) {
		return nil
	}

	i := len(s.stack) - 1
	for i >= 0 && s.stack[i].Tag != tag {
		i--
	}
	if i < 0 {
		return s.errorAt(start, fmt.Sprintf("unexpected closing tag </%s>", tag))
	}

	for j := len(s.stack) - 1; j > i; j-- {
		open := s.stack[j]
		if !hasOptionalEnd(open.Tag) {
			return s.errorAt(start, fmt.Sprintf("<%s> is not closed before </%s>", open.Tag, tag))
		}
		s.closeNode(open, start)
	}
	s.closeNode(s.stack[i], end)
	s.stack = s.stack[:i]
	return nil
}

func (s *parseState) addText(content string, start, end int) {
	parent := s.top()
	if parent == nil {
		// text outside the root element is not part of the tree
		return
	}

	if n := len(parent.Children); n > 0 && parent.Children[n-1].IsText() {
		last := parent.Children[n-1]
		last.Content += content
		last.End = s.abs(end)
		last.EndPos = s.positions.at(end)
		last.Update()
		return
	}

	text := &Node{
		Content:  content,
		Start:    s.abs(start),
		StartPos: s.positions.at(start),
		Parent:   parent,
	}
	text.End = s.abs(end)
	text.EndPos = s.positions.at(end)
	text.Update()
	parent.Children = append(parent.Children, text)
}

func (s *parseState) closeNode(n *Node, at int) {
	n.End = s.abs(at)
	n.EndPos = s.positions.at(at)
	n.Update()
}

func (s *parseState) finish() (*Tree, error) {
	for top := s.top(); top != nil; top = s.top() {
		if !hasOptionalEnd(top.Tag) {
			return nil, s.errorAt(top.Start-s.opts.StartOffset, fmt.Sprintf("<%s> is never closed", top.Tag))
		}
		s.closeNode(top, len(s.text))
		s.pop()
	}

	if s.root == nil {
		return nil, s.errorAt(len(s.text), "no root element")
	}

	s.root.Walk(func(n *Node) bool {
		if n.IsText() {
			n.TextID = TextNodeID(n)
		}
		return true
	})

	return &Tree{Root: s.root, NodeMap: s.nodeMap}, nil
}

func (s *parseState) resolve(n *Node) TagID {
	var id TagID
	if s.opts.Resolve != nil {
		id = s.opts.Resolve(n)
	}
	if id == 0 {
		return s.builder.ids.Allocate()
	}
	// identifiers are unique within one tree
	if _, taken := s.nodeMap[id]; taken {
		return s.builder.ids.Allocate()
	}
	return id
}

func (s *parseState) abs(offset int) int {
	return s.opts.StartOffset + offset
}

func (s *parseState) errorAt(offset int, msg string) error {
	return &ParseError{
		Offset: s.abs(offset),
		Pos:    s.positions.at(offset),
		Msg:    msg,
	}
}

// positionTracker converts increasing offsets into positions without
// rescanning the text from the start each time
type positionTracker struct {
	text   string
	base   Position
	offset int
	pos    Position
}

func (t *positionTracker) at(offset int) Position {
	if offset < t.offset {
		t.offset = 0
		t.pos = t.base
	}
	for t.offset < offset && t.offset < len(t.text) {
		if t.text[t.offset] == '\n' {
			t.pos.Line++
			t.pos.Ch = 0
		} else {
			t.pos.Ch++
		}
		t.offset++
	}
	return t.pos
}

// PositionAt returns the position of offset within text
func PositionAt(text string, offset int) Position {
	t := positionTracker{text: text}
	return t.at(offset)
}
