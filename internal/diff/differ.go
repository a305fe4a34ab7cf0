package diff

import (
	"sort"

	"github.com/livefir/livesync/internal/dom"
)

// Differ compares two trees whose elements carry stable tag identifiers and
// produces the edits that turn the old one into the new one.
//
// Edits for one parent are ordered: text deletions, element insertions and
// moves, then text insertions and replacements. Text deletions are addressed
// against the old children; insertions against the new ones. Element
// deletions come last of all, so elements kept from a deleted subtree have
// already been moved out when it goes.
type Differ struct{}

// NewDiffer creates a differ
func NewDiffer() *Differ {
	return &Differ{}
}

// Diff returns the edits turning oldRoot into newRoot. A nil oldRoot yields
// the insertion of newRoot.
func (d *Differ) Diff(oldRoot, newRoot *dom.Node) []Edit {
	s := &diffState{
		oldMap: dom.BuildNodeMap(oldRoot),
		newMap: dom.BuildNodeMap(newRoot),
	}

	switch {
	case oldRoot == nil && newRoot == nil:
	case oldRoot == nil:
		s.insertSubtree(newRoot, parentID(newRoot), placementOf(newRoot))
	case newRoot == nil:
		s.deleteElement(oldRoot)
	case oldRoot.TagID != newRoot.TagID || oldRoot.Tag != newRoot.Tag:
		s.deleteElement(oldRoot)
		s.insertSubtree(newRoot, parentID(newRoot), placementOf(newRoot))
	default:
		s.diffNode(oldRoot, newRoot)
	}
	return append(s.edits, s.deletes...)
}

type diffState struct {
	oldMap dom.NodeMap
	newMap dom.NodeMap
	edits  []Edit

	// deletes are held back until every move has been emitted
	deletes []Edit
}

type placement struct {
	afterID    dom.TagID
	beforeID   dom.TagID
	firstChild bool
	lastChild  bool
}

func (p placement) apply(e *Edit) {
	e.AfterID = p.afterID
	e.BeforeID = p.beforeID
	e.FirstChild = p.firstChild
	e.LastChild = p.lastChild
}

var appendChild = placement{lastChild: true}

func (s *diffState) emit(e Edit) {
	s.edits = append(s.edits, e)
}

func (s *diffState) diffNode(o, n *dom.Node) {
	if o.Signature != "" && o.Signature == n.Signature {
		return
	}

	s.diffAttributes(o, n)
	if o.ChildSignature == "" || o.ChildSignature != n.ChildSignature {
		s.diffChildren(o, n)
	}

	for _, child := range n.Children {
		if !child.IsElement() {
			continue
		}
		old, ok := s.oldMap[child.TagID]
		if !ok {
			continue
		}
		if old.Tag != child.Tag {
			// handled as delete plus insert in diffChildren
			continue
		}
		s.diffNode(old, child)
	}
}

func (s *diffState) diffAttributes(o, n *dom.Node) {
	if o.AttributeSignature != "" && o.AttributeSignature == n.AttributeSignature {
		return
	}

	for _, key := range sortedKeys(n.Attributes) {
		value := n.Attributes[key]
		old, exists := o.Attributes[key]
		switch {
		case !exists:
			s.emit(Edit{Type: AttrAdd, TagID: n.TagID, Attribute: key, Value: value})
		case old != value:
			s.emit(Edit{Type: AttrChange, TagID: n.TagID, Attribute: key, Value: value})
		}
	}
	for _, key := range sortedKeys(o.Attributes) {
		if _, exists := n.Attributes[key]; !exists {
			s.emit(Edit{Type: AttrDelete, TagID: n.TagID, Attribute: key})
		}
	}
}

func (s *diffState) diffChildren(o, n *dom.Node) {
	id := n.TagID
	oldEls := elementChildren(o)
	newEls := elementChildren(n)
	oldText, oldOrder := textSlots(o)
	newText, newOrder := textSlots(n)

	// with the element sequence intact text runs are compared slot by slot,
	// otherwise they are all rewritten around the moved elements
	sameShape := sameSequence(oldEls, newEls)

	for _, key := range oldOrder {
		if _, kept := newText[key]; sameShape && kept {
			continue
		}
		e := Edit{Type: TextDelete, ParentID: id, Content: oldText[key]}
		slotPlacement(key).apply(&e)
		s.emit(e)
	}

	var current []dom.TagID
	for _, child := range oldEls {
		moved, ok := s.newMap[child.TagID]
		if !ok || moved.Tag != child.Tag {
			s.deletes = append(s.deletes, Edit{Type: ElementDelete, TagID: child.TagID, ParentID: id})
			continue
		}
		if moved.Parent != nil && moved.Parent.TagID == id {
			current = append(current, child.TagID)
		}
	}

	for i, child := range newEls {
		if i < len(current) && current[i] == child.TagID {
			continue
		}
		p := siblingPlacement(newEls, i)
		if old, ok := s.oldMap[child.TagID]; ok && old.Tag == child.Tag {
			e := Edit{Type: ElementMove, TagID: child.TagID, Tag: child.Tag, ParentID: id}
			p.apply(&e)
			s.emit(e)
			current = remove(current, child.TagID)
		} else {
			s.insertSubtree(child, id, p)
		}
		current = insertAt(current, i, child.TagID)
	}

	for _, key := range newOrder {
		content := newText[key]
		old, had := oldText[key]
		var e Edit
		switch {
		case sameShape && had && old == content:
			continue
		case sameShape && had:
			e = Edit{Type: TextReplace, ParentID: id, Content: content}
		default:
			e = Edit{Type: TextInsert, ParentID: id, Content: content}
		}
		slotPlacement(key).apply(&e)
		s.emit(e)
	}
}

// insertSubtree emits n and its descendants. Descendants that exist in the
// old tree are moved rather than recreated.
func (s *diffState) insertSubtree(n *dom.Node, parent dom.TagID, p placement) {
	e := Edit{
		Type:       ElementInsert,
		TagID:      n.TagID,
		Tag:        n.Tag,
		Attributes: copyAttributes(n.Attributes),
		ParentID:   parent,
	}
	p.apply(&e)
	s.emit(e)

	for _, child := range n.Children {
		if child.IsText() {
			s.emit(Edit{Type: TextInsert, ParentID: n.TagID, Content: child.Content, LastChild: true})
			continue
		}
		if old, ok := s.oldMap[child.TagID]; ok && old.Tag == child.Tag {
			s.emit(Edit{Type: ElementMove, TagID: child.TagID, Tag: child.Tag, ParentID: n.TagID, LastChild: true})
			s.diffNode(old, child)
			continue
		}
		s.insertSubtree(child, n.TagID, appendChild)
	}
}

func (s *diffState) deleteElement(n *dom.Node) {
	s.deletes = append(s.deletes, Edit{Type: ElementDelete, TagID: n.TagID, ParentID: parentID(n)})
}

func parentID(n *dom.Node) dom.TagID {
	if n.Parent == nil {
		return 0
	}
	return n.Parent.TagID
}

// placementOf positions n among its parent's element children
func placementOf(n *dom.Node) placement {
	if n.Parent == nil {
		return placement{}
	}
	els := elementChildren(n.Parent)
	for i, el := range els {
		if el == n {
			return siblingPlacement(els, i)
		}
	}
	return appendChild
}

func siblingPlacement(els []*dom.Node, i int) placement {
	var p placement
	if i > 0 {
		p.afterID = els[i-1].TagID
	} else {
		p.firstChild = true
	}
	if i+1 < len(els) {
		p.beforeID = els[i+1].TagID
	}
	return p
}

// slotPlacement addresses the text run following the element key, or the
// leading run when key is 0
func slotPlacement(key dom.TagID) placement {
	if key == 0 {
		return placement{firstChild: true}
	}
	return placement{afterID: key}
}

func elementChildren(n *dom.Node) []*dom.Node {
	var els []*dom.Node
	for _, child := range n.Children {
		if child.IsElement() {
			els = append(els, child)
		}
	}
	return els
}

// textSlots groups text children by the identifier of the element sibling
// preceding them
func textSlots(n *dom.Node) (map[dom.TagID]string, []dom.TagID) {
	slots := make(map[dom.TagID]string)
	var order []dom.TagID
	var key dom.TagID
	for _, child := range n.Children {
		if child.IsElement() {
			key = child.TagID
			continue
		}
		if _, seen := slots[key]; !seen {
			order = append(order, key)
		}
		slots[key] += child.Content
	}
	return slots, order
}

func sameSequence(a, b []*dom.Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].TagID != b[i].TagID || a[i].Tag != b[i].Tag {
			return false
		}
	}
	return true
}

func remove(ids []dom.TagID, id dom.TagID) []dom.TagID {
	for i, existing := range ids {
		if existing == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func insertAt(ids []dom.TagID, i int, id dom.TagID) []dom.TagID {
	if i >= len(ids) {
		return append(ids, id)
	}
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyAttributes(attrs map[string]string) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
