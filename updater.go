package livesync

import (
	"fmt"
	"strings"

	"github.com/livefir/livesync/internal/dom"
	"github.com/livefir/livesync/internal/marker"
)

// structuralChars can change tag boundaries or attributes when inserted or
// removed. '&' is absent: entities never change the tree's shape.
const structuralChars = `<>/="'`

// updateResult is one successful update cycle. After a full re-parse all
// three describe the same tree; after a partial one tree is the previous
// snapshot with newSubtree grafted in place of oldSubtree.
type updateResult struct {
	tree       *dom.Tree
	oldSubtree *dom.Node
	newSubtree *dom.Node
}

// updater runs one update cycle for one editor
type updater struct {
	engine   *Engine
	previous *dom.Tree
	editor   Editor
	changes  []Change
	registry *marker.Registry

	// mark ranges looked up during this cycle
	markCache marker.Cache

	// changedID is the element whose text was re-parsed on the partial path
	changedID   dom.TagID
	incremental bool
}

func (e *Engine) newUpdater(previous *dom.Tree, ed Editor, changes []Change) *updater {
	return &updater{
		engine:    e,
		previous:  previous,
		editor:    ed,
		changes:   changes,
		registry:  e.registry(ed),
		markCache: make(marker.Cache),
	}
}

// update re-parses as little of the document as it safely can
func (u *updater) update() (*updateResult, error) {
	text := u.editor.Text()

	rng, ok := u.partialRange()
	if !ok {
		return u.fullUpdate(text)
	}

	tree, err := u.engine.parser.Parse(text[rng.From:rng.To], dom.ParseOptions{
		StartOffset: rng.From,
		StartPos:    dom.PositionAt(text, rng.From),
		Resolve:     u.resolve,
	})
	if err != nil {
		return nil, err
	}

	result, err := u.graft(tree)
	if err != nil {
		// the previous snapshot is untouched, rebuild it from scratch
		u.changedID = 0
		return u.fullUpdate(text)
	}
	u.incremental = true
	u.engine.metrics.IncrementIncrementalUpdate()
	return result, nil
}

func (u *updater) fullUpdate(text string) (*updateResult, error) {
	u.incremental = false
	tree, err := u.engine.parser.Parse(text, dom.ParseOptions{Resolve: u.resolve})
	if err != nil {
		return nil, err
	}
	tree.FullBuild = true
	u.registry.MarkTree(tree.Root)
	u.engine.metrics.IncrementFullRebuild()

	var old *dom.Node
	if u.previous != nil {
		old = u.previous.Root
	}
	return &updateResult{tree: tree, oldSubtree: old, newSubtree: tree.Root}, nil
}

// partialRange decides whether the pending change can be handled by
// re-parsing the single element enclosing it, and returns that element's
// current range
func (u *updater) partialRange() (marker.Range, bool) {
	path := u.editor.FullPath()

	switch {
	case !u.engine.incremental:
		u.engine.debugf("UPDATER: %s: incremental updates disabled", path)
		return marker.Range{}, false
	case u.previous == nil:
		u.engine.debugf("UPDATER: %s: no previous snapshot", path)
		return marker.Range{}, false
	case len(u.changes) != 1:
		u.engine.debugf("UPDATER: %s: %d pending changes", path, len(u.changes))
		return marker.Range{}, false
	}

	change := u.changes[0]
	if isStructural(change.Text) || isStructural(change.Removed) {
		u.engine.debugf("UPDATER: %s: change at %d may alter tags", path, change.From)
		return marker.Range{}, false
	}

	// an edit on an element's own boundary re-parses its parent
	m, ok := u.registry.MarkerAt(change.From, true, u.markCache)
	if !ok {
		u.engine.debugf("UPDATER: %s: no element encloses %d", path, change.From)
		return marker.Range{}, false
	}

	id := m.TagID()
	if _, known := u.previous.NodeMap[id]; !known {
		u.engine.debugf("UPDATER: %s: marker for unknown tag %d", path, id)
		return marker.Range{}, false
	}

	cached, ok := u.markCache[id]
	if !ok {
		return marker.Range{}, false
	}
	rng := cached.Range
	if rng.From < 0 || rng.To > len(u.editor.Text()) || rng.From >= rng.To {
		return marker.Range{}, false
	}

	u.changedID = id
	u.engine.debugf("UPDATER: %s: re-parsing <%s> #%d [%d,%d)", path, u.previous.NodeMap[id].Tag, id, rng.From, rng.To)
	return rng, true
}

// resolve decides whether a freshly parsed element keeps the identifier of
// the element that was at its position before the edit
func (u *updater) resolve(n *dom.Node) dom.TagID {
	if u.previous == nil {
		return 0
	}

	id, ok := u.registry.TagIDAt(n.Start+1, u.markCache)
	if !ok {
		// newly inserted text
		return 0
	}
	if n.HasAncestorWithID(id) {
		// the innermost marker belongs to an enclosing element, so this
		// element did not exist before
		return 0
	}

	prev, ok := u.previous.NodeMap[id]
	if !ok || prev.Tag != n.Tag {
		// renamed or stale: treat as delete plus insert
		return 0
	}
	return id
}

func isStructural(s string) bool {
	return strings.ContainsAny(s, structuralChars)
}

func (u *updater) String() string {
	mode := "full"
	if u.incremental {
		mode = fmt.Sprintf("partial #%d", u.changedID)
	}
	return fmt.Sprintf("%s (%s)", u.editor.FullPath(), mode)
}
