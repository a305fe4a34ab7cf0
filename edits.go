package livesync

import (
	"fmt"

	"github.com/livefir/livesync/internal/dom"
)

// Scan returns the tree for doc, parsing it when the cached tree is missing,
// invalid or older than the document
func (e *Engine) Scan(doc Document) (*dom.Tree, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scan(doc)
}

func (e *Engine) scan(doc Document) (*dom.Tree, error) {
	path := doc.FullPath()
	timestamp := doc.Timestamp()

	if entry, ok := e.cache.Get(path); ok && !entry.Invalid && entry.Tree != nil && entry.Timestamp == timestamp {
		e.metrics.IncrementCacheHit()
		return entry.Tree, nil
	}
	e.metrics.IncrementCacheMiss()

	tree, err := e.parser.Parse(doc.Text(), dom.ParseOptions{})
	if err != nil {
		e.cache.Invalidate(path)
		e.metrics.IncrementParseFailure()
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDocument, path, err)
	}

	tree.FullBuild = true
	tree.Timestamp = timestamp
	e.cache.Put(path, tree)
	e.metrics.IncrementFullRebuild()
	return tree, nil
}

// MarkText binds a range marker to every element of the cached tree. The
// tree must come from a full parse so that its offsets are current.
func (e *Engine) MarkText(ed Editor) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.cache.Get(ed.FullPath())
	if !ok || entry.Tree == nil {
		return fmt.Errorf("%w: %s", ErrNoSnapshot, ed.FullPath())
	}
	if !entry.Tree.FullBuild {
		return fmt.Errorf("%w: %s was updated incrementally", ErrStaleSnapshot, ed.FullPath())
	}

	e.registry(ed).MarkTree(entry.Tree.Root)
	return nil
}

// TagIDAt returns the identifier of the innermost element whose marker
// contains pos
func (e *Engine) TagIDAt(ed Editor, pos int) (dom.TagID, bool) {
	return e.registry(ed).TagIDAt(pos, nil)
}

// ComputeUnappliedEdits brings the cached tree up to date with the editor's
// text and returns the edits a renderer of the old tree needs to apply.
// changes lists the text changes made since the last call; with anything
// other than exactly one change the whole document is re-parsed.
//
// When the text is not well-formed the result carries Errors, the cached
// tree is marked invalid and later calls re-parse the whole document until
// it succeeds.
func (e *Engine) ComputeUnappliedEdits(ed Editor, changes []Change) EditResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	path := ed.FullPath()

	var previous *dom.Tree
	entry, ok := e.cache.Get(path)
	if ok {
		previous = entry.Tree
	}
	if !ok || previous == nil || entry.Invalid {
		changes = nil
	}

	u := e.newUpdater(previous, ed, changes)
	result, err := u.update()
	if err != nil {
		e.cache.Invalidate(path)
		e.metrics.IncrementParseFailure()
		e.logger.Printf("UPDATER: %s: %v", path, err)
		return EditResult{Errors: []error{err}}
	}

	edits := e.differ.Diff(result.oldSubtree, result.newSubtree)
	e.metrics.RecordEdits(len(edits))
	e.debugf("UPDATER: %s: %d edits", u, len(edits))

	// offsets past the re-parsed region are no longer recomputed
	result.tree.FullBuild = false
	result.tree.Timestamp = ed.Timestamp()
	e.cache.Put(path, result.tree)

	return EditResult{Edits: edits, Incremental: u.incremental}
}
