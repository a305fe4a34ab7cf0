package livesync

import (
	"fmt"

	"github.com/livefir/livesync/internal/diff"
	"github.com/livefir/livesync/internal/dom"
	"github.com/livefir/livesync/internal/remote"
)

// Reconciliation compares the cached tree with one reported by a renderer
type Reconciliation struct {
	// Edits turn the local tree into the remote one
	Edits  []diff.Edit
	Remote *dom.Tree
	Local  *dom.Tree
}

// ReconcileRemoteTree converts a tree reported by a renderer and diffs the
// cached tree against it. Elements the renderer wrapped around the
// document's root are dropped first.
func (e *Engine) ReconcileRemoteTree(ed Editor, reported *remote.Node) (*Reconciliation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.cache.Get(ed.FullPath())
	if !ok || entry.Tree == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, ed.FullPath())
	}
	local := entry.Tree

	remoteTree, err := remote.Convert(reported, e.attributeName, local.Root.TagID)
	if err != nil {
		return nil, fmt.Errorf("failed to convert remote tree for %s: %w", ed.FullPath(), err)
	}

	edits := e.differ.Diff(local.Root, remoteTree.Root)
	e.metrics.IncrementReconciliation()
	if len(edits) > 0 {
		e.logger.Printf("RECONCILE: %s: renderer differs by %d edits (%s)", ed.FullPath(), len(edits), diff.Classify(edits))
	}

	return &Reconciliation{Edits: edits, Remote: remoteTree, Local: local}, nil
}
