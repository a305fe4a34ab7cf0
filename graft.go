package livesync

import (
	"fmt"
	"sort"

	"github.com/livefir/livesync/internal/dom"
)

// graft swaps the re-parsed subtree into the previous snapshot in place, so
// the previous snapshot becomes the new one. Markers are brought in line
// with the new subtree and those of deleted elements are cleared.
func (u *updater) graft(sub *dom.Tree) (*updateResult, error) {
	prev := u.previous
	old := prev.NodeMap[u.changedID]

	if old.Parent == nil {
		// the root itself was re-parsed; the new subtree is the whole tree
		u.registry.MarkTree(sub.Root)
		return &updateResult{tree: sub, oldSubtree: old, newSubtree: sub.Root}, nil
	}

	parent := old.Parent
	i := parent.ChildIndex(old)
	if i < 0 {
		u.engine.logger.Printf("GRAFT: <%s> #%d is not among the children of <%s> #%d in %s",
			old.Tag, old.TagID, parent.Tag, parent.TagID, u.editor.FullPath())
		u.engine.metrics.IncrementGraftFailure()
		return nil, fmt.Errorf("%w: #%d", ErrGraftInconsistent, old.TagID)
	}

	old.Parent = nil
	sub.Root.Parent = parent
	parent.Children[i] = sub.Root

	for id, n := range sub.NodeMap {
		prev.NodeMap[id] = n
	}

	var deleted []dom.TagID
	for id := range dom.BuildNodeMap(old) {
		if _, kept := sub.NodeMap[id]; !kept {
			deleted = append(deleted, id)
			delete(prev.NodeMap, id)
		}
	}
	sort.Slice(deleted, func(a, b int) bool { return deleted[a] < deleted[b] })

	u.registry.Batch(func() {
		u.registry.UpdateRanges(sub.NodeMap, u.markCache)
		u.registry.ClearIDs(deleted)
	})

	// ancestors keep their bounds but their content changed
	for a := parent; a != nil; a = a.Parent {
		a.Update()
	}

	return &updateResult{tree: prev, oldSubtree: old, newSubtree: sub.Root}, nil
}
