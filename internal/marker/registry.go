package marker

import (
	"log"
	"sort"

	"github.com/livefir/livesync/internal/dom"
)

// CachedMark pairs a mark with the range it had when first looked up
type CachedMark struct {
	Mark  Mark
	Range Range
}

// Cache memoizes mark ranges for one update cycle so each mark is looked up
// in the host store at most once
type Cache map[dom.TagID]*CachedMark

// Registry maps tag identifiers to live marks in a Store and back
type Registry struct {
	store  Store
	logger *log.Logger
}

// NewRegistry wraps store. A nil logger uses the standard logger.
func NewRegistry(store Store, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{store: store, logger: logger}
}

// Store returns the wrapped host store
func (r *Registry) Store() Store {
	return r.store
}

// Range returns the current range of a mark
func (r *Registry) Range(m Mark) (Range, bool) {
	return r.store.Find(m)
}

// sortedMarks keeps the tag-bearing marks, resolves their ranges through
// cache and orders them by start offset
func (r *Registry) sortedMarks(marks []Mark, cache Cache) []*CachedMark {
	var result []*CachedMark
	for _, m := range marks {
		id := m.TagID()
		if id == 0 {
			continue
		}
		cached, ok := cache[id]
		if !ok {
			rng, found := r.store.Find(m)
			if !found {
				continue
			}
			cached = &CachedMark{Mark: m, Range: rng}
			cache[id] = cached
		}
		result = append(result, cached)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Range.From < result[j].Range.From
	})
	return result
}

// MarkerAt returns the innermost mark containing pos. With preferParent, a
// pos sitting exactly on the innermost mark's edge resolves to the enclosing
// mark instead, and to nothing when there is none.
func (r *Registry) MarkerAt(pos int, preferParent bool, cache Cache) (Mark, bool) {
	if cache == nil {
		cache = make(Cache)
	}
	marks := r.sortedMarks(r.store.FindAt(pos), cache)
	if len(marks) == 0 {
		return nil, false
	}

	// latest start is innermost
	match := marks[len(marks)-1]
	if preferParent && (match.Range.From == pos || match.Range.To == pos) {
		if len(marks) < 2 {
			return nil, false
		}
		match = marks[len(marks)-2]
	}
	return match.Mark, true
}

// TagIDAt returns the identifier of the innermost mark containing pos
func (r *Registry) TagIDAt(pos int, cache Cache) (dom.TagID, bool) {
	m, ok := r.MarkerAt(pos, false, cache)
	if !ok {
		return 0, false
	}
	return m.TagID(), true
}

// Snapshot returns every tag-bearing mark with its current range
func (r *Registry) Snapshot() Cache {
	cache := make(Cache)
	for _, m := range r.store.All() {
		if m.TagID() == 0 {
			continue
		}
		if rng, ok := r.store.Find(m); ok {
			cache[m.TagID()] = &CachedMark{Mark: m, Range: rng}
		}
	}
	return cache
}

// Batch runs fn as one atomic store operation
func (r *Registry) Batch(fn func()) {
	r.store.Operation(fn)
}

// MarkTree clears every tag mark and marks each element under root
func (r *Registry) MarkTree(root *dom.Node) {
	r.store.Operation(func() {
		for _, m := range r.store.All() {
			if m.TagID() != 0 {
				r.store.Clear(m)
			}
		}
		if root == nil {
			return
		}
		root.Walk(func(n *dom.Node) bool {
			if n.IsElement() {
				r.store.Mark(n.Start, n.End, n.TagID)
			}
			return true
		})
	})
}

// UpdateRanges brings the marks for every node in nodeMap in line with the
// node's bounds. Marks that already match are left alone; nodes without a
// mark get a new one.
func (r *Registry) UpdateRanges(nodeMap dom.NodeMap, cache Cache) {
	r.store.Operation(func() {
		pending := make(map[dom.TagID]bool, len(nodeMap))
		for id := range nodeMap {
			pending[id] = true
		}

		for _, m := range r.store.All() {
			id := m.TagID()
			node, ok := nodeMap[id]
			if !ok {
				continue
			}
			if !pending[id] {
				// a second mark for an identifier already handled
				r.store.Clear(m)
				continue
			}
			delete(pending, id)

			current, known := cache[id]
			if !known || current.Mark != m {
				rng, found := r.store.Find(m)
				if !found {
					pending[id] = true
					continue
				}
				current = &CachedMark{Mark: m, Range: rng}
			}
			if current.Range.From == node.Start && current.Range.To == node.End {
				continue
			}
			r.store.Clear(m)
			r.store.Mark(node.Start, node.End, id)
		}

		for id := range pending {
			node := nodeMap[id]
			if node.IsElement() {
				r.store.Mark(node.Start, node.End, id)
			}
		}
	})
}

// ClearIDs removes every mark bound to one of ids
func (r *Registry) ClearIDs(ids []dom.TagID) {
	if len(ids) == 0 {
		return
	}
	doomed := make(map[dom.TagID]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
	}

	r.store.Operation(func() {
		cleared := 0
		for _, m := range r.store.All() {
			if doomed[m.TagID()] {
				r.store.Clear(m)
				cleared++
			}
		}
		if cleared < len(ids) {
			r.logger.Printf("MARKERS: %d of %d deleted tags had no mark", len(ids)-cleared, len(ids))
		}
	})
}
