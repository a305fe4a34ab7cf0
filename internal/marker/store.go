package marker

import (
	"sync"

	"github.com/livefir/livesync/internal/dom"
)

// Range is a half-open span of byte offsets in the host document
type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Contains reports whether pos lies within r, edges included
func (r Range) Contains(pos int) bool {
	return r.From <= pos && pos <= r.To
}

// Mark is a handle to an edit-resilient range owned by the host editor
type Mark interface {
	TagID() dom.TagID
}

// Store is the host editor's range tracking service.
//
// Mark and Clear calls made inside Operation become visible to other readers
// all at once when the operation returns.
type Store interface {
	Mark(from, to int, id dom.TagID) Mark
	Clear(m Mark)
	Find(m Mark) (Range, bool)
	FindAt(pos int) []Mark
	All() []Mark
	Operation(fn func())
}

// MemoryStore is an in-process Store. Marks slide with edits the way an
// editor's text markers do: text inserted exactly at either edge of a mark
// is not included in it, but a replacement that ends on a mark's end keeps
// its new text inside the mark.
type MemoryStore struct {
	mu    sync.RWMutex
	marks []*memoryMark
	batch *batch
}

type memoryMark struct {
	id      dom.TagID
	rng     Range
	cleared bool
}

func (m *memoryMark) TagID() dom.TagID { return m.id }

type batch struct {
	added   []*memoryMark
	cleared []*memoryMark
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Mark creates a mark spanning [from, to] tagged with id
func (s *MemoryStore) Mark(from, to int, id dom.TagID) Mark {
	m := &memoryMark{id: id, rng: Range{From: from, To: to}}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batch != nil {
		s.batch.added = append(s.batch.added, m)
	} else {
		s.marks = append(s.marks, m)
	}
	return m
}

// Clear removes a mark. Clearing an unknown or cleared mark is a no-op.
func (s *MemoryStore) Clear(mark Mark) {
	m, ok := mark.(*memoryMark)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batch != nil {
		s.batch.cleared = append(s.batch.cleared, m)
		return
	}
	s.remove(m)
}

func (s *MemoryStore) remove(m *memoryMark) {
	m.cleared = true
	for i, existing := range s.marks {
		if existing == m {
			s.marks = append(s.marks[:i], s.marks[i+1:]...)
			return
		}
	}
}

// Find returns the current range of a mark
func (s *MemoryStore) Find(mark Mark) (Range, bool) {
	m, ok := mark.(*memoryMark)
	if !ok {
		return Range{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if m.cleared {
		return Range{}, false
	}
	return m.rng, true
}

// FindAt returns every committed mark whose range contains pos
func (s *MemoryStore) FindAt(pos int) []Mark {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found []Mark
	for _, m := range s.marks {
		if m.rng.Contains(pos) {
			found = append(found, m)
		}
	}
	return found
}

// All returns every committed mark
func (s *MemoryStore) All() []Mark {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]Mark, len(s.marks))
	for i, m := range s.marks {
		all[i] = m
	}
	return all
}

// Len returns the number of committed marks
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.marks)
}

// Operation runs fn and commits its mark changes atomically. Nested calls
// join the outer operation.
func (s *MemoryStore) Operation(fn func()) {
	s.mu.Lock()
	if s.batch != nil {
		s.mu.Unlock()
		fn()
		return
	}
	b := &batch{}
	s.batch = b
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, m := range b.cleared {
			s.remove(m)
		}
		for _, m := range b.added {
			if !m.cleared {
				s.marks = append(s.marks, m)
			}
		}
		s.batch = nil
	}()
	fn()
}

// ApplyEdit slides every mark across a replacement of the text in
// [from, to) with insertLen bytes. Marks left empty by a deletion are cleared.
func (s *MemoryStore) ApplyEdit(from, to, insertLen int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delta := insertLen - (to - from)
	kept := s.marks[:0]
	for _, m := range s.marks {
		wasEmpty := m.rng.From == m.rng.To
		m.rng.From = mapStart(m.rng.From, from, to, insertLen, delta)
		m.rng.To = mapEnd(m.rng.To, from, to, delta)
		if m.rng.To < m.rng.From || (!wasEmpty && m.rng.To == m.rng.From) {
			m.cleared = true
			continue
		}
		kept = append(kept, m)
	}
	s.marks = kept
}

// mapStart moves a mark start; text inserted at the start lands before it
func mapStart(pos, from, to, insertLen, delta int) int {
	switch {
	case pos < from:
		return pos
	case pos <= to:
		return from + insertLen
	default:
		return pos + delta
	}
}

// mapEnd moves a mark end; text inserted at the end lands after it, text
// replacing the mark's tail stays inside
func mapEnd(pos, from, to, delta int) int {
	switch {
	case pos <= from:
		return pos
	case pos < to:
		return from
	default:
		return pos + delta
	}
}
