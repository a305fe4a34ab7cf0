// Package cache holds the last known tree snapshot of every tracked document.
package cache

import (
	"sort"
	"sync"

	"github.com/livefir/livesync/internal/dom"
)

// Entry is the cached state of one document
type Entry struct {
	Timestamp int64
	Tree      *dom.Tree
	// Invalid is set when the last re-parse failed; incremental updates are
	// suspended until a full re-parse succeeds
	Invalid bool
}

// Store is a process-wide map from document path to its snapshot.
// It is safe for concurrent use; callers serialize updates per document.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{entries: make(map[string]*Entry)}
}

// Get returns the entry for path
func (s *Store) Get(path string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[path]
	return e, ok
}

// Put records a successfully parsed snapshot and clears the invalid flag
func (s *Store) Put(path string, tree *dom.Tree) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &Entry{Tree: tree}
	if tree != nil {
		e.Timestamp = tree.Timestamp
	}
	s.entries[path] = e
	return e
}

// Invalidate flags the entry for path, creating it if needed. The last good
// snapshot is kept for reference.
func (s *Store) Invalidate(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[path]; ok {
		e.Invalid = true
		return
	}
	s.entries[path] = &Entry{Invalid: true}
}

// Remove evicts a document
func (s *Store) Remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, path)
}

// Reset evicts every document
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*Entry)
}

// Len returns the number of tracked documents
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Paths returns the tracked document paths in order
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.entries))
	for p := range s.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
