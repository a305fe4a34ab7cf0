package editor

import (
	"fmt"
	"sync"

	"github.com/livefir/livesync/internal/marker"
)

// Change describes one text replacement. From and To are offsets in the
// text as it was before the change.
type Change struct {
	From    int    `json:"from"`
	To      int    `json:"to"`
	Text    string `json:"text"`    // inserted
	Removed string `json:"removed"` // replaced
}

// Buffer is an in-memory editor document: text, a revision stamp bumped on
// every edit and a marker store whose marks slide with the edits
type Buffer struct {
	mu        sync.RWMutex
	path      string
	text      string
	timestamp int64
	markers   *marker.MemoryStore
}

// NewBuffer creates a buffer for path holding text
func NewBuffer(path, text string) *Buffer {
	return &Buffer{
		path:      path,
		text:      text,
		timestamp: 1,
		markers:   marker.NewMemoryStore(),
	}
}

// FullPath identifies the document
func (b *Buffer) FullPath() string {
	return b.path
}

// Text returns the current contents
func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

// Timestamp returns the revision stamp of the current contents
func (b *Buffer) Timestamp() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.timestamp
}

// Markers returns the buffer's marker store
func (b *Buffer) Markers() marker.Store {
	return b.markers
}

// Replace substitutes text for the bytes in [from, to) and returns the change
func (b *Buffer) Replace(from, to int, text string) (Change, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if from < 0 || to < from || to > len(b.text) {
		return Change{}, fmt.Errorf("invalid range [%d, %d) for text of length %d", from, to, len(b.text))
	}

	change := Change{
		From:    from,
		To:      to,
		Text:    text,
		Removed: b.text[from:to],
	}
	b.text = b.text[:from] + text + b.text[to:]
	b.timestamp++
	b.markers.ApplyEdit(from, to, len(text))
	return change, nil
}

// Insert adds text at offset
func (b *Buffer) Insert(offset int, text string) (Change, error) {
	return b.Replace(offset, offset, text)
}

// SetText replaces the whole contents with text, expressed as the smallest
// single change that turns the old contents into the new. ok is false when
// nothing changed.
func (b *Buffer) SetText(text string) (change Change, ok bool) {
	old := b.Text()
	change, ok = Minimal(old, text)
	if !ok {
		return Change{}, false
	}
	// the range always lies within the old text
	change, _ = b.Replace(change.From, change.To, change.Text)
	return change, true
}

// Minimal returns the single replacement turning old into updated by
// trimming their common prefix and suffix
func Minimal(old, updated string) (Change, bool) {
	if old == updated {
		return Change{}, false
	}

	prefix := 0
	for prefix < len(old) && prefix < len(updated) && old[prefix] == updated[prefix] {
		prefix++
	}

	suffix := 0
	for suffix < len(old)-prefix && suffix < len(updated)-prefix &&
		old[len(old)-1-suffix] == updated[len(updated)-1-suffix] {
		suffix++
	}

	return Change{
		From:    prefix,
		To:      len(old) - suffix,
		Text:    updated[prefix : len(updated)-suffix],
		Removed: old[prefix : len(old)-suffix],
	}, true
}
