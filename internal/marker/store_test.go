package marker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livefir/livesync/internal/dom"
)

func TestMemoryStore_ApplyEdit(t *testing.T) {
	tests := []struct {
		name      string
		mark      Range
		from, to  int
		insertLen int
		want      Range
		cleared   bool
	}{
		{"edit after mark", Range{5, 14}, 20, 22, 1, Range{5, 14}, false},
		{"edit before mark", Range{5, 14}, 0, 2, 5, Range{8, 17}, false},
		{"replace inside", Range{5, 14}, 8, 10, 5, Range{5, 17}, false},
		{"insert at start excluded", Range{5, 14}, 5, 5, 3, Range{8, 17}, false},
		{"insert at end excluded", Range{5, 14}, 14, 14, 3, Range{5, 14}, false},
		{"delete covering mark", Range{5, 14}, 2, 20, 0, Range{}, true},
		{"replace tail included", Range{5, 14}, 12, 14, 3, Range{5, 15}, false},
		{"delete tail", Range{5, 14}, 12, 14, 0, Range{5, 12}, false},
		{"replace whole mark", Range{5, 14}, 5, 14, 3, Range{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMemoryStore()
			m := s.Mark(tt.mark.From, tt.mark.To, 1)

			s.ApplyEdit(tt.from, tt.to, tt.insertLen)

			rng, ok := s.Find(m)
			if tt.cleared {
				assert.False(t, ok)
				assert.Equal(t, 0, s.Len())
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, rng)
		})
	}
}

func TestMemoryStore_OperationIsAtomic(t *testing.T) {
	s := NewMemoryStore()
	old := s.Mark(0, 10, 1)

	s.Operation(func() {
		s.Clear(old)
		s.Mark(0, 12, 2)

		// readers still see the committed state
		marks := s.FindAt(5)
		require.Len(t, marks, 1)
		assert.Equal(t, dom.TagID(1), marks[0].TagID())
	})

	marks := s.FindAt(5)
	require.Len(t, marks, 1)
	assert.Equal(t, dom.TagID(2), marks[0].TagID())
	_, ok := s.Find(old)
	assert.False(t, ok)
}

func TestMemoryStore_NestedOperation(t *testing.T) {
	s := NewMemoryStore()
	s.Operation(func() {
		s.Operation(func() {
			s.Mark(0, 1, 1)
		})
		assert.Equal(t, 0, s.Len())
	})
	assert.Equal(t, 1, s.Len())
}
