package livesync

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livefir/livesync/internal/diff"
	"github.com/livefir/livesync/internal/dom"
	"github.com/livefir/livesync/internal/editor"
	"github.com/livefir/livesync/internal/remote"
)

func TestReconcileRemoteTree(t *testing.T) {
	tests := []struct {
		name     string
		rendered string
		want     []diff.Edit
	}{
		{
			name:     "in sync",
			rendered: `<div data-tracking-id="1"><p data-tracking-id="2">hi</p></div>`,
		},
		{
			name:     "text and attribute drift",
			rendered: `<div data-tracking-id="1" class="x"><p data-tracking-id="2">bye</p></div>`,
			want: []diff.Edit{
				{Type: diff.AttrAdd, TagID: 1, Attribute: "class", Value: "x"},
				{Type: diff.TextReplace, ParentID: 2, Content: "bye", FirstChild: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine()
			buf := openDocument(t, e, "<div><p>hi</p></div>")

			reported, err := remote.FromHTML(tt.rendered)
			require.NoError(t, err)
			require.Equal(t, "html", reported.Tag)

			rec, err := e.ReconcileRemoteTree(buf, reported)
			require.NoError(t, err)

			// the browser's html and body wrappers are dropped
			assert.Equal(t, dom.TagID(1), rec.Remote.Root.TagID)
			assert.Nil(t, rec.Remote.Root.Parent)
			assert.NotContains(t, rec.Remote.Root.Attributes, "data-tracking-id")
			assert.Len(t, rec.Remote.NodeMap, 2)

			local, _ := e.Snapshot(buf.FullPath())
			assert.Same(t, local, rec.Local)

			if tt.want == nil {
				assert.Empty(t, rec.Edits)
			} else {
				assert.Equal(t, tt.want, rec.Edits)
			}
			assert.Equal(t, int64(1), e.Metrics().GetMetrics().Reconciliations)
		})
	}
}

func TestReconcileRemoteTree_Errors(t *testing.T) {
	e := newTestEngine()
	buf := editor.NewBuffer("/site/index.html", "<div></div>")

	reported := &remote.Node{Type: remote.ElementNode, Tag: "div"}
	_, err := e.ReconcileRemoteTree(buf, reported)
	assert.True(t, errors.Is(err, ErrNoSnapshot))

	_, err = e.Scan(buf)
	require.NoError(t, err)

	_, err = e.ReconcileRemoteTree(buf, &remote.Node{Type: remote.TextNode, Content: "x"})
	assert.True(t, errors.Is(err, remote.ErrNoRoot))
}
