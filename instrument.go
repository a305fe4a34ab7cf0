package livesync

import (
	"fmt"
	"strings"

	"github.com/livefir/livesync/internal/dom"
	"github.com/livefir/livesync/internal/marker"
)

// headTag receives the injected fragment
const headTag = "head"

// GenerateInstrumentedMarkup returns the editor's text with an identifier
// attribute added to every element's open tag. A non-empty inject fragment
// is placed right after the head's open tag, or at the very end when the
// document has no head. Everything else is copied through unchanged.
func (e *Engine) GenerateInstrumentedMarkup(ed Editor, inject string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tree, err := e.scan(ed)
	if err != nil {
		return "", err
	}

	registry := e.registry(ed)
	var marks marker.Cache
	if tree.FullBuild {
		// offsets are current; make the markers agree with them
		registry.MarkTree(tree.Root)
	} else {
		marks = registry.Snapshot()
	}

	if inject != "" && e.minifyInjection {
		inject = MinifyFragment(inject)
	}

	text := ed.Text()
	var out strings.Builder
	out.Grow(len(text) + len(inject) + len(tree.NodeMap)*(len(e.attributeName)+8))

	last := 0
	injected := inject == ""
	var walkErr error

	tree.Root.Walk(func(n *dom.Node) bool {
		if !n.IsElement() {
			return true
		}

		start := n.Start
		if !tree.FullBuild {
			if cm, ok := marks[n.TagID]; ok {
				start = cm.Range.From
			} else {
				e.logger.Printf("INSTRUMENT: no marker for <%s> #%d in %s, using offset %d",
					n.Tag, n.TagID, ed.FullPath(), n.Start)
				e.metrics.IncrementMissingMarker()
			}
		}

		// right after the tag name
		at := start + 1 + len(n.Tag)
		if at < last || at > len(text) {
			walkErr = fmt.Errorf("%w: <%s> #%d at %d in %s", ErrStaleSnapshot, n.Tag, n.TagID, start, ed.FullPath())
			return false
		}
		out.WriteString(text[last:at])
		fmt.Fprintf(&out, ` %s="%d"`, e.attributeName, n.TagID)
		last = at

		if !injected && n.Tag == headTag {
			openEnd := start + (n.OpenEnd - n.Start)
			if openEnd >= last && openEnd <= len(text) {
				out.WriteString(text[last:openEnd])
				out.WriteString(inject)
				last = openEnd
				injected = true
			}
		}
		return true
	})
	if walkErr != nil {
		return "", walkErr
	}

	out.WriteString(text[last:])
	if !injected {
		out.WriteString(inject)
	}

	e.metrics.IncrementInstrumented()
	return out.String(), nil
}
