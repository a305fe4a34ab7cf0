package diff

import (
	"fmt"

	"github.com/livefir/livesync/internal/dom"
)

// EditType names one structural operation
type EditType string

const (
	ElementInsert EditType = "elementInsert"
	ElementDelete EditType = "elementDelete"
	ElementMove   EditType = "elementMove"
	TextInsert    EditType = "textInsert"
	TextReplace   EditType = "textReplace"
	TextDelete    EditType = "textDelete"
	AttrAdd       EditType = "attrAdd"
	AttrChange    EditType = "attrChange"
	AttrDelete    EditType = "attrDelete"
)

// Edit is one operation that moves a rendered tree towards the new one.
// Elements are addressed by tag identifier; text runs by their parent and
// the element siblings around them.
type Edit struct {
	Type       EditType          `json:"type"`
	TagID      dom.TagID         `json:"tagID,omitempty"`
	Tag        string            `json:"tag,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Attribute  string            `json:"attribute,omitempty"`
	Value      string            `json:"value,omitempty"`
	Content    string            `json:"content,omitempty"`
	ParentID   dom.TagID         `json:"parentID,omitempty"`
	AfterID    dom.TagID         `json:"afterID,omitempty"`
	BeforeID   dom.TagID         `json:"beforeID,omitempty"`
	FirstChild bool              `json:"firstChild,omitempty"`
	LastChild  bool              `json:"lastChild,omitempty"`
}

// String renders the edit for logs
func (e Edit) String() string {
	switch e.Type {
	case ElementInsert, ElementMove:
		return fmt.Sprintf("%s <%s> #%d into #%d", e.Type, e.Tag, e.TagID, e.ParentID)
	case ElementDelete:
		return fmt.Sprintf("%s #%d", e.Type, e.TagID)
	case AttrAdd, AttrChange, AttrDelete:
		return fmt.Sprintf("%s #%d %s=%q", e.Type, e.TagID, e.Attribute, e.Value)
	default:
		return fmt.Sprintf("%s in #%d %q", e.Type, e.ParentID, e.Content)
	}
}

// ChangeType summarizes an edit list
type ChangeType string

const (
	ChangeNone      ChangeType = "none"
	ChangeTextOnly  ChangeType = "text-only"
	ChangeAttribute ChangeType = "attribute"
	ChangeStructure ChangeType = "structure"
	ChangeComplex   ChangeType = "complex"
)

// Classify analyzes a set of edits and classifies the overall change pattern
func Classify(edits []Edit) ChangeType {
	if len(edits) == 0 {
		return ChangeNone
	}

	hasText := false
	hasAttribute := false
	hasStructure := false

	for _, e := range edits {
		switch e.Type {
		case TextInsert, TextReplace, TextDelete:
			hasText = true
		case AttrAdd, AttrChange, AttrDelete:
			hasAttribute = true
		default:
			hasStructure = true
		}
	}

	// Determine overall classification
	if hasStructure {
		if hasText || hasAttribute {
			return ChangeComplex
		}
		return ChangeStructure
	}

	if hasAttribute && hasText {
		return ChangeComplex
	}

	if hasAttribute {
		return ChangeAttribute
	}

	return ChangeTextOnly
}
