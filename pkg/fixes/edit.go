// Package fixes holds the correlation store between diagnostics and the
// concrete text edits that resolve them, plus the edit primitives needed to
// assemble and apply non-overlapping batches.
package fixes

import (
	"bytes"
	"fmt"
	"sort"
)

// TextEdit replaces the half-open byte range [Start, End) with NewText.
type TextEdit struct {
	Start   int    `json:"start"`
	End     int    `json:"end"`
	NewText string `json:"newText"`
}

// Overlaps reports whether two half-open ranges intersect.
func (e TextEdit) Overlaps(other TextEdit) bool {
	return e.Start < other.End && other.Start < e.End
}

// SortEdits orders edits by start offset, then end offset, so a batch can be
// applied in one left-to-right pass.
func SortEdits(edits []TextEdit) {
	sort.Slice(edits, func(i, j int) bool {
		if edits[i].Start != edits[j].Start {
			return edits[i].Start < edits[j].Start
		}
		return edits[i].End < edits[j].End
	})
}

// ValidateEdits checks edit ranges against the content length.
func ValidateEdits(edits []TextEdit, contentLen int) error {
	for _, e := range edits {
		switch {
		case e.Start < 0:
			return fmt.Errorf("invalid edit [%d:%d]: negative start offset", e.Start, e.End)
		case e.End < e.Start:
			return fmt.Errorf("invalid edit [%d:%d]: end before start", e.Start, e.End)
		case e.End > contentLen:
			return fmt.Errorf("invalid edit [%d:%d]: end exceeds content length %d", e.Start, e.End, contentLen)
		}
	}
	return nil
}

// ApplyEdits applies a sorted, non-overlapping batch of edits to content and
// returns the result. Prepare batches with SortEdits first.
func ApplyEdits(content []byte, edits []TextEdit) []byte {
	if len(edits) == 0 {
		return content
	}
	delta := 0
	for _, e := range edits {
		delta += len(e.NewText) - (e.End - e.Start)
	}

	var out bytes.Buffer
	out.Grow(len(content) + delta)

	cursor := 0
	for _, e := range edits {
		out.Write(content[cursor:e.Start])
		out.WriteString(e.NewText)
		cursor = e.End
	}
	out.Write(content[cursor:])

	return out.Bytes()
}
