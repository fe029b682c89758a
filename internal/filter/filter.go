// Package filter derives the visible subset of a stage's item list.
package filter

import (
	"strings"

	"prdeck/internal/model"
)

// HideSet answers membership queries for dismissed item ids.
type HideSet interface {
	IsHidden(id string) bool
}

// Visible returns the items that survive the reviewer's filter and hide
// set, preserving the order the feed delivered them in. An item is kept
// iff it is not hidden, its search text contains the include pattern, and
// its search text does not contain the exclude pattern. Empty patterns
// place no constraint; both are matched as literal, case-sensitive
// substrings. A nil hidden set hides nothing.
func Visible(items []model.Item, spec model.FilterSpec, hidden HideSet) []model.Item {
	var out []model.Item
	for _, it := range items {
		if hidden != nil && hidden.IsHidden(it.ID) {
			continue
		}
		text := it.SearchText()
		if spec.Include != "" && !strings.Contains(text, spec.Include) {
			continue
		}
		if spec.Exclude != "" && strings.Contains(text, spec.Exclude) {
			continue
		}
		out = append(out, it)
	}
	return out
}
