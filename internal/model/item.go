package model

import (
	"sort"
	"strconv"
	"strings"
)

// Stage is a review-pipeline state. Every pull request the backend serves
// sits in exactly one stage.
type Stage int

const (
	AwaitingChanges Stage = iota
	New
	NeedsReviewer
	NeedsMerger
)

// Stages lists all pipeline stages in display order.
var Stages = [...]Stage{AwaitingChanges, New, NeedsReviewer, NeedsMerger}

// Param returns the category value the backend expects in query strings.
func (s Stage) Param() string {
	switch s {
	case AwaitingChanges:
		return "AwaitingChanges"
	case New:
		return "New"
	case NeedsReviewer:
		return "NeedsReviewer"
	case NeedsMerger:
		return "NeedsMerger"
	default:
		return "Unknown"
	}
}

// String returns the stage name shown in the UI.
func (s Stage) String() string {
	switch s {
	case AwaitingChanges:
		return "Awaiting Changes"
	case New:
		return "New"
	case NeedsReviewer:
		return "Needs Reviewer"
	case NeedsMerger:
		return "Needs Merger"
	default:
		return "Unknown"
	}
}

// Item is one pull request as supplied by the item feed. The dashboard
// never mutates it; a fresh set arrives on every refresh.
type Item struct {
	ID     string
	Title  string
	Labels []string
	URL    string
	Stage  Stage
}

// SearchText returns the text the include/exclude patterns match against.
func (it Item) SearchText() string {
	if len(it.Labels) == 0 {
		return it.Title
	}
	return it.Title + " " + strings.Join(it.Labels, " ")
}

// FilterSpec is the reviewer's include/exclude filter. An empty pattern
// places no constraint. Patterns are literal substrings, never syntax.
type FilterSpec struct {
	Include string
	Exclude string
}

// SortLabels orders labels for display: a name starting with "<number>."
// sorts by that number, everything else sorts after it by name length.
func SortLabels(labels []string) {
	sort.SliceStable(labels, func(i, j int) bool {
		return labelKey(labels[i]) < labelKey(labels[j])
	})
}

func labelKey(name string) int {
	if pre, _, ok := strings.Cut(name, "."); ok {
		if n, err := strconv.Atoi(pre); err == nil {
			return n
		}
	}
	return 20 + len(name)
}
