package controller

import "github.com/kalambet/mmx/internal/backend"

// FilterState controls which result types are displayed. It is independent of
// the query lifecycle and resets to the default whenever a new result set is
// received.
type FilterState struct {
	ShowImages bool
	ShowAudio  bool
}

// DefaultFilter shows everything.
func DefaultFilter() FilterState {
	return FilterState{ShowImages: true, ShowAudio: true}
}

// FilterResults derives the displayed subset of a ranked result sequence.
// The input is never mutated and the original rank order is preserved.
func FilterResults(items []backend.ResultItem, f FilterState) []backend.ResultItem {
	out := make([]backend.ResultItem, 0, len(items))
	for _, it := range items {
		switch it.FileType {
		case backend.FileTypeImage:
			if f.ShowImages {
				out = append(out, it)
			}
		case backend.FileTypeAudio:
			if f.ShowAudio {
				out = append(out, it)
			}
		}
	}
	return out
}

// CountByType reports how many items of each type the unfiltered sequence
// contains, so filter toggles can display true totals even while hidden.
func CountByType(items []backend.ResultItem) map[backend.FileType]int {
	counts := make(map[backend.FileType]int)
	for _, it := range items {
		counts[it.FileType]++
	}
	return counts
}
