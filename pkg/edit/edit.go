// Package edit splices offset-based replacements into a text segment.
//
// Offsets and lengths are code points in the segment's original text. Edits
// are applied left to right while a running delta shifts each edit by the net
// length change of the edits spliced before it.
package edit

import (
	"sort"

	"github.com/xhad/docfix/internal/models"
)

// Result summarizes how a set of edits was resolved against a text.
type Result struct {
	Applied int
	// Clamped edits ran past the end of the text and were shortened.
	Clamped int
	// Malformed edits had a negative offset or length, or started past the end.
	Malformed int
	// Overlapping edits shared original positions with an earlier edit.
	Overlapping int
}

// Dropped is the number of edits that were not applied.
func (r Result) Dropped() int {
	return r.Malformed + r.Overlapping
}

// FromMatches converts matches to edits using each match's first suggestion.
// Matches without suggestions are informational and yield no edit.
func FromMatches(matches []models.Match) []models.Edit {
	edits := make([]models.Edit, 0, len(matches))

	for _, m := range matches {
		if len(m.Replacements) == 0 {
			continue
		}

		edits = append(edits, models.Edit{
			Offset:      m.Offset,
			Length:      m.Length,
			Replacement: m.Replacements[0].Value,
		})
	}

	return edits
}

// Resolve orders edits for a text of n code points and removes the ones that
// cannot be spliced safely. Edits are sorted by offset, ties keep input order.
// An edit overlapping an earlier one in sorted order is dropped, so the first
// edit wins. Edits ending past n are clamped to n.
func Resolve(n int, edits []models.Edit) ([]models.Edit, Result) {
	var result Result

	sorted := make([]models.Edit, len(edits))
	copy(sorted, edits)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	resolved := sorted[:0]
	end := 0

	for _, e := range sorted {
		if e.Offset < 0 || e.Length < 0 || e.Offset > n {
			result.Malformed++
			continue
		}

		if e.End() > n {
			e.Length = n - e.Offset
			result.Clamped++
		}

		if e.Offset < end {
			result.Overlapping++
			continue
		}

		resolved = append(resolved, e)
		end = e.End()
	}

	return resolved, result
}

// Apply returns text with edits spliced in. An empty edit set is the identity.
func Apply(text string, edits []models.Edit) string {
	corrected, _ := ApplyWithResult(text, edits)
	return corrected
}

// ApplyWithResult is Apply, also reporting which edits were applied or dropped.
func ApplyWithResult(text string, edits []models.Edit) (string, Result) {
	if len(edits) == 0 {
		return text, Result{}
	}

	runes := []rune(text)

	resolved, result := Resolve(len(runes), edits)
	if len(resolved) == 0 {
		return text, result
	}

	delta := 0
	for _, e := range resolved {
		start := e.Offset + delta
		end := start + e.Length
		replacement := []rune(e.Replacement)

		runes = splice(runes, start, end, replacement)
		delta += len(replacement) - e.Length
	}

	result.Applied = len(resolved)

	return string(runes), result
}

func splice(runes []rune, start, end int, replacement []rune) []rune {
	out := make([]rune, 0, len(runes)-(end-start)+len(replacement))
	out = append(out, runes[:start]...)
	out = append(out, replacement...)
	return append(out, runes[end:]...)
}
