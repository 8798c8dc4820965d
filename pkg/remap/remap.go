// Package remap redistributes a corrected paragraph text across the
// paragraph's original runs.
package remap

import (
	"errors"
	"strings"

	"github.com/xhad/docfix/internal/types"
)

// ErrNoRuns is returned when non-empty text has to be written into a
// paragraph without runs.
var ErrNoRuns = errors.New("paragraph has no runs to hold corrected text")

// Remap assigns corrected to runs positionally. Run i receives as many code
// points as it originally held, and the last run absorbs whatever remains, so
// the output always concatenates to corrected and keeps the run count.
func Remap(runs []string, corrected string) ([]string, error) {
	if len(runs) == 0 {
		if corrected != "" {
			return nil, ErrNoRuns
		}
		return []string{}, nil
	}

	text := []rune(corrected)
	out := make([]string, len(runs))
	cursor := 0

	for i, run := range runs {
		if i == len(runs)-1 {
			out[i] = string(text[cursor:])
			break
		}

		end := min(cursor+len([]rune(run)), len(text))
		out[i] = string(text[cursor:end])
		cursor = end
	}

	return out, nil
}

// Texts returns the text of each run.
func Texts(runs []types.Run) []string {
	texts := make([]string, len(runs))
	for i, r := range runs {
		texts[i] = r.Text()
	}
	return texts
}

// Text returns the paragraph text, the concatenation of its runs.
func Text(p types.Paragraph) string {
	var sb strings.Builder
	for _, r := range p.Runs() {
		sb.WriteString(r.Text())
	}
	return sb.String()
}

// Plan computes the new run texts for p without modifying it.
func Plan(p types.Paragraph, corrected string) ([]string, error) {
	return Remap(Texts(p.Runs()), corrected)
}

// Commit writes planned run texts back, touching only runs whose text changed.
func Commit(p types.Paragraph, texts []string) {
	for i, r := range p.Runs() {
		if i >= len(texts) {
			return
		}
		if r.Text() != texts[i] {
			r.SetText(texts[i])
		}
	}
}
