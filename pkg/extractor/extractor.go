// Package extractor classifies a document's paragraphs into correctable and
// skipped segments, and builds the joined text used by batch correction.
package extractor

import (
	"fmt"
	"strings"

	"github.com/xhad/docfix/internal/models"
	"github.com/xhad/docfix/internal/types"
	"github.com/xhad/docfix/pkg/remap"
)

const (
	// Separator joins paragraph texts in batch mode. Line i is paragraph i.
	Separator = "\n"

	// LineBreak stands in for a newline inside a paragraph, a soft break,
	// while the paragraph travels as one line of the joined text.
	LineBreak = "\u2028"
)

// SkipMarkers are the run markers that make a paragraph skippable.
var SkipMarkers = []types.MarkerKind{types.FootnoteReference}

// Extract returns one segment per paragraph, in document order.
func Extract(doc types.Document) []models.Segment {
	paragraphs := doc.Paragraphs()
	segments := make([]models.Segment, 0, len(paragraphs))

	for i, p := range paragraphs {
		segments = append(segments, models.Segment{
			Index: i,
			Text:  remap.Text(p),
			Skip:  IsSkippable(p),
		})
	}

	return segments
}

// IsSkippable reports whether any run of p carries a skip marker. The test is
// structural: run text is never inspected.
func IsSkippable(p types.Paragraph) bool {
	for _, r := range p.Runs() {
		for _, kind := range SkipMarkers {
			if r.HasStructuralMarker(kind) {
				return true
			}
		}
	}
	return false
}

// Join concatenates every segment's text, skipped ones included, one per line.
// Newlines inside a segment are written as LineBreak.
func Join(segments []models.Segment) string {
	lines := make([]string, len(segments))
	for i, s := range segments {
		lines[i] = strings.ReplaceAll(s.Text, Separator, LineBreak)
	}
	return strings.Join(lines, Separator)
}

// MismatchError reports a batch text whose line count no longer matches the
// number of paragraphs it was built from.
type MismatchError struct {
	Want int
	Got  int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("corrected text has %d lines, expected %d", e.Got, e.Want)
}

// Split breaks a joined text back into want lines and restores the newlines
// Join replaced.
func Split(text string, want int) ([]string, error) {
	if want == 0 {
		if text != "" {
			return nil, &MismatchError{Want: 0, Got: 1}
		}
		return []string{}, nil
	}

	lines := strings.Split(text, Separator)
	if len(lines) != want {
		return nil, &MismatchError{Want: want, Got: len(lines)}
	}
	for i, line := range lines {
		lines[i] = strings.ReplaceAll(line, LineBreak, Separator)
	}

	return lines, nil
}

// Aligned reports whether joining segments is reversible, which fails when a
// paragraph's own text already contains LineBreak.
func Aligned(segments []models.Segment) bool {
	for _, s := range segments {
		if strings.Contains(s.Text, LineBreak) {
			return false
		}
	}
	return true
}
