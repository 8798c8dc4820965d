package models

// Replacement is a single suggestion attached to a Match.
type Replacement struct {
	Value string `json:"value"`
}

// Match is a candidate edit as reported by a correction service. Offset and
// Length are code-point positions in the text that was submitted.
type Match struct {
	Offset       int           `json:"offset"`
	Length       int           `json:"length"`
	Replacements []Replacement `json:"replacements"`
	Message      string        `json:"message,omitempty"`
	RuleID       string        `json:"ruleId,omitempty"`
	Category     string        `json:"category,omitempty"`
}

// Edit is an offset-based replacement over a segment's original text.
type Edit struct {
	Offset      int
	Length      int
	Replacement string
}

// End returns the exclusive end offset of the edit.
func (e Edit) End() int {
	return e.Offset + e.Length
}

type Segment struct {
	Index int
	Text  string
	Skip  bool
}

type Progress struct {
	Done  int
	Total int
}

// Fraction reports completed work in [0, 1]. An empty document is complete.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 1
	}
	return float64(p.Done) / float64(p.Total)
}

type Report struct {
	Paragraphs int `json:"paragraphs"`
	Corrected  int `json:"corrected"`
	Unchanged  int `json:"unchanged"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`

	EditsApplied int `json:"edits_applied"`
	EditsDropped int `json:"edits_dropped"`

	Warnings []string `json:"warnings,omitempty"`
}

// Degraded is true when some content could not be corrected.
func (r *Report) Degraded() bool {
	return r.Failed > 0 || len(r.Warnings) > 0
}
