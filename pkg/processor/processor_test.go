package processor_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/docfix/internal/doctest"
	"github.com/xhad/docfix/internal/models"
	"github.com/xhad/docfix/pkg/checker"
	"github.com/xhad/docfix/pkg/docx"
	"github.com/xhad/docfix/pkg/processor"
)

type fakeChecker struct {
	calls []string
	check func(text string) ([]models.Match, error)
}

func (f *fakeChecker) Check(ctx context.Context, text string, options *models.CheckOptions) ([]models.Match, error) {
	f.calls = append(f.calls, text)
	if f.check == nil {
		return nil, nil
	}
	return f.check(text)
}

// fixer suggests replacing every occurrence of each old word with its new one.
func fixer(pairs ...string) func(string) ([]models.Match, error) {
	return func(text string) ([]models.Match, error) {
		var matches []models.Match
		for i := 0; i+1 < len(pairs); i += 2 {
			old, replacement := pairs[i], pairs[i+1]
			for from := 0; ; {
				j := strings.Index(text[from:], old)
				if j < 0 {
					break
				}
				at := from + j
				matches = append(matches, models.Match{
					Offset:       utf8.RuneCountInString(text[:at]),
					Length:       utf8.RuneCountInString(old),
					Replacements: []models.Replacement{{Value: replacement}},
				})
				from = at + len(old)
			}
		}
		return matches, nil
	}
}

func newProcessor(t *testing.T, c *fakeChecker, mode processor.Mode) *processor.Processor {
	t.Helper()

	p, err := processor.NewWithConfig(processor.ProcessorConfig{
		Checker: c,
		Mode:    mode,
	})
	require.NoError(t, err)
	return p
}

func TestProcessParagraphs(t *testing.T) {
	doc := doctest.NewDocument(
		[]string{"Thsi ", "is ", "bold"},
		[]string{"See teh note", ""},
		[]string{},
		[]string{"Teh ", "end"},
	).WithFootnote(1)

	c := &fakeChecker{check: fixer("Thsi", "This", "teh", "the", "Teh", "The")}
	p := newProcessor(t, c, processor.ModeParagraph)

	report, err := p.Process(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"This ", "is ", "bold"}, doc.Paras[0].Texts())
	assert.Equal(t, []string{"See teh note", ""}, doc.Paras[1].Texts())
	assert.Empty(t, doc.Paras[2].Texts())
	assert.Equal(t, []string{"The ", "end"}, doc.Paras[3].Texts())

	assert.Equal(t, []string{"Thsi is bold", "Teh end"}, c.calls)

	assert.Equal(t, 4, report.Paragraphs)
	assert.Equal(t, 2, report.Corrected)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 2, report.EditsApplied)
	assert.False(t, report.Degraded())
}

func TestProcessServiceUnavailable(t *testing.T) {
	doc := doctest.NewDocument(
		[]string{"Teh first"},
		[]string{"Teh ", "second down"},
		[]string{"Teh third"},
	)

	fix := fixer("Teh", "The")
	c := &fakeChecker{check: func(text string) ([]models.Match, error) {
		if strings.Contains(text, "down") {
			return nil, checker.ErrServiceUnavailable
		}
		return fix(text)
	}}
	p := newProcessor(t, c, processor.ModeParagraph)

	report, err := p.Process(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"The first"}, doc.Paras[0].Texts())
	assert.Equal(t, []string{"Teh ", "second down"}, doc.Paras[1].Texts())
	assert.Equal(t, []string{"The third"}, doc.Paras[2].Texts())

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Corrected)
	assert.True(t, report.Degraded())
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "paragraph 2")
}

func TestProcessDropsBadEdits(t *testing.T) {
	doc := doctest.NewDocument([]string{"Teh ", "cat"})

	c := &fakeChecker{check: func(text string) ([]models.Match, error) {
		return []models.Match{
			{Offset: -1, Length: 1, Replacements: []models.Replacement{{Value: "x"}}},
			{Offset: 100, Length: 1, Replacements: []models.Replacement{{Value: "y"}}},
			{Offset: 0, Length: 3, Replacements: []models.Replacement{{Value: "The"}}},
			{Offset: 1, Length: 1, Replacements: []models.Replacement{{Value: "E"}}},
			{Offset: 4, Length: 3, Message: "informational only"},
		}, nil
	}}
	p := newProcessor(t, c, processor.ModeParagraph)

	report, err := p.Process(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"The ", "cat"}, doc.Paras[0].Texts())
	assert.Equal(t, 1, report.EditsApplied)
	assert.Equal(t, 3, report.EditsDropped)
}

func TestProcessProgress(t *testing.T) {
	for _, mode := range []processor.Mode{processor.ModeParagraph, processor.ModeBatch} {
		t.Run(string(mode), func(t *testing.T) {
			doc := doctest.NewDocument(
				[]string{"one"},
				[]string{"two"},
				[]string{"three"},
			).WithFootnote(1)

			var fractions []float64
			p, err := processor.NewWithConfig(processor.ProcessorConfig{
				Checker: &fakeChecker{},
				Mode:    mode,
				OnProgress: func(progress models.Progress) {
					fractions = append(fractions, progress.Fraction())
				},
			})
			require.NoError(t, err)

			_, err = p.Process(context.Background(), doc)
			require.NoError(t, err)

			require.NotEmpty(t, fractions)
			assert.Equal(t, 0.0, fractions[0])
			assert.Equal(t, 1.0, fractions[len(fractions)-1])
			for i := 1; i < len(fractions); i++ {
				assert.GreaterOrEqual(t, fractions[i], fractions[i-1])
			}
		})
	}
}

func TestProcessEmptyDocument(t *testing.T) {
	c := &fakeChecker{}
	p := newProcessor(t, c, processor.ModeBatch)

	report, err := p.Process(context.Background(), doctest.NewDocument())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Paragraphs)
	assert.Empty(t, c.calls)
}

func TestProcessCanceled(t *testing.T) {
	doc := doctest.NewDocument([]string{"Teh cat"})
	c := &fakeChecker{check: fixer("Teh", "The")}
	p := newProcessor(t, c, processor.ModeParagraph)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Process(ctx, doc)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"Teh cat"}, doc.Paras[0].Texts())
}

func TestProcessBatch(t *testing.T) {
	doc := doctest.NewDocument(
		[]string{"Teh ", "start"},
		[]string{"Footnote teh"},
		[]string{},
		[]string{"teh end"},
	).WithFootnote(1)

	c := &fakeChecker{check: fixer("Teh", "The", "teh", "the")}
	p := newProcessor(t, c, processor.ModeBatch)

	report, err := p.Process(context.Background(), doc)
	require.NoError(t, err)

	require.Len(t, c.calls, 1)
	assert.Equal(t, "Teh start\nFootnote teh\n\nteh end", c.calls[0])

	assert.Equal(t, []string{"The ", "start"}, doc.Paras[0].Texts())
	assert.Equal(t, []string{"Footnote teh"}, doc.Paras[1].Texts())
	assert.Empty(t, doc.Paras[2].Texts())
	assert.Equal(t, []string{"the end"}, doc.Paras[3].Texts())

	assert.Equal(t, 2, report.Corrected)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Unchanged)
}

func TestProcessBatchZeroEdits(t *testing.T) {
	doc := doctest.NewDocument(
		[]string{"Hello world"},
		[]string{""},
		[]string{"Goodbye."},
	)

	c := &fakeChecker{}
	p := newProcessor(t, c, processor.ModeBatch)

	report, err := p.Process(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"Hello world\n\nGoodbye."}, c.calls)
	assert.Equal(t, []string{"Hello world"}, doc.Paras[0].Texts())
	assert.Equal(t, []string{""}, doc.Paras[1].Texts())
	assert.Equal(t, []string{"Goodbye."}, doc.Paras[2].Texts())
	assert.Equal(t, 3, report.Unchanged)
}

func TestProcessDocxBreaksAndTabs(t *testing.T) {
	tests := []struct {
		mode  processor.Mode
		calls []string
	}{
		{
			mode:  processor.ModeParagraph,
			calls: []string{"Teh cat sat\non teh mat", "Name:\tteh author"},
		},
		{
			mode:  processor.ModeBatch,
			calls: []string{"Teh cat sat\u2028on teh mat\nName:\tteh author"},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			doc, err := docx.Open(doctest.DOCX(doctest.DocumentXML(
				doctest.P(`<w:r><w:rPr><w:b/></w:rPr><w:t>Teh cat sat</w:t><w:br/><w:t>on teh mat</w:t></w:r>`),
				doctest.P(`<w:r><w:t>Name:</w:t><w:tab/><w:t>teh author</w:t></w:r>`),
			)))
			require.NoError(t, err)

			c := &fakeChecker{check: fixer("Teh", "The", "teh", "the")}
			p := newProcessor(t, c, tt.mode)

			report, err := p.Process(context.Background(), doc)
			require.NoError(t, err)
			assert.Equal(t, tt.calls, c.calls)
			assert.Equal(t, 2, report.Corrected)

			data, err := doc.Bytes()
			require.NoError(t, err)

			layout, err := doctest.RunLayout(data)
			require.NoError(t, err)
			assert.Equal(t, [][]string{
				{"rPr", "t:The cat sat", "br", "t:on the mat"},
				{"t:Name:", "tab", "t:the author"},
			}, layout)
		})
	}
}

func TestProcessBatchStructuralMismatch(t *testing.T) {
	tests := []struct {
		name       string
		paragraphs [][]string
		matches    []models.Match
	}{
		{
			name:       "line count changed",
			paragraphs: [][]string{{"Teh cat"}, {"sat"}},
			matches: []models.Match{
				{Offset: 0, Length: 3, Replacements: []models.Replacement{{Value: "The"}}},
				{Offset: 7, Length: 1, Replacements: []models.Replacement{{Value: " "}}},
			},
		},
		{
			name:       "text for a paragraph without runs",
			paragraphs: [][]string{{"a"}, {}, {"b"}},
			matches: []models.Match{
				{Offset: 0, Length: 1, Replacements: []models.Replacement{{Value: "A"}}},
				{Offset: 2, Length: 0, Replacements: []models.Replacement{{Value: "x"}}},
			},
		},
		{
			name:       "paragraph with a line separator character",
			paragraphs: [][]string{{"Teh"}, {"two\u2028lines"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := doctest.NewDocument(tt.paragraphs...)

			c := &fakeChecker{check: func(string) ([]models.Match, error) {
				return tt.matches, nil
			}}
			p := newProcessor(t, c, processor.ModeBatch)

			_, err := p.Process(context.Background(), doc)
			assert.ErrorIs(t, err, processor.ErrStructuralMismatch)

			for i, para := range doc.Paras {
				assert.Equal(t, tt.paragraphs[i], para.Texts())
			}
		})
	}
}

func TestProcessBatchServiceUnavailable(t *testing.T) {
	doc := doctest.NewDocument(
		[]string{"Teh one"},
		[]string{""},
		[]string{"Teh two"},
	)

	c := &fakeChecker{check: func(string) ([]models.Match, error) {
		return nil, errors.New("connection reset")
	}}
	p := newProcessor(t, c, processor.ModeBatch)

	report, err := p.Process(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"Teh one"}, doc.Paras[0].Texts())
	assert.Equal(t, []string{"Teh two"}, doc.Paras[2].Texts())
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 1, report.Unchanged)
	assert.True(t, report.Degraded())
}

func TestNewWithConfig(t *testing.T) {
	_, err := processor.NewWithConfig(processor.ProcessorConfig{})
	assert.Error(t, err)

	_, err = processor.NewWithConfig(processor.ProcessorConfig{Checker: &fakeChecker{}, Mode: "sentence"})
	assert.Error(t, err)

	p, err := processor.NewWithConfig(processor.ProcessorConfig{Checker: &fakeChecker{}})
	require.NoError(t, err)
	assert.NotNil(t, p)
}
