// Package processor runs the correction pipeline over a document: extract
// segments, check them, apply the edits and redistribute the corrected text
// over the original runs.
//
// Work is planned for the whole document before any run is written. A
// structural mismatch anywhere aborts the plan and leaves the document as it
// was.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xhad/docfix/internal/models"
	"github.com/xhad/docfix/internal/types"
	"github.com/xhad/docfix/pkg/checker"
	"github.com/xhad/docfix/pkg/edit"
	"github.com/xhad/docfix/pkg/extractor"
	"github.com/xhad/docfix/pkg/metrics"
	"github.com/xhad/docfix/pkg/remap"
)

type Mode string

const (
	// ModeParagraph sends each correctable paragraph on its own.
	ModeParagraph Mode = "paragraph"
	// ModeBatch sends the whole document as one newline-joined text.
	ModeBatch Mode = "batch"
)

func (m Mode) Valid() bool {
	return m == ModeParagraph || m == ModeBatch
}

var ErrStructuralMismatch = errors.New("structural mismatch")

type ProcessorConfig struct {
	Checker types.Checker
	Options *models.CheckOptions
	Mode    Mode

	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	OnProgress func(models.Progress)
}

type Processor struct {
	config ProcessorConfig
	logger *slog.Logger
}

func NewWithConfig(config ProcessorConfig) (*Processor, error) {
	if config.Checker == nil {
		return nil, fmt.Errorf("checker is required")
	}
	if config.Mode == "" {
		config.Mode = ModeParagraph
	}
	if !config.Mode.Valid() {
		return nil, fmt.Errorf("unknown mode %q", config.Mode)
	}
	if config.Options == nil {
		config.Options = checker.DefaultOptions(checker.DefaultLanguage)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		config: config,
		logger: logger,
	}, nil
}

// plan holds the new run texts of each paragraph that changes.
type plan map[int][]string

// Process corrects doc in place and reports what happened. Segments whose
// check fails keep their original text and are counted in Report.Failed. An
// ErrStructuralMismatch leaves doc unmodified.
func (p *Processor) Process(ctx context.Context, doc types.Document) (*models.Report, error) {
	paragraphs := doc.Paragraphs()
	segments := extractor.Extract(doc)

	report := &models.Report{
		Paragraphs: len(segments),
	}

	var (
		changes plan
		err     error
	)

	switch p.config.Mode {
	case ModeBatch:
		changes, err = p.planBatch(ctx, paragraphs, segments, report)
	default:
		changes, err = p.planParagraphs(ctx, paragraphs, segments, report)
	}

	if err != nil {
		p.config.Metrics.ObserveDocument("failed")
		return report, err
	}

	for i := range paragraphs {
		if texts, ok := changes[i]; ok {
			remap.Commit(paragraphs[i], texts)
		}
	}

	p.config.Metrics.ObserveReport(report)
	if report.Degraded() {
		p.config.Metrics.ObserveDocument("degraded")
	} else {
		p.config.Metrics.ObserveDocument("corrected")
	}

	p.logger.Info("document processed",
		"mode", p.config.Mode,
		"paragraphs", report.Paragraphs,
		"corrected", report.Corrected,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"edits_applied", report.EditsApplied,
		"edits_dropped", report.EditsDropped,
	)

	return report, nil
}

func (p *Processor) planParagraphs(ctx context.Context, paragraphs []types.Paragraph, segments []models.Segment, report *models.Report) (plan, error) {
	changes := plan{}
	p.progress(0, len(segments))

	for _, s := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch {
		case s.Skip:
			report.Skipped++

		case s.Text == "":
			report.Unchanged++

		default:
			corrected, ok := p.correct(ctx, s.Text, report)
			if !ok {
				report.Failed++
				report.Warnings = append(report.Warnings, fmt.Sprintf("paragraph %d was not corrected", s.Index+1))
				break
			}

			if corrected == s.Text {
				report.Unchanged++
				break
			}

			texts, err := remap.Plan(paragraphs[s.Index], corrected)
			if err != nil {
				return nil, fmt.Errorf("%w: paragraph %d: %v", ErrStructuralMismatch, s.Index+1, err)
			}
			changes[s.Index] = texts
			report.Corrected++
		}

		p.progress(s.Index+1, len(segments))
	}

	return changes, nil
}

func (p *Processor) planBatch(ctx context.Context, paragraphs []types.Paragraph, segments []models.Segment, report *models.Report) (plan, error) {
	changes := plan{}
	p.progress(0, len(segments))

	if !extractor.Aligned(segments) {
		return nil, fmt.Errorf("%w: a paragraph contains a line separator character", ErrStructuralMismatch)
	}

	pending := 0
	for _, s := range segments {
		if !s.Skip && s.Text != "" {
			pending++
		}
	}

	joined := extractor.Join(segments)

	corrected, failed := joined, false
	if pending > 0 {
		var ok bool
		corrected, ok = p.correct(ctx, joined, report)
		if !ok {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			failed = true
			report.Failed = pending
			report.Warnings = append(report.Warnings, "the document was not corrected")
		}
	}

	lines, err := extractor.Split(corrected, len(segments))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStructuralMismatch, err)
	}

	for _, s := range segments {
		line := lines[s.Index]

		switch {
		case s.Skip:
			report.Skipped++

		case failed && s.Text != "":
			// counted in Failed

		case line == s.Text:
			report.Unchanged++

		default:
			texts, err := remap.Plan(paragraphs[s.Index], line)
			if err != nil {
				return nil, fmt.Errorf("%w: paragraph %d: %v", ErrStructuralMismatch, s.Index+1, err)
			}
			changes[s.Index] = texts
			report.Corrected++
		}

		p.progress(s.Index+1, len(segments))
	}

	return changes, nil
}

// correct checks text and applies the resulting edits. It returns false when
// the checker failed, in which case text must be kept.
func (p *Processor) correct(ctx context.Context, text string, report *models.Report) (string, bool) {
	start := time.Now()
	matches, err := p.config.Checker.Check(ctx, text, p.config.Options)
	p.config.Metrics.ObserveCheck(time.Since(start), err)

	if err != nil {
		p.logger.Warn("correction failed, keeping original text",
			"error", err,
			"unavailable", errors.Is(err, checker.ErrServiceUnavailable),
		)
		return text, false
	}

	corrected, result := edit.ApplyWithResult(text, edit.FromMatches(matches))

	report.EditsApplied += result.Applied
	report.EditsDropped += result.Dropped()

	if result.Dropped() > 0 {
		p.logger.Debug("dropped edits",
			"malformed", result.Malformed,
			"overlapping", result.Overlapping,
		)
	}

	return corrected, true
}

func (p *Processor) progress(done, total int) {
	if p.config.OnProgress != nil {
		p.config.OnProgress(models.Progress{Done: done, Total: total})
	}
}
