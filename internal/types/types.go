package types

import (
	"context"

	"github.com/xhad/docfix/internal/models"
)

// MarkerKind names a structural, non-text child of a run.
type MarkerKind string

const (
	FootnoteReference MarkerKind = "footnoteReference"
	EndnoteReference  MarkerKind = "endnoteReference"
)

// Core interfaces
type Run interface {
	Text() string
	SetText(text string)
	HasStructuralMarker(kind MarkerKind) bool
}

type Paragraph interface {
	Runs() []Run
}

type Document interface {
	Paragraphs() []Paragraph
}

type Checker interface {
	Check(ctx context.Context, text string, options *models.CheckOptions) ([]models.Match, error)
}

type Ledger interface {
	Redeem(ctx context.Context, tokenID string) error
}
