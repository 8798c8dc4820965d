package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/xhad/docfix/internal/models"
	"github.com/xhad/docfix/pkg/docx"
	"github.com/xhad/docfix/pkg/processor"
)

type correctOptions struct {
	output   string
	language string
	mode     string
	provider string
}

func newCorrectCmd() *cobra.Command {
	var opts correctOptions

	cmd := &cobra.Command{
		Use:   "correct <in.docx>",
		Short: "Correct a document locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCorrect(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output path (default <name>_corrected.docx)")
	cmd.Flags().StringVar(&opts.language, "language", "", "document language (en, es, fr, de, pt)")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "paragraph or batch")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "languagetool or ollama")

	return cmd
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("paragraphs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func runCorrect(ctx context.Context, input string, opts correctOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if opts.provider != "" {
		cfg.Checker.Provider = opts.provider
	}
	if opts.language != "" {
		cfg.Processor.Language = opts.language
	}
	if opts.mode != "" {
		cfg.Processor.Mode = opts.mode
	}
	if err := validationError(cfg.Validate()); err != nil {
		return err
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	doc, err := docx.Open(data)
	if err != nil {
		return err
	}

	chk, err := newChecker(cfg)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar

	p, err := processor.NewWithConfig(processor.ProcessorConfig{
		Checker: chk,
		Options: cfg.CheckOptions(cfg.Processor.Language),
		Mode:    processor.Mode(cfg.Processor.Mode),
		Logger:  slog.Default().With("file", filepath.Base(input)),
		OnProgress: func(p models.Progress) {
			if bar == nil {
				bar = getProgressBar(p.Total, " Correcting "+filepath.Base(input))
			}
			bar.Set(p.Done)
		},
	})
	if err != nil {
		return err
	}

	color.Cyan("Correcting %s (%s, %s mode, %s)", input, cfg.Processor.Language, cfg.Processor.Mode, cfg.Checker.Provider)

	report, err := p.Process(ctx, doc)
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return fmt.Errorf("%s was not written: %w", input, err)
	}

	out, err := doc.Bytes()
	if err != nil {
		return err
	}

	output := opts.output
	if output == "" {
		output = correctedPath(input)
	}
	if err := os.WriteFile(output, out, 0644); err != nil {
		return err
	}

	printReport(report)
	color.Green("✓ Wrote %s", output)

	return nil
}

func correctedPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_corrected.docx"
}

func printReport(report *models.Report) {
	fmt.Printf("Paragraphs: %d (corrected %d, unchanged %d, skipped %d, failed %d)\n",
		report.Paragraphs, report.Corrected, report.Unchanged, report.Skipped, report.Failed)
	fmt.Printf("Edits: %d applied, %d dropped\n", report.EditsApplied, report.EditsDropped)

	if report.Degraded() {
		color.Yellow("Some content was not corrected:")
		for _, w := range report.Warnings {
			color.Yellow("  - %s", w)
		}
	}
}
