package main

import (
	"context"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/docfix/internal/types"
	"github.com/xhad/docfix/pkg/metrics"
	"github.com/xhad/docfix/pkg/payment"
	"github.com/xhad/docfix/pkg/store"
	"github.com/xhad/docfix/server"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")

	return cmd
}

func runServe(ctx context.Context, addr string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := validationError(cfg.ValidateServer()); err != nil {
		return err
	}

	chk, err := newChecker(cfg)
	if err != nil {
		return err
	}

	signer, err := newSigner(cfg)
	if err != nil {
		return err
	}

	m := metrics.New()

	var ledger types.Ledger
	if cfg.Payment.SingleUse && cfg.Database.URL != "" {
		l, err := store.NewWithConfig(ctx, store.LedgerConfig{
			ConnString: cfg.Database.URL,
			TableName:  cfg.Database.TableName,
		})
		if err != nil {
			return err
		}
		defer l.Close()

		ledger = l
		slog.Info("redeemed tokens stored in postgres", "table", cfg.Database.TableName)
	}

	gate, err := payment.NewGate(payment.GateConfig{
		Signer:    signer,
		Ledger:    ledger,
		SingleUse: cfg.Payment.SingleUse,
		Metrics:   m,
	})
	if err != nil {
		return err
	}

	s, err := server.New(server.Options{
		Config:  cfg,
		Checker: chk,
		Gate:    gate,
		Signer:  signer,
		Metrics: m,
		Logger:  slog.Default(),
	})
	if err != nil {
		return err
	}

	if addr == "" {
		addr = cfg.Server.Addr
	}

	color.Green("✓ Serving on %s (%s checker)", addr, cfg.Checker.Provider)
	if cfg.Payment.DevTokens {
		color.Yellow("Dev tokens are enabled: POST /api/tokens issues tokens without payment")
	}

	return s.ListenAndServe(ctx, addr)
}
