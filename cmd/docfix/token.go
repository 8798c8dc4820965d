package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Issue a payment token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			signer, err := newSigner(cfg)
			if err != nil {
				return err
			}

			token, claims, err := signer.Issue()
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			color.Cyan("Expires %s", claims.ExpiresAt.Time.Format(time.RFC3339))

			return nil
		},
	}
}
