package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"luftscan/internal/platform/auth"
)

func newTokenCmd(a *app) *cobra.Command {
	var (
		subject string
		scope   string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the scan API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tokens, err := auth.NewTokenService(a.cfg.Server.JWTSigningKey)
			if err != nil {
				return err
			}
			if ttl == 0 {
				ttl = a.cfg.Server.TokenTTL
			}
			token, err := tokens.Issue(subject, scope, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject")
	cmd.Flags().StringVar(&scope, "scope", "scans", "token scope")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, default server.token_ttl")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
