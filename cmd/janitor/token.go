package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/sinc-labs/janitor/internal/service"

	"github.com/spf13/cobra"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator bearer token for the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			auth := service.NewOperatorAuth(opts.cfg.OperatorJWTSecret)
			if auth == nil {
				return errors.New("OPERATOR_JWT_SECRET is not set")
			}
			token, err := auth.Issue(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "Token subject, shown in audit logs")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
