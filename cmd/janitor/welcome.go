package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWelcomeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "welcome ACCOUNT_ID",
		Short: "Create an account record, or merge the welcome defaults into it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.onboarding.Welcome(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account %s welcomed\n", args[0])
			return nil
		},
	}
}
