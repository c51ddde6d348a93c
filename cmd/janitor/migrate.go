package main

import (
	"errors"

	"github.com/sinc-labs/janitor/internal/config"
	"github.com/sinc-labs/janitor/internal/infra/postgres"

	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cfg.RecordBackend != config.BackendPostgres {
				return errors.New("migrate requires RECORD_BACKEND=postgres")
			}

			db, err := postgres.Open(cmd.Context(), cfg.DatabaseURL, 1)
			if err != nil {
				return err
			}
			defer db.Close()

			return postgres.Migrate(db.DB, opts.logger)
		},
	}
}
