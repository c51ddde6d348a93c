package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sinc-labs/janitor/internal/domain"
	"github.com/sinc-labs/janitor/internal/infra/observability"

	"github.com/spf13/cobra"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one reconciliation now and print its summary",
		Long: `Runs the reconciliation once, under the same lock as the scheduled job,
and writes the run summary as JSON to stdout. Exits non-zero when the scan
fails, or with --strict when any action failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := opts.cfg, opts.logger

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "janitor")
			if err != nil {
				return fmt.Errorf("init tracer: %w", err)
			}
			defer shutdownTracer(cmd.Context())

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, runErr := a.scheduler.Trigger(ctx)
			if summary != nil {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(summary); err != nil {
					return err
				}
			}
			if runErr != nil {
				return runErr
			}
			if strict && summary.Status == domain.RunStatusPartial {
				return fmt.Errorf("%d action(s) failed", len(summary.Errors))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any action failed")
	return cmd
}
