// Command janitor reconciles account records with the identity store on a
// schedule, and exposes a small operator API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sinc-labs/janitor/internal/config"
	"github.com/sinc-labs/janitor/internal/infra/observability"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rootOptions is shared by every subcommand.
type rootOptions struct {
	configPath string
	envFiles   []string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "janitor",
		Short: "Nightly account lifecycle reconciliation",
		Long: `janitor purges accounts marked for deletion from both the record store and
the identity store, and resets the usage counter of every other account.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("JANITOR_CONFIG"), "Path to a TOML config file")
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, ".env files to load (existing variables win)")

	cmd.AddCommand(
		newServeCmd(opts),
		newRunCmd(opts),
		newMigrateCmd(opts),
		newWelcomeCmd(opts),
		newTokenCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load() error {
	if err := config.LoadDotEnv(o.envFiles...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	o.cfg = cfg
	o.logger = observability.NewLogger(cfg.LogLevel)
	o.logger.Info("configuration loaded",
		zap.String("record_backend", cfg.RecordBackend),
		zap.String("identity_backend", cfg.IdentityBackend),
		zap.String("schedule_cron", cfg.ScheduleCron),
		zap.String("schedule_timezone", cfg.ScheduleTimezone),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Duration("action_timeout", cfg.ActionTimeout),
		zap.Bool("redis_lock", cfg.RedisAddr != ""),
	)
	return nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
