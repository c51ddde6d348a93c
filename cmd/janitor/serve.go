package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sinc-labs/janitor/internal/handler"
	"github.com/sinc-labs/janitor/internal/infra/observability"
	"github.com/sinc-labs/janitor/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var noSchedule bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the operator API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts, noSchedule)
		},
	}
	cmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "Serve the operator API without the cron trigger")
	return cmd
}

func serve(parent context.Context, opts *rootOptions, noSchedule bool) error {
	cfg, logger := opts.cfg, opts.logger

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "janitor")
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	auth := service.NewOperatorAuth(cfg.OperatorJWTSecret)
	if auth == nil {
		logger.Warn("OPERATOR_JWT_SECRET not set, operator endpoints disabled")
	}

	router := handler.NewRouter(handler.Services{
		Trigger:    a.scheduler,
		History:    a.history,
		Onboarding: a.onboarding,
		Auth:       auth,
		Probes:     a.probes,
	}, a.metrics, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RunTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if !noSchedule {
		if err := a.scheduler.Start(ctx); err != nil {
			return err
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}
	if !noSchedule {
		if err := a.scheduler.Stop(shutdownCtx); err != nil {
			logger.Warn("scheduled run still in flight at shutdown", zap.Error(err))
		}
	}

	logger.Info("server stopped")
	return nil
}
