package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sinc-labs/janitor/internal/config"
	"github.com/sinc-labs/janitor/internal/domain"
	"github.com/sinc-labs/janitor/internal/handler"
	"github.com/sinc-labs/janitor/internal/infra/cache"
	"github.com/sinc-labs/janitor/internal/infra/lock"
	"github.com/sinc-labs/janitor/internal/infra/memory"
	"github.com/sinc-labs/janitor/internal/infra/observability"
	"github.com/sinc-labs/janitor/internal/infra/postgres"
	"github.com/sinc-labs/janitor/internal/infra/resilience"
	"github.com/sinc-labs/janitor/internal/infra/supabase"
	"github.com/sinc-labs/janitor/internal/port"
	"github.com/sinc-labs/janitor/internal/scheduler"
	"github.com/sinc-labs/janitor/internal/service"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// recordBackend is what every record-store adapter provides.
type recordBackend interface {
	port.RecordStore
	port.AccountProvisioner
}

// app holds the wired dependency graph.
type app struct {
	metrics    *observability.Metrics
	records    recordBackend
	identity   port.IdentityStore
	history    *service.RunHistory
	reconciler *service.Reconciler
	scheduler  *scheduler.Scheduler
	onboarding *service.Onboarding
	probes     []handler.Probe

	closers []func() error
}

func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{metrics: observability.NewMetrics()}

	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// --- Record store ---
	switch cfg.RecordBackend {
	case config.BackendSupabase:
		a.records = supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			supabase.NewBreaker("record-store"),
			resilienceCfg,
			logger,
		).WithPageSize(cfg.ScanPageSize)
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL, cfg.MaxConcurrency)
		if err != nil {
			return nil, err
		}
		store := postgres.NewStore(db, logger)
		a.records = store
		a.probes = append(a.probes, handler.Probe{Name: "postgres", Check: store.Ping})
		a.closers = append(a.closers, db.Close)
	default:
		logger.Warn("using in-memory record store; nothing is persisted")
		a.records = memory.NewRecordStore()
	}

	// --- Identity store ---
	switch cfg.IdentityBackend {
	case config.BackendSupabase:
		a.identity = supabase.NewIdentityClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseServiceKey,
			supabase.NewBreaker("identity-store"),
			cfg.MaxConcurrency,
			logger,
		)
	default:
		logger.Warn("using in-memory identity store")
		a.identity = memory.NewIdentityStore()
	}

	// --- Run lock ---
	var runLock port.RunLock
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		redisLock := lock.NewRedisLock(rdb, logger)
		runLock = redisLock
		a.probes = append(a.probes, handler.Probe{Name: "redis", Check: redisLock.Ping})
		a.closers = append(a.closers, rdb.Close)
	} else {
		runLock = lock.NewLocalLock()
	}

	// --- Services ---
	runCache := cache.New[*domain.RunSummary](cfg.RunHistoryTTL)
	a.closers = append(a.closers, func() error { runCache.Close(); return nil })
	a.history = service.NewRunHistory(runCache)

	a.reconciler = service.NewReconciler(
		a.records,
		a.identity,
		a.history,
		service.ReconcilerConfig{
			MaxConcurrency: cfg.MaxConcurrency,
			ActionTimeout:  cfg.ActionTimeout,
		},
		a.metrics,
		logger,
	)
	a.onboarding = service.NewOnboarding(a.records, logger)

	sched, err := scheduler.New(a.reconciler, runLock, scheduler.Config{
		Cron:       cfg.ScheduleCron,
		Timezone:   cfg.ScheduleTimezone,
		LockTTL:    cfg.LockTTL,
		RunTimeout: cfg.RunTimeout,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	a.scheduler = sched

	return a, nil
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}
