// Package scheduler fires the reconciliation job on a cron schedule in a
// configured time zone, guarded so only one run happens at a time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sinc-labs/janitor/internal/domain"
	"github.com/sinc-labs/janitor/internal/port"
	"go.uber.org/zap"
)

// DefaultLockKey is shared by every replica.
const DefaultLockKey = "janitor:reconcile"

// Config holds the trigger settings.
type Config struct {
	Cron       string
	Timezone   string
	LockKey    string
	LockTTL    time.Duration
	RunTimeout time.Duration
}

// Scheduler owns the cron instance and the run guard.
type Scheduler struct {
	runner port.Runner
	lock   port.RunLock
	cfg    Config
	loc    *time.Location
	sched  cron.Schedule
	cron   *cron.Cron
	entry  cron.EntryID
	logger *zap.Logger
}

// ParseSchedule validates a five-field cron spec and time zone.
func ParseSchedule(spec, tz string) (cron.Schedule, *time.Location, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid time zone %q: %w", tz, err)
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return sched, loc, nil
}

// New builds a scheduler. lock may be nil, in which case runs are only
// serialised within this process by the cron chain.
func New(runner port.Runner, lock port.RunLock, cfg Config, logger *zap.Logger) (*Scheduler, error) {
	if cfg.Cron == "" {
		cfg.Cron = "0 0 * * *"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.LockKey == "" {
		cfg.LockKey = DefaultLockKey
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Minute
	}

	sched, loc, err := ParseSchedule(cfg.Cron, cfg.Timezone)
	if err != nil {
		return nil, err
	}

	cl := cronLogger{logger: logger}
	return &Scheduler{
		runner: runner,
		lock:   lock,
		cfg:    cfg,
		loc:    loc,
		sched:  sched,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}, nil
}

// Start registers the job and starts the cron loop. Runs fired by the
// schedule derive their context from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.cfg.Cron, func() { s.fire(ctx) })
	if err != nil {
		return fmt.Errorf("register job: %w", err)
	}
	s.entry = id
	s.cron.Start()

	s.logger.Info("scheduler started",
		zap.String("cron", s.cfg.Cron),
		zap.String("timezone", s.loc.String()),
		zap.Time("next_run", s.Next()),
	)
	return nil
}

// Stop halts the schedule and waits for an in-flight run or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next fire time in the configured zone.
func (s *Scheduler) Next() time.Time {
	return s.sched.Next(time.Now().In(s.loc))
}

// Location is the configured time zone.
func (s *Scheduler) Location() *time.Location { return s.loc }

// Trigger runs the job once now. It returns domain.ErrRunInProgress when
// another run holds the lock.
func (s *Scheduler) Trigger(ctx context.Context) (*domain.RunSummary, error) {
	if s.lock != nil {
		release, ok, err := s.lock.TryAcquire(ctx, s.cfg.LockKey, s.cfg.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("run lock: %w", err)
		}
		if !ok {
			return nil, domain.ErrRunInProgress
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to release run lock", zap.Error(err))
			}
		}()
	}

	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}
	return s.runner.Run(ctx)
}

func (s *Scheduler) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_, err := s.Trigger(ctx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrRunInProgress):
		s.logger.Info("scheduled run skipped, another run holds the lock")
	default:
		var scan *domain.ErrScanFailure
		if !errors.As(err, &scan) {
			s.logger.Error("scheduled run failed", zap.Error(err))
		}
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
