package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sinc-labs/janitor/internal/domain"
	"github.com/sinc-labs/janitor/internal/infra/observability"
	"github.com/sinc-labs/janitor/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service/reconciler")

// ReconcilerConfig bounds the fan-out of a run.
type ReconcilerConfig struct {
	// MaxConcurrency caps in-flight accounts. Zero means unbounded.
	MaxConcurrency int
	// ActionTimeout bounds each store call. Zero means no per-call deadline.
	ActionTimeout time.Duration
}

// Reconciler purges accounts marked for deletion from both stores and
// resets the usage counter of every other account.
type Reconciler struct {
	records  port.RecordStore
	identity port.IdentityStore
	history  *RunHistory
	cfg      ReconcilerConfig
	metrics  *observability.Metrics
	logger   *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewReconciler creates the reconciler with all dependencies injected.
// history may be nil.
func NewReconciler(
	records port.RecordStore,
	identity port.IdentityStore,
	history *RunHistory,
	cfg ReconcilerConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		records:  records,
		identity: identity,
		history:  history,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Run executes one reconciliation. Per-account failures are collected in the
// summary; only a failed scan returns an error (*domain.ErrScanFailure), and in
// that case no store is mutated.
func (r *Reconciler) Run(ctx context.Context) (*domain.RunSummary, error) {
	summary := &domain.RunSummary{
		RunID:     r.newID(),
		StartedAt: r.now(),
		Errors:    []domain.ActionError{},
	}

	ctx, span := tracer.Start(ctx, "Reconciler.Run")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", summary.RunID))

	r.logger.Info("reconciliation run started", zap.String("run_id", summary.RunID))

	accounts, err := r.records.ScanAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		summary.ScanError = err.Error()
		r.finish(summary)
		return summary, &domain.ErrScanFailure{Err: err}
	}
	summary.Scanned = len(accounts)

	plan := BuildPlan(accounts)
	span.SetAttributes(
		attribute.Int("plan.purge", len(plan.Purge)),
		attribute.Int("plan.reset", len(plan.Reset)),
	)

	if !plan.Empty() {
		r.apply(ctx, plan, summary)
	}

	r.finish(summary)
	return summary, nil
}

// tally aggregates outcomes from concurrent actions.
type tally struct {
	mu      sync.Mutex
	summary *domain.RunSummary
}

func (t *tally) purged() {
	t.mu.Lock()
	t.summary.PurgedCount++
	t.mu.Unlock()
}

func (t *tally) reset() {
	t.mu.Lock()
	t.summary.ResetCount++
	t.mu.Unlock()
}

func (t *tally) fail(e domain.ActionError) {
	t.mu.Lock()
	t.summary.Errors = append(t.summary.Errors, e)
	t.mu.Unlock()
}

// apply fans out every planned action and waits for all of them.
// Tasks always return nil so one failure never cancels a sibling.
func (r *Reconciler) apply(ctx context.Context, plan domain.Plan, summary *domain.RunSummary) {
	t := &tally{summary: summary}

	var g errgroup.Group
	if r.cfg.MaxConcurrency > 0 {
		g.SetLimit(r.cfg.MaxConcurrency)
	}

	for _, id := range plan.Purge {
		id := id
		g.Go(func() error {
			r.purge(ctx, id, t)
			return nil
		})
	}
	for _, action := range plan.Reset {
		action := action
		g.Go(func() error {
			r.reset(ctx, action, t)
			return nil
		})
	}

	_ = g.Wait()
	summary.SortErrors()
}

// purge deletes one account from both stores. Both deletions are always
// attempted; the purge counts only when both succeed or find nothing.
func (r *Reconciler) purge(ctx context.Context, id string, t *tally) {
	var recordErr, identityErr error

	var g errgroup.Group
	g.Go(func() error {
		recordErr = r.call(ctx, func(ctx context.Context) error {
			return r.records.DeleteByID(ctx, id)
		})
		return nil
	})
	g.Go(func() error {
		identityErr = r.call(ctx, func(ctx context.Context) error {
			return r.identity.DeleteAccountByID(ctx, id)
		})
		return nil
	})
	_ = g.Wait()

	recordOK := r.settle(t, id, domain.StoreRecord, domain.ActionDelete, recordErr)
	identityOK := r.settle(t, id, domain.StoreIdentity, domain.ActionDelete, identityErr)
	if recordOK && identityOK {
		t.purged()
	}
}

func (r *Reconciler) reset(ctx context.Context, action domain.ResetAction, t *tally) {
	err := r.call(ctx, func(ctx context.Context) error {
		return r.records.UpdateUsageCounter(ctx, action.AccountID, action.Value)
	})
	if r.settle(t, action.AccountID, domain.StoreRecord, domain.ActionReset, err) {
		t.reset()
	}
}

func (r *Reconciler) call(ctx context.Context, fn func(context.Context) error) error {
	if r.cfg.ActionTimeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ActionTimeout)
	defer cancel()
	return fn(ctx)
}

// settle classifies one store result and records a failure if needed.
// NotFound counts as success.
func (r *Reconciler) settle(t *tally, id, store, action string, err error) bool {
	switch {
	case err == nil:
		r.metrics.IncrAction(action, observability.OutcomeSuccess)
		return true
	case domain.IsNotFound(err):
		r.metrics.IncrAction(action, observability.OutcomeNotFound)
		r.logger.Debug("account already absent",
			zap.String("account_id", id),
			zap.String("store", store),
			zap.String("action", action),
		)
		return true
	}

	r.metrics.IncrAction(action, observability.OutcomeFailed)
	r.metrics.IncrStoreError(store)
	r.logger.Warn("account action failed",
		zap.String("account_id", id),
		zap.String("store", store),
		zap.String("action", action),
		zap.Error(err),
	)
	t.fail(domain.ActionError{
		AccountID: id,
		Store:     store,
		Action:    action,
		Kind:      domain.KindForStore(store),
		Cause:     err.Error(),
	})
	return false
}

// finish stamps the summary, emits the operator log line and records the run.
func (r *Reconciler) finish(summary *domain.RunSummary) {
	summary.Finalize(r.now())
	r.metrics.RecordRun(summary)
	if r.history != nil {
		r.history.Record(summary)
	}

	fields := observability.SummaryFields(summary)
	switch summary.Status {
	case domain.RunStatusFailed:
		r.logger.Error("reconciliation run finished", fields...)
	case domain.RunStatusPartial:
		r.logger.Warn("reconciliation run finished", fields...)
	default:
		r.logger.Info("reconciliation run finished", fields...)
	}
}
