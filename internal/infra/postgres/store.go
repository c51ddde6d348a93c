// Package postgres is a record-store adapter for a plain Postgres database.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sinc-labs/janitor/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("postgres")

const (
	scanQuery = `SELECT id, status, deletion_pending, usage_counter, beta_approved, created_at
FROM accounts ORDER BY id`
	deleteBetaQuery    = `DELETE FROM beta_requests WHERE account_id = $1`
	deleteAccountQuery = `DELETE FROM accounts WHERE id = $1`
	resetQuery         = `UPDATE accounts SET usage_counter = $2 WHERE id = $1`
	upsertQuery        = `INSERT INTO accounts (id, status, beta_approved, usage_counter, deletion_pending)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    beta_approved = EXCLUDED.beta_approved,
    usage_counter = EXCLUDED.usage_counter,
    deletion_pending = EXCLUDED.deletion_pending`
)

// Store implements the record store over the accounts and beta_requests tables.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string, maxConns int) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// NewStore wraps an open database handle.
func NewStore(db *sqlx.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

func unavailable(op string, err error) error {
	return &domain.ErrStoreUnavailable{Store: domain.StoreRecord, Op: op, Err: err}
}

// ScanAll reads every account inside one read-only REPEATABLE READ
// transaction, so the result is a single consistent snapshot.
func (s *Store) ScanAll(ctx context.Context) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ScanAll")
	defer span.End()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, unavailable("scan", err)
	}
	defer tx.Rollback()

	var accounts []domain.Account
	if err := tx.SelectContext(ctx, &accounts, scanQuery); err != nil {
		span.RecordError(err)
		return nil, unavailable("scan", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable("scan", err)
	}

	span.SetAttributes(attribute.Int("accounts.count", len(accounts)))
	return accounts, nil
}

// DeleteByID removes the beta request and the account in one transaction.
func (s *Store) DeleteByID(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteByID")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", id))

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable("delete", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteBetaQuery, id); err != nil {
		span.RecordError(err)
		return unavailable("delete", fmt.Errorf("delete beta request: %w", err))
	}
	res, err := tx.ExecContext(ctx, deleteAccountQuery, id)
	if err != nil {
		span.RecordError(err)
		return unavailable("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("delete", err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("delete", err)
	}

	if n == 0 {
		return &domain.ErrNotFound{Resource: "account", ID: id}
	}
	s.logger.Debug("postgres: account deleted", zap.String("account_id", id))
	return nil
}

// UpdateUsageCounter overwrites usage_counter and nothing else.
func (s *Store) UpdateUsageCounter(ctx context.Context, id string, value int64) error {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateUsageCounter")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", id))

	res, err := s.db.ExecContext(ctx, resetQuery, id, value)
	if err != nil {
		span.RecordError(err)
		return unavailable("update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("update", err)
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: "account", ID: id}
	}
	return nil
}

// UpsertAccount inserts the account or merges the welcome defaults into it.
func (s *Store) UpsertAccount(ctx context.Context, id string, d domain.WelcomeDefaults) error {
	ctx, span := tracer.Start(ctx, "Postgres.UpsertAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", id))

	if _, err := s.db.ExecContext(ctx, upsertQuery, id, string(d.Status), d.BetaApproved, d.UsageCounter, d.DeletionPending); err != nil {
		span.RecordError(err)
		return unavailable("upsert", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
