package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/sinc-labs/janitor/internal/domain"
	"github.com/sinc-labs/janitor/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Record store: users + beta_requests via PostgREST
// ============================================================

const (
	usersTable        = "users"
	betaRequestsTable = "beta_requests"
	userColumns       = "id,status,deletion_pending,tokens_used,is_beta_approved,created_at"
)

// userRow maps the users table columns.
type userRow struct {
	ID              string  `json:"id"`
	Status          string  `json:"status"`
	DeletionPending bool    `json:"deletion_pending"`
	TokensUsed      int64   `json:"tokens_used"`
	IsBetaApproved  bool    `json:"is_beta_approved"`
	CreatedAt       *string `json:"created_at"`
}

// toDomain converts the row. An unparseable created_at leaves CreatedAt zero
// and is returned as err; the account itself is still usable.
func (r userRow) toDomain() (domain.Account, error) {
	a := domain.Account{
		ID:              r.ID,
		Status:          domain.AccountStatus(r.Status),
		DeletionPending: r.DeletionPending,
		UsageCounter:    r.TokensUsed,
		BetaApproved:    r.IsBetaApproved,
	}
	if r.CreatedAt == nil {
		return a, nil
	}
	t, err := time.Parse(time.RFC3339, *r.CreatedAt)
	if err != nil {
		return a, fmt.Errorf("parse created_at %q: %w", *r.CreatedAt, err)
	}
	a.CreatedAt = t
	return a, nil
}

func unavailable(op string, err error) error {
	return &domain.ErrStoreUnavailable{Store: domain.StoreRecord, Op: op, Err: err}
}

// ScanAll reads every user with keyset pagination on id, so each id is
// returned at most once even when rows change between pages.
func (c *Client) ScanAll(ctx context.Context) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ScanAll")
	defer span.End()

	var (
		accounts []domain.Account
		after    string
	)
	seen := make(map[string]struct{})

	for {
		query := url.Values{}
		query.Set("select", userColumns)
		query.Set("order", "id.asc")
		query.Set("limit", strconv.Itoa(c.pageSize))
		if after != "" {
			query.Set("id", "gt."+after)
		}

		var rows []userRow
		err := resilience.Execute(c.cb, func() error {
			return resilience.RetryWithBackoff(ctx, c.cfg, func() error {
				body, err := c.doGet(ctx, usersTable, query)
				if err != nil {
					return classify(err)
				}
				rows = nil
				if err := json.Unmarshal(body, &rows); err != nil {
					return resilience.Permanent(fmt.Errorf("decode users: %w", err))
				}
				return nil
			})
		})
		if err != nil {
			span.RecordError(err)
			return nil, unavailable("scan", err)
		}

		for _, r := range rows {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			a, err := r.toDomain()
			if err != nil {
				c.logger.Debug("supabase: ignoring malformed user column",
					zap.String("account_id", r.ID),
					zap.Error(err),
				)
			}
			accounts = append(accounts, a)
		}

		if len(rows) < c.pageSize {
			break
		}
		after = rows[len(rows)-1].ID
	}

	span.SetAttributes(attribute.Int("accounts.count", len(accounts)))
	c.logger.Debug("supabase: scan complete", zap.Int("accounts", len(accounts)))
	return accounts, nil
}

// DeleteByID removes the user's beta request and then the user row.
// The beta request goes first: once the user row is gone the account is
// no longer scanned, so a leftover beta request would never be retried.
func (c *Client) DeleteByID(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteByID")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", id))

	var removed int
	err := resilience.Execute(c.cb, func() error {
		if _, err := c.doDelete(ctx, betaRequestsTable, url.Values{"id": {eq(id)}}); err != nil {
			return fmt.Errorf("delete beta request: %w", err)
		}
		n, err := c.doDelete(ctx, usersTable, url.Values{"id": {eq(id)}})
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		removed = n
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return unavailable("delete", err)
	}
	if removed == 0 {
		return &domain.ErrNotFound{Resource: "account", ID: id}
	}

	c.logger.Debug("supabase: account deleted", zap.String("account_id", id))
	return nil
}

// UpdateUsageCounter overwrites tokens_used and nothing else.
func (c *Client) UpdateUsageCounter(ctx context.Context, id string, value int64) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateUsageCounter")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", id))

	var touched int
	err := resilience.Execute(c.cb, func() error {
		n, err := c.doPatch(ctx, usersTable, url.Values{"id": {eq(id)}}, map[string]any{
			"tokens_used": value,
		})
		touched = n
		return err
	})
	if err != nil {
		span.RecordError(err)
		return unavailable("update", err)
	}
	if touched == 0 {
		return &domain.ErrNotFound{Resource: "account", ID: id}
	}
	return nil
}

// UpsertAccount inserts the user or merges the welcome defaults into the
// existing row. Columns outside the defaults are left alone.
func (c *Client) UpsertAccount(ctx context.Context, id string, d domain.WelcomeDefaults) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", id))

	row := map[string]any{
		"id":               id,
		"status":           string(d.Status),
		"is_beta_approved": d.BetaApproved,
		"tokens_used":      d.UsageCounter,
		"deletion_pending": d.DeletionPending,
	}

	err := resilience.Execute(c.cb, func() error {
		return c.doPost(ctx, usersTable, url.Values{"on_conflict": {"id"}}, row, preferMergeUpsert)
	})
	if err != nil {
		span.RecordError(err)
		return unavailable("upsert", err)
	}
	return nil
}
