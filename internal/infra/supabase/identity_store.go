package supabase

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/sinc-labs/janitor/internal/domain"
	"github.com/sinc-labs/janitor/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Identity store: GoTrue admin API
// ============================================================

// IdentityClient deletes users from Supabase Auth. It has its own breaker so
// an auth outage never trips the record store, and vice versa.
type IdentityClient struct {
	httpClient     *http.Client
	baseURL        string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	bulkhead       *resilience.Bulkhead
	logger         *zap.Logger
}

// NewIdentityClient creates the identity-store adapter. maxConcurrency caps
// in-flight admin calls; zero means unbounded.
func NewIdentityClient(httpClient *http.Client, baseURL, serviceRoleKey string, cb *gobreaker.CircuitBreaker, maxConcurrency int, logger *zap.Logger) *IdentityClient {
	return &IdentityClient{
		httpClient:     httpClient,
		baseURL:        baseURL,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		bulkhead:       resilience.NewBulkhead(maxConcurrency),
		logger:         logger,
	}
}

// DeleteAccountByID removes the auth user. A 404 means it is already gone.
func (c *IdentityClient) DeleteAccountByID(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteAccountByID")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", id))

	endpoint := c.baseURL + "/auth/v1/admin/users/" + url.PathEscape(id)

	err := c.bulkhead.Do(ctx, func() error {
		return resilience.Execute(c.cb, func() error {
			_, err := doJSON(ctx, c.httpClient, c.logger, http.MethodDelete, endpoint, c.serviceRoleKey, c.serviceRoleKey, nil, "")
			var se *statusError
			if errors.As(err, &se) && se.Status == http.StatusNotFound {
				return &domain.ErrNotFound{Resource: "identity", ID: id}
			}
			return err
		})
	})

	switch {
	case err == nil:
		c.logger.Debug("supabase: identity deleted", zap.String("account_id", id))
		return nil
	case domain.IsNotFound(err):
		return err
	default:
		span.RecordError(err)
		return &domain.ErrStoreUnavailable{Store: domain.StoreIdentity, Op: "delete", Err: err}
	}
}
