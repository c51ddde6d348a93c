// Package supabase provides the record-store (PostgREST) and identity-store
// (GoTrue admin) adapters backed by a Supabase project.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sinc-labs/janitor/internal/domain"
	"github.com/sinc-labs/janitor/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

const defaultPageSize = 500

// Client wraps HTTP calls to the Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	pageSize       int
	logger         *zap.Logger
}

// NewClient creates a Supabase record-store client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		pageSize:       defaultPageSize,
		logger:         logger,
	}
}

// WithPageSize sets the keyset page size used by ScanAll.
func (c *Client) WithPageSize(n int) *Client {
	if n > 0 {
		c.pageSize = n
	}
	return c
}

// statusError is a non-2xx response.
type statusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supabase %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// retryable reports whether a repeat of the same request could succeed.
func (e *statusError) retryable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests || e.Status == http.StatusRequestTimeout
}

// classify marks non-retryable HTTP failures as permanent.
func classify(err error) error {
	var se *statusError
	if errors.As(err, &se) && !se.retryable() {
		return resilience.Permanent(err)
	}
	return err
}

// IsAvailabilityFailure reports whether err says something about the health
// of the Supabase project rather than about one request. A 4xx such as a 409
// on a single row is a per-record rejection and returns false; transport
// errors and retryable statuses return true.
func IsAvailabilityFailure(err error) bool {
	if err == nil || domain.IsNotFound(err) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.retryable()
	}
	return true
}

// NewBreaker creates a circuit breaker that only trips on availability
// failures.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return resilience.NewCircuitBreaker(name, resilience.WithFailurePredicate(IsAvailabilityFailure))
}

// do executes an authenticated request against baseURL+path and returns the body.
func (c *Client) do(ctx context.Context, method, path string, payload any, prefer string) ([]byte, error) {
	return doJSON(ctx, c.httpClient, c.logger, method, c.baseURL+path, c.apiKey, c.serviceRoleKey, payload, prefer)
}

func doJSON(ctx context.Context, httpClient *http.Client, logger *zap.Logger, method, url, apiKey, bearer string, payload any, prefer string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, err
	}

	req.Header.Set("apikey", apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", bearer))
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		logger.Error("supabase: failed to read response body",
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, &statusError{Method: method, Path: req.URL.Path, Status: resp.StatusCode, Body: string(body)}
	}

	logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
	)
	return body, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
