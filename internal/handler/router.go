package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/sinc-labs/janitor/internal/domain"
	"github.com/sinc-labs/janitor/internal/infra/observability"
	"github.com/sinc-labs/janitor/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// RunTrigger starts a reconciliation run immediately.
type RunTrigger interface {
	Trigger(ctx context.Context) (*domain.RunSummary, error)
}

// Probe is a named dependency check used by /healthz and /readyz.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Services groups what the operator API drives.
type Services struct {
	Trigger    RunTrigger
	History    *service.RunHistory
	Onboarding *service.Onboarding
	Auth       *service.OperatorAuth
	Probes     []Probe
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Probes))
	r.Get("/readyz", readyzHandler(svc.Probes, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/janitor", janitorMetricsHandler(metrics))

		r.Group(func(r chi.Router) {
			r.Use(OperatorAuthMiddleware(svc.Auth, logger))

			r.Post("/runs", triggerRunHandler(svc.Trigger, logger))
			r.Get("/runs/latest", latestRunHandler(svc.History, logger))
			r.Get("/runs/{runId}", getRunHandler(svc.History, logger))

			r.Post("/accounts/{accountId}/welcome", welcomeHandler(svc.Onboarding, logger))
		})
	})

	return r
}

// ============================================================
// Health & metrics
// ============================================================

const probeTimeout = 3 * time.Second

func checkProbes(ctx context.Context, probes []Probe) domain.HealthStatus {
	now := time.Now().Format(time.RFC3339)
	services := []domain.ServiceHealth{
		{Name: "janitor", Status: "healthy", LastChecked: now},
	}

	overall := "healthy"
	for _, p := range probes {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := p.Check(pctx)
		cancel()

		h := domain.ServiceHealth{Name: p.Name, Status: "healthy", LastChecked: now}
		if err != nil {
			h.Status = "degraded"
			h.Detail = err.Error()
			overall = "degraded"
		}
		services = append(services, h)
	}
	return domain.HealthStatus{Status: overall, Services: services}
}

func healthzHandler(probes []Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, checkProbes(r.Context(), probes))
	}
}

func readyzHandler(probes []Probe, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := checkProbes(r.Context(), probes)
		if status.Status != "healthy" {
			logger.Warn("readiness check failed", zap.Any("services", status.Services))
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func janitorMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
