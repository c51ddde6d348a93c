package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/sinc-labs/janitor/internal/domain"
	"github.com/sinc-labs/janitor/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Runs
// ============================================================

// triggerRunHandler runs the job synchronously and returns its summary.
// The run is detached from the request context so a dropped client
// connection does not leave it half applied.
func triggerRunHandler(trigger RunTrigger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/runs")
		defer span.End()

		logger.Info("manual run requested", zap.String("operator", OperatorFromContext(ctx)))

		summary, err := trigger.Trigger(context.WithoutCancel(ctx))
		var scanFailure *domain.ErrScanFailure
		switch {
		case err == nil:
			span.SetAttributes(attribute.String("run.id", summary.RunID))
			writeJSON(w, http.StatusOK, summary)
		case errors.As(err, &scanFailure) && summary != nil:
			writeJSON(w, http.StatusBadGateway, summary)
		default:
			handleServiceError(w, err, logger)
		}
	}
}

func latestRunHandler(history *service.RunHistory, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := history.Latest()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func getRunHandler(history *service.RunHistory, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := history.Get(chi.URLParam(r, "runId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

// ============================================================
// Accounts
// ============================================================

func welcomeHandler(onboarding *service.Onboarding, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{accountId}/welcome")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")
		if err := onboarding.Welcome(ctx, accountID); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, domain.SuccessResponse{
			Message: "account welcomed",
			ID:      accountID,
		})
	}
}
