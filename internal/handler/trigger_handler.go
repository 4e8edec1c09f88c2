// Package handler exposes the engine over HTTP. Batch triggers are
// invoked by an external cron scheduler with a shared secret; all
// other endpoints are session scoped.
package handler

import (
	"net/http"

	"github.com/dmelo/fintrack-engine-go/internal/service"

	"go.uber.org/zap"
)

// processRecurringHandler runs the recurring materialization batch.
func processRecurringHandler(svc *service.RecurringService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP POST /v1/recurring/process")
		defer span.End()

		now, err := parseNow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		report, err := svc.ProcessDue(ctx, now, parseDryRun(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// sweepScheduledHandler confirms pending entries whose date arrived.
func sweepScheduledHandler(svc *service.SweeperService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP POST /v1/scheduled/process")
		defer span.End()

		now, err := parseNow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		report, err := svc.SweepDue(ctx, now)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// reconcilePlansHandler repairs drifted plan aggregates.
func reconcilePlansHandler(svc *service.ReconcileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP POST /v1/plans/reconcile")
		defer span.End()

		now, err := parseNow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		report, err := svc.ReconcileAllPlans(ctx, now, parseDryRun(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// reconcileInstallmentsHandler repairs drifted installment counters.
func reconcileInstallmentsHandler(svc *service.ReconcileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP POST /v1/installments/reconcile")
		defer span.End()

		now, err := parseNow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		report, err := svc.ReconcileAllInstallments(ctx, now, parseDryRun(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
