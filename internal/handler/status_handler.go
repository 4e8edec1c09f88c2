package handler

import (
	"net/http"

	"github.com/dmelo/fintrack-engine-go/internal/service"

	"go.uber.org/zap"
)

func engineStatusHandler(svc *service.StatusService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP GET /v1/engine/status")
		defer span.End()

		now, err := parseNow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		status, err := svc.EngineStatus(ctx, now)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func recurringDueHandler(svc *service.RecurringService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP GET /v1/recurring/due")
		defer span.End()

		now, err := parseNow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		report, err := svc.DueStatus(ctx, now)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func plansDriftHandler(svc *service.ReconcileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP GET /v1/plans/drift")
		defer span.End()

		now, err := parseNow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		report, err := svc.ReconcileAllPlans(ctx, now, true)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func installmentsDriftHandler(svc *service.ReconcileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP GET /v1/installments/drift")
		defer span.End()

		now, err := parseNow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		report, err := svc.ReconcileAllInstallments(ctx, now, true)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
