package handler

import (
	"encoding/json"
	"net/http"

	"github.com/dmelo/fintrack-engine-go/internal/domain"
	"github.com/dmelo/fintrack-engine-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func createInstallmentHandler(svc *service.InstallmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP POST /v1/installments")
		defer span.End()

		var req domain.CreateInstallmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		now, err := parseNow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		inst, err := svc.Create(ctx, OwnerIDFromContext(ctx), &req, now)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, inst)
	}
}

func listInstallmentsHandler(svc *service.InstallmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP GET /v1/installments")
		defer span.End()

		installments, err := svc.List(ctx, OwnerIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, installments)
	}
}

func getInstallmentHandler(svc *service.InstallmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP GET /v1/installments/{installmentId}")
		defer span.End()

		inst, err := svc.Get(ctx, OwnerIDFromContext(ctx), chi.URLParam(r, "installmentId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, inst)
	}
}

func advanceInstallmentHandler(svc *service.InstallmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP POST /v1/installments/{installmentId}/advance")
		defer span.End()

		now, err := parseNow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		inst, err := svc.Advance(ctx, OwnerIDFromContext(ctx), chi.URLParam(r, "installmentId"), now)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, inst)
	}
}

func updateInstallmentHandler(svc *service.InstallmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP PUT /v1/installments/{installmentId}")
		defer span.End()

		var req domain.UpdateInstallmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		inst, err := svc.Update(ctx, OwnerIDFromContext(ctx), chi.URLParam(r, "installmentId"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, inst)
	}
}

func cancelInstallmentHandler(svc *service.InstallmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP POST /v1/installments/{installmentId}/cancel")
		defer span.End()

		installmentID := chi.URLParam(r, "installmentId")
		if err := svc.Cancel(ctx, OwnerIDFromContext(ctx), installmentID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "installment cancelled", ID: installmentID})
	}
}

// syncInstallmentHandler re-derives one installment's counter from its
// linked entries.
func syncInstallmentHandler(svc *service.ReconcileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP POST /v1/installments/{installmentId}/sync")
		defer span.End()

		result, err := svc.ReconcileInstallment(ctx, OwnerIDFromContext(ctx), chi.URLParam(r, "installmentId"), parseDryRun(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
