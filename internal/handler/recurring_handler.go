package handler

import (
	"encoding/json"
	"net/http"

	"github.com/dmelo/fintrack-engine-go/internal/domain"
	"github.com/dmelo/fintrack-engine-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func createRecurringHandler(svc *service.RecurringService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP POST /v1/recurring")
		defer span.End()

		var req domain.CreateObligationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		now, err := parseNow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		obligation, err := svc.Create(ctx, OwnerIDFromContext(ctx), &req, now)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, obligation)
	}
}

func listRecurringHandler(svc *service.RecurringService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP GET /v1/recurring")
		defer span.End()

		obligations, err := svc.List(ctx, OwnerIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, obligations)
	}
}

func getRecurringHandler(svc *service.RecurringService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP GET /v1/recurring/{obligationId}")
		defer span.End()

		obligation, err := svc.Get(ctx, OwnerIDFromContext(ctx), chi.URLParam(r, "obligationId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, obligation)
	}
}

// setRecurringActiveHandler serves both deactivate and reactivate.
func setRecurringActiveHandler(svc *service.RecurringService, active bool, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := "HTTP POST /v1/recurring/{obligationId}/deactivate"
		if active {
			name = "HTTP POST /v1/recurring/{obligationId}/reactivate"
		}
		ctx, span := tracer.Start(r.Context(), name)
		defer span.End()

		ownerID := OwnerIDFromContext(ctx)
		obligationID := chi.URLParam(r, "obligationId")

		var err error
		if active {
			err = svc.Reactivate(ctx, ownerID, obligationID)
		} else {
			err = svc.Deactivate(ctx, ownerID, obligationID)
		}
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": obligationID, "active": active})
	}
}
