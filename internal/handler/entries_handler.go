package handler

import (
	"encoding/json"
	"net/http"

	"github.com/dmelo/fintrack-engine-go/internal/domain"
	"github.com/dmelo/fintrack-engine-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func createEntryHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP POST /v1/entries")
		defer span.End()

		var req domain.CreateEntryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		now, err := parseNow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		entry, err := svc.CreateEntry(ctx, OwnerIDFromContext(ctx), &req, now)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, entry)
	}
}

func listEntriesHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP GET /v1/entries")
		defer span.End()

		page, pageSize := parsePagination(r)
		entries, err := svc.List(ctx, OwnerIDFromContext(ctx), page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.LedgerEntry]{
			Data:     entries,
			Total:    len(entries),
			Page:     page,
			PageSize: pageSize,
			HasMore:  len(entries) == pageSize,
		})
	}
}

func getEntryHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP GET /v1/entries/{entryId}")
		defer span.End()

		entry, err := svc.Get(ctx, OwnerIDFromContext(ctx), chi.URLParam(r, "entryId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

// confirmEntryHandler flips a single pending entry to confirmed.
func confirmEntryHandler(svc *service.SweeperService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP POST /v1/entries/{entryId}/confirm")
		defer span.End()

		now, err := parseNow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		entry, err := svc.Confirm(ctx, OwnerIDFromContext(ctx), chi.URLParam(r, "entryId"), now)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

func deleteEntryHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP DELETE /v1/entries/{entryId}")
		defer span.End()

		if err := svc.DeleteEntry(ctx, OwnerIDFromContext(ctx), chi.URLParam(r, "entryId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func netBalanceHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP GET /v1/balance")
		defer span.End()

		net, err := svc.NetBalance(ctx, OwnerIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"net_balance": net.StringFixed(2)})
	}
}
