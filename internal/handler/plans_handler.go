package handler

import (
	"encoding/json"
	"net/http"

	"github.com/dmelo/fintrack-engine-go/internal/domain"
	"github.com/dmelo/fintrack-engine-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func createPlanHandler(svc *service.PlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP POST /v1/plans")
		defer span.End()

		var req domain.CreatePlanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		now, err := parseNow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		plan, err := svc.CreatePlan(ctx, OwnerIDFromContext(ctx), &req, now)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, plan)
	}
}

func listPlansHandler(svc *service.PlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP GET /v1/plans")
		defer span.End()

		plans, err := svc.ListPlans(ctx, OwnerIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, plans)
	}
}

func getPlanHandler(svc *service.PlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP GET /v1/plans/{planId}")
		defer span.End()

		plan, err := svc.GetPlan(ctx, OwnerIDFromContext(ctx), chi.URLParam(r, "planId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	}
}

func updatePlanHandler(svc *service.PlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP PUT /v1/plans/{planId}")
		defer span.End()

		var req domain.UpdatePlanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		plan, err := svc.UpdatePlan(ctx, OwnerIDFromContext(ctx), chi.URLParam(r, "planId"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	}
}

func cancelPlanHandler(svc *service.PlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP POST /v1/plans/{planId}/cancel")
		defer span.End()

		planID := chi.URLParam(r, "planId")
		if err := svc.CancelPlan(ctx, OwnerIDFromContext(ctx), planID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "plan cancelled", ID: planID})
	}
}

// syncPlanHandler recomputes one plan's current amount from its
// confirmed expenses.
func syncPlanHandler(svc *service.ReconcileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP POST /v1/plans/{planId}/reconcile")
		defer span.End()

		now, err := parseNow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		result, err := svc.ReconcilePlan(ctx, OwnerIDFromContext(ctx), chi.URLParam(r, "planId"), parseDryRun(r), now)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// ============================================================
// Savings goals
// ============================================================

func createGoalHandler(svc *service.PlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP POST /v1/goals")
		defer span.End()

		var req domain.CreatePlanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		now, err := parseNow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		goal, err := svc.CreateGoal(ctx, OwnerIDFromContext(ctx), &req, now)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, goal)
	}
}

func listGoalsHandler(svc *service.PlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP GET /v1/goals")
		defer span.End()

		goals, err := svc.ListGoals(ctx, OwnerIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, goals)
	}
}

func getGoalHandler(svc *service.PlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP GET /v1/goals/{goalId}")
		defer span.End()

		goal, err := svc.GetGoal(ctx, OwnerIDFromContext(ctx), chi.URLParam(r, "goalId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, goal)
	}
}

func updateGoalHandler(svc *service.PlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP PUT /v1/goals/{goalId}")
		defer span.End()

		var req domain.UpdatePlanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		goal, err := svc.UpdateGoal(ctx, OwnerIDFromContext(ctx), chi.URLParam(r, "goalId"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, goal)
	}
}

func addToGoalHandler(svc *service.PlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP POST /v1/goals/{goalId}/add")
		defer span.End()

		var req domain.AddToGoalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		now, err := parseNow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		goal, err := svc.AddToGoal(ctx, OwnerIDFromContext(ctx), chi.URLParam(r, "goalId"), &req, now)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, goal)
	}
}

func cancelGoalHandler(svc *service.PlanService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP POST /v1/goals/{goalId}/cancel")
		defer span.End()

		goalID := chi.URLParam(r, "goalId")
		if err := svc.CancelGoal(ctx, OwnerIDFromContext(ctx), goalID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "savings goal cancelled", ID: goalID})
	}
}

// syncGoalHandler re-derives one savings goal's status.
func syncGoalHandler(svc *service.ReconcileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP POST /v1/goals/{goalId}/sync")
		defer span.End()

		now, err := parseNow(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		result, err := svc.ReconcileGoalStatus(ctx, OwnerIDFromContext(ctx), chi.URLParam(r, "goalId"), parseDryRun(r), now)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
