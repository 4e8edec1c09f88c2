package handler

import (
	"net/http"

	"github.com/dmelo/fintrack-engine-go/internal/config"
	"github.com/dmelo/fintrack-engine-go/internal/infra/observability"
	"github.com/dmelo/fintrack-engine-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services bundles everything the router needs.
type Services struct {
	Recurring   *service.RecurringService
	Installment *service.InstallmentService
	Sweeper     *service.SweeperService
	Reconciler  *service.ReconcileService
	Status      *service.StatusService
	Ledger      *service.LedgerService
	Plans       *service.PlanService
}

// NewRouter creates the HTTP router with all routes and middleware.
// Trigger endpoints are guarded by the shared cron secret; everything
// else under /v1 requires a session token.
func NewRouter(svcs *Services, metrics *observability.Metrics, cfg *config.Config, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Batch triggers, invoked by the external scheduler.
		r.Group(func(r chi.Router) {
			r.Use(CronAuthMiddleware(cfg.CronSecret, cfg.CronSecretHash, logger))

			r.Post("/recurring/process", processRecurringHandler(svcs.Recurring, logger))
			r.Post("/scheduled/process", sweepScheduledHandler(svcs.Sweeper, logger))
			r.Post("/plans/reconcile", reconcilePlansHandler(svcs.Reconciler, logger))
			r.Post("/installments/reconcile", reconcileInstallmentsHandler(svcs.Reconciler, logger))
		})

		// Session-scoped endpoints.
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(cfg.JWTSecret, logger))

			// Status / drift inspection
			r.Get("/engine/status", engineStatusHandler(svcs.Status, logger))
			r.Get("/recurring/due", recurringDueHandler(svcs.Recurring, logger))
			r.Get("/plans/drift", plansDriftHandler(svcs.Reconciler, logger))
			r.Get("/installments/drift", installmentsDriftHandler(svcs.Reconciler, logger))

			// Recurring obligations
			r.Post("/recurring", createRecurringHandler(svcs.Recurring, logger))
			r.Get("/recurring", listRecurringHandler(svcs.Recurring, logger))
			r.Get("/recurring/{obligationId}", getRecurringHandler(svcs.Recurring, logger))
			r.Post("/recurring/{obligationId}/deactivate", setRecurringActiveHandler(svcs.Recurring, false, logger))
			r.Post("/recurring/{obligationId}/reactivate", setRecurringActiveHandler(svcs.Recurring, true, logger))

			// Installments
			r.Post("/installments", createInstallmentHandler(svcs.Installment, logger))
			r.Get("/installments", listInstallmentsHandler(svcs.Installment, logger))
			r.Get("/installments/{installmentId}", getInstallmentHandler(svcs.Installment, logger))
			r.Post("/installments/{installmentId}/advance", advanceInstallmentHandler(svcs.Installment, logger))
			r.Put("/installments/{installmentId}", updateInstallmentHandler(svcs.Installment, logger))
			r.Post("/installments/{installmentId}/cancel", cancelInstallmentHandler(svcs.Installment, logger))
			r.Post("/installments/{installmentId}/sync", syncInstallmentHandler(svcs.Reconciler, logger))

			// Ledger entries
			r.Post("/entries", createEntryHandler(svcs.Ledger, logger))
			r.Get("/entries", listEntriesHandler(svcs.Ledger, logger))
			r.Get("/entries/{entryId}", getEntryHandler(svcs.Ledger, logger))
			r.Post("/entries/{entryId}/confirm", confirmEntryHandler(svcs.Sweeper, logger))
			r.Delete("/entries/{entryId}", deleteEntryHandler(svcs.Ledger, logger))
			r.Get("/balance", netBalanceHandler(svcs.Ledger, logger))

			// Plans
			r.Post("/plans", createPlanHandler(svcs.Plans, logger))
			r.Get("/plans", listPlansHandler(svcs.Plans, logger))
			r.Get("/plans/{planId}", getPlanHandler(svcs.Plans, logger))
			r.Put("/plans/{planId}", updatePlanHandler(svcs.Plans, logger))
			r.Post("/plans/{planId}/cancel", cancelPlanHandler(svcs.Plans, logger))
			r.Post("/plans/{planId}/reconcile", syncPlanHandler(svcs.Reconciler, logger))

			// Savings goals
			r.Post("/goals", createGoalHandler(svcs.Plans, logger))
			r.Get("/goals", listGoalsHandler(svcs.Plans, logger))
			r.Get("/goals/{goalId}", getGoalHandler(svcs.Plans, logger))
			r.Put("/goals/{goalId}", updateGoalHandler(svcs.Plans, logger))
			r.Post("/goals/{goalId}/add", addToGoalHandler(svcs.Plans, logger))
			r.Post("/goals/{goalId}/cancel", cancelGoalHandler(svcs.Plans, logger))
			r.Post("/goals/{goalId}/sync", syncGoalHandler(svcs.Reconciler, logger))
		})
	})

	return r
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "fintrack-engine"})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
