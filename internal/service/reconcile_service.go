package service

import (
	"context"
	"time"

	"github.com/dmelo/fintrack-engine-go/internal/domain"
	"github.com/dmelo/fintrack-engine-go/internal/infra/observability"
	"github.com/dmelo/fintrack-engine-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var reconcileTracer = otel.Tracer("service/reconcile")

// ReconcileService repairs cached aggregates from their source of
// truth, the linked ledger entries. Repair overwrites: the calculated
// value always wins, whatever direction the drift. Running it twice is
// a no-op the second time.
type ReconcileService struct {
	plans     port.PlanStore
	scheduler port.SchedulerStore
	ledger    port.LedgerStore
	notify    *NotifyService
	metrics   *observability.Metrics
	logger    *zap.Logger

	epsilon    decimal.Decimal
	batchLimit int
}

// NewReconcileService creates a reconciliation service. epsilon is the
// tolerated |calculated - cached| on money amounts; below it a cached
// value counts as in sync.
func NewReconcileService(plans port.PlanStore, scheduler port.SchedulerStore, ledger port.LedgerStore, notify *NotifyService, metrics *observability.Metrics, logger *zap.Logger, epsilon float64, batchLimit int) *ReconcileService {
	return &ReconcileService{
		plans:      plans,
		scheduler:  scheduler,
		ledger:     ledger,
		notify:     notify,
		metrics:    metrics,
		logger:     logger,
		epsilon:    decimal.NewFromFloat(epsilon),
		batchLimit: batchLimit,
	}
}

// ============================================================
// Plans
// ============================================================

// ReconcilePlan recomputes a single plan's current amount from its
// confirmed EXPENSE entries and repairs the cached value on drift.
func (s *ReconcileService) ReconcilePlan(ctx context.Context, ownerID, planID string, dryRun bool, now time.Time) (*domain.SyncResult, error) {
	ctx, span := reconcileTracer.Start(ctx, "ReconcileService.ReconcilePlan")
	defer span.End()
	span.SetAttributes(attribute.String("plan.id", planID))

	plan, err := s.plans.GetPlan(ctx, ownerID, planID)
	if err != nil {
		return nil, err
	}
	return s.reconcilePlan(ctx, plan, dryRun, now)
}

func (s *ReconcileService) reconcilePlan(ctx context.Context, plan *domain.Plan, dryRun bool, now time.Time) (*domain.SyncResult, error) {
	actual, err := s.ledger.SumConfirmedExpensesForPlan(ctx, plan.ID)
	if err != nil {
		return nil, err
	}

	diff := actual.Sub(plan.CurrentAmount)
	derived := domain.DeriveStatus(plan.Status, actual.GreaterThanOrEqual(plan.TargetAmount))

	result := &domain.SyncResult{
		EntityID:   plan.ID,
		Field:      "current_amount",
		Before:     plan.CurrentAmount,
		After:      actual,
		Difference: diff,
		Status:     derived,
	}

	amountDrifted := diff.Abs().GreaterThan(s.epsilon)
	statusDrifted := derived != plan.Status
	if !amountDrifted && !statusDrifted {
		return result, nil
	}
	result.Changed = true
	if dryRun {
		return result, nil
	}

	updates := map[string]any{"status": string(derived)}
	if amountDrifted {
		updates["current_amount"] = actual.InexactFloat64()
	}
	if err := s.plans.UpdatePlan(ctx, plan.ID, updates); err != nil {
		return nil, err
	}

	if amountDrifted {
		s.metrics.IncrDriftRepaired("plan")
		s.logger.Warn("plan drift repaired",
			zap.String("plan_id", plan.ID),
			zap.String("before", plan.CurrentAmount.StringFixed(2)),
			zap.String("after", actual.StringFixed(2)),
		)
	}
	s.notify.Progress(ctx, plan.OwnerID, plan.ID, plan.Name, actual, plan.TargetAmount, plan.Status, now)
	return result, nil
}

// ReconcileAllPlans sweeps every non-cancelled plan. Failures are
// isolated per entity and sampled into the report.
func (s *ReconcileService) ReconcileAllPlans(ctx context.Context, now time.Time, dryRun bool) (*domain.ReconcileReport, error) {
	ctx, span := reconcileTracer.Start(ctx, "ReconcileService.ReconcileAllPlans")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordBatchDuration("reconcile", time.Since(start)) }()

	plans, err := s.plans.ListPlansByStatus(ctx, []domain.Status{domain.StatusActive, domain.StatusCompleted}, s.batchLimit)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase", Err: err}
	}

	report := &domain.ReconcileReport{DryRun: dryRun, RanAt: now}
	for i := range plans {
		report.Scanned++
		result, err := s.reconcilePlan(ctx, &plans[i], dryRun, now)
		if err != nil {
			s.recordFailure(report, plans[i].ID, err)
			continue
		}
		s.recordChange(report, result)
	}

	s.logger.Info("plan reconciliation finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("fixed", report.Fixed),
		zap.Int("errored", report.Errored),
		zap.Bool("dry_run", dryRun),
	)
	return report, nil
}

// CheckPlans returns how many plans are currently drifted, without
// repairing anything.
func (s *ReconcileService) CheckPlans(ctx context.Context, now time.Time) (int, error) {
	ctx, span := reconcileTracer.Start(ctx, "ReconcileService.CheckPlans")
	defer span.End()

	report, err := s.ReconcileAllPlans(ctx, now, true)
	if err != nil {
		return 0, err
	}
	return report.Fixed, nil
}

// ============================================================
// Installments
// ============================================================

// ReconcileInstallment re-derives a single installment's slice counter
// from the actual number of linked entries.
func (s *ReconcileService) ReconcileInstallment(ctx context.Context, ownerID, installmentID string, dryRun bool) (*domain.SyncResult, error) {
	ctx, span := reconcileTracer.Start(ctx, "ReconcileService.ReconcileInstallment")
	defer span.End()
	span.SetAttributes(attribute.String("installment.id", installmentID))

	inst, err := s.scheduler.GetInstallment(ctx, ownerID, installmentID)
	if err != nil {
		return nil, err
	}
	return s.reconcileInstallment(ctx, inst, dryRun)
}

func (s *ReconcileService) reconcileInstallment(ctx context.Context, inst *domain.Installment, dryRun bool) (*domain.SyncResult, error) {
	actual, err := s.ledger.CountEntriesForInstallment(ctx, inst.ID)
	if err != nil {
		return nil, err
	}
	if actual > inst.InstallmentCount {
		actual = inst.InstallmentCount
	}
	derived := domain.DeriveStatus(inst.Status, actual >= inst.InstallmentCount)

	result := &domain.SyncResult{
		EntityID:   inst.ID,
		Field:      "current_installment",
		Before:     decimal.NewFromInt(int64(inst.CurrentInstallment)),
		After:      decimal.NewFromInt(int64(actual)),
		Difference: decimal.NewFromInt(int64(actual - inst.CurrentInstallment)),
		Status:     derived,
	}

	counterDrifted := actual != inst.CurrentInstallment
	statusDrifted := derived != inst.Status
	if !counterDrifted && !statusDrifted {
		return result, nil
	}
	result.Changed = true
	if dryRun {
		return result, nil
	}

	updates := map[string]any{
		"current_installment": actual,
		"status":              string(derived),
	}
	if err := s.scheduler.UpdateInstallment(ctx, inst.ID, updates); err != nil {
		return nil, err
	}

	if counterDrifted {
		s.metrics.IncrDriftRepaired("installment")
		s.logger.Warn("installment drift repaired",
			zap.String("installment_id", inst.ID),
			zap.Int("before", inst.CurrentInstallment),
			zap.Int("after", actual),
		)
	}
	return result, nil
}

// ReconcileAllInstallments sweeps every non-cancelled installment.
func (s *ReconcileService) ReconcileAllInstallments(ctx context.Context, now time.Time, dryRun bool) (*domain.ReconcileReport, error) {
	ctx, span := reconcileTracer.Start(ctx, "ReconcileService.ReconcileAllInstallments")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordBatchDuration("reconcile", time.Since(start)) }()

	installments, err := s.scheduler.ListInstallmentsByStatus(ctx, []domain.Status{domain.StatusActive, domain.StatusCompleted}, s.batchLimit)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase", Err: err}
	}

	report := &domain.ReconcileReport{DryRun: dryRun, RanAt: now}
	for i := range installments {
		report.Scanned++
		result, err := s.reconcileInstallment(ctx, &installments[i], dryRun)
		if err != nil {
			s.recordFailure(report, installments[i].ID, err)
			continue
		}
		s.recordChange(report, result)
	}

	s.logger.Info("installment reconciliation finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("fixed", report.Fixed),
		zap.Int("errored", report.Errored),
		zap.Bool("dry_run", dryRun),
	)
	return report, nil
}

// CheckInstallments returns how many installments are currently
// drifted, without repairing anything.
func (s *ReconcileService) CheckInstallments(ctx context.Context, now time.Time) (int, error) {
	ctx, span := reconcileTracer.Start(ctx, "ReconcileService.CheckInstallments")
	defer span.End()

	report, err := s.ReconcileAllInstallments(ctx, now, true)
	if err != nil {
		return 0, err
	}
	return report.Fixed, nil
}

// ============================================================
// Savings goals
// ============================================================

// ReconcileGoalStatus re-derives a savings goal's status. The goal's
// amount is incremented manually and has no linked entries, so only
// the status can drift.
func (s *ReconcileService) ReconcileGoalStatus(ctx context.Context, ownerID, goalID string, dryRun bool, now time.Time) (*domain.SyncResult, error) {
	ctx, span := reconcileTracer.Start(ctx, "ReconcileService.ReconcileGoalStatus")
	defer span.End()

	goal, err := s.plans.GetGoal(ctx, ownerID, goalID)
	if err != nil {
		return nil, err
	}

	derived := domain.DeriveStatus(goal.Status, goal.CurrentAmount.GreaterThanOrEqual(goal.TargetAmount))
	result := &domain.SyncResult{
		EntityID: goal.ID,
		Field:    "status",
		Before:   goal.CurrentAmount,
		After:    goal.CurrentAmount,
		Status:   derived,
	}
	if derived == goal.Status {
		return result, nil
	}
	result.Changed = true
	if dryRun {
		return result, nil
	}

	if err := s.plans.UpdateGoal(ctx, goal.ID, map[string]any{"status": string(derived)}); err != nil {
		return nil, err
	}
	s.notify.Progress(ctx, goal.OwnerID, goal.ID, goal.Name, goal.CurrentAmount, goal.TargetAmount, goal.Status, now)
	return result, nil
}

// ============================================================
// Report helpers
// ============================================================

func (s *ReconcileService) recordChange(report *domain.ReconcileReport, result *domain.SyncResult) {
	if !result.Changed {
		return
	}
	report.Fixed++
	if len(report.Changes) < domain.SampleLimit {
		report.Changes = append(report.Changes, domain.AggregateChange{
			EntityID:   result.EntityID,
			Field:      result.Field,
			Before:     result.Before,
			After:      result.After,
			Difference: result.Difference,
		})
	}
}

func (s *ReconcileService) recordFailure(report *domain.ReconcileReport, entityID string, err error) {
	report.Errored++
	if len(report.Errors) < domain.SampleLimit {
		report.Errors = append(report.Errors, domain.BatchError{EntityID: entityID, Reason: err.Error()})
	}
	s.metrics.IncrBatchError("reconcile")
	s.logger.Error("reconciliation failed",
		zap.String("entity_id", entityID),
		zap.Error(err),
	)
}
