package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/dmelo/fintrack-engine-go/internal/domain"
	"github.com/dmelo/fintrack-engine-go/internal/infra/observability"
	"github.com/dmelo/fintrack-engine-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestEngineStatus_CountsPendingWork(t *testing.T) {
	scheduler := newMockSchedulerStore()
	ledger := newMockLedgerStore()
	plans := newMockPlanStore()

	scheduler.due = []domain.RecurringObligation{
		monthlyObligation("ob-1", day(2024, time.June, 1)),
		monthlyObligation("ob-2", day(2024, time.June, 1)),
	}
	scheduler.upcoming = []domain.RecurringObligation{
		monthlyObligation("ob-3", day(2024, time.June, 3)),
	}
	ledger.duePending = []domain.LedgerEntry{*pendingEntry("e-1", day(2024, time.June, 1))}

	// One drifted plan, installments all in sync.
	p := activePlan("plan-1", 0, 500)
	plans.plans["plan-1"] = p
	plans.byStatus = []domain.Plan{*p}
	ledger.sumForPlan = decimal.NewFromInt(300)

	metrics := observability.NewMetrics()
	reconciler := newReconcileService(plans, scheduler, ledger, &mockNotificationStore{})
	svc := service.NewStatusService(scheduler, ledger, reconciler, metrics, zap.NewNop(), 72*time.Hour, 500)

	status, err := svc.EngineStatus(context.Background(), day(2024, time.June, 1))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if status.DueRecurring != 2 {
		t.Errorf("expected 2 due obligations, got %d", status.DueRecurring)
	}
	if status.UpcomingRecurring != 1 {
		t.Errorf("expected 1 upcoming obligation, got %d", status.UpcomingRecurring)
	}
	if status.DuePending != 1 {
		t.Errorf("expected 1 due pending entry, got %d", status.DuePending)
	}
	if status.PlanDrift != 1 {
		t.Errorf("expected 1 drifted plan, got %d", status.PlanDrift)
	}
	if status.InstallmentDrift != 0 {
		t.Errorf("expected no drifted installments, got %d", status.InstallmentDrift)
	}

	// The drift check is read-only.
	if len(plans.updates) != 0 {
		t.Error("status check must not repair anything")
	}
}
