package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmelo/fintrack-engine-go/internal/domain"
	"github.com/dmelo/fintrack-engine-go/internal/infra/cache"
	"github.com/dmelo/fintrack-engine-go/internal/infra/observability"
	"github.com/dmelo/fintrack-engine-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newPlanService(plans *mockPlanStore, notifStore *mockNotificationStore) *service.PlanService {
	notify := service.NewNotifyService(notifStore, cache.New[time.Time](time.Hour), observability.NewMetrics(), zap.NewNop())
	return service.NewPlanService(plans, notify, zap.NewNop())
}

func TestAddToGoal_ReachesTarget(t *testing.T) {
	plans := newMockPlanStore()
	notifStore := &mockNotificationStore{}
	plans.goals["goal-1"] = &domain.SavingsGoal{
		ID: "goal-1", OwnerID: "owner-1", Name: "Vacation",
		TargetAmount:  decimal.NewFromInt(1000),
		CurrentAmount: decimal.NewFromInt(900),
		Status:        domain.StatusActive,
	}

	svc := newPlanService(plans, notifStore)
	goal, err := svc.AddToGoal(context.Background(), "owner-1", "goal-1", &domain.AddToGoalRequest{
		Amount: decimal.NewFromInt(100),
	}, day(2024, time.June, 1))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !goal.CurrentAmount.Equal(decimal.NewFromInt(1000)) || goal.Status != domain.StatusCompleted {
		t.Fatalf("expected 1000 COMPLETED, got %s %s", goal.CurrentAmount, goal.Status)
	}
	if len(notifStore.created) != 1 || notifStore.created[0].Kind != domain.NotifyCompleted {
		t.Errorf("expected goal_completed alert, got %v", notifStore.kinds())
	}
}

func TestAddToGoal_CompletedGoalDoesNotRefire(t *testing.T) {
	plans := newMockPlanStore()
	notifStore := &mockNotificationStore{}
	plans.goals["goal-1"] = &domain.SavingsGoal{
		ID: "goal-1", OwnerID: "owner-1", Name: "Vacation",
		TargetAmount:  decimal.NewFromInt(1000),
		CurrentAmount: decimal.NewFromInt(1000),
		Status:        domain.StatusCompleted,
	}

	svc := newPlanService(plans, notifStore)
	goal, err := svc.AddToGoal(context.Background(), "owner-1", "goal-1", &domain.AddToGoalRequest{
		Amount: decimal.NewFromInt(200),
	}, day(2024, time.June, 1))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if goal.Status != domain.StatusCompleted {
		t.Fatalf("expected COMPLETED to stick, got %s", goal.Status)
	}
	// Completion already fired when the goal first reached its target.
	if len(notifStore.created) != 0 {
		t.Fatalf("expected no repeat alert, got %v", notifStore.kinds())
	}
}

func TestAddToGoal_RejectsNonPositive(t *testing.T) {
	plans := newMockPlanStore()
	svc := newPlanService(plans, &mockNotificationStore{})

	_, err := svc.AddToGoal(context.Background(), "owner-1", "goal-1", &domain.AddToGoalRequest{
		Amount: decimal.NewFromInt(-5),
	}, day(2024, time.June, 1))

	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdatePlan_RaisingTargetUncompletes(t *testing.T) {
	plans := newMockPlanStore()
	plans.plans["plan-1"] = &domain.Plan{
		ID: "plan-1", OwnerID: "owner-1", Name: "Groceries",
		TargetAmount:  decimal.NewFromInt(500),
		CurrentAmount: decimal.NewFromInt(500),
		Status:        domain.StatusCompleted,
	}

	svc := newPlanService(plans, &mockNotificationStore{})
	plan, err := svc.UpdatePlan(context.Background(), "owner-1", "plan-1", &domain.UpdatePlanRequest{
		TargetAmount: decimal.NewFromInt(800),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if plan.Status != domain.StatusActive {
		t.Errorf("raising the target past current should re-activate, got %s", plan.Status)
	}
}

func TestUpdatePlan_CancelledRejected(t *testing.T) {
	plans := newMockPlanStore()
	plans.plans["plan-1"] = &domain.Plan{
		ID: "plan-1", OwnerID: "owner-1",
		TargetAmount: decimal.NewFromInt(500),
		Status:       domain.StatusCancelled,
	}

	svc := newPlanService(plans, &mockNotificationStore{})
	_, err := svc.UpdatePlan(context.Background(), "owner-1", "plan-1", &domain.UpdatePlanRequest{Name: "x"})

	var transition *domain.ErrInvalidTransition
	if !errors.As(err, &transition) {
		t.Fatalf("expected invalid-transition error, got %v", err)
	}
}

func TestCreatePlan_Validation(t *testing.T) {
	svc := newPlanService(newMockPlanStore(), &mockNotificationStore{})
	now := day(2024, time.June, 1)

	_, err := svc.CreatePlan(context.Background(), "owner-1", &domain.CreatePlanRequest{
		TargetAmount: decimal.NewFromInt(100),
	}, now)
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("missing name: expected validation error, got %v", err)
	}

	_, err = svc.CreatePlan(context.Background(), "owner-1", &domain.CreatePlanRequest{
		Name:         "Groceries",
		TargetAmount: decimal.NewFromInt(100),
		StartDate:    "2024-06-01",
		EndDate:      "2024-05-01",
	}, now)
	if !errors.As(err, &validation) {
		t.Fatalf("end before start: expected validation error, got %v", err)
	}
}

func TestCancelGoal_Terminal(t *testing.T) {
	plans := newMockPlanStore()
	plans.goals["goal-1"] = &domain.SavingsGoal{
		ID: "goal-1", OwnerID: "owner-1",
		TargetAmount: decimal.NewFromInt(500),
		Status:       domain.StatusActive,
	}

	svc := newPlanService(plans, &mockNotificationStore{})
	if err := svc.CancelGoal(context.Background(), "owner-1", "goal-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := plans.goals["goal-1"].Status; got != domain.StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", got)
	}

	// And no way back.
	if _, err := svc.AddToGoal(context.Background(), "owner-1", "goal-1", &domain.AddToGoalRequest{
		Amount: decimal.NewFromInt(10),
	}, day(2024, time.June, 1)); err == nil {
		t.Fatal("expected add on cancelled goal to fail")
	}
}
