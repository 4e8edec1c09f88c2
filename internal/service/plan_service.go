package service

import (
	"context"
	"time"

	"github.com/dmelo/fintrack-engine-go/internal/domain"
	"github.com/dmelo/fintrack-engine-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var planTracer = otel.Tracer("service/plan")

// PlanService manages the lifecycle of plans and savings goals. The
// aggregates themselves are repaired by the ReconcileService; this
// service only creates, edits and cancels them, re-deriving status
// when a target edit changes what "reached" means.
type PlanService struct {
	store  port.PlanStore
	notify *NotifyService
	logger *zap.Logger
}

// NewPlanService creates a plan/goal lifecycle service.
func NewPlanService(store port.PlanStore, notify *NotifyService, logger *zap.Logger) *PlanService {
	return &PlanService{store: store, notify: notify, logger: logger}
}

// ============================================================
// Plans
// ============================================================

func (s *PlanService) CreatePlan(ctx context.Context, ownerID string, req *domain.CreatePlanRequest, now time.Time) (*domain.Plan, error) {
	ctx, span := planTracer.Start(ctx, "PlanService.CreatePlan")
	defer span.End()

	startDate, endDate, err := planDates(req.StartDate, req.EndDate, now)
	if err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if !req.TargetAmount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "target_amount", Message: "must be positive"}
	}

	plan := &domain.Plan{
		ID:           uuid.New().String(),
		OwnerID:      ownerID,
		Name:         req.Name,
		Category:     req.Category,
		TargetAmount: req.TargetAmount,
		StartDate:    startDate,
		EndDate:      endDate,
		Status:       domain.StatusActive,
		CreatedAt:    now,
	}

	created, err := s.store.CreatePlan(ctx, plan)
	if err != nil {
		s.logger.Error("failed to create plan", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("plan created",
		zap.String("owner_id", ownerID),
		zap.String("plan_id", created.ID),
		zap.String("target", created.TargetAmount.StringFixed(2)),
	)
	return created, nil
}

// UpdatePlan edits a plan's name, target or end date. Raising the
// target above the current amount moves a COMPLETED plan back to
// ACTIVE.
func (s *PlanService) UpdatePlan(ctx context.Context, ownerID, planID string, req *domain.UpdatePlanRequest) (*domain.Plan, error) {
	ctx, span := planTracer.Start(ctx, "PlanService.UpdatePlan")
	defer span.End()

	plan, err := s.store.GetPlan(ctx, ownerID, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status == domain.StatusCancelled {
		return nil, &domain.ErrInvalidTransition{Resource: "plan", From: domain.StatusCancelled, To: domain.StatusActive}
	}

	updates := map[string]any{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.EndDate != "" {
		ed, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			return nil, &domain.ErrValidation{Field: "end_date", Message: "invalid format, use YYYY-MM-DD"}
		}
		updates["end_date"] = ed.Format("2006-01-02")
	}

	target := plan.TargetAmount
	if req.TargetAmount.IsPositive() {
		target = req.TargetAmount
		updates["target_amount"] = target.InexactFloat64()
	}

	derived := domain.DeriveStatus(plan.Status, plan.CurrentAmount.GreaterThanOrEqual(target))
	updates["status"] = string(derived)

	if err := s.store.UpdatePlan(ctx, planID, updates); err != nil {
		s.logger.Error("failed to update plan", zap.String("plan_id", planID), zap.Error(err))
		return nil, err
	}
	return s.store.GetPlan(ctx, ownerID, planID)
}

// CancelPlan is explicit and terminal.
func (s *PlanService) CancelPlan(ctx context.Context, ownerID, planID string) error {
	ctx, span := planTracer.Start(ctx, "PlanService.CancelPlan")
	defer span.End()

	plan, err := s.store.GetPlan(ctx, ownerID, planID)
	if err != nil {
		return err
	}
	if !domain.CanTransition(plan.Status, domain.StatusCancelled) {
		return &domain.ErrInvalidTransition{Resource: "plan", From: plan.Status, To: domain.StatusCancelled}
	}
	return s.store.UpdatePlan(ctx, planID, map[string]any{"status": string(domain.StatusCancelled)})
}

func (s *PlanService) GetPlan(ctx context.Context, ownerID, planID string) (*domain.Plan, error) {
	ctx, span := planTracer.Start(ctx, "PlanService.GetPlan")
	defer span.End()

	return s.store.GetPlan(ctx, ownerID, planID)
}

func (s *PlanService) ListPlans(ctx context.Context, ownerID string) ([]domain.Plan, error) {
	ctx, span := planTracer.Start(ctx, "PlanService.ListPlans")
	defer span.End()

	return s.store.ListPlans(ctx, ownerID)
}

// ============================================================
// Savings goals
// ============================================================

func (s *PlanService) CreateGoal(ctx context.Context, ownerID string, req *domain.CreatePlanRequest, now time.Time) (*domain.SavingsGoal, error) {
	ctx, span := planTracer.Start(ctx, "PlanService.CreateGoal")
	defer span.End()

	startDate, endDate, err := planDates(req.StartDate, req.EndDate, now)
	if err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if !req.TargetAmount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "target_amount", Message: "must be positive"}
	}

	goal := &domain.SavingsGoal{
		ID:           uuid.New().String(),
		OwnerID:      ownerID,
		Name:         req.Name,
		TargetAmount: req.TargetAmount,
		StartDate:    startDate,
		EndDate:      endDate,
		Status:       domain.StatusActive,
		CreatedAt:    now,
	}

	created, err := s.store.CreateGoal(ctx, goal)
	if err != nil {
		s.logger.Error("failed to create savings goal", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, err
	}
	return created, nil
}

// AddToGoal manually increments a savings goal and re-derives its
// status, firing threshold notifications on progress.
func (s *PlanService) AddToGoal(ctx context.Context, ownerID, goalID string, req *domain.AddToGoalRequest, now time.Time) (*domain.SavingsGoal, error) {
	ctx, span := planTracer.Start(ctx, "PlanService.AddToGoal")
	defer span.End()

	if !req.Amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}

	goal, err := s.store.GetGoal(ctx, ownerID, goalID)
	if err != nil {
		return nil, err
	}
	if goal.Status == domain.StatusCancelled {
		return nil, &domain.ErrInvalidTransition{Resource: "savings_goal", From: domain.StatusCancelled, To: domain.StatusActive}
	}

	newAmount := goal.CurrentAmount.Add(req.Amount)
	derived := domain.DeriveStatus(goal.Status, newAmount.GreaterThanOrEqual(goal.TargetAmount))

	updates := map[string]any{
		"current_amount": newAmount.InexactFloat64(),
		"status":         string(derived),
	}
	if err := s.store.UpdateGoal(ctx, goalID, updates); err != nil {
		s.logger.Error("failed to add to savings goal", zap.String("goal_id", goalID), zap.Error(err))
		return nil, err
	}

	s.notify.Progress(ctx, ownerID, goalID, goal.Name, newAmount, goal.TargetAmount, goal.Status, now)

	goal.CurrentAmount = newAmount
	goal.Status = derived
	s.logger.Info("savings goal incremented",
		zap.String("goal_id", goalID),
		zap.String("added", req.Amount.StringFixed(2)),
		zap.String("current", newAmount.StringFixed(2)),
	)
	return goal, nil
}

// UpdateGoal edits a goal's name, target or end date, re-deriving
// status against the possibly-new target.
func (s *PlanService) UpdateGoal(ctx context.Context, ownerID, goalID string, req *domain.UpdatePlanRequest) (*domain.SavingsGoal, error) {
	ctx, span := planTracer.Start(ctx, "PlanService.UpdateGoal")
	defer span.End()

	goal, err := s.store.GetGoal(ctx, ownerID, goalID)
	if err != nil {
		return nil, err
	}
	if goal.Status == domain.StatusCancelled {
		return nil, &domain.ErrInvalidTransition{Resource: "savings_goal", From: domain.StatusCancelled, To: domain.StatusActive}
	}

	updates := map[string]any{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.EndDate != "" {
		ed, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			return nil, &domain.ErrValidation{Field: "end_date", Message: "invalid format, use YYYY-MM-DD"}
		}
		updates["end_date"] = ed.Format("2006-01-02")
	}

	target := goal.TargetAmount
	if req.TargetAmount.IsPositive() {
		target = req.TargetAmount
		updates["target_amount"] = target.InexactFloat64()
	}
	updates["status"] = string(domain.DeriveStatus(goal.Status, goal.CurrentAmount.GreaterThanOrEqual(target)))

	if err := s.store.UpdateGoal(ctx, goalID, updates); err != nil {
		return nil, err
	}
	return s.store.GetGoal(ctx, ownerID, goalID)
}

// CancelGoal is explicit and terminal.
func (s *PlanService) CancelGoal(ctx context.Context, ownerID, goalID string) error {
	ctx, span := planTracer.Start(ctx, "PlanService.CancelGoal")
	defer span.End()

	goal, err := s.store.GetGoal(ctx, ownerID, goalID)
	if err != nil {
		return err
	}
	if !domain.CanTransition(goal.Status, domain.StatusCancelled) {
		return &domain.ErrInvalidTransition{Resource: "savings_goal", From: goal.Status, To: domain.StatusCancelled}
	}
	return s.store.UpdateGoal(ctx, goalID, map[string]any{"status": string(domain.StatusCancelled)})
}

func (s *PlanService) ListGoals(ctx context.Context, ownerID string) ([]domain.SavingsGoal, error) {
	ctx, span := planTracer.Start(ctx, "PlanService.ListGoals")
	defer span.End()

	return s.store.ListGoals(ctx, ownerID)
}

func (s *PlanService) GetGoal(ctx context.Context, ownerID, goalID string) (*domain.SavingsGoal, error) {
	ctx, span := planTracer.Start(ctx, "PlanService.GetGoal")
	defer span.End()

	return s.store.GetGoal(ctx, ownerID, goalID)
}

// planDates parses optional start/end dates, defaulting start to now.
func planDates(start, end string, now time.Time) (time.Time, *time.Time, error) {
	startDate := now
	if start != "" {
		sd, err := time.Parse("2006-01-02", start)
		if err != nil {
			return time.Time{}, nil, &domain.ErrValidation{Field: "start_date", Message: "invalid format, use YYYY-MM-DD"}
		}
		startDate = sd
	}
	var endDate *time.Time
	if end != "" {
		ed, err := time.Parse("2006-01-02", end)
		if err != nil {
			return time.Time{}, nil, &domain.ErrValidation{Field: "end_date", Message: "invalid format, use YYYY-MM-DD"}
		}
		if ed.Before(startDate) {
			return time.Time{}, nil, &domain.ErrValidation{Field: "end_date", Message: "must not be before start_date"}
		}
		endDate = &ed
	}
	return startDate, endDate, nil
}
