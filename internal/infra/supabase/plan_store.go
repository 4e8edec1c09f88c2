package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmelo/fintrack-engine-go/internal/domain"

	"github.com/shopspring/decimal"
)

// ============================================================
// PlanStore implementation — plans and savings_goals via PostgREST
// ============================================================

// planRow maps the plans table columns.
type planRow struct {
	ID            string  `json:"id"`
	OwnerID       string  `json:"owner_id"`
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	TargetAmount  float64 `json:"target_amount"`
	CurrentAmount float64 `json:"current_amount"`
	StartDate     string  `json:"start_date"`
	EndDate       *string `json:"end_date"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"created_at"`
}

func (r *planRow) toDomain() domain.Plan {
	return domain.Plan{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		Name:          r.Name,
		Category:      r.Category,
		TargetAmount:  decimal.NewFromFloat(r.TargetAmount),
		CurrentAmount: decimal.NewFromFloat(r.CurrentAmount),
		StartDate:     parseDate(r.StartDate),
		EndDate:       parseDatePtr(r.EndDate),
		Status:        domain.Status(r.Status),
		CreatedAt:     parseDate(r.CreatedAt),
	}
}

func decodePlans(body []byte) ([]domain.Plan, error) {
	if body == nil {
		return []domain.Plan{}, nil
	}
	var rows []planRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode plans: %w", err)
	}
	out := make([]domain.Plan, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (c *Client) CreatePlan(ctx context.Context, p *domain.Plan) (*domain.Plan, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreatePlan")
	defer span.End()

	data := map[string]any{
		"id":             p.ID,
		"owner_id":       p.OwnerID,
		"name":           p.Name,
		"category":       p.Category,
		"target_amount":  p.TargetAmount.InexactFloat64(),
		"current_amount": p.CurrentAmount.InexactFloat64(),
		"start_date":     fmtDate(p.StartDate),
		"status":         string(p.Status),
		"created_at":     p.CreatedAt.Format(time.RFC3339),
	}
	if p.EndDate != nil {
		data["end_date"] = fmtDate(*p.EndDate)
	}

	body, err := c.doPost(ctx, "plans", data)
	if err != nil {
		return nil, err
	}
	plans, err := decodePlans(body)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return p, nil
	}
	return &plans[0], nil
}

func (c *Client) GetPlan(ctx context.Context, ownerID, planID string) (*domain.Plan, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetPlan")
	defer span.End()

	path := fmt.Sprintf("plans?owner_id=eq.%s&id=eq.%s&limit=1", ownerID, planID)
	body, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	plans, err := decodePlans(body)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, &domain.ErrNotFound{Resource: "plan", ID: planID}
	}
	return &plans[0], nil
}

func (c *Client) ListPlans(ctx context.Context, ownerID string) ([]domain.Plan, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListPlans")
	defer span.End()

	path := fmt.Sprintf("plans?owner_id=eq.%s&order=created_at.desc", ownerID)
	body, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodePlans(body)
}

func (c *Client) ListPlansByStatus(ctx context.Context, statuses []domain.Status, limit int) ([]domain.Plan, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListPlansByStatus")
	defer span.End()

	path := fmt.Sprintf("plans?status=in.(%s)&order=created_at.asc&limit=%d", joinStatuses(statuses), limit)
	body, err := c.doRequestRetried(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodePlans(body)
}

func (c *Client) UpdatePlan(ctx context.Context, planID string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdatePlan")
	defer span.End()

	path := fmt.Sprintf("plans?id=eq.%s", planID)
	return c.doPatch(ctx, path, updates)
}

// --- Savings goals ---

// goalRow maps the savings_goals table columns.
type goalRow struct {
	ID            string  `json:"id"`
	OwnerID       string  `json:"owner_id"`
	Name          string  `json:"name"`
	TargetAmount  float64 `json:"target_amount"`
	CurrentAmount float64 `json:"current_amount"`
	StartDate     string  `json:"start_date"`
	EndDate       *string `json:"end_date"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"created_at"`
}

func (r *goalRow) toDomain() domain.SavingsGoal {
	return domain.SavingsGoal{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		Name:          r.Name,
		TargetAmount:  decimal.NewFromFloat(r.TargetAmount),
		CurrentAmount: decimal.NewFromFloat(r.CurrentAmount),
		StartDate:     parseDate(r.StartDate),
		EndDate:       parseDatePtr(r.EndDate),
		Status:        domain.Status(r.Status),
		CreatedAt:     parseDate(r.CreatedAt),
	}
}

func decodeGoals(body []byte) ([]domain.SavingsGoal, error) {
	if body == nil {
		return []domain.SavingsGoal{}, nil
	}
	var rows []goalRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode savings_goals: %w", err)
	}
	out := make([]domain.SavingsGoal, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (c *Client) CreateGoal(ctx context.Context, g *domain.SavingsGoal) (*domain.SavingsGoal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateGoal")
	defer span.End()

	data := map[string]any{
		"id":             g.ID,
		"owner_id":       g.OwnerID,
		"name":           g.Name,
		"target_amount":  g.TargetAmount.InexactFloat64(),
		"current_amount": g.CurrentAmount.InexactFloat64(),
		"start_date":     fmtDate(g.StartDate),
		"status":         string(g.Status),
		"created_at":     g.CreatedAt.Format(time.RFC3339),
	}
	if g.EndDate != nil {
		data["end_date"] = fmtDate(*g.EndDate)
	}

	body, err := c.doPost(ctx, "savings_goals", data)
	if err != nil {
		return nil, err
	}
	goals, err := decodeGoals(body)
	if err != nil {
		return nil, err
	}
	if len(goals) == 0 {
		return g, nil
	}
	return &goals[0], nil
}

func (c *Client) GetGoal(ctx context.Context, ownerID, goalID string) (*domain.SavingsGoal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetGoal")
	defer span.End()

	path := fmt.Sprintf("savings_goals?owner_id=eq.%s&id=eq.%s&limit=1", ownerID, goalID)
	body, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	goals, err := decodeGoals(body)
	if err != nil {
		return nil, err
	}
	if len(goals) == 0 {
		return nil, &domain.ErrNotFound{Resource: "savings_goal", ID: goalID}
	}
	return &goals[0], nil
}

func (c *Client) ListGoals(ctx context.Context, ownerID string) ([]domain.SavingsGoal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListGoals")
	defer span.End()

	path := fmt.Sprintf("savings_goals?owner_id=eq.%s&order=created_at.desc", ownerID)
	body, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodeGoals(body)
}

func (c *Client) UpdateGoal(ctx context.Context, goalID string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateGoal")
	defer span.End()

	path := fmt.Sprintf("savings_goals?id=eq.%s", goalID)
	return c.doPatch(ctx, path, updates)
}
