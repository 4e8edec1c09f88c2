package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmelo/fintrack-engine-go/internal/domain"

	"github.com/shopspring/decimal"
)

// ============================================================
// SchedulerStore implementation — recurring_obligations and
// installments via PostgREST
// ============================================================

// obligationRow maps the recurring_obligations table columns.
type obligationRow struct {
	ID             string  `json:"id"`
	OwnerID        string  `json:"owner_id"`
	Description    string  `json:"description"`
	Amount         float64 `json:"amount"`
	Kind           string  `json:"kind"`
	Frequency      string  `json:"frequency"`
	Category       string  `json:"category"`
	StartDate      string  `json:"start_date"`
	EndDate        *string `json:"end_date"`
	NextDueDate    string  `json:"next_due_date"`
	LastExecutedAt *string `json:"last_executed_at"`
	Active         bool    `json:"active"`
	CreatedAt      string  `json:"created_at"`
}

func (r *obligationRow) toDomain() domain.RecurringObligation {
	return domain.RecurringObligation{
		ID:             r.ID,
		OwnerID:        r.OwnerID,
		Description:    r.Description,
		Amount:         decimal.NewFromFloat(r.Amount),
		Kind:           domain.EntryKind(r.Kind),
		Frequency:      domain.Frequency(r.Frequency),
		Category:       r.Category,
		StartDate:      parseDate(r.StartDate),
		EndDate:        parseDatePtr(r.EndDate),
		NextDueDate:    parseDate(r.NextDueDate),
		LastExecutedAt: parseDatePtr(r.LastExecutedAt),
		Active:         r.Active,
		CreatedAt:      parseDate(r.CreatedAt),
	}
}

func decodeObligations(body []byte) ([]domain.RecurringObligation, error) {
	if body == nil {
		return []domain.RecurringObligation{}, nil
	}
	var rows []obligationRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode recurring_obligations: %w", err)
	}
	out := make([]domain.RecurringObligation, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (c *Client) CreateObligation(ctx context.Context, o *domain.RecurringObligation) (*domain.RecurringObligation, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateObligation")
	defer span.End()

	data := map[string]any{
		"id":            o.ID,
		"owner_id":      o.OwnerID,
		"description":   o.Description,
		"amount":        o.Amount.InexactFloat64(),
		"kind":          string(o.Kind),
		"frequency":     string(o.Frequency),
		"category":      o.Category,
		"start_date":    fmtDate(o.StartDate),
		"next_due_date": fmtDate(o.NextDueDate),
		"active":        o.Active,
		"created_at":    o.CreatedAt.Format(time.RFC3339),
	}
	if o.EndDate != nil {
		data["end_date"] = fmtDate(*o.EndDate)
	}

	body, err := c.doPost(ctx, "recurring_obligations", data)
	if err != nil {
		return nil, err
	}
	obligations, err := decodeObligations(body)
	if err != nil {
		return nil, err
	}
	if len(obligations) == 0 {
		return o, nil
	}
	return &obligations[0], nil
}

func (c *Client) GetObligation(ctx context.Context, ownerID, obligationID string) (*domain.RecurringObligation, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetObligation")
	defer span.End()

	path := fmt.Sprintf("recurring_obligations?owner_id=eq.%s&id=eq.%s&limit=1", ownerID, obligationID)
	body, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	obligations, err := decodeObligations(body)
	if err != nil {
		return nil, err
	}
	if len(obligations) == 0 {
		return nil, &domain.ErrNotFound{Resource: "recurring_obligation", ID: obligationID}
	}
	return &obligations[0], nil
}

func (c *Client) ListObligations(ctx context.Context, ownerID string) ([]domain.RecurringObligation, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListObligations")
	defer span.End()

	path := fmt.Sprintf("recurring_obligations?owner_id=eq.%s&order=next_due_date.asc", ownerID)
	body, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodeObligations(body)
}

// ListDueObligations returns the batch working set: active obligations
// whose next due date has arrived. End-date expiry is decided by the
// caller, which needs to see overdue-but-expired rows to deactivate them.
func (c *Client) ListDueObligations(ctx context.Context, now time.Time, limit int) ([]domain.RecurringObligation, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListDueObligations")
	defer span.End()

	path := fmt.Sprintf(
		"recurring_obligations?active=is.true&next_due_date=lte.%s&order=next_due_date.asc&limit=%d",
		fmtDate(now), limit,
	)
	body, err := c.doRequestRetried(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodeObligations(body)
}

func (c *Client) ListUpcomingObligations(ctx context.Context, from, to time.Time, limit int) ([]domain.RecurringObligation, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListUpcomingObligations")
	defer span.End()

	path := fmt.Sprintf(
		"recurring_obligations?active=is.true&next_due_date=gt.%s&next_due_date=lte.%s&order=next_due_date.asc&limit=%d",
		fmtDate(from), fmtDate(to), limit,
	)
	body, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodeObligations(body)
}

func (c *Client) CountDueObligations(ctx context.Context, now time.Time) (int, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CountDueObligations")
	defer span.End()

	path := fmt.Sprintf("recurring_obligations?active=is.true&next_due_date=lte.%s&select=id", fmtDate(now))
	body, err := c.doRequest(ctx, path)
	if err != nil {
		return 0, err
	}
	if body == nil {
		return 0, nil
	}
	var rows []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return 0, fmt.Errorf("decode due obligation count: %w", err)
	}
	return len(rows), nil
}

// AdvanceObligation persists the post-materialization state. The
// next_due_date filter makes it a compare-and-swap: if a concurrent
// run already advanced the obligation, nothing matches and the caller
// gets ErrConflict instead of a double materialization.
func (c *Client) AdvanceObligation(ctx context.Context, obligationID string, expectedNextDue, newNextDue, executedAt time.Time, active bool) error {
	ctx, span := tracer.Start(ctx, "Supabase.AdvanceObligation")
	defer span.End()

	path := fmt.Sprintf("recurring_obligations?id=eq.%s&next_due_date=eq.%s", obligationID, fmtDate(expectedNextDue))
	body, err := c.doPatchReturning(ctx, path, map[string]any{
		"next_due_date":    fmtDate(newNextDue),
		"last_executed_at": executedAt.Format(time.RFC3339),
		"active":           active,
	})
	if err != nil {
		return err
	}
	if body == nil || string(body) == "[]" {
		return &domain.ErrConflict{Resource: "recurring_obligation", ID: obligationID}
	}
	return nil
}

func (c *Client) SetObligationActive(ctx context.Context, ownerID, obligationID string, active bool) error {
	ctx, span := tracer.Start(ctx, "Supabase.SetObligationActive")
	defer span.End()

	path := fmt.Sprintf("recurring_obligations?id=eq.%s&owner_id=eq.%s", obligationID, ownerID)
	body, err := c.doPatchReturning(ctx, path, map[string]any{"active": active})
	if err != nil {
		return err
	}
	if body == nil || string(body) == "[]" {
		return &domain.ErrNotFound{Resource: "recurring_obligation", ID: obligationID}
	}
	return nil
}

// --- Installments ---

// installmentRow maps the installments table columns.
type installmentRow struct {
	ID                 string  `json:"id"`
	OwnerID            string  `json:"owner_id"`
	Description        string  `json:"description"`
	TotalAmount        float64 `json:"total_amount"`
	InstallmentCount   int     `json:"installment_count"`
	CurrentInstallment int     `json:"current_installment"`
	Category           string  `json:"category"`
	StartDate          string  `json:"start_date"`
	Status             string  `json:"status"`
	CreatedAt          string  `json:"created_at"`
}

func (r *installmentRow) toDomain() domain.Installment {
	return domain.Installment{
		ID:                 r.ID,
		OwnerID:            r.OwnerID,
		Description:        r.Description,
		TotalAmount:        decimal.NewFromFloat(r.TotalAmount),
		InstallmentCount:   r.InstallmentCount,
		CurrentInstallment: r.CurrentInstallment,
		Category:           r.Category,
		StartDate:          parseDate(r.StartDate),
		Status:             domain.Status(r.Status),
		CreatedAt:          parseDate(r.CreatedAt),
	}
}

func decodeInstallments(body []byte) ([]domain.Installment, error) {
	if body == nil {
		return []domain.Installment{}, nil
	}
	var rows []installmentRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode installments: %w", err)
	}
	out := make([]domain.Installment, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (c *Client) CreateInstallment(ctx context.Context, inst *domain.Installment) (*domain.Installment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateInstallment")
	defer span.End()

	body, err := c.doPost(ctx, "installments", map[string]any{
		"id":                  inst.ID,
		"owner_id":            inst.OwnerID,
		"description":         inst.Description,
		"total_amount":        inst.TotalAmount.InexactFloat64(),
		"installment_count":   inst.InstallmentCount,
		"current_installment": inst.CurrentInstallment,
		"category":            inst.Category,
		"start_date":          fmtDate(inst.StartDate),
		"status":              string(inst.Status),
		"created_at":          inst.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	installments, err := decodeInstallments(body)
	if err != nil {
		return nil, err
	}
	if len(installments) == 0 {
		return inst, nil
	}
	return &installments[0], nil
}

func (c *Client) GetInstallment(ctx context.Context, ownerID, installmentID string) (*domain.Installment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetInstallment")
	defer span.End()

	path := fmt.Sprintf("installments?owner_id=eq.%s&id=eq.%s&limit=1", ownerID, installmentID)
	body, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	installments, err := decodeInstallments(body)
	if err != nil {
		return nil, err
	}
	if len(installments) == 0 {
		return nil, &domain.ErrNotFound{Resource: "installment", ID: installmentID}
	}
	return &installments[0], nil
}

func (c *Client) ListInstallments(ctx context.Context, ownerID string) ([]domain.Installment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListInstallments")
	defer span.End()

	path := fmt.Sprintf("installments?owner_id=eq.%s&order=created_at.desc", ownerID)
	body, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodeInstallments(body)
}

func (c *Client) ListInstallmentsByStatus(ctx context.Context, statuses []domain.Status, limit int) ([]domain.Installment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListInstallmentsByStatus")
	defer span.End()

	path := fmt.Sprintf("installments?status=in.(%s)&order=created_at.asc&limit=%d", joinStatuses(statuses), limit)
	body, err := c.doRequestRetried(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodeInstallments(body)
}

// AdvanceInstallment increments the slice counter via compare-and-swap
// on current_installment, mirroring AdvanceObligation.
func (c *Client) AdvanceInstallment(ctx context.Context, installmentID string, expectedCurrent, newCurrent int, status domain.Status) error {
	ctx, span := tracer.Start(ctx, "Supabase.AdvanceInstallment")
	defer span.End()

	path := fmt.Sprintf("installments?id=eq.%s&current_installment=eq.%d", installmentID, expectedCurrent)
	body, err := c.doPatchReturning(ctx, path, map[string]any{
		"current_installment": newCurrent,
		"status":              string(status),
	})
	if err != nil {
		return err
	}
	if body == nil || string(body) == "[]" {
		return &domain.ErrConflict{Resource: "installment", ID: installmentID}
	}
	return nil
}

func (c *Client) UpdateInstallment(ctx context.Context, installmentID string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateInstallment")
	defer span.End()

	path := fmt.Sprintf("installments?id=eq.%s", installmentID)
	return c.doPatch(ctx, path, updates)
}

func joinStatuses(statuses []domain.Status) string {
	parts := make([]string, 0, len(statuses))
	for _, s := range statuses {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, ",")
}
