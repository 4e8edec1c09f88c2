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
// LedgerStore implementation — ledger_entries via PostgREST
// ============================================================

// entryRow maps the ledger_entries table columns.
type entryRow struct {
	ID            string  `json:"id"`
	OwnerID       string  `json:"owner_id"`
	Description   string  `json:"description"`
	Amount        float64 `json:"amount"`
	Kind          string  `json:"kind"`
	Category      string  `json:"category"`
	Date          string  `json:"date"`
	Pending       bool    `json:"pending"`
	PendingDate   *string `json:"pending_date"`
	RecurringID   *string `json:"recurring_id"`
	InstallmentID *string `json:"installment_id"`
	PlanID        *string `json:"plan_id"`
	InstrumentID  *string `json:"instrument_id"`
	CreatedAt     string  `json:"created_at"`
}

func (r *entryRow) toDomain() domain.LedgerEntry {
	return domain.LedgerEntry{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		Description:   r.Description,
		Amount:        decimal.NewFromFloat(r.Amount),
		Kind:          domain.EntryKind(r.Kind),
		Category:      r.Category,
		Date:          parseDate(r.Date),
		Pending:       r.Pending,
		PendingDate:   parseDatePtr(r.PendingDate),
		RecurringID:   r.RecurringID,
		InstallmentID: r.InstallmentID,
		PlanID:        r.PlanID,
		InstrumentID:  r.InstrumentID,
		CreatedAt:     parseDate(r.CreatedAt),
	}
}

func entryPayload(e *domain.LedgerEntry) map[string]any {
	data := map[string]any{
		"id":          e.ID,
		"owner_id":    e.OwnerID,
		"description": e.Description,
		"amount":      e.Amount.InexactFloat64(),
		"kind":        string(e.Kind),
		"category":    e.Category,
		"date":        fmtDate(e.Date),
		"pending":     e.Pending,
		"created_at":  e.CreatedAt.Format(time.RFC3339),
	}
	if e.PendingDate != nil {
		data["pending_date"] = fmtDate(*e.PendingDate)
	}
	if e.RecurringID != nil {
		data["recurring_id"] = *e.RecurringID
	}
	if e.InstallmentID != nil {
		data["installment_id"] = *e.InstallmentID
	}
	if e.PlanID != nil {
		data["plan_id"] = *e.PlanID
	}
	if e.InstrumentID != nil {
		data["instrument_id"] = *e.InstrumentID
	}
	return data
}

func decodeEntries(body []byte) ([]domain.LedgerEntry, error) {
	if body == nil {
		return []domain.LedgerEntry{}, nil
	}
	var rows []entryRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode ledger_entries: %w", err)
	}
	entries := make([]domain.LedgerEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].toDomain())
	}
	return entries, nil
}

func (c *Client) CreateEntry(ctx context.Context, entry *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateEntry")
	defer span.End()

	body, err := c.doPost(ctx, "ledger_entries", entryPayload(entry))
	if err != nil {
		return nil, err
	}

	entries, err := decodeEntries(body)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return entry, nil
	}
	return &entries[0], nil
}

func (c *Client) GetEntry(ctx context.Context, ownerID, entryID string) (*domain.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetEntry")
	defer span.End()

	path := fmt.Sprintf("ledger_entries?owner_id=eq.%s&id=eq.%s&limit=1", ownerID, entryID)
	body, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}

	entries, err := decodeEntries(body)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &domain.ErrNotFound{Resource: "ledger_entry", ID: entryID}
	}
	return &entries[0], nil
}

func (c *Client) ListEntries(ctx context.Context, ownerID string, page, pageSize int) ([]domain.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListEntries")
	defer span.End()

	offset := (page - 1) * pageSize
	path := fmt.Sprintf("ledger_entries?owner_id=eq.%s&order=date.desc&offset=%d&limit=%d", ownerID, offset, pageSize)
	body, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodeEntries(body)
}

func (c *Client) DeleteEntry(ctx context.Context, ownerID, entryID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteEntry")
	defer span.End()

	path := fmt.Sprintf("ledger_entries?owner_id=eq.%s&id=eq.%s", ownerID, entryID)
	return c.doDelete(ctx, path)
}

func (c *Client) CountEntriesForInstallment(ctx context.Context, installmentID string) (int, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CountEntriesForInstallment")
	defer span.End()

	path := fmt.Sprintf("ledger_entries?installment_id=eq.%s&select=id", installmentID)
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
		return 0, fmt.Errorf("decode installment entry count: %w", err)
	}
	return len(rows), nil
}

func (c *Client) LatestEntryForInstallment(ctx context.Context, installmentID string) (*domain.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "Supabase.LatestEntryForInstallment")
	defer span.End()

	path := fmt.Sprintf("ledger_entries?installment_id=eq.%s&order=date.desc&limit=1", installmentID)
	body, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}

	entries, err := decodeEntries(body)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &domain.ErrNotFound{Resource: "installment_entry", ID: installmentID}
	}
	return &entries[0], nil
}

func (c *Client) SumConfirmedExpensesForPlan(ctx context.Context, planID string) (decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SumConfirmedExpensesForPlan")
	defer span.End()

	path := fmt.Sprintf("ledger_entries?plan_id=eq.%s&pending=is.false&kind=eq.%s&select=amount", planID, domain.EntryExpense)
	body, err := c.doRequest(ctx, path)
	if err != nil {
		return decimal.Zero, err
	}
	if body == nil {
		return decimal.Zero, nil
	}

	var rows []struct {
		Amount float64 `json:"amount"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return decimal.Zero, fmt.Errorf("decode plan expense sum: %w", err)
	}

	sum := decimal.Zero
	for _, r := range rows {
		sum = sum.Add(decimal.NewFromFloat(r.Amount))
	}
	return sum, nil
}

func (c *Client) ListDuePending(ctx context.Context, now time.Time, limit int) ([]domain.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListDuePending")
	defer span.End()

	path := fmt.Sprintf("ledger_entries?pending=is.true&pending_date=lte.%s&order=pending_date.asc&limit=%d", fmtDate(now), limit)
	body, err := c.doRequestRetried(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodeEntries(body)
}

func (c *Client) CountDuePending(ctx context.Context, now time.Time) (int, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CountDuePending")
	defer span.End()

	path := fmt.Sprintf("ledger_entries?pending=is.true&pending_date=lte.%s&select=id", fmtDate(now))
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
		return 0, fmt.Errorf("decode pending count: %w", err)
	}
	return len(rows), nil
}

// ConfirmEntry flips a pending entry to confirmed. The pending=is.true
// filter makes the update conditional: if another invocation confirmed
// the entry first, PostgREST patches nothing and we report a conflict.
func (c *Client) ConfirmEntry(ctx context.Context, entryID string, date time.Time) error {
	ctx, span := tracer.Start(ctx, "Supabase.ConfirmEntry")
	defer span.End()

	path := fmt.Sprintf("ledger_entries?id=eq.%s&pending=is.true", entryID)
	body, err := c.doPatchReturning(ctx, path, map[string]any{
		"pending":      false,
		"pending_date": nil,
		"date":         fmtDate(date),
	})
	if err != nil {
		return err
	}
	if body == nil || string(body) == "[]" {
		return &domain.ErrConflict{Resource: "ledger_entry", ID: entryID}
	}
	return nil
}

func (c *Client) NetBalance(ctx context.Context, ownerID string) (decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.NetBalance")
	defer span.End()

	path := fmt.Sprintf("ledger_entries?owner_id=eq.%s&pending=is.false&select=amount,kind", ownerID)
	body, err := c.doRequest(ctx, path)
	if err != nil {
		return decimal.Zero, err
	}
	if body == nil {
		return decimal.Zero, nil
	}

	var rows []struct {
		Amount float64 `json:"amount"`
		Kind   string  `json:"kind"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return decimal.Zero, fmt.Errorf("decode net balance: %w", err)
	}

	net := decimal.Zero
	for _, r := range rows {
		amt := decimal.NewFromFloat(r.Amount)
		if domain.EntryKind(r.Kind) == domain.EntryIncome {
			net = net.Add(amt)
		} else {
			net = net.Sub(amt)
		}
	}
	return net, nil
}
