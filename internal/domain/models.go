// Package domain defines the core business entities for the fintrack engine.
// These models are independent of external services and represent the
// canonical data structures used throughout the scheduler and reconciler.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Ledger Entries
// ============================================================

// EntryKind distinguishes money flowing in from money flowing out.
type EntryKind string

const (
	EntryIncome  EntryKind = "INCOME"
	EntryExpense EntryKind = "EXPENSE"
)

// IsValid reports whether the kind is one of the known values.
func (k EntryKind) IsValid() bool {
	return k == EntryIncome || k == EntryExpense
}

// LedgerEntry is a single dated income/expense record, the system's
// source of truth. Entries may be created confirmed or pending with a
// future PendingDate; confirmation sets Date = PendingDate and clears
// the flag.
type LedgerEntry struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        EntryKind       `json:"kind"`
	Category    string          `json:"category"`
	Date        time.Time       `json:"date"`
	Pending     bool            `json:"pending"`
	PendingDate *time.Time      `json:"pending_date,omitempty"`

	// Weak back-references for aggregation. At most one is set;
	// deleting an entry unlinks, it never cascades into the parent.
	RecurringID   *string `json:"recurring_id,omitempty"`
	InstallmentID *string `json:"installment_id,omitempty"`
	PlanID        *string `json:"plan_id,omitempty"`

	InstrumentID *string   `json:"instrument_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateEntryRequest is the payload to record a ledger entry.
type CreateEntryRequest struct {
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Kind          EntryKind       `json:"kind"`
	Category      string          `json:"category"`
	Date          string          `json:"date"` // YYYY-MM-DD, empty = today
	Pending       bool            `json:"pending"`
	PendingDate   string          `json:"pending_date,omitempty"` // YYYY-MM-DD, required when pending
	RecurringID   *string         `json:"recurring_id,omitempty"`
	InstallmentID *string         `json:"installment_id,omitempty"`
	PlanID        *string         `json:"plan_id,omitempty"`
	InstrumentID  *string         `json:"instrument_id,omitempty"`
}

// ============================================================
// Recurring Obligations
// ============================================================

// RecurringObligation is a template that periodically materializes
// ledger entries. Invariant: NextDueDate is always the next
// not-yet-materialized occurrence.
type RecurringObligation struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"owner_id"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	Kind           EntryKind       `json:"kind"`
	Frequency      Frequency       `json:"frequency"`
	Category       string          `json:"category"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        *time.Time      `json:"end_date,omitempty"`
	NextDueDate    time.Time       `json:"next_due_date"`
	LastExecutedAt *time.Time      `json:"last_executed_at,omitempty"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
}

// CreateObligationRequest is the payload to register a recurring obligation.
type CreateObligationRequest struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        EntryKind       `json:"kind"`
	Frequency   Frequency       `json:"frequency"`
	Category    string          `json:"category"`
	StartDate   string          `json:"start_date"`         // YYYY-MM-DD
	EndDate     string          `json:"end_date,omitempty"` // YYYY-MM-DD, empty = open-ended
}

// ============================================================
// Installments
// ============================================================

// Installment is a fixed-count amortized purchase materialized one
// slice at a time. Invariants: 0 <= CurrentInstallment <= InstallmentCount,
// and Status == COMPLETED iff CurrentInstallment >= InstallmentCount.
type Installment struct {
	ID                 string          `json:"id"`
	OwnerID            string          `json:"owner_id"`
	Description        string          `json:"description"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	InstallmentCount   int             `json:"installment_count"`
	CurrentInstallment int             `json:"current_installment"`
	Category           string          `json:"category"`
	StartDate          time.Time       `json:"start_date"`
	Status             Status          `json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
}

// PerInstallmentAmount returns the value of a single slice, rounded to
// two decimal places.
func (i *Installment) PerInstallmentAmount() decimal.Decimal {
	if i.InstallmentCount <= 0 {
		return decimal.Zero
	}
	return i.TotalAmount.Div(decimal.NewFromInt(int64(i.InstallmentCount))).Round(2)
}

// CreateInstallmentRequest is the payload to open an installment purchase.
type CreateInstallmentRequest struct {
	Description      string          `json:"description"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	InstallmentCount int             `json:"installment_count"`
	Category         string          `json:"category"`
	StartDate        string          `json:"start_date,omitempty"` // YYYY-MM-DD, empty = today
}

// UpdateInstallmentRequest edits an installment after creation. Zero
// values leave the field untouched.
type UpdateInstallmentRequest struct {
	Description      string          `json:"description,omitempty"`
	TotalAmount      decimal.Decimal `json:"total_amount,omitempty"`
	InstallmentCount int             `json:"installment_count,omitempty"`
	Category         string          `json:"category,omitempty"`
}

// ============================================================
// Plans & Savings Goals
// ============================================================

// Plan is a budget-style goal. CurrentAmount is a materialized view
// over linked confirmed EXPENSE entries and is the field subject to
// reconciliation drift.
type Plan struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner_id"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       *time.Time      `json:"end_date,omitempty"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SavingsGoal is an accumulation-style goal. CurrentAmount is
// incremented manually, so reconciliation only re-derives its status.
type SavingsGoal struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner_id"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       *time.Time      `json:"end_date,omitempty"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// CreatePlanRequest is the payload to create a plan or savings goal.
type CreatePlanRequest struct {
	Name         string          `json:"name"`
	Category     string          `json:"category,omitempty"` // plans only
	TargetAmount decimal.Decimal `json:"target_amount"`
	StartDate    string          `json:"start_date,omitempty"` // YYYY-MM-DD, empty = today
	EndDate      string          `json:"end_date,omitempty"`
}

// UpdatePlanRequest edits a plan or goal target after creation.
type UpdatePlanRequest struct {
	Name         string          `json:"name,omitempty"`
	TargetAmount decimal.Decimal `json:"target_amount,omitempty"`
	EndDate      string          `json:"end_date,omitempty"`
}

// AddToGoalRequest manually increments a savings goal.
type AddToGoalRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// ============================================================
// Notifications
// ============================================================

// Notification kinds derived by the trigger rules. Delivery is handled
// by an external collaborator; the engine only records the event.
const (
	NotifyAlmostThere = "goal_almost_there"
	NotifyCompleted   = "goal_completed"
	NotifyUpcoming    = "recurring_upcoming"
	NotifyLowBalance  = "low_balance"
)

// Notification is a derived alert event.
type Notification struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Kind      string    `json:"kind"`
	EntityID  string    `json:"entity_id,omitempty"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// DedupKey identifies a notification for the 24h suppression window.
func (n *Notification) DedupKey() string {
	return n.OwnerID + "|" + n.Kind + "|" + n.EntityID
}

// ============================================================
// Generic API Response wrappers
// ============================================================

// ListResponse wraps paginated list results.
type ListResponse[T any] struct {
	Data     []T  `json:"data"`
	Total    int  `json:"total"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasMore  bool `json:"has_more"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
