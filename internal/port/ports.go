// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/dmelo/fintrack-engine-go/internal/domain"

	"github.com/shopspring/decimal"
)

// Cache provides generic caching with TTL. The notification trigger
// rules use it as the dedup suppression window.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// LedgerStore defines all data operations on ledger entries.
// Implemented by the Supabase adapter (or any other persistence layer).
type LedgerStore interface {
	CreateEntry(ctx context.Context, entry *domain.LedgerEntry) (*domain.LedgerEntry, error)
	GetEntry(ctx context.Context, ownerID, entryID string) (*domain.LedgerEntry, error)
	ListEntries(ctx context.Context, ownerID string, page, pageSize int) ([]domain.LedgerEntry, error)
	DeleteEntry(ctx context.Context, ownerID, entryID string) error

	// Linked-entry queries backing the aggregate reconciler.
	CountEntriesForInstallment(ctx context.Context, installmentID string) (int, error)
	LatestEntryForInstallment(ctx context.Context, installmentID string) (*domain.LedgerEntry, error)
	SumConfirmedExpensesForPlan(ctx context.Context, planID string) (decimal.Decimal, error)

	// Pending (future-dated) entries for the sweeper.
	ListDuePending(ctx context.Context, now time.Time, limit int) ([]domain.LedgerEntry, error)
	CountDuePending(ctx context.Context, now time.Time) (int, error)

	// ConfirmEntry flips a pending entry to confirmed, setting its
	// effective date. Conditional on pending still being true; returns
	// ErrConflict if another invocation confirmed it first.
	ConfirmEntry(ctx context.Context, entryID string, date time.Time) error

	// NetBalance is confirmed income minus confirmed expense for an owner.
	NetBalance(ctx context.Context, ownerID string) (decimal.Decimal, error)
}

// SchedulerStore defines data operations on recurring obligations and
// installments, including the conditional updates that guarantee
// at-most-once materialization under concurrent batch runs.
type SchedulerStore interface {
	// Recurring obligations
	CreateObligation(ctx context.Context, o *domain.RecurringObligation) (*domain.RecurringObligation, error)
	GetObligation(ctx context.Context, ownerID, obligationID string) (*domain.RecurringObligation, error)
	ListObligations(ctx context.Context, ownerID string) ([]domain.RecurringObligation, error)
	ListDueObligations(ctx context.Context, now time.Time, limit int) ([]domain.RecurringObligation, error)
	ListUpcomingObligations(ctx context.Context, from, to time.Time, limit int) ([]domain.RecurringObligation, error)
	CountDueObligations(ctx context.Context, now time.Time) (int, error)

	// AdvanceObligation persists the post-materialization state,
	// conditional on next_due_date still being expectedNextDue.
	// Returns ErrConflict when the CAS loses.
	AdvanceObligation(ctx context.Context, obligationID string, expectedNextDue, newNextDue, executedAt time.Time, active bool) error
	SetObligationActive(ctx context.Context, ownerID, obligationID string, active bool) error

	// Installments
	CreateInstallment(ctx context.Context, inst *domain.Installment) (*domain.Installment, error)
	GetInstallment(ctx context.Context, ownerID, installmentID string) (*domain.Installment, error)
	ListInstallments(ctx context.Context, ownerID string) ([]domain.Installment, error)
	ListInstallmentsByStatus(ctx context.Context, statuses []domain.Status, limit int) ([]domain.Installment, error)

	// AdvanceInstallment increments the slice counter, conditional on
	// current_installment still being expectedCurrent.
	AdvanceInstallment(ctx context.Context, installmentID string, expectedCurrent, newCurrent int, status domain.Status) error
	UpdateInstallment(ctx context.Context, installmentID string, updates map[string]any) error
}

// PlanStore defines data operations on plans and savings goals.
type PlanStore interface {
	CreatePlan(ctx context.Context, p *domain.Plan) (*domain.Plan, error)
	GetPlan(ctx context.Context, ownerID, planID string) (*domain.Plan, error)
	ListPlans(ctx context.Context, ownerID string) ([]domain.Plan, error)
	ListPlansByStatus(ctx context.Context, statuses []domain.Status, limit int) ([]domain.Plan, error)
	UpdatePlan(ctx context.Context, planID string, updates map[string]any) error

	CreateGoal(ctx context.Context, g *domain.SavingsGoal) (*domain.SavingsGoal, error)
	GetGoal(ctx context.Context, ownerID, goalID string) (*domain.SavingsGoal, error)
	ListGoals(ctx context.Context, ownerID string) ([]domain.SavingsGoal, error)
	UpdateGoal(ctx context.Context, goalID string, updates map[string]any) error
}

// NotificationStore persists derived alert events for the external
// delivery collaborator to pick up.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
}
