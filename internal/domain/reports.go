package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SampleLimit bounds the per-change detail carried in batch responses
// so trigger payloads stay small regardless of batch size.
const SampleLimit = 10

// BatchError records a single entity's failure inside a batch run.
// One failure never aborts the batch; it is collected here instead.
type BatchError struct {
	EntityID string `json:"entity_id"`
	Reason   string `json:"reason"`
}

// ProcessReport summarizes a recurring-obligation processing run.
type ProcessReport struct {
	Due       int           `json:"due"`
	Processed int           `json:"processed"`
	Expired   int           `json:"expired"`
	Skipped   int           `json:"skipped"` // lost CAS races, already materialized elsewhere
	Errored   int           `json:"errored"`
	Errors    []BatchError  `json:"errors,omitempty"`
	Entries   []LedgerEntry `json:"entries,omitempty"` // sample, at most SampleLimit
	DryRun    bool          `json:"dry_run,omitempty"`
	RanAt     time.Time     `json:"ran_at"`
}

// SweepReport summarizes a scheduled-entry sweep.
type SweepReport struct {
	Due        int          `json:"due"`
	Confirmed  int          `json:"confirmed"`
	Reconciled int          `json:"reconciled"` // plans repaired as a side effect
	Errored    int          `json:"errored"`
	Errors     []BatchError `json:"errors,omitempty"`
	RanAt      time.Time    `json:"ran_at"`
}

// AggregateChange describes one repaired cached value.
type AggregateChange struct {
	EntityID   string          `json:"entity_id"`
	Field      string          `json:"field"`
	Before     decimal.Decimal `json:"before"`
	After      decimal.Decimal `json:"after"`
	Difference decimal.Decimal `json:"difference"`
}

// ReconcileReport summarizes a system-wide reconciliation sweep.
type ReconcileReport struct {
	Scanned int               `json:"scanned"`
	Fixed   int               `json:"fixed"`
	Errored int               `json:"errored"`
	Changes []AggregateChange `json:"changes,omitempty"` // sample, at most SampleLimit
	Errors  []BatchError      `json:"errors,omitempty"`
	DryRun  bool              `json:"dry_run,omitempty"`
	RanAt   time.Time         `json:"ran_at"`
}

// SyncResult is the outcome of a single-entity reconciliation.
type SyncResult struct {
	EntityID   string          `json:"entity_id"`
	Field      string          `json:"field"`
	Before     decimal.Decimal `json:"before"`
	After      decimal.Decimal `json:"after"`
	Difference decimal.Decimal `json:"difference"`
	Changed    bool            `json:"changed"`
	Status     Status          `json:"status"`
}

// EngineStatus is the read-only snapshot returned by the status
// endpoint: how much work a trigger run would find right now.
type EngineStatus struct {
	DueRecurring      int       `json:"due_recurring"`
	UpcomingRecurring int       `json:"upcoming_recurring"`
	DuePending        int       `json:"due_pending"`
	PlanDrift         int       `json:"plan_drift"`
	InstallmentDrift  int       `json:"installment_drift"`
	CheckedAt         time.Time `json:"checked_at"`

	// Cumulative engine counters since process start.
	EntriesMaterialized float64 `json:"entries_materialized"`
	DriftRepaired       float64 `json:"drift_repaired"`
	BatchErrors         float64 `json:"batch_errors"`
}
