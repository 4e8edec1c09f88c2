package service

import (
	"context"
	"time"

	"github.com/dmelo/fintrack-engine-go/internal/domain"
	"github.com/dmelo/fintrack-engine-go/internal/infra/observability"
	"github.com/dmelo/fintrack-engine-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var sweeperTracer = otel.Tracer("service/sweeper")

// SweeperService confirms pending (future-dated) ledger entries whose
// scheduled date has arrived, and triggers plan reconciliation for
// confirmed expenses.
type SweeperService struct {
	ledger     port.LedgerStore
	reconciler *ReconcileService
	notify     *NotifyService
	metrics    *observability.Metrics
	logger     *zap.Logger

	batchLimit int
}

// NewSweeperService creates a pending-entry sweeper.
func NewSweeperService(ledger port.LedgerStore, reconciler *ReconcileService, notify *NotifyService, metrics *observability.Metrics, logger *zap.Logger, batchLimit int) *SweeperService {
	return &SweeperService{
		ledger:     ledger,
		reconciler: reconciler,
		notify:     notify,
		metrics:    metrics,
		logger:     logger,
		batchLimit: batchLimit,
	}
}

// Confirm flips a single pending entry to confirmed. The effective
// date becomes the scheduled pending date, not the confirmation time.
func (s *SweeperService) Confirm(ctx context.Context, ownerID, entryID string, now time.Time) (*domain.LedgerEntry, error) {
	ctx, span := sweeperTracer.Start(ctx, "SweeperService.Confirm")
	defer span.End()

	entry, err := s.ledger.GetEntry(ctx, ownerID, entryID)
	if err != nil {
		return nil, err
	}
	if !entry.Pending {
		return nil, &domain.ErrValidation{Field: "pending", Message: "entry is already confirmed"}
	}

	date := now
	if entry.PendingDate != nil {
		date = *entry.PendingDate
	}
	if err := s.ledger.ConfirmEntry(ctx, entryID, date); err != nil {
		if isConflict(err) {
			s.metrics.IncrCASConflict("entry")
		}
		return nil, err
	}

	entry.Pending = false
	entry.PendingDate = nil
	entry.Date = date

	s.reconcilePlanFor(ctx, entry, now)
	if entry.Kind == domain.EntryExpense {
		s.checkLowBalance(ctx, entry.OwnerID, now)
	}

	s.logger.Info("pending entry confirmed",
		zap.String("owner_id", ownerID),
		zap.String("entry_id", entryID),
		zap.String("date", date.Format("2006-01-02")),
	)
	return entry, nil
}

// SweepDue confirms every pending entry whose scheduled date has
// arrived. A lost confirmation race means another invocation already
// swept the entry; it is neither an error nor a confirmation here.
func (s *SweeperService) SweepDue(ctx context.Context, now time.Time) (*domain.SweepReport, error) {
	ctx, span := sweeperTracer.Start(ctx, "SweeperService.SweepDue")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordBatchDuration("scheduled_sweep", time.Since(start)) }()

	due, err := s.ledger.ListDuePending(ctx, now, s.batchLimit)
	if err != nil {
		s.logger.Error("failed to list due pending entries", zap.Error(err))
		return nil, &domain.ErrExternalService{Service: "supabase", Err: err}
	}

	report := &domain.SweepReport{Due: len(due), RanAt: now}
	expenseOwners := map[string]struct{}{}
	for i := range due {
		entry := &due[i]

		date := now
		if entry.PendingDate != nil {
			date = *entry.PendingDate
		}
		err := s.ledger.ConfirmEntry(ctx, entry.ID, date)
		switch {
		case err == nil:
			report.Confirmed++
			entry.Pending = false
			entry.Date = date
			if s.reconcilePlanFor(ctx, entry, now) {
				report.Reconciled++
			}
			if entry.Kind == domain.EntryExpense {
				expenseOwners[entry.OwnerID] = struct{}{}
			}
		case isConflict(err):
			s.metrics.IncrCASConflict("entry")
		default:
			report.Errored++
			if len(report.Errors) < domain.SampleLimit {
				report.Errors = append(report.Errors, domain.BatchError{EntityID: entry.ID, Reason: err.Error()})
			}
			s.metrics.IncrBatchError("scheduled_sweep")
			s.logger.Error("failed to confirm pending entry",
				zap.String("entry_id", entry.ID),
				zap.Error(err),
			)
		}
	}

	for ownerID := range expenseOwners {
		s.checkLowBalance(ctx, ownerID, now)
	}

	s.logger.Info("pending sweep finished",
		zap.Int("due", report.Due),
		zap.Int("confirmed", report.Confirmed),
		zap.Int("reconciled", report.Reconciled),
		zap.Int("errored", report.Errored),
	)
	return report, nil
}

// reconcilePlanFor repairs the linked plan after a confirmed expense.
// Reconciliation failure never fails the confirmation; the system-wide
// sweep catches the drift later.
func (s *SweeperService) reconcilePlanFor(ctx context.Context, entry *domain.LedgerEntry, now time.Time) bool {
	if entry.PlanID == nil || entry.Kind != domain.EntryExpense {
		return false
	}
	result, err := s.reconciler.ReconcilePlan(ctx, entry.OwnerID, *entry.PlanID, false, now)
	if err != nil {
		s.logger.Warn("plan reconciliation after confirm failed",
			zap.String("plan_id", *entry.PlanID),
			zap.String("entry_id", entry.ID),
			zap.Error(err),
		)
		return false
	}
	return result.Changed
}

// checkLowBalance re-evaluates the owner's net balance after swept
// expenses took effect.
func (s *SweeperService) checkLowBalance(ctx context.Context, ownerID string, now time.Time) {
	net, err := s.ledger.NetBalance(ctx, ownerID)
	if err != nil {
		s.logger.Warn("net balance check failed", zap.String("owner_id", ownerID), zap.Error(err))
		return
	}
	s.notify.LowBalance(ctx, ownerID, net, now)
}
