package service

import (
	"context"
	"time"

	"github.com/dmelo/fintrack-engine-go/internal/domain"
	"github.com/dmelo/fintrack-engine-go/internal/infra/observability"
	"github.com/dmelo/fintrack-engine-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var recurringTracer = otel.Tracer("service/recurring")

// RecurringService materializes ledger entries from recurring
// obligation templates and manages their lifecycle.
type RecurringService struct {
	store   port.SchedulerStore
	ledger  port.LedgerStore
	notify  *NotifyService
	metrics *observability.Metrics
	logger  *zap.Logger

	batchLimit int
	horizon    time.Duration
}

// NewRecurringService creates a recurring obligation service.
func NewRecurringService(store port.SchedulerStore, ledger port.LedgerStore, notify *NotifyService, metrics *observability.Metrics, logger *zap.Logger, batchLimit int, horizon time.Duration) *RecurringService {
	return &RecurringService{
		store:      store,
		ledger:     ledger,
		notify:     notify,
		metrics:    metrics,
		logger:     logger,
		batchLimit: batchLimit,
		horizon:    horizon,
	}
}

// ProcessDue materializes exactly one occurrence for every obligation
// whose next due date has arrived. A run never backfills: an obligation
// three periods behind produces a single entry and advances one step
// per run until it catches up. One entity's failure never aborts the
// batch.
func (s *RecurringService) ProcessDue(ctx context.Context, now time.Time, dryRun bool) (*domain.ProcessReport, error) {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.ProcessDue")
	defer span.End()
	span.SetAttributes(attribute.Bool("dry_run", dryRun))

	start := time.Now()
	defer func() { s.metrics.RecordBatchDuration("recurring_process", time.Since(start)) }()

	due, err := s.store.ListDueObligations(ctx, now, s.batchLimit)
	if err != nil {
		s.logger.Error("failed to list due obligations", zap.Error(err))
		return nil, &domain.ErrExternalService{Service: "supabase", Err: err}
	}

	report := &domain.ProcessReport{Due: len(due), DryRun: dryRun, RanAt: now}
	expenseOwners := map[string]struct{}{}

	for i := range due {
		o := &due[i]

		// End date passed before this occurrence: deactivate, no entry.
		if o.EndDate != nil && o.NextDueDate.After(*o.EndDate) {
			report.Expired++
			if dryRun {
				continue
			}
			if err := s.store.SetObligationActive(ctx, o.OwnerID, o.ID, false); err != nil {
				s.recordFailure(report, o.ID, err)
			} else {
				s.metrics.IncrObligationExpired()
			}
			continue
		}

		if dryRun {
			report.Processed++
			continue
		}

		entry, err := s.materialize(ctx, o, now)
		switch {
		case err == nil:
			report.Processed++
			if len(report.Entries) < domain.SampleLimit {
				report.Entries = append(report.Entries, *entry)
			}
			if entry.Kind == domain.EntryExpense {
				expenseOwners[o.OwnerID] = struct{}{}
			}
		case isConflict(err):
			// Another invocation owns this occurrence.
			report.Skipped++
			s.metrics.IncrCASConflict("recurring")
		default:
			s.recordFailure(report, o.ID, err)
		}
	}

	if !dryRun {
		s.checkLowBalances(ctx, expenseOwners, now)
		s.notifyUpcoming(ctx, now)
	}

	s.logger.Info("recurring processing finished",
		zap.Int("due", report.Due),
		zap.Int("processed", report.Processed),
		zap.Int("expired", report.Expired),
		zap.Int("skipped", report.Skipped),
		zap.Int("errored", report.Errored),
		zap.Bool("dry_run", dryRun),
	)
	return report, nil
}

// materialize claims the occurrence via the conditional advance, then
// creates the ledger entry. Claiming first is what makes
// materialization at-most-once: if the entry insert fails afterwards
// the occurrence is lost and reported, never duplicated.
func (s *RecurringService) materialize(ctx context.Context, o *domain.RecurringObligation, now time.Time) (*domain.LedgerEntry, error) {
	dueDate := o.NextDueDate
	newNext := domain.NextOccurrence(o.Frequency, dueDate)

	active := true
	if o.EndDate != nil && newNext.After(*o.EndDate) {
		active = false
	}

	if err := s.store.AdvanceObligation(ctx, o.ID, dueDate, newNext, now, active); err != nil {
		return nil, err
	}
	if !active {
		s.metrics.IncrObligationExpired()
	}

	recurringID := o.ID
	entry := &domain.LedgerEntry{
		ID:          uuid.New().String(),
		OwnerID:     o.OwnerID,
		Description: o.Description,
		Amount:      o.Amount,
		Kind:        o.Kind,
		Category:    o.Category,
		Date:        dueDate,
		RecurringID: &recurringID,
		CreatedAt:   now,
	}
	created, err := s.ledger.CreateEntry(ctx, entry)
	if err != nil {
		s.logger.Error("occurrence claimed but entry insert failed",
			zap.String("obligation_id", o.ID),
			zap.String("due_date", dueDate.Format("2006-01-02")),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.IncrEntriesMaterialized("recurring")
	return created, nil
}

// checkLowBalances re-evaluates the net balance of every owner whose
// confirmed expenses grew this run. Alert failures never affect the
// processing report.
func (s *RecurringService) checkLowBalances(ctx context.Context, owners map[string]struct{}, now time.Time) {
	for ownerID := range owners {
		net, err := s.ledger.NetBalance(ctx, ownerID)
		if err != nil {
			s.logger.Warn("net balance check failed", zap.String("owner_id", ownerID), zap.Error(err))
			continue
		}
		s.notify.LowBalance(ctx, ownerID, net, now)
	}
}

// notifyUpcoming raises alerts for active obligations due within the
// horizon. Alert failures never affect the processing report.
func (s *RecurringService) notifyUpcoming(ctx context.Context, now time.Time) {
	upcoming, err := s.store.ListUpcomingObligations(ctx, now, now.Add(s.horizon), s.batchLimit)
	if err != nil {
		s.logger.Warn("failed to list upcoming obligations", zap.Error(err))
		return
	}
	for i := range upcoming {
		s.notify.Upcoming(ctx, &upcoming[i], now)
	}
}

// DueStatus reports what a processing run would do right now, without
// writing anything.
func (s *RecurringService) DueStatus(ctx context.Context, now time.Time) (*domain.ProcessReport, error) {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.DueStatus")
	defer span.End()

	return s.ProcessDue(ctx, now, true)
}

func (s *RecurringService) recordFailure(report *domain.ProcessReport, entityID string, err error) {
	report.Errored++
	if len(report.Errors) < domain.SampleLimit {
		report.Errors = append(report.Errors, domain.BatchError{EntityID: entityID, Reason: err.Error()})
	}
	s.metrics.IncrBatchError("recurring_process")
	s.logger.Error("obligation processing failed",
		zap.String("obligation_id", entityID),
		zap.Error(err),
	)
}

// ============================================================
// Lifecycle
// ============================================================

func (s *RecurringService) Create(ctx context.Context, ownerID string, req *domain.CreateObligationRequest, now time.Time) (*domain.RecurringObligation, error) {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.Create")
	defer span.End()

	if req.Description == "" {
		return nil, &domain.ErrValidation{Field: "description", Message: "required"}
	}
	if !req.Amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	if !req.Kind.IsValid() {
		return nil, &domain.ErrValidation{Field: "kind", Message: "must be INCOME or EXPENSE"}
	}
	if !req.Frequency.IsValid() {
		return nil, &domain.ErrValidation{Field: "frequency", Message: "unknown frequency"}
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, &domain.ErrValidation{Field: "start_date", Message: "invalid format, use YYYY-MM-DD"}
	}

	var endDate *time.Time
	if req.EndDate != "" {
		ed, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			return nil, &domain.ErrValidation{Field: "end_date", Message: "invalid format, use YYYY-MM-DD"}
		}
		if ed.Before(startDate) {
			return nil, &domain.ErrValidation{Field: "end_date", Message: "must not be before start_date"}
		}
		endDate = &ed
	}

	obligation := &domain.RecurringObligation{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Description: req.Description,
		Amount:      req.Amount,
		Kind:        req.Kind,
		Frequency:   req.Frequency,
		Category:    req.Category,
		StartDate:   startDate,
		EndDate:     endDate,
		NextDueDate: startDate, // first occurrence is the start date itself
		Active:      true,
		CreatedAt:   now,
	}

	created, err := s.store.CreateObligation(ctx, obligation)
	if err != nil {
		s.logger.Error("failed to create obligation", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("recurring obligation created",
		zap.String("owner_id", ownerID),
		zap.String("obligation_id", created.ID),
		zap.String("frequency", string(created.Frequency)),
	)
	return created, nil
}

func (s *RecurringService) Get(ctx context.Context, ownerID, obligationID string) (*domain.RecurringObligation, error) {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.Get")
	defer span.End()

	return s.store.GetObligation(ctx, ownerID, obligationID)
}

func (s *RecurringService) List(ctx context.Context, ownerID string) ([]domain.RecurringObligation, error) {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.List")
	defer span.End()

	return s.store.ListObligations(ctx, ownerID)
}

func (s *RecurringService) Deactivate(ctx context.Context, ownerID, obligationID string) error {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.Deactivate")
	defer span.End()

	return s.store.SetObligationActive(ctx, ownerID, obligationID, false)
}

func (s *RecurringService) Reactivate(ctx context.Context, ownerID, obligationID string) error {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.Reactivate")
	defer span.End()

	return s.store.SetObligationActive(ctx, ownerID, obligationID, true)
}
