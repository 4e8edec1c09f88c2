package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dmelo/fintrack-engine-go/internal/domain"
	"github.com/dmelo/fintrack-engine-go/internal/infra/observability"
	"github.com/dmelo/fintrack-engine-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var installmentTracer = otel.Tracer("service/installment")

// InstallmentService advances fixed-count amortized purchases one
// slice at a time, keeping the counter consistent with the linked
// ledger entries.
type InstallmentService struct {
	store   port.SchedulerStore
	ledger  port.LedgerStore
	notify  *NotifyService
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewInstallmentService creates an installment service.
func NewInstallmentService(store port.SchedulerStore, ledger port.LedgerStore, notify *NotifyService, metrics *observability.Metrics, logger *zap.Logger) *InstallmentService {
	return &InstallmentService{store: store, ledger: ledger, notify: notify, metrics: metrics, logger: logger}
}

// Create opens an installment purchase and materializes the first
// slice immediately.
func (s *InstallmentService) Create(ctx context.Context, ownerID string, req *domain.CreateInstallmentRequest, now time.Time) (*domain.Installment, error) {
	ctx, span := installmentTracer.Start(ctx, "InstallmentService.Create")
	defer span.End()

	if req.Description == "" {
		return nil, &domain.ErrValidation{Field: "description", Message: "required"}
	}
	if !req.TotalAmount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "total_amount", Message: "must be positive"}
	}
	if req.InstallmentCount < 2 {
		return nil, &domain.ErrValidation{Field: "installment_count", Message: "must be at least 2"}
	}

	startDate := now
	if req.StartDate != "" {
		sd, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			return nil, &domain.ErrValidation{Field: "start_date", Message: "invalid format, use YYYY-MM-DD"}
		}
		startDate = sd
	}

	inst := &domain.Installment{
		ID:                 uuid.New().String(),
		OwnerID:            ownerID,
		Description:        req.Description,
		TotalAmount:        req.TotalAmount,
		InstallmentCount:   req.InstallmentCount,
		CurrentInstallment: 1,
		Category:           req.Category,
		StartDate:          startDate,
		Status:             domain.StatusActive,
		CreatedAt:          now,
	}

	created, err := s.store.CreateInstallment(ctx, inst)
	if err != nil {
		s.logger.Error("failed to create installment", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, err
	}

	if _, err := s.createSliceEntry(ctx, created, 1, startDate, now); err != nil {
		// The installment exists but its first slice does not; the
		// self-healing edit path repairs the counter on next touch.
		s.logger.Error("installment created but first slice insert failed",
			zap.String("installment_id", created.ID),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("installment created",
		zap.String("owner_id", ownerID),
		zap.String("installment_id", created.ID),
		zap.Int("count", created.InstallmentCount),
		zap.String("per_installment", created.PerInstallmentAmount().StringFixed(2)),
	)
	return created, nil
}

// Advance materializes the next slice. The slice date is one calendar
// month after the latest linked entry, clamped to the end of month.
func (s *InstallmentService) Advance(ctx context.Context, ownerID, installmentID string, now time.Time) (*domain.Installment, error) {
	ctx, span := installmentTracer.Start(ctx, "InstallmentService.Advance")
	defer span.End()

	inst, err := s.store.GetInstallment(ctx, ownerID, installmentID)
	if err != nil {
		return nil, err
	}
	switch inst.Status {
	case domain.StatusCompleted:
		return nil, &domain.ErrAlreadyComplete{Resource: "installment", ID: installmentID}
	case domain.StatusCancelled:
		return nil, &domain.ErrInvalidTransition{Resource: "installment", From: domain.StatusCancelled, To: domain.StatusActive}
	}

	// The slice date follows the latest linked entry. No entry at all
	// means the first slice insert failed; fall back to the start date.
	// Any other lookup failure aborts before the counter is claimed.
	nextDate := domain.NextOccurrence(domain.FrequencyMonthly, inst.StartDate)
	latest, err := s.ledger.LatestEntryForInstallment(ctx, installmentID)
	switch {
	case err == nil:
		nextDate = domain.NextOccurrence(domain.FrequencyMonthly, latest.Date)
	case !isNotFound(err):
		return nil, err
	}

	next := inst.CurrentInstallment + 1
	status := domain.StatusActive
	if next >= inst.InstallmentCount {
		status = domain.StatusCompleted
	}

	// Claim the slice first so a concurrent advance cannot double it.
	if err := s.store.AdvanceInstallment(ctx, installmentID, inst.CurrentInstallment, next, status); err != nil {
		if isConflict(err) {
			s.metrics.IncrCASConflict("installment")
		}
		return nil, err
	}

	if _, err := s.createSliceEntry(ctx, inst, next, nextDate, now); err != nil {
		s.logger.Error("slice claimed but entry insert failed",
			zap.String("installment_id", installmentID),
			zap.Int("slice", next),
			zap.Error(err),
		)
		return nil, err
	}

	inst.CurrentInstallment = next
	inst.Status = status
	s.logger.Info("installment advanced",
		zap.String("installment_id", installmentID),
		zap.Int("current", next),
		zap.Int("count", inst.InstallmentCount),
		zap.String("status", string(status)),
	)
	return inst, nil
}

func (s *InstallmentService) createSliceEntry(ctx context.Context, inst *domain.Installment, slice int, date, now time.Time) (*domain.LedgerEntry, error) {
	installmentID := inst.ID
	entry := &domain.LedgerEntry{
		ID:            uuid.New().String(),
		OwnerID:       inst.OwnerID,
		Description:   fmt.Sprintf("%s (%d/%d)", inst.Description, slice, inst.InstallmentCount),
		Amount:        inst.PerInstallmentAmount(),
		Kind:          domain.EntryExpense,
		Category:      inst.Category,
		Date:          date,
		InstallmentID: &installmentID,
		CreatedAt:     now,
	}
	created, err := s.ledger.CreateEntry(ctx, entry)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrEntriesMaterialized("installment")
	s.checkLowBalance(ctx, inst.OwnerID, now)
	return created, nil
}

// checkLowBalance re-evaluates the owner's net balance after a slice
// landed. Alert failures never affect the advance.
func (s *InstallmentService) checkLowBalance(ctx context.Context, ownerID string, now time.Time) {
	net, err := s.ledger.NetBalance(ctx, ownerID)
	if err != nil {
		s.logger.Warn("net balance check failed", zap.String("owner_id", ownerID), zap.Error(err))
		return
	}
	s.notify.LowBalance(ctx, ownerID, net, now)
}

// Update edits an installment after creation. The slice counter is
// self-healing: it is recomputed from the actual number of linked
// entries, so a count edit can un-complete or complete the purchase.
func (s *InstallmentService) Update(ctx context.Context, ownerID, installmentID string, req *domain.UpdateInstallmentRequest) (*domain.Installment, error) {
	ctx, span := installmentTracer.Start(ctx, "InstallmentService.Update")
	defer span.End()

	inst, err := s.store.GetInstallment(ctx, ownerID, installmentID)
	if err != nil {
		return nil, err
	}
	if inst.Status == domain.StatusCancelled {
		return nil, &domain.ErrInvalidTransition{Resource: "installment", From: domain.StatusCancelled, To: domain.StatusActive}
	}

	updates := map[string]any{}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.Category != "" {
		updates["category"] = req.Category
	}
	if req.TotalAmount.IsPositive() {
		updates["total_amount"] = req.TotalAmount.InexactFloat64()
	}

	count := inst.InstallmentCount
	if req.InstallmentCount != 0 {
		if req.InstallmentCount < 2 {
			return nil, &domain.ErrValidation{Field: "installment_count", Message: "must be at least 2"}
		}
		count = req.InstallmentCount
		updates["installment_count"] = count
	}

	actual, err := s.ledger.CountEntriesForInstallment(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	current := actual
	if current > count {
		current = count
	}
	status := domain.DeriveStatus(inst.Status, current >= count)

	updates["current_installment"] = current
	updates["status"] = string(status)

	if err := s.store.UpdateInstallment(ctx, installmentID, updates); err != nil {
		s.logger.Error("failed to update installment", zap.String("installment_id", installmentID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("installment updated",
		zap.String("installment_id", installmentID),
		zap.Int("current", current),
		zap.Int("count", count),
		zap.String("status", string(status)),
	)
	return s.store.GetInstallment(ctx, ownerID, installmentID)
}

// Cancel is the only way an installment reaches CANCELLED, and the
// state is terminal.
func (s *InstallmentService) Cancel(ctx context.Context, ownerID, installmentID string) error {
	ctx, span := installmentTracer.Start(ctx, "InstallmentService.Cancel")
	defer span.End()

	inst, err := s.store.GetInstallment(ctx, ownerID, installmentID)
	if err != nil {
		return err
	}
	if !domain.CanTransition(inst.Status, domain.StatusCancelled) {
		return &domain.ErrInvalidTransition{Resource: "installment", From: inst.Status, To: domain.StatusCancelled}
	}

	return s.store.UpdateInstallment(ctx, installmentID, map[string]any{"status": string(domain.StatusCancelled)})
}

func (s *InstallmentService) Get(ctx context.Context, ownerID, installmentID string) (*domain.Installment, error) {
	ctx, span := installmentTracer.Start(ctx, "InstallmentService.Get")
	defer span.End()

	return s.store.GetInstallment(ctx, ownerID, installmentID)
}

func (s *InstallmentService) List(ctx context.Context, ownerID string) ([]domain.Installment, error) {
	ctx, span := installmentTracer.Start(ctx, "InstallmentService.List")
	defer span.End()

	return s.store.ListInstallments(ctx, ownerID)
}
