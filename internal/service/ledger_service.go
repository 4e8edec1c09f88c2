package service

import (
	"context"
	"time"

	"github.com/dmelo/fintrack-engine-go/internal/domain"
	"github.com/dmelo/fintrack-engine-go/internal/infra/observability"
	"github.com/dmelo/fintrack-engine-go/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var ledgerTracer = otel.Tracer("service/ledger")

// LedgerService records income/expense entries, the system's source of
// truth. Entries link weakly to their parent aggregates: deleting an
// entry unlinks it, and the reconciler repairs the parent's cached
// value afterwards. Nothing cascades.
type LedgerService struct {
	ledger  port.LedgerStore
	notify  *NotifyService
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewLedgerService creates a ledger service.
func NewLedgerService(ledger port.LedgerStore, notify *NotifyService, metrics *observability.Metrics, logger *zap.Logger) *LedgerService {
	return &LedgerService{ledger: ledger, notify: notify, metrics: metrics, logger: logger}
}

// CreateEntry records a ledger entry, confirmed or pending. A pending
// entry carries the future date it will take effect on.
func (s *LedgerService) CreateEntry(ctx context.Context, ownerID string, req *domain.CreateEntryRequest, now time.Time) (*domain.LedgerEntry, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.CreateEntry")
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

	date := now
	if req.Date != "" {
		d, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			return nil, &domain.ErrValidation{Field: "date", Message: "invalid format, use YYYY-MM-DD"}
		}
		date = d
	}

	var pendingDate *time.Time
	if req.Pending {
		if req.PendingDate == "" {
			return nil, &domain.ErrValidation{Field: "pending_date", Message: "required for pending entries"}
		}
		pd, err := time.Parse("2006-01-02", req.PendingDate)
		if err != nil {
			return nil, &domain.ErrValidation{Field: "pending_date", Message: "invalid format, use YYYY-MM-DD"}
		}
		pendingDate = &pd
	}

	entry := &domain.LedgerEntry{
		ID:            uuid.New().String(),
		OwnerID:       ownerID,
		Description:   req.Description,
		Amount:        req.Amount,
		Kind:          req.Kind,
		Category:      req.Category,
		Date:          date,
		Pending:       req.Pending,
		PendingDate:   pendingDate,
		RecurringID:   req.RecurringID,
		InstallmentID: req.InstallmentID,
		PlanID:        req.PlanID,
		InstrumentID:  req.InstrumentID,
		CreatedAt:     now,
	}

	created, err := s.ledger.CreateEntry(ctx, entry)
	if err != nil {
		s.logger.Error("failed to create ledger entry", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, err
	}

	if !created.Pending && created.Kind == domain.EntryExpense {
		s.checkLowBalance(ctx, ownerID, now)
	}

	s.logger.Info("ledger entry created",
		zap.String("owner_id", ownerID),
		zap.String("entry_id", created.ID),
		zap.String("kind", string(created.Kind)),
		zap.Bool("pending", created.Pending),
	)
	return created, nil
}

// DeleteEntry removes an entry. The parent aggregate (if linked) is
// deliberately left stale; reconciliation repairs it.
func (s *LedgerService) DeleteEntry(ctx context.Context, ownerID, entryID string) error {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.DeleteEntry")
	defer span.End()

	if _, err := s.ledger.GetEntry(ctx, ownerID, entryID); err != nil {
		return err
	}
	if err := s.ledger.DeleteEntry(ctx, ownerID, entryID); err != nil {
		s.logger.Error("failed to delete ledger entry", zap.String("entry_id", entryID), zap.Error(err))
		return err
	}

	s.logger.Info("ledger entry deleted",
		zap.String("owner_id", ownerID),
		zap.String("entry_id", entryID),
	)
	return nil
}

func (s *LedgerService) Get(ctx context.Context, ownerID, entryID string) (*domain.LedgerEntry, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.Get")
	defer span.End()

	return s.ledger.GetEntry(ctx, ownerID, entryID)
}

func (s *LedgerService) List(ctx context.Context, ownerID string, page, pageSize int) ([]domain.LedgerEntry, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.List")
	defer span.End()

	return s.ledger.ListEntries(ctx, ownerID, page, pageSize)
}

// NetBalance is confirmed income minus confirmed expense.
func (s *LedgerService) NetBalance(ctx context.Context, ownerID string) (decimal.Decimal, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.NetBalance")
	defer span.End()

	return s.ledger.NetBalance(ctx, ownerID)
}

func (s *LedgerService) checkLowBalance(ctx context.Context, ownerID string, now time.Time) {
	net, err := s.ledger.NetBalance(ctx, ownerID)
	if err != nil {
		s.logger.Warn("net balance check failed", zap.String("owner_id", ownerID), zap.Error(err))
		return
	}
	s.notify.LowBalance(ctx, ownerID, net, now)
}
