package service

import (
	"context"
	"time"

	"github.com/dmelo/fintrack-engine-go/internal/domain"
	"github.com/dmelo/fintrack-engine-go/internal/infra/observability"
	"github.com/dmelo/fintrack-engine-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var statusTracer = otel.Tracer("service/status")

// StatusService answers "how much work would a trigger run find right
// now" without writing anything.
type StatusService struct {
	scheduler  port.SchedulerStore
	ledger     port.LedgerStore
	reconciler *ReconcileService
	metrics    *observability.Metrics
	logger     *zap.Logger

	horizon    time.Duration
	batchLimit int
}

// NewStatusService creates a status service.
func NewStatusService(scheduler port.SchedulerStore, ledger port.LedgerStore, reconciler *ReconcileService, metrics *observability.Metrics, logger *zap.Logger, horizon time.Duration, batchLimit int) *StatusService {
	return &StatusService{
		scheduler:  scheduler,
		ledger:     ledger,
		reconciler: reconciler,
		metrics:    metrics,
		logger:     logger,
		horizon:    horizon,
		batchLimit: batchLimit,
	}
}

// EngineStatus fans out the pending-work counts concurrently and
// attaches the cumulative engine counters.
func (s *StatusService) EngineStatus(ctx context.Context, now time.Time) (*domain.EngineStatus, error) {
	ctx, span := statusTracer.Start(ctx, "StatusService.EngineStatus")
	defer span.End()

	status := &domain.EngineStatus{CheckedAt: now}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.scheduler.CountDueObligations(gctx, now)
		status.DueRecurring = n
		return err
	})
	g.Go(func() error {
		upcoming, err := s.scheduler.ListUpcomingObligations(gctx, now, now.Add(s.horizon), s.batchLimit)
		status.UpcomingRecurring = len(upcoming)
		return err
	})
	g.Go(func() error {
		n, err := s.ledger.CountDuePending(gctx, now)
		status.DuePending = n
		return err
	})
	g.Go(func() error {
		n, err := s.reconciler.CheckPlans(gctx, now)
		status.PlanDrift = n
		return err
	})
	g.Go(func() error {
		n, err := s.reconciler.CheckInstallments(gctx, now)
		status.InstallmentDrift = n
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("engine status fan-out failed", zap.Error(err))
		return nil, &domain.ErrExternalService{Service: "supabase", Err: err}
	}

	snap := s.metrics.Snapshot()
	status.EntriesMaterialized = snap.EntriesMaterialized
	status.DriftRepaired = snap.DriftRepaired
	status.BatchErrors = snap.BatchErrors

	return status, nil
}
