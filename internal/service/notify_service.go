// Package service provides the business logic layer (use cases):
// the recurring-obligation processor, installment advancer, pending
// sweeper, aggregate reconciler and their supporting services.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dmelo/fintrack-engine-go/internal/domain"
	"github.com/dmelo/fintrack-engine-go/internal/infra/observability"
	"github.com/dmelo/fintrack-engine-go/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var notifyTracer = otel.Tracer("service/notify")

// NotifyService derives alert events from engine activity. Delivery
// is an external concern; this service only records the event and
// enforces the per-(owner, kind, entity) suppression window.
type NotifyService struct {
	store   port.NotificationStore
	dedup   port.Cache[time.Time]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewNotifyService creates a notification service. The dedup cache TTL
// is the suppression window.
func NewNotifyService(store port.NotificationStore, dedup port.Cache[time.Time], metrics *observability.Metrics, logger *zap.Logger) *NotifyService {
	return &NotifyService{store: store, dedup: dedup, metrics: metrics, logger: logger}
}

// Upcoming raises an alert for an obligation due within the horizon.
func (s *NotifyService) Upcoming(ctx context.Context, o *domain.RecurringObligation, now time.Time) {
	ctx, span := notifyTracer.Start(ctx, "NotifyService.Upcoming")
	defer span.End()

	days := int(o.NextDueDate.Sub(now).Hours() / 24)
	s.fire(ctx, &domain.Notification{
		ID:       uuid.New().String(),
		OwnerID:  o.OwnerID,
		Kind:     domain.NotifyUpcoming,
		EntityID: o.ID,
		Title:    "Upcoming payment",
		Body:     fmt.Sprintf("%s (%s) is due in %d day(s)", o.Description, o.Amount.StringFixed(2), days),
	}, now)
}

// Progress raises threshold alerts for a plan or savings goal:
// almost-there at >=80% and below 100%, completed at >=100%.
// The completed event fires once per completion: when the entity was
// already COMPLETED before this change it never re-fires, no matter
// how long ago the dedup window expired. The dedup window only keeps
// a hovering aggregate from re-alerting.
func (s *NotifyService) Progress(ctx context.Context, ownerID, entityID, name string, current, target decimal.Decimal, prior domain.Status, now time.Time) {
	ctx, span := notifyTracer.Start(ctx, "NotifyService.Progress")
	defer span.End()

	if !target.IsPositive() {
		return
	}
	pct := current.Div(target).Mul(decimal.NewFromInt(100))

	switch {
	case pct.GreaterThanOrEqual(decimal.NewFromInt(100)):
		if prior == domain.StatusCompleted {
			return
		}
		s.fire(ctx, &domain.Notification{
			ID:       uuid.New().String(),
			OwnerID:  ownerID,
			Kind:     domain.NotifyCompleted,
			EntityID: entityID,
			Title:    "Goal reached",
			Body:     fmt.Sprintf("%s reached its target of %s", name, target.StringFixed(2)),
		}, now)
	case pct.GreaterThanOrEqual(decimal.NewFromInt(80)):
		s.fire(ctx, &domain.Notification{
			ID:       uuid.New().String(),
			OwnerID:  ownerID,
			Kind:     domain.NotifyAlmostThere,
			EntityID: entityID,
			Title:    "Almost there",
			Body:     fmt.Sprintf("%s is at %s%% of its target", name, pct.Round(0)),
		}, now)
	}
}

// LowBalance raises an alert when the owner's confirmed net balance
// goes negative.
func (s *NotifyService) LowBalance(ctx context.Context, ownerID string, net decimal.Decimal, now time.Time) {
	ctx, span := notifyTracer.Start(ctx, "NotifyService.LowBalance")
	defer span.End()

	if !net.IsNegative() {
		return
	}
	s.fire(ctx, &domain.Notification{
		ID:      uuid.New().String(),
		OwnerID: ownerID,
		Kind:    domain.NotifyLowBalance,
		Title:   "Low balance",
		Body:    fmt.Sprintf("Your balance is negative: %s", net.StringFixed(2)),
	}, now)
}

// fire persists the notification unless an identical one was raised
// inside the suppression window. A store failure is logged and the
// dedup entry dropped so the next trigger retries.
func (s *NotifyService) fire(ctx context.Context, n *domain.Notification, now time.Time) {
	key := n.DedupKey()
	if _, seen := s.dedup.Get(key); seen {
		s.metrics.IncrNotificationMuted(n.Kind)
		return
	}
	s.dedup.Set(key, now)

	n.CreatedAt = now
	if err := s.store.CreateNotification(ctx, n); err != nil {
		s.logger.Error("failed to persist notification",
			zap.String("owner_id", n.OwnerID),
			zap.String("kind", n.Kind),
			zap.Error(err),
		)
		s.metrics.IncrStoreError("notifications")
		s.dedup.Delete(key)
		return
	}

	s.metrics.IncrNotificationFired(n.Kind)
	s.logger.Info("notification fired",
		zap.String("owner_id", n.OwnerID),
		zap.String("kind", n.Kind),
		zap.String("entity_id", n.EntityID),
	)
}
