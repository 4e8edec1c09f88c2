package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmelo/fintrack-engine-go/internal/domain"
	"github.com/dmelo/fintrack-engine-go/internal/infra/cache"
	"github.com/dmelo/fintrack-engine-go/internal/infra/observability"
	"github.com/dmelo/fintrack-engine-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newNotifyService(store *mockNotificationStore) *service.NotifyService {
	return service.NewNotifyService(store, cache.New[time.Time](time.Hour), observability.NewMetrics(), zap.NewNop())
}

func TestProgress_Thresholds(t *testing.T) {
	target := decimal.NewFromInt(1000)
	now := day(2024, time.June, 1)

	cases := []struct {
		name    string
		current decimal.Decimal
		want    string // expected kind, empty = nothing fired
	}{
		{"below threshold", decimal.NewFromInt(790), ""},
		{"almost there", decimal.NewFromInt(800), domain.NotifyAlmostThere},
		{"just under complete", decimal.NewFromInt(999), domain.NotifyAlmostThere},
		{"complete", decimal.NewFromInt(1000), domain.NotifyCompleted},
		{"overshoot", decimal.NewFromInt(1500), domain.NotifyCompleted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &mockNotificationStore{}
			svc := newNotifyService(store)
			svc.Progress(context.Background(), "owner-1", "goal-1", "Vacation", tc.current, target, domain.StatusActive, now)

			if tc.want == "" {
				if len(store.created) != 0 {
					t.Fatalf("expected no alert, got %v", store.kinds())
				}
				return
			}
			if len(store.created) != 1 || store.created[0].Kind != tc.want {
				t.Fatalf("expected %s, got %v", tc.want, store.kinds())
			}
		})
	}
}

func TestProgress_ZeroTargetIgnored(t *testing.T) {
	store := &mockNotificationStore{}
	svc := newNotifyService(store)
	svc.Progress(context.Background(), "owner-1", "goal-1", "Broken", decimal.NewFromInt(100), decimal.Zero, domain.StatusActive, day(2024, time.June, 1))

	if len(store.created) != 0 {
		t.Errorf("zero target should never alert, got %v", store.kinds())
	}
}

func TestProgress_CompletedNeverRefires(t *testing.T) {
	store := &mockNotificationStore{}
	svc := newNotifyService(store)
	target := decimal.NewFromInt(1000)

	// The aggregate was already COMPLETED; the amount keeps moving
	// above the target long after the suppression window expired.
	svc.Progress(context.Background(), "owner-1", "plan-1", "Vacation", decimal.NewFromInt(1100), target, domain.StatusCompleted, day(2024, time.June, 1))
	svc.Progress(context.Background(), "owner-1", "plan-1", "Vacation", decimal.NewFromInt(1200), target, domain.StatusCompleted, day(2024, time.August, 1))

	if len(store.created) != 0 {
		t.Fatalf("completed entities must not re-fire completion, got %v", store.kinds())
	}

	// Dropping back under the target re-arms the event.
	svc.Progress(context.Background(), "owner-1", "plan-1", "Vacation", decimal.NewFromInt(1100), target, domain.StatusActive, day(2024, time.September, 1))
	if len(store.created) != 1 || store.created[0].Kind != domain.NotifyCompleted {
		t.Fatalf("re-completion from ACTIVE should fire, got %v", store.kinds())
	}
}

func TestFire_DedupWindow(t *testing.T) {
	store := &mockNotificationStore{}
	svc := newNotifyService(store)
	now := day(2024, time.June, 1)
	target := decimal.NewFromInt(1000)

	svc.Progress(context.Background(), "owner-1", "goal-1", "Vacation", decimal.NewFromInt(1000), target, domain.StatusActive, now)
	svc.Progress(context.Background(), "owner-1", "goal-1", "Vacation", decimal.NewFromInt(1000), target, domain.StatusActive, now.Add(time.Minute))

	if len(store.created) != 1 {
		t.Fatalf("repeat alert inside the window should be muted, got %d", len(store.created))
	}

	// A different entity is a different key.
	svc.Progress(context.Background(), "owner-1", "goal-2", "Car", decimal.NewFromInt(1000), target, domain.StatusActive, now)
	if len(store.created) != 2 {
		t.Errorf("distinct entities must not share the suppression window")
	}
}

func TestFire_StoreFailureAllowsRetry(t *testing.T) {
	store := &mockNotificationStore{err: errors.New("insert failed")}
	svc := newNotifyService(store)
	now := day(2024, time.June, 1)
	target := decimal.NewFromInt(1000)

	svc.Progress(context.Background(), "owner-1", "goal-1", "Vacation", decimal.NewFromInt(1000), target, domain.StatusActive, now)
	if len(store.created) != 0 {
		t.Fatal("store failure should not record anything")
	}

	// The dedup entry was dropped, so the next trigger fires again.
	store.err = nil
	svc.Progress(context.Background(), "owner-1", "goal-1", "Vacation", decimal.NewFromInt(1000), target, domain.StatusActive, now.Add(time.Minute))
	if len(store.created) != 1 {
		t.Errorf("expected retry to fire, got %d", len(store.created))
	}
}

func TestLowBalance_OnlyWhenNegative(t *testing.T) {
	store := &mockNotificationStore{}
	svc := newNotifyService(store)
	now := day(2024, time.June, 1)

	svc.LowBalance(context.Background(), "owner-1", decimal.NewFromInt(100), now)
	svc.LowBalance(context.Background(), "owner-1", decimal.Zero, now)
	if len(store.created) != 0 {
		t.Fatalf("non-negative balance should not alert, got %v", store.kinds())
	}

	svc.LowBalance(context.Background(), "owner-1", decimal.NewFromInt(-50), now)
	if len(store.created) != 1 || store.created[0].Kind != domain.NotifyLowBalance {
		t.Fatalf("expected low_balance alert, got %v", store.kinds())
	}
}

func TestUpcoming_FiresForObligation(t *testing.T) {
	store := &mockNotificationStore{}
	svc := newNotifyService(store)
	now := day(2024, time.June, 1)

	o := monthlyObligation("ob-1", day(2024, time.June, 3))
	svc.Upcoming(context.Background(), &o, now)

	if len(store.created) != 1 || store.created[0].Kind != domain.NotifyUpcoming {
		t.Fatalf("expected recurring_upcoming alert, got %v", store.kinds())
	}
	if store.created[0].EntityID != "ob-1" {
		t.Errorf("alert should reference the obligation, got %q", store.created[0].EntityID)
	}
}
