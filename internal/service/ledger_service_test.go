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

func newLedgerService(ledger *mockLedgerStore, notifStore *mockNotificationStore) *service.LedgerService {
	metrics := observability.NewMetrics()
	notify := service.NewNotifyService(notifStore, cache.New[time.Time](time.Hour), metrics, zap.NewNop())
	return service.NewLedgerService(ledger, notify, metrics, zap.NewNop())
}

func TestCreateEntry_Confirmed(t *testing.T) {
	ledger := newMockLedgerStore()
	svc := newLedgerService(ledger, &mockNotificationStore{})

	entry, err := svc.CreateEntry(context.Background(), "owner-1", &domain.CreateEntryRequest{
		Description: "Salary",
		Amount:      decimal.NewFromInt(5000),
		Kind:        domain.EntryIncome,
		Date:        "2024-06-01",
	}, day(2024, time.June, 5))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if entry.Pending {
		t.Error("entry should be confirmed")
	}
	if !entry.Date.Equal(day(2024, time.June, 1)) {
		t.Errorf("expected explicit date 2024-06-01, got %s", entry.Date.Format("2006-01-02"))
	}
}

func TestCreateEntry_PendingRequiresDate(t *testing.T) {
	svc := newLedgerService(newMockLedgerStore(), &mockNotificationStore{})

	_, err := svc.CreateEntry(context.Background(), "owner-1", &domain.CreateEntryRequest{
		Description: "Electricity",
		Amount:      decimal.NewFromInt(200),
		Kind:        domain.EntryExpense,
		Pending:     true,
	}, day(2024, time.June, 1))

	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if validation.Field != "pending_date" {
		t.Errorf("expected pending_date violation, got %s", validation.Field)
	}
}

func TestCreateEntry_NegativeBalanceAlert(t *testing.T) {
	ledger := newMockLedgerStore()
	notifStore := &mockNotificationStore{}
	ledger.netBalance = decimal.NewFromInt(-120)

	svc := newLedgerService(ledger, notifStore)
	_, err := svc.CreateEntry(context.Background(), "owner-1", &domain.CreateEntryRequest{
		Description: "Rent",
		Amount:      decimal.NewFromInt(1500),
		Kind:        domain.EntryExpense,
	}, day(2024, time.June, 1))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(notifStore.created) != 1 || notifStore.created[0].Kind != domain.NotifyLowBalance {
		t.Fatalf("expected low_balance alert, got %v", notifStore.kinds())
	}
}

func TestCreateEntry_PendingExpenseSkipsBalanceCheck(t *testing.T) {
	ledger := newMockLedgerStore()
	notifStore := &mockNotificationStore{}
	ledger.netBalance = decimal.NewFromInt(-120)

	svc := newLedgerService(ledger, notifStore)
	_, err := svc.CreateEntry(context.Background(), "owner-1", &domain.CreateEntryRequest{
		Description: "Rent",
		Amount:      decimal.NewFromInt(1500),
		Kind:        domain.EntryExpense,
		Pending:     true,
		PendingDate: "2024-07-01",
	}, day(2024, time.June, 1))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(notifStore.created) != 0 {
		t.Error("pending expense should not trigger the balance check")
	}
}

func TestDeleteEntry_UnknownEntry(t *testing.T) {
	svc := newLedgerService(newMockLedgerStore(), &mockNotificationStore{})

	err := svc.DeleteEntry(context.Background(), "owner-1", "missing")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
