package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dmelo/fintrack-engine-go/internal/domain"
	"github.com/dmelo/fintrack-engine-go/internal/infra/cache"
	"github.com/dmelo/fintrack-engine-go/internal/infra/observability"
	"github.com/dmelo/fintrack-engine-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newRecurringService(scheduler *mockSchedulerStore, ledger *mockLedgerStore, notifStore *mockNotificationStore) *service.RecurringService {
	metrics := observability.NewMetrics()
	notify := service.NewNotifyService(notifStore, cache.New[time.Time](time.Hour), metrics, zap.NewNop())
	return service.NewRecurringService(scheduler, ledger, notify, metrics, zap.NewNop(), 500, 72*time.Hour)
}

func monthlyObligation(id string, nextDue time.Time) domain.RecurringObligation {
	return domain.RecurringObligation{
		ID:          id,
		OwnerID:     "owner-1",
		Description: "Rent",
		Amount:      decimal.NewFromInt(1500),
		Kind:        domain.EntryExpense,
		Frequency:   domain.FrequencyMonthly,
		StartDate:   day(2024, time.January, 1),
		NextDueDate: nextDue,
		Active:      true,
	}
}

func TestProcessDue_MaterializesAndAdvances(t *testing.T) {
	scheduler := newMockSchedulerStore()
	ledger := newMockLedgerStore()
	scheduler.due = []domain.RecurringObligation{
		monthlyObligation("ob-1", day(2024, time.June, 1)),
		monthlyObligation("ob-2", day(2024, time.June, 3)),
	}

	svc := newRecurringService(scheduler, ledger, &mockNotificationStore{})
	report, err := svc.ProcessDue(context.Background(), day(2024, time.June, 3), false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if report.Due != 2 || report.Processed != 2 || report.Errored != 0 {
		t.Fatalf("unexpected report: due=%d processed=%d errored=%d", report.Due, report.Processed, report.Errored)
	}
	if len(ledger.created) != 2 {
		t.Fatalf("expected 2 materialized entries, got %d", len(ledger.created))
	}

	// The entry carries the scheduled due date, not the run time.
	if !ledger.created[0].Date.Equal(day(2024, time.June, 1)) {
		t.Errorf("entry date: expected 2024-06-01, got %s", ledger.created[0].Date.Format("2006-01-02"))
	}
	if ledger.created[0].RecurringID == nil || *ledger.created[0].RecurringID != "ob-1" {
		t.Error("entry should link back to its obligation")
	}

	// Each obligation advanced exactly one step.
	if got := scheduler.advancedTo["ob-1"]; !got.Equal(day(2024, time.July, 1)) {
		t.Errorf("ob-1 next due: expected 2024-07-01, got %s", got.Format("2006-01-02"))
	}
	if got := scheduler.advancedTo["ob-2"]; !got.Equal(day(2024, time.July, 3)) {
		t.Errorf("ob-2 next due: expected 2024-07-03, got %s", got.Format("2006-01-02"))
	}
}

func TestProcessDue_NoBackfill(t *testing.T) {
	// Three periods behind: one run materializes one entry and advances
	// one step, never three.
	scheduler := newMockSchedulerStore()
	ledger := newMockLedgerStore()
	scheduler.due = []domain.RecurringObligation{
		monthlyObligation("ob-1", day(2024, time.March, 1)),
	}

	svc := newRecurringService(scheduler, ledger, &mockNotificationStore{})
	report, err := svc.ProcessDue(context.Background(), day(2024, time.June, 15), false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if report.Processed != 1 || len(ledger.created) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(ledger.created))
	}
	if got := scheduler.advancedTo["ob-1"]; !got.Equal(day(2024, time.April, 1)) {
		t.Errorf("expected single-step advance to 2024-04-01, got %s", got.Format("2006-01-02"))
	}
}

func TestProcessDue_FailureIsolation(t *testing.T) {
	scheduler := newMockSchedulerStore()
	ledger := newMockLedgerStore()
	for i := 1; i <= 5; i++ {
		scheduler.due = append(scheduler.due, monthlyObligation(fmt.Sprintf("ob-%d", i), day(2024, time.June, 1)))
	}
	ledger.createErr["ob-3"] = errors.New("insert failed")

	svc := newRecurringService(scheduler, ledger, &mockNotificationStore{})
	report, err := svc.ProcessDue(context.Background(), day(2024, time.June, 1), false)
	if err != nil {
		t.Fatalf("one entity's failure must not abort the batch: %v", err)
	}

	if report.Processed != 4 || report.Errored != 1 {
		t.Fatalf("expected processed=4 errored=1, got processed=%d errored=%d", report.Processed, report.Errored)
	}
	if len(report.Errors) != 1 || report.Errors[0].EntityID != "ob-3" {
		t.Fatalf("expected failure sample for ob-3, got %+v", report.Errors)
	}
	if len(ledger.created) != 4 {
		t.Errorf("expected 4 entries, got %d", len(ledger.created))
	}
}

func TestProcessDue_ExpiredObligationDeactivated(t *testing.T) {
	scheduler := newMockSchedulerStore()
	ledger := newMockLedgerStore()

	end := day(2024, time.May, 15)
	o := monthlyObligation("ob-1", day(2024, time.June, 1))
	o.EndDate = &end
	scheduler.due = []domain.RecurringObligation{o}

	svc := newRecurringService(scheduler, ledger, &mockNotificationStore{})
	report, err := svc.ProcessDue(context.Background(), day(2024, time.June, 1), false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if report.Expired != 1 || report.Processed != 0 {
		t.Fatalf("expected expired=1 processed=0, got expired=%d processed=%d", report.Expired, report.Processed)
	}
	if len(ledger.created) != 0 {
		t.Error("expired obligation must not materialize an entry")
	}
	if len(scheduler.deactivated) != 1 || scheduler.deactivated[0] != "ob-1" {
		t.Errorf("expected ob-1 deactivated, got %v", scheduler.deactivated)
	}
}

func TestProcessDue_LostRaceSkipped(t *testing.T) {
	scheduler := newMockSchedulerStore()
	ledger := newMockLedgerStore()
	scheduler.due = []domain.RecurringObligation{monthlyObligation("ob-1", day(2024, time.June, 1))}
	scheduler.advanceObligationErr["ob-1"] = &domain.ErrConflict{Resource: "recurring_obligation", ID: "ob-1"}

	svc := newRecurringService(scheduler, ledger, &mockNotificationStore{})
	report, err := svc.ProcessDue(context.Background(), day(2024, time.June, 1), false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if report.Skipped != 1 || report.Errored != 0 {
		t.Fatalf("lost race should be skipped, not errored: %+v", report)
	}
	if len(ledger.created) != 0 {
		t.Error("lost race must not create an entry")
	}
}

func TestProcessDue_DryRunWritesNothing(t *testing.T) {
	scheduler := newMockSchedulerStore()
	ledger := newMockLedgerStore()
	scheduler.due = []domain.RecurringObligation{
		monthlyObligation("ob-1", day(2024, time.June, 1)),
	}

	svc := newRecurringService(scheduler, ledger, &mockNotificationStore{})
	report, err := svc.ProcessDue(context.Background(), day(2024, time.June, 1), true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if report.Processed != 1 || !report.DryRun {
		t.Fatalf("unexpected dry-run report: %+v", report)
	}
	if len(ledger.created) != 0 || len(scheduler.advancedTo) != 0 {
		t.Error("dry run must not write")
	}
}

func TestProcessDue_NegativeBalanceAlert(t *testing.T) {
	scheduler := newMockSchedulerStore()
	ledger := newMockLedgerStore()
	scheduler.due = []domain.RecurringObligation{
		monthlyObligation("ob-1", day(2024, time.June, 1)),
	}
	// The materialized rent pushes the owner's balance under zero.
	ledger.netBalance = decimal.NewFromInt(-300)
	notifStore := &mockNotificationStore{}

	svc := newRecurringService(scheduler, ledger, notifStore)
	if _, err := svc.ProcessDue(context.Background(), day(2024, time.June, 1), false); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(notifStore.created) != 1 || notifStore.created[0].Kind != domain.NotifyLowBalance {
		t.Fatalf("expected low_balance alert, got %v", notifStore.kinds())
	}
}

func TestProcessDue_DryRunSkipsBalanceCheck(t *testing.T) {
	scheduler := newMockSchedulerStore()
	ledger := newMockLedgerStore()
	scheduler.due = []domain.RecurringObligation{
		monthlyObligation("ob-1", day(2024, time.June, 1)),
	}
	ledger.netBalance = decimal.NewFromInt(-300)
	notifStore := &mockNotificationStore{}

	svc := newRecurringService(scheduler, ledger, notifStore)
	if _, err := svc.ProcessDue(context.Background(), day(2024, time.June, 1), true); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(notifStore.created) != 0 {
		t.Fatalf("dry run must not alert, got %v", notifStore.kinds())
	}
}

func TestProcessDue_RaisesUpcomingAlerts(t *testing.T) {
	scheduler := newMockSchedulerStore()
	ledger := newMockLedgerStore()
	notifStore := &mockNotificationStore{}
	scheduler.upcoming = []domain.RecurringObligation{
		monthlyObligation("ob-9", day(2024, time.June, 3)),
	}

	svc := newRecurringService(scheduler, ledger, notifStore)
	if _, err := svc.ProcessDue(context.Background(), day(2024, time.June, 1), false); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(notifStore.created) != 1 || notifStore.created[0].Kind != domain.NotifyUpcoming {
		t.Fatalf("expected one upcoming alert, got %v", notifStore.kinds())
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := newRecurringService(newMockSchedulerStore(), newMockLedgerStore(), &mockNotificationStore{})
	now := day(2024, time.June, 1)

	cases := []struct {
		name string
		req  domain.CreateObligationRequest
	}{
		{"missing description", domain.CreateObligationRequest{Amount: decimal.NewFromInt(10), Kind: domain.EntryExpense, Frequency: domain.FrequencyMonthly, StartDate: "2024-06-01"}},
		{"non-positive amount", domain.CreateObligationRequest{Description: "x", Amount: decimal.Zero, Kind: domain.EntryExpense, Frequency: domain.FrequencyMonthly, StartDate: "2024-06-01"}},
		{"bad kind", domain.CreateObligationRequest{Description: "x", Amount: decimal.NewFromInt(10), Kind: "TRANSFER", Frequency: domain.FrequencyMonthly, StartDate: "2024-06-01"}},
		{"bad frequency", domain.CreateObligationRequest{Description: "x", Amount: decimal.NewFromInt(10), Kind: domain.EntryExpense, Frequency: "HOURLY", StartDate: "2024-06-01"}},
		{"bad start date", domain.CreateObligationRequest{Description: "x", Amount: decimal.NewFromInt(10), Kind: domain.EntryExpense, Frequency: domain.FrequencyMonthly, StartDate: "06/01/2024"}},
		{"end before start", domain.CreateObligationRequest{Description: "x", Amount: decimal.NewFromInt(10), Kind: domain.EntryExpense, Frequency: domain.FrequencyMonthly, StartDate: "2024-06-01", EndDate: "2024-01-01"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "owner-1", &tc.req, now)
			var validation *domain.ErrValidation
			if !errors.As(err, &validation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreate_FirstDueDateIsStartDate(t *testing.T) {
	scheduler := newMockSchedulerStore()
	svc := newRecurringService(scheduler, newMockLedgerStore(), &mockNotificationStore{})

	created, err := svc.Create(context.Background(), "owner-1", &domain.CreateObligationRequest{
		Description: "Gym",
		Amount:      decimal.NewFromInt(80),
		Kind:        domain.EntryExpense,
		Frequency:   domain.FrequencyMonthly,
		StartDate:   "2024-07-01",
	}, day(2024, time.June, 1))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !created.NextDueDate.Equal(day(2024, time.July, 1)) {
		t.Errorf("first due date should be the start date, got %s", created.NextDueDate.Format("2006-01-02"))
	}
	if !created.Active {
		t.Error("new obligation should be active")
	}
}
