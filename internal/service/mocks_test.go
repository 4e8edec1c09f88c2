package service_test

import (
	"context"
	"time"

	"github.com/dmelo/fintrack-engine-go/internal/domain"

	"github.com/shopspring/decimal"
)

// --- Mocks ---

type mockSchedulerStore struct {
	obligations map[string]*domain.RecurringObligation
	due         []domain.RecurringObligation
	upcoming    []domain.RecurringObligation

	advanceObligationErr map[string]error // keyed by obligation id
	advancedTo           map[string]time.Time
	deactivated          []string

	installments        map[string]*domain.Installment
	byStatus            []domain.Installment
	advanceInstErr      error
	advancedInstallment map[string]int
	instUpdates         map[string]map[string]any
}

func newMockSchedulerStore() *mockSchedulerStore {
	return &mockSchedulerStore{
		obligations:          map[string]*domain.RecurringObligation{},
		advanceObligationErr: map[string]error{},
		advancedTo:           map[string]time.Time{},
		installments:         map[string]*domain.Installment{},
		advancedInstallment:  map[string]int{},
		instUpdates:          map[string]map[string]any{},
	}
}

func (m *mockSchedulerStore) CreateObligation(_ context.Context, o *domain.RecurringObligation) (*domain.RecurringObligation, error) {
	m.obligations[o.ID] = o
	return o, nil
}

func (m *mockSchedulerStore) GetObligation(_ context.Context, _, obligationID string) (*domain.RecurringObligation, error) {
	o, ok := m.obligations[obligationID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "recurring_obligation", ID: obligationID}
	}
	return o, nil
}

func (m *mockSchedulerStore) ListObligations(_ context.Context, _ string) ([]domain.RecurringObligation, error) {
	var out []domain.RecurringObligation
	for _, o := range m.obligations {
		out = append(out, *o)
	}
	return out, nil
}

func (m *mockSchedulerStore) ListDueObligations(_ context.Context, _ time.Time, _ int) ([]domain.RecurringObligation, error) {
	return m.due, nil
}

func (m *mockSchedulerStore) ListUpcomingObligations(_ context.Context, _, _ time.Time, _ int) ([]domain.RecurringObligation, error) {
	return m.upcoming, nil
}

func (m *mockSchedulerStore) CountDueObligations(_ context.Context, _ time.Time) (int, error) {
	return len(m.due), nil
}

func (m *mockSchedulerStore) AdvanceObligation(_ context.Context, obligationID string, _, newNextDue, _ time.Time, _ bool) error {
	if err := m.advanceObligationErr[obligationID]; err != nil {
		return err
	}
	m.advancedTo[obligationID] = newNextDue
	return nil
}

func (m *mockSchedulerStore) SetObligationActive(_ context.Context, _, obligationID string, active bool) error {
	if !active {
		m.deactivated = append(m.deactivated, obligationID)
	}
	if o, ok := m.obligations[obligationID]; ok {
		o.Active = active
	}
	return nil
}

func (m *mockSchedulerStore) CreateInstallment(_ context.Context, inst *domain.Installment) (*domain.Installment, error) {
	m.installments[inst.ID] = inst
	return inst, nil
}

func (m *mockSchedulerStore) GetInstallment(_ context.Context, _, installmentID string) (*domain.Installment, error) {
	inst, ok := m.installments[installmentID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "installment", ID: installmentID}
	}
	cp := *inst
	return &cp, nil
}

func (m *mockSchedulerStore) ListInstallments(_ context.Context, _ string) ([]domain.Installment, error) {
	var out []domain.Installment
	for _, inst := range m.installments {
		out = append(out, *inst)
	}
	return out, nil
}

func (m *mockSchedulerStore) ListInstallmentsByStatus(_ context.Context, _ []domain.Status, _ int) ([]domain.Installment, error) {
	return m.byStatus, nil
}

func (m *mockSchedulerStore) AdvanceInstallment(_ context.Context, installmentID string, _, newCurrent int, status domain.Status) error {
	if m.advanceInstErr != nil {
		return m.advanceInstErr
	}
	m.advancedInstallment[installmentID] = newCurrent
	if inst, ok := m.installments[installmentID]; ok {
		inst.CurrentInstallment = newCurrent
		inst.Status = status
	}
	return nil
}

func (m *mockSchedulerStore) UpdateInstallment(_ context.Context, installmentID string, updates map[string]any) error {
	m.instUpdates[installmentID] = updates
	if inst, ok := m.installments[installmentID]; ok {
		if v, ok := updates["current_installment"].(int); ok {
			inst.CurrentInstallment = v
		}
		if v, ok := updates["installment_count"].(int); ok {
			inst.InstallmentCount = v
		}
		if v, ok := updates["status"].(string); ok {
			inst.Status = domain.Status(v)
		}
	}
	return nil
}

type mockLedgerStore struct {
	entries   map[string]*domain.LedgerEntry
	created   []domain.LedgerEntry
	createErr map[string]error // keyed by linked recurring id

	countForInstallment int
	latestEntry         *domain.LedgerEntry
	latestEntryErr      error
	sumForPlan          decimal.Decimal

	duePending []domain.LedgerEntry
	confirmErr map[string]error
	confirmed  []string

	netBalance decimal.Decimal
}

func newMockLedgerStore() *mockLedgerStore {
	return &mockLedgerStore{
		entries:    map[string]*domain.LedgerEntry{},
		createErr:  map[string]error{},
		confirmErr: map[string]error{},
	}
}

func (m *mockLedgerStore) CreateEntry(_ context.Context, entry *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	if entry.RecurringID != nil {
		if err := m.createErr[*entry.RecurringID]; err != nil {
			return nil, err
		}
	}
	m.entries[entry.ID] = entry
	m.created = append(m.created, *entry)
	return entry, nil
}

func (m *mockLedgerStore) GetEntry(_ context.Context, _, entryID string) (*domain.LedgerEntry, error) {
	e, ok := m.entries[entryID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "ledger_entry", ID: entryID}
	}
	cp := *e
	return &cp, nil
}

func (m *mockLedgerStore) ListEntries(_ context.Context, _ string, _, _ int) ([]domain.LedgerEntry, error) {
	return m.created, nil
}

func (m *mockLedgerStore) DeleteEntry(_ context.Context, _, entryID string) error {
	delete(m.entries, entryID)
	return nil
}

func (m *mockLedgerStore) CountEntriesForInstallment(_ context.Context, _ string) (int, error) {
	return m.countForInstallment, nil
}

func (m *mockLedgerStore) LatestEntryForInstallment(_ context.Context, _ string) (*domain.LedgerEntry, error) {
	if m.latestEntryErr != nil {
		return nil, m.latestEntryErr
	}
	if m.latestEntry == nil {
		return nil, &domain.ErrNotFound{Resource: "ledger_entry", ID: "latest"}
	}
	return m.latestEntry, nil
}

func (m *mockLedgerStore) SumConfirmedExpensesForPlan(_ context.Context, _ string) (decimal.Decimal, error) {
	return m.sumForPlan, nil
}

func (m *mockLedgerStore) ListDuePending(_ context.Context, _ time.Time, _ int) ([]domain.LedgerEntry, error) {
	return m.duePending, nil
}

func (m *mockLedgerStore) CountDuePending(_ context.Context, _ time.Time) (int, error) {
	return len(m.duePending), nil
}

func (m *mockLedgerStore) ConfirmEntry(_ context.Context, entryID string, date time.Time) error {
	if err := m.confirmErr[entryID]; err != nil {
		return err
	}
	m.confirmed = append(m.confirmed, entryID)
	if e, ok := m.entries[entryID]; ok {
		e.Pending = false
		e.PendingDate = nil
		e.Date = date
	}
	return nil
}

func (m *mockLedgerStore) NetBalance(_ context.Context, _ string) (decimal.Decimal, error) {
	return m.netBalance, nil
}

type mockPlanStore struct {
	plans    map[string]*domain.Plan
	byStatus []domain.Plan
	updates  map[string]map[string]any

	goals       map[string]*domain.SavingsGoal
	goalUpdates map[string]map[string]any
}

func newMockPlanStore() *mockPlanStore {
	return &mockPlanStore{
		plans:       map[string]*domain.Plan{},
		updates:     map[string]map[string]any{},
		goals:       map[string]*domain.SavingsGoal{},
		goalUpdates: map[string]map[string]any{},
	}
}

func (m *mockPlanStore) CreatePlan(_ context.Context, p *domain.Plan) (*domain.Plan, error) {
	m.plans[p.ID] = p
	return p, nil
}

func (m *mockPlanStore) GetPlan(_ context.Context, _, planID string) (*domain.Plan, error) {
	p, ok := m.plans[planID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "plan", ID: planID}
	}
	cp := *p
	return &cp, nil
}

func (m *mockPlanStore) ListPlans(_ context.Context, _ string) ([]domain.Plan, error) {
	var out []domain.Plan
	for _, p := range m.plans {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockPlanStore) ListPlansByStatus(_ context.Context, _ []domain.Status, _ int) ([]domain.Plan, error) {
	return m.byStatus, nil
}

func (m *mockPlanStore) UpdatePlan(_ context.Context, planID string, updates map[string]any) error {
	m.updates[planID] = updates
	if p, ok := m.plans[planID]; ok {
		if v, ok := updates["current_amount"].(float64); ok {
			p.CurrentAmount = decimal.NewFromFloat(v)
		}
		if v, ok := updates["status"].(string); ok {
			p.Status = domain.Status(v)
		}
	}
	return nil
}

func (m *mockPlanStore) CreateGoal(_ context.Context, g *domain.SavingsGoal) (*domain.SavingsGoal, error) {
	m.goals[g.ID] = g
	return g, nil
}

func (m *mockPlanStore) GetGoal(_ context.Context, _, goalID string) (*domain.SavingsGoal, error) {
	g, ok := m.goals[goalID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "savings_goal", ID: goalID}
	}
	cp := *g
	return &cp, nil
}

func (m *mockPlanStore) ListGoals(_ context.Context, _ string) ([]domain.SavingsGoal, error) {
	var out []domain.SavingsGoal
	for _, g := range m.goals {
		out = append(out, *g)
	}
	return out, nil
}

func (m *mockPlanStore) UpdateGoal(_ context.Context, goalID string, updates map[string]any) error {
	m.goalUpdates[goalID] = updates
	if g, ok := m.goals[goalID]; ok {
		if v, ok := updates["current_amount"].(float64); ok {
			g.CurrentAmount = decimal.NewFromFloat(v)
		}
		if v, ok := updates["status"].(string); ok {
			g.Status = domain.Status(v)
		}
	}
	return nil
}

type mockNotificationStore struct {
	created []domain.Notification
	err     error
}

func (m *mockNotificationStore) CreateNotification(_ context.Context, n *domain.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, *n)
	return nil
}

func (m *mockNotificationStore) kinds() []string {
	var out []string
	for _, n := range m.created {
		out = append(out, n.Kind)
	}
	return out
}
