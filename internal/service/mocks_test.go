package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/cache"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/memstore"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/observability"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/insight"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- Fixtures ---

const testSeed = `{
	"users": [
		{"user_id": "u-1", "email": "ana@example.com", "monthly_income": 4000, "essential_expenses": 1500, "monthly_budget": 1000},
		{"user_id": "u-2", "monthly_income": 0}
	],
	"transactions": [
		{"id": "t0", "user_id": "u-1", "amount": -999, "category": "travel", "occurred_at": "2024-12-20T10:00:00Z"},
		{"id": "t1", "user_id": "u-1", "amount": 4000, "category": "salary", "occurred_at": "2025-01-01T08:00:00Z"},
		{"id": "t2", "user_id": "u-1", "amount": -500, "category": "groceries", "occurred_at": "2025-01-03T10:00:00Z"},
		{"id": "t3", "user_id": "u-1", "amount": -300, "category": "dining", "occurred_at": "2025-01-10T10:00:00Z"}
	],
	"subscriptions": [
		{"id": "s1", "user_id": "u-1", "merchant": "StreamMax", "monthly_amount": 32.99, "days_used": 2},
		{"id": "s2", "user_id": "u-1", "merchant": "Gym", "monthly_amount": 25, "days_used": 10}
	],
	"accounts": [
		{"id": "a1", "user_id": "u-1", "name": "Checking", "kind": "checking", "balance": 1500},
		{"id": "a2", "user_id": "u-1", "name": "Savings", "kind": "savings", "balance": 2500.5}
	]
}`

var testNow = time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// --- Mocks ---

// faultyStore wraps the seeded store with call counting and error injection.
type faultyStore struct {
	*memstore.Store
	profileCalls int32
	txErr        error
	updateErr    error
}

func (f *faultyStore) GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	atomic.AddInt32(&f.profileCalls, 1)
	return f.Store.GetUserProfile(ctx, userID)
}

func (f *faultyStore) GetTransactions(ctx context.Context, userID string, w *domain.Window) ([]domain.Transaction, error) {
	if f.txErr != nil {
		return nil, f.txErr
	}
	return f.Store.GetTransactions(ctx, userID, w)
}

func (f *faultyStore) UpdateSubscriptionStatus(ctx context.Context, userID, subID string, status domain.SubscriptionStatus) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	return f.Store.UpdateSubscriptionStatus(ctx, userID, subID, status)
}

type mockNotifier struct {
	mu     sync.Mutex
	alerts []domain.BudgetAlert
	err    error
}

func (m *mockNotifier) SendBudgetAlert(_ context.Context, a *domain.BudgetAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.alerts = append(m.alerts, *a)
	return nil
}

type mockAdvisor struct {
	resp *domain.AdvisorResponse
	err  error
	last *domain.AdvisorRequest
}

func (m *mockAdvisor) Name() string { return "mock" }

func (m *mockAdvisor) Complete(_ context.Context, req *domain.AdvisorRequest) (*domain.AdvisorResponse, error) {
	m.last = req
	return m.resp, m.err
}

// --- Helpers ---

type fixture struct {
	store    *faultyStore
	metrics  *observability.Metrics
	insights *InsightService
}

func newFixture(t *testing.T, opts insight.Options) *fixture {
	t.Helper()
	s, err := memstore.Load(strings.NewReader(testSeed))
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	store := &faultyStore{Store: s}
	metrics := observability.NewMetrics()

	snapshots := cache.New[*domain.Snapshot](time.Minute)
	reports := cache.New[*domain.InsightReport](time.Hour)
	t.Cleanup(snapshots.Close)
	t.Cleanup(reports.Close)

	insights := NewInsightService(store, insight.NewEngine(opts), snapshots, reports, WindowMonth, metrics, zap.NewNop())
	insights.now = func() time.Time { return testNow }

	return &fixture{store: store, metrics: metrics, insights: insights}
}
