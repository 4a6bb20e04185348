package memstore_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/memstore"

	"github.com/shopspring/decimal"
)

const seedDoc = `{
	"users": [
		{"user_id": "u-1", "email": "ana@example.com", "monthly_income": 4500, "rent": 1100, "utilities": 140, "groceries": 350, "insurance": 180, "debt": 200},
		{"user_id": "u-2", "monthly_income": "3000", "essential_expenses": "1200"}
	],
	"transactions": [
		{"id": "t2", "user_id": "u-1", "amount": -880, "category": "groceries", "occurred_at": "2024-03-03T09:00:00Z"},
		{"id": "t1", "user_id": "u-1", "amount": -1100, "category": "housing", "occurred_at": "2024-03-01T09:00:00Z"},
		{"id": "t3", "user_id": "u-1", "amount": -40, "occurred_at": "2024-02-27T09:00:00Z"}
	],
	"subscriptions": [
		{"id": "s1", "user_id": "u-1", "merchant": "StreamMax", "monthly_amount": 32.99, "days_used": 2},
		{"id": "s2", "user_id": "u-1", "merchant": "Cloudy", "monthly_amount": 9.99, "days_used": 3}
	],
	"accounts": [
		{"id": "a1", "user_id": "u-1", "name": "Checking", "kind": "checking", "balance": 1200.5}
	]
}`

func loadSeed(t *testing.T) *memstore.Store {
	t.Helper()
	s, err := memstore.Load(strings.NewReader(seedDoc))
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	return s
}

func TestLoad_NormalisesRows(t *testing.T) {
	s := loadSeed(t)
	ctx := context.Background()

	p, err := s.GetUserProfile(ctx, "u-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.TotalEssentials().Equal(decimal.NewFromInt(1970)) {
		t.Errorf("expected essentials 1970, got %s", p.TotalEssentials())
	}

	txns, _ := s.GetTransactions(ctx, "u-1", nil)
	if len(txns) != 3 || txns[0].ID != "t3" || txns[2].ID != "t2" {
		t.Fatalf("expected transactions oldest first, got %+v", txns)
	}
	if txns[0].Category != "uncategorized" {
		t.Errorf("expected default category, got %q", txns[0].Category)
	}

	subs, _ := s.GetSubscriptions(ctx, "u-1")
	if len(subs) != 2 || subs[0].Status != domain.SubscriptionActive {
		t.Errorf("expected active subscriptions, got %+v", subs)
	}
}

func TestLoad_RejectsInvalidRows(t *testing.T) {
	_, err := memstore.Load(strings.NewReader(`{"users":[{"user_id":"u-1","monthly_income":-1}]}`))

	var invalid *domain.ErrInvalidInput
	if !errors.As(err, &invalid) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetTransactions_Window(t *testing.T) {
	s := loadSeed(t)
	win := domain.MonthWindow(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))

	txns, err := s.GetTransactions(context.Background(), "u-1", &win)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txns) != 2 {
		t.Errorf("expected 2 March transactions, got %d", len(txns))
	}
}

func TestGetUserProfile_NotFound(t *testing.T) {
	s := loadSeed(t)

	_, err := s.GetUserProfile(context.Background(), "ghost")
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetUserProfile_ReturnsCopy(t *testing.T) {
	s := loadSeed(t)
	ctx := context.Background()

	p, _ := s.GetUserProfile(ctx, "u-1")
	p.Essentials.Rent = decimal.NewFromInt(9999)

	again, _ := s.GetUserProfile(ctx, "u-1")
	if !again.CurrentRent().Equal(decimal.NewFromInt(1100)) {
		t.Errorf("expected stored profile untouched, got rent %s", again.CurrentRent())
	}
}

func TestInsertTransaction(t *testing.T) {
	s := loadSeed(t)
	ctx := context.Background()
	tx := &domain.Transaction{ID: "t9", Amount: decimal.NewFromInt(-5), Timestamp: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)}

	stored, err := s.InsertTransaction(ctx, "u-1", tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Category != "uncategorized" {
		t.Errorf("expected default category, got %q", stored.Category)
	}

	txns, _ := s.GetTransactions(ctx, "u-1", nil)
	if len(txns) != 4 || txns[2].ID != "t9" {
		t.Errorf("expected t9 sorted into place, got %+v", txns)
	}

	var conflict *domain.ErrConflict
	if _, err := s.InsertTransaction(ctx, "u-1", tx); !errors.As(err, &conflict) {
		t.Errorf("expected conflict, got %v", err)
	}
	var nf *domain.ErrNotFound
	if _, err := s.InsertTransaction(ctx, "ghost", tx); !errors.As(err, &nf) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestUpdateSubscriptionStatus(t *testing.T) {
	s := loadSeed(t)
	ctx := context.Background()

	if err := s.UpdateSubscriptionStatus(ctx, "u-1", "s1", domain.SubscriptionCanceled); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	subs, _ := s.GetSubscriptions(ctx, "u-1")
	if subs[0].Status != domain.SubscriptionCanceled {
		t.Errorf("expected canceled, got %s", subs[0].Status)
	}

	var nf *domain.ErrNotFound
	if err := s.UpdateSubscriptionStatus(ctx, "u-2", "s1", domain.SubscriptionCanceled); !errors.As(err, &nf) {
		t.Errorf("expected not found for another user's subscription, got %v", err)
	}
}

func TestMonthlyTotalsAndUsers(t *testing.T) {
	s := loadSeed(t)
	ctx := context.Background()

	total, _ := s.GetMonthlyTotal(ctx, "u-1", "2024-03")
	if !total.IsZero() {
		t.Errorf("expected zero, got %s", total)
	}
	_ = s.SetMonthlyTotal(ctx, "u-1", "2024-03", decimal.NewFromInt(75))
	total, _ = s.GetMonthlyTotal(ctx, "u-1", "2024-03")
	if !total.Equal(decimal.NewFromInt(75)) {
		t.Errorf("expected 75, got %s", total)
	}

	ids, _ := s.ListUserIDs(ctx)
	if len(ids) != 2 || ids[0] != "u-1" || ids[1] != "u-2" {
		t.Errorf("expected [u-1 u-2], got %v", ids)
	}
}
