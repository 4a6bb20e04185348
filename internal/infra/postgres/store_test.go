package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/resilience"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestTranslate(t *testing.T) {
	if err := translate(nil, "transaction", "u-1"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	var conflict *domain.ErrConflict
	if err := translate(&pq.Error{Code: codeUniqueViolation}, "transaction", "u-1"); !errors.As(err, &conflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	var nf *domain.ErrNotFound
	if err := translate(&pq.Error{Code: codeForeignKeyViolation}, "transaction", "u-1"); !errors.As(err, &nf) || nf.ID != "u-1" {
		t.Errorf("expected ErrNotFound for u-1, got %v", err)
	}

	other := errors.New("connection reset")
	if err := translate(other, "transaction", "u-1"); !errors.Is(err, other) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

// TestStore_RoundTrip runs against a real database when TEST_DATABASE_URL is set.
func TestStore_RoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	s := NewStore(db, resilience.NewCircuitBreaker("test"), resilience.Config{}, zap.NewNop())
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	userID := "it-" + uuid.NewString()
	if _, err := db.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, monthly_income, rent) VALUES ($1, 4000, 1200)`, userID); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	p, err := s.GetUserProfile(ctx, userID)
	if err != nil {
		t.Fatalf("GetUserProfile: %v", err)
	}
	if !p.CurrentRent().Equal(decimal.NewFromInt(1200)) {
		t.Errorf("expected rent 1200, got %s", p.CurrentRent())
	}

	ts := time.Now().UTC().Truncate(time.Second)
	tx := &domain.Transaction{ID: uuid.NewString(), Amount: decimal.NewFromInt(-25), Category: "food", Timestamp: ts}
	if _, err := s.InsertTransaction(ctx, userID, tx); err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}
	var conflict *domain.ErrConflict
	if _, err := s.InsertTransaction(ctx, userID, tx); !errors.As(err, &conflict) {
		t.Errorf("expected conflict on duplicate insert, got %v", err)
	}

	win := domain.MonthWindow(ts)
	txns, err := s.GetTransactions(ctx, userID, &win)
	if err != nil || len(txns) != 1 {
		t.Fatalf("GetTransactions: %v (%d rows)", err, len(txns))
	}

	if err := s.SetMonthlyTotal(ctx, userID, domain.MonthKey(ts), decimal.NewFromInt(25)); err != nil {
		t.Fatalf("SetMonthlyTotal: %v", err)
	}
	total, err := s.GetMonthlyTotal(ctx, userID, domain.MonthKey(ts))
	if err != nil || !total.Equal(decimal.NewFromInt(25)) {
		t.Errorf("expected total 25, got %s (%v)", total, err)
	}

	var nf *domain.ErrNotFound
	if err := s.UpdateSubscriptionStatus(ctx, userID, "missing", domain.SubscriptionCanceled); !errors.As(err, &nf) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
