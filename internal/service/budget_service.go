package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/observability"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/insight"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/port"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/validation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// BudgetService records transactions, mirrors each month's outflow and
// alerts the user when the month crosses their budget limit.
type BudgetService struct {
	store        port.FinanceStore
	notifier     port.Notifier
	insights     *InsightService
	defaultLimit decimal.Decimal
	metrics      *observability.Metrics
	logger       *zap.Logger
	now          func() time.Time
	newID        func() string

	locks sync.Map // userID -> *sync.Mutex
}

// NewBudgetService creates the budget service. defaultLimit applies to
// profiles without a monthly budget of their own; zero disables alerts for them.
func NewBudgetService(
	store port.FinanceStore,
	notifier port.Notifier,
	insights *InsightService,
	defaultLimit decimal.Decimal,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *BudgetService {
	return &BudgetService{
		store:        store,
		notifier:     notifier,
		insights:     insights,
		defaultLimit: defaultLimit,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

func (s *BudgetService) lock(userID string) func() {
	mu, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// limitFor returns the budget limit that applies to profile.
func (s *BudgetService) limitFor(profile *domain.UserProfile) decimal.Decimal {
	if profile.MonthlyBudget.IsPositive() {
		return profile.MonthlyBudget
	}
	return s.defaultLimit
}

// RecordTransaction stores a transaction and adds its outflow to the month
// total. The alert fires once, on the transaction that takes the total from
// at or under the limit to over it. A failed alert does not fail the request.
func (s *BudgetService) RecordTransaction(ctx context.Context, userID string, req *domain.RecordTransactionRequest) (*domain.RecordTransactionResult, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.RecordTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if req == nil {
		return nil, &domain.ErrInvalidInput{Field: "body", Reason: "is required"}
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if req.Amount.IsZero() {
		return nil, &domain.ErrInvalidInput{Field: "amount", Reason: "must be non-zero"}
	}

	profile, err := s.store.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("profile fetch: %w", err)
	}

	ts := s.now().UTC()
	if req.Timestamp != nil {
		ts = req.Timestamp.UTC()
	}
	tx := &domain.Transaction{
		ID:        s.newID(),
		Amount:    req.Amount,
		Category:  strings.TrimSpace(req.Category),
		Merchant:  strings.TrimSpace(req.Merchant),
		Timestamp: ts,
	}

	unlock := s.lock(userID)
	defer unlock()

	stored, err := s.store.InsertTransaction(ctx, userID, tx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	s.insights.Invalidate(userID)

	monthKey := domain.MonthKey(ts)
	prev, err := s.store.GetMonthlyTotal(ctx, userID, monthKey)
	if err != nil {
		return nil, fmt.Errorf("monthly total fetch: %w", err)
	}

	total := prev
	if stored.IsOutflow() {
		total = prev.Add(stored.Amount.Abs())
		if err := s.store.SetMonthlyTotal(ctx, userID, monthKey, total); err != nil {
			return nil, fmt.Errorf("monthly total update: %w", err)
		}
	}

	result := &domain.RecordTransactionResult{
		Transaction:  stored,
		MonthlyTotal: domain.MonthlyTotal{UserID: userID, MonthKey: monthKey, Total: total},
	}

	limit := s.limitFor(profile)
	if limit.IsPositive() && prev.LessThanOrEqual(limit) && total.GreaterThan(limit) {
		result.AlertSent = s.alert(ctx, &domain.BudgetAlert{
			UserID:   userID,
			Email:    profile.Email,
			MonthKey: monthKey,
			Limit:    limit,
			Total:    total,
		})
	}

	s.logger.Info("transaction recorded",
		zap.String("user_id", userID),
		zap.String("transaction_id", stored.ID),
		zap.String("month", monthKey),
		zap.String("month_total", total.StringFixed(2)),
	)
	return result, nil
}

func (s *BudgetService) alert(ctx context.Context, a *domain.BudgetAlert) bool {
	if err := s.notifier.SendBudgetAlert(ctx, a); err != nil {
		s.logger.Error("budget alert failed",
			zap.String("user_id", a.UserID),
			zap.String("month", a.MonthKey),
			zap.Error(err),
		)
		s.metrics.IncrExternalError("notifier")
		s.metrics.IncrBudgetAlert("failed")
		return false
	}
	s.metrics.IncrBudgetAlert("sent")
	return true
}

// ReconcileUser recomputes the current month's total from stored transactions.
func (s *BudgetService) ReconcileUser(ctx context.Context, userID string) (decimal.Decimal, error) {
	now := s.now().UTC()
	window := domain.MonthWindow(now)

	unlock := s.lock(userID)
	defer unlock()

	txns, err := s.store.GetTransactions(ctx, userID, &window)
	if err != nil {
		return decimal.Zero, fmt.Errorf("transactions fetch: %w", err)
	}
	total := insight.Aggregate(txns, &window).TotalSpend
	if err := s.store.SetMonthlyTotal(ctx, userID, domain.MonthKey(now), total); err != nil {
		return decimal.Zero, fmt.Errorf("monthly total update: %w", err)
	}
	return total, nil
}

// Reconcile runs ReconcileUser for every user. It keeps going past
// individual failures and returns them joined.
func (s *BudgetService) Reconcile(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "BudgetService.Reconcile")
	defer span.End()

	ids, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	var errs []error
	done := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := s.ReconcileUser(ctx, id); err != nil {
			s.logger.Warn("reconcile failed", zap.String("user_id", id), zap.Error(err))
			errs = append(errs, fmt.Errorf("user %s: %w", id, err))
			continue
		}
		done++
	}
	span.SetAttributes(attribute.Int("reconcile.users", done))
	return done, errors.Join(errs...)
}
