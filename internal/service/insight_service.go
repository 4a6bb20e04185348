package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/memo"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/observability"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/insight"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service/insight")

// WindowMode selects which transactions feed an evaluation.
type WindowMode string

const (
	WindowMonth      WindowMode = "month"
	WindowTrailing30 WindowMode = "trailing30"
	WindowAll        WindowMode = "all"
)

// ParseWindowMode validates a configured window mode. Empty means month.
func ParseWindowMode(s string) (WindowMode, error) {
	switch m := WindowMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return WindowMonth, nil
	case WindowMonth, WindowTrailing30, WindowAll:
		return m, nil
	default:
		return "", &domain.ErrInvalidInput{Field: "window", Reason: "must be one of month trailing30 all"}
	}
}

// Window returns the evaluation window ending at now, nil for all history.
func (m WindowMode) Window(now time.Time) *domain.Window {
	switch m {
	case WindowAll:
		return nil
	case WindowTrailing30:
		w := domain.TrailingWindow(now, insight.MonthDays)
		return &w
	default:
		w := domain.MonthWindow(now)
		return &w
	}
}

// Operation labels for the evaluation counter.
const (
	OpDashboard     = "dashboard"
	OpWellness      = "wellness"
	OpActionPlan    = "action_plan"
	OpAffordability = "affordability"
	OpSubscriptions = "subscriptions"
)

// InsightService loads a consistent snapshot per user and runs the engine over it.
type InsightService struct {
	store     port.FinanceStore
	engine    *insight.Engine
	snapshots port.Cache[*domain.Snapshot]
	reports   port.Cache[*domain.InsightReport]
	window    WindowMode
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewInsightService creates the insight service with all dependencies injected.
// reports memoises engine output keyed by a hash of the snapshot.
func NewInsightService(
	store port.FinanceStore,
	engine *insight.Engine,
	snapshots port.Cache[*domain.Snapshot],
	reports port.Cache[*domain.InsightReport],
	window WindowMode,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *InsightService {
	return &InsightService{
		store:     store,
		engine:    engine,
		snapshots: snapshots,
		reports:   reports,
		window:    window,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

func snapshotKey(userID string) string {
	return "snapshot:" + userID
}

// Invalidate drops the cached snapshot for userID.
func (s *InsightService) Invalidate(userID string) {
	s.snapshots.Delete(snapshotKey(userID))
}

// LoadSnapshot fetches profile, transactions, subscriptions and accounts
// concurrently. The snapshot is built only when all four fetches succeed.
func (s *InsightService) LoadSnapshot(ctx context.Context, userID string) (*domain.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "InsightService.LoadSnapshot")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if cached, ok := s.snapshots.Get(snapshotKey(userID)); ok {
		s.metrics.IncrCacheHit(observability.CacheSnapshot)
		return cached, nil
	}
	s.metrics.IncrCacheMiss(observability.CacheSnapshot)

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("load_snapshot", time.Since(start))
	}()

	now := s.now().UTC()
	window := s.window.Window(now)

	var (
		profile       *domain.UserProfile
		transactions  []domain.Transaction
		subscriptions []domain.Subscription
		accounts      []domain.Account
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := s.store.GetUserProfile(gCtx, userID)
		if err != nil {
			return s.fetchFailed("profile", userID, err)
		}
		profile = p
		return nil
	})

	g.Go(func() error {
		t, err := s.store.GetTransactions(gCtx, userID, window)
		if err != nil {
			return s.fetchFailed("transactions", userID, err)
		}
		transactions = t
		return nil
	})

	g.Go(func() error {
		sub, err := s.store.GetSubscriptions(gCtx, userID)
		if err != nil {
			return s.fetchFailed("subscriptions", userID, err)
		}
		subscriptions = sub
		return nil
	})

	g.Go(func() error {
		a, err := s.store.GetAccounts(gCtx, userID)
		if err != nil {
			return s.fetchFailed("accounts", userID, err)
		}
		accounts = a
		return nil
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	snap := &domain.Snapshot{
		Profile:       profile,
		Transactions:  transactions,
		Subscriptions: subscriptions,
		Accounts:      accounts,
		Window:        window,
		FetchedAt:     now,
	}
	s.snapshots.Set(snapshotKey(userID), snap)
	return snap, nil
}

func (s *InsightService) fetchFailed(what, userID string, err error) error {
	if !resilience.IsPermanent(err) {
		s.logger.Error("failed to fetch "+what,
			zap.String("user_id", userID),
			zap.Error(err),
		)
		s.metrics.IncrExternalError("store")
	}
	return fmt.Errorf("%s fetch: %w", what, err)
}

// report evaluates the snapshot, reusing a memoised result for identical input.
func (s *InsightService) report(ctx context.Context, userID, op string) (*domain.InsightReport, *domain.Snapshot, error) {
	snap, err := s.LoadSnapshot(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	_, span := tracer.Start(ctx, "InsightService.report")
	defer span.End()
	span.SetAttributes(attribute.String("insight.operation", op))

	s.metrics.IncrEvaluation(op)

	key, err := memo.Key(
		snap.Profile, snap.Transactions, snap.Subscriptions, snap.Accounts, snap.Window,
		s.engine.Options(),
	)
	if err != nil {
		return nil, nil, err
	}

	if cached, ok := s.reports.Get(key); ok {
		s.metrics.IncrCacheHit(observability.CacheMemo)
		r := *cached
		r.GeneratedAt = snap.FetchedAt
		return &r, snap, nil
	}
	s.metrics.IncrCacheMiss(observability.CacheMemo)

	r, err := s.engine.Evaluate(snap)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("snapshot rejected by engine",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, nil, err
	}
	s.metrics.ObserveWellnessScore(r.Wellness.Score)
	s.reports.Set(key, r)
	return r, snap, nil
}

// Dashboard returns every engine output for the user.
func (s *InsightService) Dashboard(ctx context.Context, userID string) (*domain.InsightReport, error) {
	r, _, err := s.report(ctx, userID, OpDashboard)
	return r, err
}

// Wellness returns the budget health score.
func (s *InsightService) Wellness(ctx context.Context, userID string) (*domain.WellnessResult, error) {
	r, _, err := s.report(ctx, userID, OpWellness)
	if err != nil {
		return nil, err
	}
	return &r.Wellness, nil
}

// ActionPlan returns the ranked recommendations.
func (s *InsightService) ActionPlan(ctx context.Context, userID string) (*domain.ActionPlan, error) {
	r, _, err := s.report(ctx, userID, OpActionPlan)
	if err != nil {
		return nil, err
	}
	return &r.ActionPlan, nil
}

// Affordability returns the housing, auto and vacation caps. A non-nil rent
// replaces the rent on the profile.
func (s *InsightService) Affordability(ctx context.Context, userID string, rent *decimal.Decimal) (*domain.Affordability, error) {
	r, snap, err := s.report(ctx, userID, OpAffordability)
	if err != nil {
		return nil, err
	}
	if rent == nil {
		return &r.Affordability, nil
	}

	a, err := s.engine.ComputeAffordability(snap.Profile, r.Wellness.DiscretionarySpend, *rent)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SubscriptionReview returns the subscription optimisation view.
func (s *InsightService) SubscriptionReview(ctx context.Context, userID string) (*domain.SubscriptionReview, error) {
	r, _, err := s.report(ctx, userID, OpSubscriptions)
	if err != nil {
		return nil, err
	}
	return &r.Subscriptions, nil
}
