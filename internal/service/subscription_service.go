package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/insight"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SubscriptionService changes subscription status and keeps the insight
// snapshot cache coherent with those writes.
type SubscriptionService struct {
	store    port.SubscriptionStore
	insights *InsightService
	logger   *zap.Logger
}

// NewSubscriptionService creates the subscription service.
func NewSubscriptionService(store port.SubscriptionStore, insights *InsightService, logger *zap.Logger) *SubscriptionService {
	return &SubscriptionService{store: store, insights: insights, logger: logger}
}

// Cancel marks one subscription canceled.
func (s *SubscriptionService) Cancel(ctx context.Context, userID, subscriptionID string) error {
	ctx, span := tracer.Start(ctx, "SubscriptionService.Cancel")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("subscription.id", subscriptionID),
	)

	if subscriptionID == "" {
		return &domain.ErrInvalidInput{Field: "subscriptionId", Reason: "is required"}
	}
	if err := s.store.UpdateSubscriptionStatus(ctx, userID, subscriptionID, domain.SubscriptionCanceled); err != nil {
		span.RecordError(err)
		return fmt.Errorf("cancel subscription: %w", err)
	}
	s.insights.Invalidate(userID)

	s.logger.Info("subscription canceled",
		zap.String("user_id", userID),
		zap.String("subscription_id", subscriptionID),
	)
	return nil
}

// CancelSuggested cancels the suggested low-usage subscriptions, read fresh
// from the store rather than from the cached snapshot.
func (s *SubscriptionService) CancelSuggested(ctx context.Context, userID string) (*domain.CancelResult, error) {
	ctx, span := tracer.Start(ctx, "SubscriptionService.CancelSuggested")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	subs, err := s.store.GetSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("subscriptions fetch: %w", err)
	}
	review := insight.ReviewSubscriptions(subs)

	result := &domain.CancelResult{
		Canceled:       []string{},
		MonthlySavings: decimal.Zero,
		YearlySavings:  decimal.Zero,
	}
	if len(review.Suggested) == 0 {
		return result, nil
	}

	defer s.insights.Invalidate(userID)
	monthly := decimal.Zero
	for _, sub := range review.Suggested {
		if err := s.store.UpdateSubscriptionStatus(ctx, userID, sub.ID, domain.SubscriptionCanceled); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("cancel subscription %s: %w", sub.ID, err)
		}
		result.Canceled = append(result.Canceled, sub.ID)
		monthly = monthly.Add(sub.MonthlyAmount)
	}
	result.MonthlySavings = monthly.Round(2)
	result.YearlySavings = monthly.Mul(decimal.NewFromInt(12)).Round(2)

	s.logger.Info("suggested subscriptions canceled",
		zap.String("user_id", userID),
		zap.Strings("subscription_ids", result.Canceled),
	)
	return result, nil
}
