package handler

import (
	"net/http"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func cancelSubscriptionHandler(svc *service.SubscriptionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users/{userId}/subscriptions/{subscriptionId}/cancel")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		subID := chi.URLParam(r, "subscriptionId")
		span.SetAttributes(
			attribute.String("user.id", userID),
			attribute.String("subscription.id", subID),
		)

		if err := svc.Cancel(ctx, userID, subID); err != nil {
			span.RecordError(err)
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "subscription canceled"})
	}
}

func cancelSuggestedHandler(svc *service.SubscriptionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users/{userId}/subscriptions/cancel-suggested")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		span.SetAttributes(attribute.String("user.id", userID))

		result, err := svc.CancelSuggested(ctx, userID)
		if err != nil {
			span.RecordError(err)
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("subscriptions.canceled", len(result.Canceled)))
		writeJSON(w, http.StatusOK, result)
	}
}
