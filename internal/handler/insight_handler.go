package handler

import (
	"net/http"
	"strings"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Insights: GET /v1/users/{userId}/...
// ============================================================

func dashboardHandler(svc *service.InsightService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/dashboard")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		span.SetAttributes(attribute.String("user.id", userID))

		report, err := svc.Dashboard(ctx, userID)
		if err != nil {
			span.RecordError(err)
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func wellnessHandler(svc *service.InsightService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/wellness")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		span.SetAttributes(attribute.String("user.id", userID))

		result, err := svc.Wellness(ctx, userID)
		if err != nil {
			span.RecordError(err)
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("wellness.score", result.Score))
		writeJSON(w, http.StatusOK, result)
	}
}

func actionPlanHandler(svc *service.InsightService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/action-plan")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		span.SetAttributes(attribute.String("user.id", userID))

		plan, err := svc.ActionPlan(ctx, userID)
		if err != nil {
			span.RecordError(err)
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	}
}

func affordabilityHandler(svc *service.InsightService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/affordability")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		span.SetAttributes(attribute.String("user.id", userID))

		var rent *decimal.Decimal
		if v := strings.TrimSpace(r.URL.Query().Get("rent")); v != "" {
			parsed, err := decimal.NewFromString(v)
			if err != nil {
				handleServiceError(w, &domain.ErrInvalidInput{Field: "rent", Reason: "must be a decimal number"}, logger)
				return
			}
			rent = &parsed
		}

		result, err := svc.Affordability(ctx, userID, rent)
		if err != nil {
			span.RecordError(err)
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func subscriptionReviewHandler(svc *service.InsightService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/subscriptions/review")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		span.SetAttributes(attribute.String("user.id", userID))

		review, err := svc.SubscriptionReview(ctx, userID)
		if err != nil {
			span.RecordError(err)
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, review)
	}
}
