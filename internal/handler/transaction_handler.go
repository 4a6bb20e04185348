package handler

import (
	"net/http"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func recordTransactionHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users/{userId}/transactions")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		span.SetAttributes(attribute.String("user.id", userID))

		var req domain.RecordTransactionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		result, err := svc.RecordTransaction(ctx, userID, &req)
		if err != nil {
			span.RecordError(err)
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Bool("budget.alert_sent", result.AlertSent))
		writeJSON(w, http.StatusCreated, result)
	}
}
