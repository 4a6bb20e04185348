package handler

import (
	"net/http"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func advisorChatHandler(svc *service.AdvisorService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users/{userId}/advisor/chat")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		span.SetAttributes(attribute.String("user.id", userID))

		var req domain.AdvisorChatRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		resp, err := svc.Chat(ctx, userID, &req)
		if err != nil {
			span.RecordError(err)
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(
			attribute.String("advisor.model", resp.Model),
			attribute.Int("advisor.tokens", resp.TokensUsed.TotalTokens),
		)
		writeJSON(w, http.StatusOK, resp)
	}
}
