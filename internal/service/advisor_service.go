package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/observability"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/port"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// AdvisorPersona is the system prompt every conversation starts with.
const AdvisorPersona = "You are a helpful, friendly personal financial advisor. Answer clearly and concisely."

// FallbackReply is returned when the provider answers with nothing.
const FallbackReply = "Sorry — no response generated."

// AdvisorService relays chat turns to the configured LLM, grounding each
// conversation in the user's latest insight report.
type AdvisorService struct {
	advisor  port.Advisor
	insights *InsightService
	bulkhead *resilience.Bulkhead
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewAdvisorService creates the advisor service. maxConcurrency bounds
// in-flight provider calls.
func NewAdvisorService(advisor port.Advisor, insights *InsightService, maxConcurrency int, metrics *observability.Metrics, logger *zap.Logger) *AdvisorService {
	return &AdvisorService{
		advisor:  advisor,
		insights: insights,
		bulkhead: resilience.NewBulkhead(maxConcurrency),
		metrics:  metrics,
		logger:   logger,
	}
}

// Chat answers one user message given the prior conversation.
func (s *AdvisorService) Chat(ctx context.Context, userID string, req *domain.AdvisorChatRequest) (*domain.AdvisorChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "AdvisorService.Chat")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("advisor.provider", s.advisor.Name()),
	)

	if req == nil {
		return nil, &domain.ErrInvalidInput{Field: "body", Reason: "is required"}
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	system := AdvisorPersona
	report, snap, err := s.insights.report(ctx, userID, OpDashboard)
	switch {
	case err == nil:
		system = BuildSystemPrompt(snap.Profile, report)
	case resilience.IsPermanent(err):
		return nil, err
	default:
		// The advisor still answers without the profile summary.
		s.logger.Warn("advisor continuing without insight report",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	messages := make([]domain.ChatMessage, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: req.Message})

	if err := s.bulkhead.Acquire(ctx); err != nil {
		return nil, &domain.ErrTimeout{Operation: "advisor"}
	}
	defer s.bulkhead.Release()

	start := time.Now()
	resp, err := s.advisor.Complete(ctx, &domain.AdvisorRequest{
		UserID:   userID,
		System:   system,
		Messages: messages,
	})
	latency := time.Since(start)
	s.metrics.RecordRequestDuration("advisor", latency)

	if err != nil {
		span.RecordError(err)
		s.logger.Error("advisor call failed",
			zap.String("user_id", userID),
			zap.String("provider", s.advisor.Name()),
			zap.Error(err),
		)
		var circuit *domain.ErrCircuitOpen
		if !errors.As(err, &circuit) {
			s.metrics.IncrExternalError("advisor")
		}
		return nil, fmt.Errorf("advisor call: %w", err)
	}

	s.metrics.RecordTokens(resp.TokensUsed.PromptTokens, resp.TokensUsed.CompletionTokens)

	reply := strings.TrimSpace(resp.Reply)
	if reply == "" {
		reply = FallbackReply
	}

	return &domain.AdvisorChatResponse{
		ConversationID: uuid.NewString(),
		Reply:          reply,
		Model:          resp.Model,
		TokensUsed:     resp.TokensUsed,
		LatencyMs:      latency.Milliseconds(),
	}, nil
}

// BuildSystemPrompt appends a plain-text summary of the profile and report to the persona.
func BuildSystemPrompt(p *domain.UserProfile, r *domain.InsightReport) string {
	var b strings.Builder
	b.WriteString(AdvisorPersona)
	b.WriteString("\n\nThe user's current financial picture:\n")

	w := r.Wellness
	fmt.Fprintf(&b, "- Budget health score: %d/100 (%s)\n", w.Score, w.Grade)
	if w.InsufficientData {
		b.WriteString("- Income is unknown, so the score is a neutral default.\n")
	}
	fmt.Fprintf(&b, "- Monthly income: $%s, essential expenses: $%s\n",
		p.MonthlyIncome.StringFixed(2), p.TotalEssentials().StringFixed(2))
	fmt.Fprintf(&b, "- Spending this period: $%s\n", r.Spending.TotalSpend.StringFixed(2))
	fmt.Fprintf(&b, "- Discretionary spend: $%s, remaining budget: $%s\n",
		w.DiscretionarySpend.StringFixed(2), w.RemainingBudget.StringFixed(2))

	if n := len(r.Spending.TopCategories); n > 0 {
		if n > 3 {
			n = 3
		}
		parts := make([]string, 0, n)
		for _, c := range r.Spending.TopCategories[:n] {
			parts = append(parts, fmt.Sprintf("%s $%s", c.Category, c.Total.StringFixed(2)))
		}
		fmt.Fprintf(&b, "- Top categories: %s\n", strings.Join(parts, ", "))
	}

	if len(r.Subscriptions.LowUsage) > 0 {
		names := make([]string, 0, len(r.Subscriptions.LowUsage))
		for _, s := range r.Subscriptions.LowUsage {
			names = append(names, s.Merchant)
		}
		fmt.Fprintf(&b, "- Rarely used subscriptions: %s\n", strings.Join(names, ", "))
	}

	a := r.Affordability
	fmt.Fprintf(&b, "- Safe housing cap: $%s/month, auto cap: $%s/month\n",
		a.HousingCap.StringFixed(2), a.AutoCap.StringFixed(2))

	for _, item := range r.ActionPlan.Items {
		fmt.Fprintf(&b, "- Suggested action (%s): %s\n", item.Priority, item.Title)
	}
	return b.String()
}
