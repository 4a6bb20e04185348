package llm

import (
	"context"
	"net/http"
	"strings"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/resilience"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
)

// Anthropic relays the conversation to the Messages API.
type Anthropic struct {
	client anthropic.Client
	model  string
	cb     *gobreaker.CircuitBreaker
	cfg    resilience.Config
}

// NewAnthropic creates an Anthropic advisor. SDK retries are disabled; the
// breaker and backoff in resilience own that concern.
func NewAnthropic(httpClient *http.Client, apiKey, baseURL, model string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *Anthropic {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Anthropic{
		client: anthropic.NewClient(opts...),
		model:  model,
		cb:     cb,
		cfg:    cfg,
	}
}

// Name returns the provider name.
func (a *Anthropic) Name() string { return ProviderAnthropic }

// Complete sends one Messages request.
func (a *Anthropic) Complete(ctx context.Context, req *domain.AdvisorRequest) (*domain.AdvisorResponse, error) {
	ctx, span := tracer.Start(ctx, "Anthropic.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", req.UserID),
		attribute.String("llm.model", a.model),
	)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: defaultMaxTokens,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == domain.RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	msg, err := resilience.Execute(ctx, a.cb, a.cfg, serviceName, func(ctx context.Context) (*anthropic.Message, error) {
		return a.client.Messages.New(ctx, params)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var reply strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}

	prompt := int(msg.Usage.InputTokens)
	completion := int(msg.Usage.OutputTokens)
	return &domain.AdvisorResponse{
		Reply: strings.TrimSpace(reply.String()),
		Model: orDefault(string(msg.Model), a.model),
		TokensUsed: domain.TokenUsage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	}, nil
}
