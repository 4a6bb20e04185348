package llm

import (
	"context"
	"net/http"
	"strings"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/resilience"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
)

// OpenAI relays the conversation to the chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
	cb     *gobreaker.CircuitBreaker
	cfg    resilience.Config
}

// NewOpenAI creates an OpenAI advisor. baseURL may point at any
// OpenAI-compatible endpoint.
func NewOpenAI(httpClient *http.Client, apiKey, baseURL, model string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *OpenAI {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		cb:     cb,
		cfg:    cfg,
	}
}

// Name returns the provider name.
func (o *OpenAI) Name() string { return ProviderOpenAI }

// Complete sends one chat completion request.
func (o *OpenAI) Complete(ctx context.Context, req *domain.AdvisorRequest) (*domain.AdvisorResponse, error) {
	ctx, span := tracer.Start(ctx, "OpenAI.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", req.UserID),
		attribute.String("llm.model", o.model),
	)

	chatReq := openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: defaultMaxTokens,
	}
	if req.System != "" {
		chatReq.Messages = append(chatReq.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		chatReq.Messages = append(chatReq.Messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := resilience.Execute(ctx, o.cb, o.cfg, serviceName, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		return o.client.CreateChatCompletion(ctx, chatReq)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var reply string
	if len(resp.Choices) > 0 {
		reply = resp.Choices[0].Message.Content
	}
	return &domain.AdvisorResponse{
		Reply: strings.TrimSpace(reply),
		Model: orDefault(resp.Model, o.model),
		TokensUsed: domain.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
