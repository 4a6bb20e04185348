package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultOllamaURL is used when no base URL is configured.
const DefaultOllamaURL = "http://localhost:11434"

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// Ollama calls a local Ollama server's chat endpoint.
type Ollama struct {
	httpClient *http.Client
	baseURL    string
	model      string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewOllama creates an Ollama advisor.
func NewOllama(httpClient *http.Client, baseURL, model string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *Ollama {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	return &Ollama{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		cb:         cb,
		cfg:        cfg,
	}
}

// Name returns the provider name.
func (o *Ollama) Name() string { return ProviderOllama }

// Complete sends the conversation to /api/chat without streaming.
func (o *Ollama) Complete(ctx context.Context, req *domain.AdvisorRequest) (*domain.AdvisorResponse, error) {
	ctx, span := tracer.Start(ctx, "Ollama.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", req.UserID),
		attribute.String("llm.model", o.model),
	)

	body := ollamaChatRequest{Model: o.model, Stream: false}
	if req.System != "" {
		body.Messages = append(body.Messages, ollamaMessage{Role: domain.RoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, ollamaMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := resilience.Execute(ctx, o.cb, o.cfg, serviceName, func(ctx context.Context) (*ollamaChatResponse, error) {
		return o.chat(ctx, &body)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &domain.AdvisorResponse{
		Reply: strings.TrimSpace(resp.Message.Content),
		Model: orDefault(resp.Model, o.model),
		TokensUsed: domain.TokenUsage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
	}, nil
}

func (o *Ollama) chat(ctx context.Context, body *ollamaChatRequest) (*ollamaChatResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding ollama response: %w", err)
	}
	return &out, nil
}
