// Package llm implements port.Advisor over the supported chat providers.
// Every adapter is a thin relay: it forwards the system prompt and the
// conversation, and reports the reply with its token usage.
package llm

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("llm")

const serviceName = "advisor"

// Supported providers.
const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Default models per provider.
const (
	DefaultOllamaModel    = "llama3.1:8b"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
	DefaultOpenAIModel    = "gpt-4o-mini"
	defaultMaxTokens      = 1024
)

// Config selects and configures the advisor provider.
type Config struct {
	Provider string

	OllamaBaseURL string
	OllamaModel   string

	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
}

// New builds the advisor named by cfg.Provider. An empty provider means Ollama.
func New(cfg Config, httpClient *http.Client, cb *gobreaker.CircuitBreaker, rcfg resilience.Config) (port.Advisor, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOllama:
		return NewOllama(httpClient, cfg.OllamaBaseURL, orDefault(cfg.OllamaModel, DefaultOllamaModel), cb, rcfg), nil
	case ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic advisor requires ANTHROPIC_API_KEY")
		}
		return NewAnthropic(httpClient, cfg.AnthropicAPIKey, cfg.AnthropicBaseURL, orDefault(cfg.AnthropicModel, DefaultAnthropicModel), cb, rcfg), nil
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai advisor requires OPENAI_API_KEY")
		}
		return NewOpenAI(httpClient, cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, orDefault(cfg.OpenAIModel, DefaultOpenAIModel), cb, rcfg), nil
	default:
		return nil, fmt.Errorf("unknown advisor provider %q", cfg.Provider)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
