package domain

// ============================================================
// Advisor (LLM chat relay)
// ============================================================

// Chat roles understood by every advisor provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of the advisor conversation.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required,max=4000"`
}

// AdvisorChatRequest is the body of POST /v1/users/{userId}/advisor/chat.
type AdvisorChatRequest struct {
	History []ChatMessage `json:"history" validate:"max=50,dive"`
	Message string        `json:"message" validate:"required,max=4000"`
}

// AdvisorRequest is what a provider receives: a system prompt plus the conversation.
type AdvisorRequest struct {
	UserID   string
	System   string
	Messages []ChatMessage
}

// TokenUsage tracks LLM consumption for cost monitoring.
type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// AdvisorResponse is the provider's reply.
type AdvisorResponse struct {
	Reply      string     `json:"reply"`
	Model      string     `json:"model,omitempty"`
	TokensUsed TokenUsage `json:"tokensUsed"`
}

// AdvisorChatResponse is returned to the UI.
type AdvisorChatResponse struct {
	ConversationID string     `json:"conversationId"`
	Reply          string     `json:"reply"`
	Model          string     `json:"model,omitempty"`
	TokensUsed     TokenUsage `json:"tokensUsed"`
	LatencyMs      int64      `json:"latencyMs"`
}
