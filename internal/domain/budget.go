package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordTransactionRequest is the body of POST /v1/users/{userId}/transactions.
type RecordTransactionRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Category  string          `json:"category" validate:"max=64"`
	Merchant  string          `json:"merchant,omitempty" validate:"max=128"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
}

// MonthlyTotal mirrors a user's outflow for one YYYY-MM month.
type MonthlyTotal struct {
	UserID   string          `json:"userId"`
	MonthKey string          `json:"monthKey"`
	Total    decimal.Decimal `json:"total"`
}

// BudgetAlert is sent when a month's spend crosses the budget limit.
type BudgetAlert struct {
	UserID   string          `json:"userId"`
	Email    string          `json:"email"`
	MonthKey string          `json:"monthKey"`
	Limit    decimal.Decimal `json:"limit"`
	Total    decimal.Decimal `json:"total"`
}

// RecordTransactionResult reports the stored transaction and the month mirror.
type RecordTransactionResult struct {
	Transaction  *Transaction `json:"transaction"`
	MonthlyTotal MonthlyTotal `json:"monthlyTotal"`
	AlertSent    bool         `json:"alertSent"`
}

// SuccessResponse is a generic acknowledgement body.
type SuccessResponse struct {
	Message string `json:"message"`
}

// InsightMetrics is the JSON view of the service counters.
type InsightMetrics struct {
	Evaluations      int64   `json:"evaluations"`
	MemoHitRate      float64 `json:"memoHitRate"`
	SnapshotHitRate  float64 `json:"snapshotHitRate"`
	ExternalErrors   int64   `json:"externalErrors"`
	PromptTokens     int64   `json:"promptTokens"`
	CompletionTokens int64   `json:"completionTokens"`
	BudgetAlerts     int64   `json:"budgetAlerts"`
}
