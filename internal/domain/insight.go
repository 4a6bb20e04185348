package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Insight engine outputs (computed, never persisted)
// ============================================================

// CategoryTotal is one row of the spending-by-category breakdown.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Share    decimal.Decimal `json:"share"` // percent of total spend
}

// SpendingAggregate summarises outflows over an optional window.
type SpendingAggregate struct {
	TotalSpend         decimal.Decimal            `json:"totalSpend"`
	TotalIncome        decimal.Decimal            `json:"totalIncome"`
	SpendingByCategory map[string]decimal.Decimal `json:"spendingByCategory"`
	TopCategories      []CategoryTotal            `json:"topCategories"`
	AverageDailySpend  decimal.Decimal            `json:"averageDailySpend"`
	Days               int                        `json:"days"`
	TransactionCount   int                        `json:"transactionCount"`
	OutflowCount       int                        `json:"outflowCount"`
}

// Grade is the label attached to a wellness score.
type Grade string

const (
	GradeExcellent        Grade = "Excellent"
	GradeGood             Grade = "Good"
	GradeFair             Grade = "Fair"
	GradeNeedsImprovement Grade = "Needs Improvement"
)

// Penalty is one rule that lowered the wellness score.
type Penalty struct {
	Code   string `json:"code"`
	Label  string `json:"label"`
	Points int    `json:"points"`
}

// WellnessResult is the 0–100 budget health score with its derivation.
type WellnessResult struct {
	Score              int             `json:"score"`
	Grade              Grade           `json:"grade"`
	Penalties          []Penalty       `json:"penalties"`
	EssentialsRatio    decimal.Decimal `json:"essentialsRatio"`
	DiscretionarySpend decimal.Decimal `json:"discretionarySpend"`
	RemainingBudget    decimal.Decimal `json:"remainingBudget"`
	InsufficientData   bool            `json:"insufficientData"`
}

// Priority ranks an action item.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ActionKind identifies the rule that produced an action item.
type ActionKind string

const (
	ActionLowUsageSubscriptions ActionKind = "low_usage_subscriptions"
	ActionReduceDiscretionary   ActionKind = "reduce_discretionary"
	ActionGrowEmergencyFund     ActionKind = "grow_emergency_fund"
	ActionBalanceBudget         ActionKind = "balance_budget"
)

// ActionItem is a single recommended behaviour change with its projected impact.
// Completed is owned by the UI; the engine always emits false.
type ActionItem struct {
	ID                      string          `json:"id"`
	Kind                    ActionKind      `json:"kind"`
	Priority                Priority        `json:"priority"`
	Title                   string          `json:"title"`
	Description             string          `json:"description"`
	ProjectedMonthlySavings decimal.Decimal `json:"projectedMonthlySavings"`
	Completed               bool            `json:"completed"`
}

// ActionPlan is the ranked recommendation list.
type ActionPlan struct {
	Items            []ActionItem `json:"items"`
	InsufficientData bool         `json:"insufficientData"`
}

// Affordability holds safe monthly caps for housing, auto and vacation.
type Affordability struct {
	HousingCap            decimal.Decimal `json:"housingCap"`
	HousingHeadroom       decimal.Decimal `json:"housingHeadroom"`
	HousingUsagePercent   decimal.Decimal `json:"housingUsagePercent"`
	AutoCap               decimal.Decimal `json:"autoCap"`
	VacationMonthlyBudget decimal.Decimal `json:"vacationMonthlyBudget"`
	VacationSixMonthTotal decimal.Decimal `json:"vacationSixMonthTotal"`
	Warnings              []string        `json:"warnings,omitempty"`
}

// SubscriptionReview is the optimisation view over a user's subscriptions.
type SubscriptionReview struct {
	ActiveMonthlyTotal      decimal.Decimal `json:"activeMonthlyTotal"`
	LowUsage                []Subscription  `json:"lowUsage"`
	Suggested               []Subscription  `json:"suggested"`
	SuggestedMonthlySavings decimal.Decimal `json:"suggestedMonthlySavings"`
	SuggestedYearlySavings  decimal.Decimal `json:"suggestedYearlySavings"`
	Duplicates              []Subscription  `json:"duplicates"`
	CancelCandidates        []string        `json:"cancelCandidates"`
}

// InsightReport bundles every engine output for one snapshot (the dashboard).
type InsightReport struct {
	UserID        string             `json:"userId"`
	Spending      SpendingAggregate  `json:"spending"`
	Wellness      WellnessResult     `json:"wellness"`
	ActionPlan    ActionPlan         `json:"actionPlan"`
	Affordability Affordability      `json:"affordability"`
	Subscriptions SubscriptionReview `json:"subscriptions"`
	TotalAssets   decimal.Decimal    `json:"totalAssets"`
	Window        *Window            `json:"window,omitempty"`
	GeneratedAt   time.Time          `json:"generatedAt"`
}

// CancelResult reports the subscriptions canceled by one request.
type CancelResult struct {
	Canceled       []string        `json:"canceled"`
	MonthlySavings decimal.Decimal `json:"monthlySavings"`
	YearlySavings  decimal.Decimal `json:"yearlySavings"`
}
