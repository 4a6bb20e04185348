package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Finance records (normalised inputs of the insight engine)
// ============================================================

// EssentialBreakdown itemises non-discretionary monthly expenses.
type EssentialBreakdown struct {
	Rent      decimal.Decimal `json:"rent" validate:"gte=0"`
	Utilities decimal.Decimal `json:"utilities" validate:"gte=0"`
	Groceries decimal.Decimal `json:"groceries" validate:"gte=0"`
	Insurance decimal.Decimal `json:"insurance" validate:"gte=0"`
	Debt      decimal.Decimal `json:"debt" validate:"gte=0"`
}

// Total sums every itemised essential.
func (b EssentialBreakdown) Total() decimal.Decimal {
	return decimal.Sum(b.Rent, b.Utilities, b.Groceries, b.Insurance, b.Debt)
}

// UserProfile is the per-user income/expense profile loaded fresh each evaluation.
type UserProfile struct {
	UserID            string              `json:"userId" validate:"required"`
	Email             string              `json:"email,omitempty" validate:"omitempty,email"`
	MonthlyIncome     decimal.Decimal     `json:"monthlyIncome" validate:"gte=0"`
	EssentialExpenses decimal.Decimal     `json:"essentialExpenses" validate:"gte=0"`
	Essentials        *EssentialBreakdown `json:"essentials,omitempty"`
	MonthlyBudget     decimal.Decimal     `json:"monthlyBudget" validate:"gte=0"`
}

// TotalEssentials prefers the itemised breakdown over the flat figure.
func (p *UserProfile) TotalEssentials() decimal.Decimal {
	if p.Essentials != nil {
		return p.Essentials.Total()
	}
	return p.EssentialExpenses
}

// CurrentRent returns the itemised rent, or zero when no breakdown is known.
func (p *UserProfile) CurrentRent() decimal.Decimal {
	if p.Essentials != nil {
		return p.Essentials.Rent
	}
	return decimal.Zero
}

// Transaction is a signed money movement: negative = outflow, positive = inflow.
type Transaction struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Category  string          `json:"category"`
	Merchant  string          `json:"merchant,omitempty"`
	Timestamp time.Time       `json:"timestamp" validate:"required"`
}

// IsOutflow reports whether the transaction is an expense.
func (t Transaction) IsOutflow() bool {
	return t.Amount.IsNegative()
}

// SubscriptionStatus is the lifecycle state of a recurring subscription.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionFlagged  SubscriptionStatus = "flagged"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// Valid reports whether s is a known status.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionActive, SubscriptionFlagged, SubscriptionCanceled:
		return true
	}
	return false
}

// Subscription is a recurring charge together with its usage in the current period.
type Subscription struct {
	ID               string             `json:"id"`
	Merchant         string             `json:"merchant" validate:"required"`
	Plan             string             `json:"plan,omitempty"`
	Category         string             `json:"category,omitempty"`
	MonthlyAmount    decimal.Decimal    `json:"monthlyAmount" validate:"gte=0"`
	DaysUsedInPeriod int                `json:"daysUsedInPeriod" validate:"gte=0"`
	Status           SubscriptionStatus `json:"status" validate:"oneof=active flagged canceled"`
}

// Active reports whether the subscription is still billed.
func (s Subscription) Active() bool {
	return s.Status == SubscriptionActive
}

// Account holds a checking/savings balance. Display only.
type Account struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Kind    string          `json:"kind" validate:"omitempty,oneof=checking savings credit investment"`
	Balance decimal.Decimal `json:"balance"`
}

// TotalAssets sums account balances.
func TotalAssets(accounts []Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total
}

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Days returns the whole-day length of the window, at least 1.
func (w Window) Days() int {
	d := int(w.End.Sub(w.Start).Hours() / 24)
	if d < 1 {
		return 1
	}
	return d
}

// MonthWindow returns the calendar month containing t.
func MonthWindow(t time.Time) Window {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return Window{Start: start, End: start.AddDate(0, 1, 0)}
}

// TrailingWindow returns the n days ending at t.
func TrailingWindow(t time.Time, days int) Window {
	return Window{Start: t.AddDate(0, 0, -days), End: t}
}

// MonthKey formats t as YYYY-MM.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// Snapshot is the consistent set of records fetched together for one evaluation.
type Snapshot struct {
	Profile       *UserProfile   `json:"profile"`
	Transactions  []Transaction  `json:"transactions"`
	Subscriptions []Subscription `json:"subscriptions"`
	Accounts      []Account      `json:"accounts"`
	Window        *Window        `json:"window,omitempty"`
	FetchedAt     time.Time      `json:"fetchedAt"`
}
