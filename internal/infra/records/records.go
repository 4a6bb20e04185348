// Package records converts loosely-typed store rows into validated domain
// records. Every adapter (Supabase, PostgreSQL, seed file) decodes into these
// row types and goes through the Normalize* functions, so defaults are applied
// in exactly one place: empty category → "uncategorized", empty status →
// "active", missing numbers → 0.
package records

import (
	"strings"
	"time"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/validation"

	"github.com/shopspring/decimal"
)

// DefaultCategory is assigned to transactions stored without a category.
const DefaultCategory = "uncategorized"

// ProfileRow is a user_profiles row.
type ProfileRow struct {
	UserID            string              `json:"user_id"`
	Email             *string             `json:"email"`
	MonthlyIncome     decimal.NullDecimal `json:"monthly_income"`
	EssentialExpenses decimal.NullDecimal `json:"essential_expenses"`
	Rent              decimal.NullDecimal `json:"rent"`
	Utilities         decimal.NullDecimal `json:"utilities"`
	Groceries         decimal.NullDecimal `json:"groceries"`
	Insurance         decimal.NullDecimal `json:"insurance"`
	Debt              decimal.NullDecimal `json:"debt"`
	MonthlyBudget     decimal.NullDecimal `json:"monthly_budget"`
}

// TransactionRow is a transactions row.
type TransactionRow struct {
	ID         string              `json:"id"`
	UserID     string              `json:"user_id"`
	Amount     decimal.NullDecimal `json:"amount"`
	Category   *string             `json:"category"`
	Merchant   *string             `json:"merchant"`
	OccurredAt *time.Time          `json:"occurred_at"`
}

// SubscriptionRow is a subscriptions row.
type SubscriptionRow struct {
	ID            string              `json:"id"`
	UserID        string              `json:"user_id"`
	Merchant      string              `json:"merchant"`
	Plan          *string             `json:"plan"`
	Category      *string             `json:"category"`
	MonthlyAmount decimal.NullDecimal `json:"monthly_amount"`
	DaysUsed      *int                `json:"days_used"`
	Status        *string             `json:"status"`
}

// AccountRow is an accounts row.
type AccountRow struct {
	ID      string              `json:"id"`
	UserID  string              `json:"user_id"`
	Name    *string             `json:"name"`
	Kind    *string             `json:"kind"`
	Balance decimal.NullDecimal `json:"balance"`
}

// MonthlyTotalRow is a monthly_totals row.
type MonthlyTotalRow struct {
	UserID   string          `json:"user_id"`
	MonthKey string          `json:"month_key"`
	Total    decimal.Decimal `json:"total"`
}

// NormalizeProfile converts and validates a profile row. The itemised
// breakdown is kept only when at least one of its columns is set.
func NormalizeProfile(row ProfileRow) (*domain.UserProfile, error) {
	p := &domain.UserProfile{
		UserID:            row.UserID,
		Email:             str(row.Email),
		MonthlyIncome:     num(row.MonthlyIncome),
		EssentialExpenses: num(row.EssentialExpenses),
		MonthlyBudget:     num(row.MonthlyBudget),
	}
	if row.Rent.Valid || row.Utilities.Valid || row.Groceries.Valid || row.Insurance.Valid || row.Debt.Valid {
		p.Essentials = &domain.EssentialBreakdown{
			Rent:      num(row.Rent),
			Utilities: num(row.Utilities),
			Groceries: num(row.Groceries),
			Insurance: num(row.Insurance),
			Debt:      num(row.Debt),
		}
	}
	if err := validation.Struct(p); err != nil {
		return nil, err
	}
	return p, nil
}

// NormalizeTransactions converts and validates transaction rows in order.
func NormalizeTransactions(rows []TransactionRow) ([]domain.Transaction, error) {
	out := make([]domain.Transaction, 0, len(rows))
	for i, row := range rows {
		tx := domain.Transaction{
			ID:       row.ID,
			Amount:   num(row.Amount),
			Category: strings.TrimSpace(str(row.Category)),
			Merchant: str(row.Merchant),
		}
		if tx.Category == "" {
			tx.Category = DefaultCategory
		}
		if row.OccurredAt != nil {
			tx.Timestamp = row.OccurredAt.UTC()
		}
		if err := validation.Element("transactions", i, tx); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// NormalizeSubscriptions converts and validates subscription rows in order.
func NormalizeSubscriptions(rows []SubscriptionRow) ([]domain.Subscription, error) {
	out := make([]domain.Subscription, 0, len(rows))
	for i, row := range rows {
		s := domain.Subscription{
			ID:            row.ID,
			Merchant:      row.Merchant,
			Plan:          str(row.Plan),
			Category:      str(row.Category),
			MonthlyAmount: num(row.MonthlyAmount),
			Status:        domain.SubscriptionStatus(strings.ToLower(strings.TrimSpace(str(row.Status)))),
		}
		if row.DaysUsed != nil {
			s.DaysUsedInPeriod = *row.DaysUsed
		}
		if s.Status == "" {
			s.Status = domain.SubscriptionActive
		}
		if err := validation.Element("subscriptions", i, s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// NormalizeAccounts converts and validates account rows in order.
func NormalizeAccounts(rows []AccountRow) ([]domain.Account, error) {
	out := make([]domain.Account, 0, len(rows))
	for i, row := range rows {
		a := domain.Account{
			ID:      row.ID,
			Name:    str(row.Name),
			Kind:    strings.ToLower(str(row.Kind)),
			Balance: num(row.Balance),
		}
		if err := validation.Element("accounts", i, a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// TransactionToRow is the inverse used for inserts.
func TransactionToRow(userID string, tx *domain.Transaction) TransactionRow {
	row := TransactionRow{
		ID:         tx.ID,
		UserID:     userID,
		Amount:     decimal.NewNullDecimal(tx.Amount),
		OccurredAt: &tx.Timestamp,
	}
	if tx.Category != "" {
		row.Category = &tx.Category
	}
	if tx.Merchant != "" {
		row.Merchant = &tx.Merchant
	}
	return row
}

func num(n decimal.NullDecimal) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	return n.Decimal
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
