// Package insight is the financial insight engine: pure, stateless functions
// turning a user's profile, transactions and subscriptions into a spending
// aggregate, a wellness score, a ranked action plan and affordability caps.
//
// Nothing here performs I/O or keeps state between calls. Identical inputs
// always produce identical outputs.
package insight

import (
	"sort"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

// MonthDays is the divisor used for average daily spend on "monthly" computations.
const MonthDays = 30

// UncategorizedCategory is reported for outflows with an empty category.
const UncategorizedCategory = "uncategorized"

var hundred = decimal.NewFromInt(100)

// Aggregate reduces transactions into spending totals. When window is non-nil
// only transactions inside [Start, End) are counted. The input is never mutated.
func Aggregate(txns []domain.Transaction, window *domain.Window) domain.SpendingAggregate {
	days := MonthDays
	if window != nil && window.Days() < MonthDays {
		days = window.Days()
	}

	agg := domain.SpendingAggregate{
		TotalSpend:         decimal.Zero,
		TotalIncome:        decimal.Zero,
		SpendingByCategory: map[string]decimal.Decimal{},
		TopCategories:      []domain.CategoryTotal{},
		AverageDailySpend:  decimal.Zero,
		Days:               days,
	}

	for _, t := range txns {
		if window != nil && !window.Contains(t.Timestamp) {
			continue
		}
		agg.TransactionCount++

		switch {
		case t.Amount.IsNegative():
			out := t.Amount.Abs()
			agg.OutflowCount++
			agg.TotalSpend = agg.TotalSpend.Add(out)

			cat := t.Category
			if cat == "" {
				cat = UncategorizedCategory
			}
			agg.SpendingByCategory[cat] = agg.SpendingByCategory[cat].Add(out)
		case t.Amount.IsPositive():
			agg.TotalIncome = agg.TotalIncome.Add(t.Amount)
		}
	}

	if agg.TotalSpend.IsZero() {
		return agg
	}

	agg.AverageDailySpend = agg.TotalSpend.Div(decimal.NewFromInt(int64(days))).Round(2)
	agg.TopCategories = rankCategories(agg.SpendingByCategory, agg.TotalSpend)
	return agg
}

// rankCategories sorts categories by total descending, ties by name.
func rankCategories(byCategory map[string]decimal.Decimal, total decimal.Decimal) []domain.CategoryTotal {
	out := make([]domain.CategoryTotal, 0, len(byCategory))
	for cat, sum := range byCategory {
		out = append(out, domain.CategoryTotal{
			Category: cat,
			Total:    sum,
			Share:    sum.Mul(hundred).Div(total).Round(2),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}
