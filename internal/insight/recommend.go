package insight

import (
	"fmt"
	"sort"
	"strings"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LowUsageMaxDays is the highest DaysUsedInPeriod still flagged as low usage.
const LowUsageMaxDays = 4

var (
	discretionaryActionRate = decimal.RequireFromString("0.2")
	discretionaryCutRate    = decimal.RequireFromString("0.1")
	emergencyFundRate       = decimal.RequireFromString("0.15")
)

// actionNamespace scopes the name-based UUIDs of action items.
var actionNamespace = uuid.MustParse("6f1c1b8e-2f4b-5a59-9a7e-3d0c2b1f7a10")

// ActionID returns the stable identifier of the item produced by a rule.
func ActionID(kind domain.ActionKind) string {
	return uuid.NewSHA1(actionNamespace, []byte(kind)).String()
}

// RecommendationInput is the generator contract.
type RecommendationInput struct {
	MonthlyIncome     decimal.Decimal
	EssentialExpenses decimal.Decimal
	Spending          domain.SpendingAggregate
	Subscriptions     []domain.Subscription
}

// LowUsage returns the active subscriptions used at most LowUsageMaxDays days, in input order.
func LowUsage(subs []domain.Subscription) []domain.Subscription {
	out := []domain.Subscription{}
	for _, s := range subs {
		if s.Active() && s.DaysUsedInPeriod <= LowUsageMaxDays {
			out = append(out, s)
		}
	}
	return out
}

// Recommend builds the ranked action plan. Each rule is evaluated independently;
// the result is sorted by projected savings descending, ties keeping rule order.
// Zero income or an empty transaction set yields an empty plan flagged as
// insufficient data.
func Recommend(in RecommendationInput) domain.ActionPlan {
	if !in.MonthlyIncome.IsPositive() || in.Spending.TransactionCount == 0 {
		return domain.ActionPlan{Items: []domain.ActionItem{}, InsufficientData: true}
	}

	discretionary := in.Spending.TotalSpend.Sub(in.EssentialExpenses)
	remaining := in.MonthlyIncome.Sub(in.Spending.TotalSpend)

	items := []domain.ActionItem{}

	if flagged := LowUsage(in.Subscriptions); len(flagged) > 0 {
		savings := decimal.Zero
		merchants := make([]string, 0, len(flagged))
		for _, s := range flagged {
			savings = savings.Add(s.MonthlyAmount)
			merchants = append(merchants, s.Merchant)
		}
		items = append(items, newItem(domain.ActionLowUsageSubscriptions, domain.PriorityHigh,
			"Review low-usage subscriptions",
			fmt.Sprintf("Cancel or pause subscriptions you rarely use this month: %s.", strings.Join(merchants, ", ")),
			savings))
	}

	if discretionary.GreaterThan(in.MonthlyIncome.Mul(discretionaryActionRate)) {
		items = append(items, newItem(domain.ActionReduceDiscretionary, domain.PriorityMedium,
			"Reduce discretionary spending",
			fmt.Sprintf("Discretionary spending is $%s this period. Aim for a 10%% reduction.", discretionary.StringFixed(2)),
			discretionary.Mul(discretionaryCutRate)))
	}

	if remaining.IsPositive() {
		items = append(items, newItem(domain.ActionGrowEmergencyFund, domain.PriorityLow,
			"Grow emergency fund",
			"Move 15% of leftover cash into savings each month.",
			remaining.Mul(emergencyFundRate)))
	} else {
		items = append(items, newItem(domain.ActionBalanceBudget, domain.PriorityHigh,
			"Balance your budget",
			fmt.Sprintf("Spending exceeds income by $%s. Trim expenses before adding new commitments.", remaining.Neg().StringFixed(2)),
			decimal.Zero))
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ProjectedMonthlySavings.GreaterThan(items[j].ProjectedMonthlySavings)
	})

	return domain.ActionPlan{Items: items}
}

func newItem(kind domain.ActionKind, p domain.Priority, title, desc string, savings decimal.Decimal) domain.ActionItem {
	return domain.ActionItem{
		ID:                      ActionID(kind),
		Kind:                    kind,
		Priority:                p,
		Title:                   title,
		Description:             desc,
		ProjectedMonthlySavings: savings.Round(2),
	}
}
