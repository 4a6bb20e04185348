package insight

import (
	"strings"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	maxSuggested         = 3
	cancelCostThreshold  = 20
	cancelUsageThreshold = 5
)

// ReviewSubscriptions builds the optimisation view over active subscriptions:
// low-usage ones, the top suggestions and the IDs worth cancelling
// (duplicated merchant+plan, or expensive and barely used).
func ReviewSubscriptions(subs []domain.Subscription) domain.SubscriptionReview {
	rev := domain.SubscriptionReview{
		ActiveMonthlyTotal:      decimal.Zero,
		LowUsage:                LowUsage(subs),
		Suggested:               []domain.Subscription{},
		SuggestedMonthlySavings: decimal.Zero,
		SuggestedYearlySavings:  decimal.Zero,
		Duplicates:              []domain.Subscription{},
		CancelCandidates:        []string{},
	}

	for i, s := range rev.LowUsage {
		if i == maxSuggested {
			break
		}
		rev.Suggested = append(rev.Suggested, s)
		rev.SuggestedMonthlySavings = rev.SuggestedMonthlySavings.Add(s.MonthlyAmount)
	}
	rev.SuggestedYearlySavings = rev.SuggestedMonthlySavings.Mul(decimal.NewFromInt(12))

	costLimit := decimal.NewFromInt(cancelCostThreshold)
	seen := map[string]bool{}
	candidates := map[string]bool{}
	addCandidate := func(id string) {
		if id == "" || candidates[id] {
			return
		}
		candidates[id] = true
		rev.CancelCandidates = append(rev.CancelCandidates, id)
	}

	for _, s := range subs {
		if !s.Active() {
			continue
		}
		rev.ActiveMonthlyTotal = rev.ActiveMonthlyTotal.Add(s.MonthlyAmount)

		key := strings.ToLower(strings.TrimSpace(s.Merchant)) + "|" + strings.ToLower(strings.TrimSpace(s.Plan))
		if seen[key] {
			rev.Duplicates = append(rev.Duplicates, s)
			addCandidate(s.ID)
		} else {
			seen[key] = true
		}

		if s.MonthlyAmount.GreaterThan(costLimit) && s.DaysUsedInPeriod < cancelUsageThreshold {
			addCandidate(s.ID)
		}
	}
	return rev
}
