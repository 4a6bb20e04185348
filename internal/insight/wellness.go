package insight

import (
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

// Score bounds and the zero-income default.
const (
	MaxScore              = 100
	MinScore              = 20
	InsufficientDataScore = 50
)

// Penalty codes.
const (
	PenaltyEssentialsOverload = "essentials_overload"
	PenaltyHighDiscretionary  = "high_discretionary_spend"
	PenaltyLowBuffer          = "insufficient_savings_buffer"
	PenaltySubscriptionWaste  = "subscription_waste"
)

var (
	essentialsRatioLimit   = decimal.RequireFromString("0.5")
	discretionaryScoreRate = decimal.RequireFromString("0.3")
	bufferRate             = decimal.RequireFromString("0.1")
)

// WellnessInput is the scorer contract. LowUsageSubscriptionCount is optional:
// nil means the signal was not supplied.
type WellnessInput struct {
	MonthlyIncome             decimal.Decimal
	EssentialExpenses         decimal.Decimal
	TotalSpend                decimal.Decimal
	LowUsageSubscriptionCount *int
}

// ScoreOptions toggles rules that are not part of the base penalty model.
type ScoreOptions struct {
	SubscriptionWastePenalty bool
}

// Score computes the 0-100 wellness score with the additive penalty model.
// It never fails: zero income yields InsufficientDataScore with grade Fair.
func Score(in WellnessInput, opts ScoreOptions) domain.WellnessResult {
	discretionary := in.TotalSpend.Sub(in.EssentialExpenses)
	remaining := in.MonthlyIncome.Sub(in.TotalSpend)

	res := domain.WellnessResult{
		Penalties:          []domain.Penalty{},
		EssentialsRatio:    decimal.Zero,
		DiscretionarySpend: discretionary,
		RemainingBudget:    remaining,
	}

	if !in.MonthlyIncome.IsPositive() {
		res.Score = InsufficientDataScore
		res.Grade = GradeFor(InsufficientDataScore)
		res.InsufficientData = true
		return res
	}

	ratio := in.EssentialExpenses.Div(in.MonthlyIncome)
	res.EssentialsRatio = ratio.Round(4)

	score := MaxScore
	apply := func(code, label string, points int) {
		score -= points
		res.Penalties = append(res.Penalties, domain.Penalty{Code: code, Label: label, Points: points})
	}

	if ratio.GreaterThan(essentialsRatioLimit) {
		apply(PenaltyEssentialsOverload, "essentials overload", 15)
	}
	if discretionary.GreaterThan(in.MonthlyIncome.Mul(discretionaryScoreRate)) {
		apply(PenaltyHighDiscretionary, "high discretionary spend", 20)
	}
	if remaining.LessThan(in.MonthlyIncome.Mul(bufferRate)) {
		apply(PenaltyLowBuffer, "insufficient savings buffer", 15)
	}
	if opts.SubscriptionWastePenalty && in.LowUsageSubscriptionCount != nil && *in.LowUsageSubscriptionCount > 0 {
		apply(PenaltySubscriptionWaste, "subscription waste", 5)
	}

	res.Score = clamp(score, MinScore, MaxScore)
	res.Grade = GradeFor(res.Score)
	return res
}

// GradeFor maps a score to its label.
func GradeFor(score int) domain.Grade {
	switch {
	case score >= 80:
		return domain.GradeExcellent
	case score >= 60:
		return domain.GradeGood
	case score >= 40:
		return domain.GradeFair
	default:
		return domain.GradeNeedsImprovement
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
