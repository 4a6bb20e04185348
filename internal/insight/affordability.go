package insight

import (
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

// Warning codes attached to an Affordability result.
const (
	WarnHousingOverCap        = "housing_over_cap"
	WarnNegativeDiscretionary = "negative_discretionary"
	WarnAutoCapNonPositive    = "auto_cap_non_positive"
	WarnVacationNonPositive   = "vacation_budget_non_positive"
)

const vacationMonths = 6

var (
	housingRate        = decimal.RequireFromString("0.35")
	autoIncomeRate     = decimal.RequireFromString("0.10")
	autoDiscretionRate = decimal.RequireFromString("0.35")
	vacationRate       = decimal.RequireFromString("0.20")
)

// AffordabilityInput is the calculator contract.
type AffordabilityInput struct {
	MonthlyIncome      decimal.Decimal
	DiscretionarySpend decimal.Decimal
	CurrentRent        decimal.Decimal
}

// ComputeAffordability derives the housing, auto and vacation caps. Negative
// inputs propagate to negative or zero outputs and are reported as warnings.
func ComputeAffordability(in AffordabilityInput) domain.Affordability {
	housingCap := in.MonthlyIncome.Mul(housingRate)
	headroom := housingCap.Sub(in.CurrentRent)

	usage := decimal.Zero
	if housingCap.IsPositive() {
		usage = decimal.Min(in.CurrentRent.Mul(hundred).Div(housingCap), hundred)
	}

	autoCap := decimal.Min(in.MonthlyIncome.Mul(autoIncomeRate), in.DiscretionarySpend.Mul(autoDiscretionRate))
	vacation := in.DiscretionarySpend.Mul(vacationRate)

	res := domain.Affordability{
		HousingCap:            housingCap.Round(2),
		HousingHeadroom:       headroom.Round(2),
		HousingUsagePercent:   usage.Round(2),
		AutoCap:               autoCap.Round(2),
		VacationMonthlyBudget: vacation.Round(2),
		VacationSixMonthTotal: vacation.Mul(decimal.NewFromInt(vacationMonths)).Round(2),
	}

	if headroom.IsNegative() {
		res.Warnings = append(res.Warnings, WarnHousingOverCap)
	}
	if in.DiscretionarySpend.IsNegative() {
		res.Warnings = append(res.Warnings, WarnNegativeDiscretionary)
	}
	if !autoCap.IsPositive() {
		res.Warnings = append(res.Warnings, WarnAutoCapNonPositive)
	}
	if !vacation.IsPositive() {
		res.Warnings = append(res.Warnings, WarnVacationNonPositive)
	}
	return res
}
