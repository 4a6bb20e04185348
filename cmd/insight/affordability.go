package main

import (
	"fmt"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/insight"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func (a *app) affordabilityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "affordability",
		Short: "Compute housing, auto and vacation caps",
		Long: `Affordability applies the calculator to explicit figures, without a seed.

Example:
  insight affordability --income 4000 --rent 1200 --discretionary 900`,
		Args: cobra.NoArgs,
		RunE: a.runAffordability,
	}

	cmd.Flags().String("income", "", "monthly income (required)")
	cmd.Flags().String("rent", "0", "current monthly rent")
	cmd.Flags().String("discretionary", "0", "monthly discretionary spend (may be negative)")
	return cmd
}

func (a *app) runAffordability(cmd *cobra.Command, _ []string) error {
	income, err := decimalFlag(cmd, "income")
	if err != nil {
		return err
	}
	rent, err := decimalFlag(cmd, "rent")
	if err != nil {
		return err
	}
	discretionary, err := decimalFlag(cmd, "discretionary")
	if err != nil {
		return err
	}

	profile := &domain.UserProfile{UserID: "cli", MonthlyIncome: income}
	result, err := insight.NewEngine(insight.Options{}).ComputeAffordability(profile, discretionary, rent)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func decimalFlag(cmd *cobra.Command, name string) (decimal.Decimal, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("--%s is required", name)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s %q: %w", name, raw, err)
	}
	return d, nil
}
