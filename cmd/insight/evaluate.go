package main

import (
	"fmt"
	"os"
	"time"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/memstore"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/ofx"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/insight"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Print the full insight report for one user",
		Long: `Evaluate loads a seed document, optionally appends the transactions of an
OFX statement to the user, and prints the insight report as JSON.

Examples:
  insight evaluate --seed seed/seed.json --user u-1
  insight evaluate --seed seed/seed.json --user u-1 --ofx ~/Downloads/jan.qfx --window all`,
		Args: cobra.NoArgs,
		RunE: a.runEvaluate,
	}

	cmd.Flags().String("seed", "", "seed JSON document (required)")
	cmd.Flags().String("user", "", "user ID to evaluate (required)")
	cmd.Flags().String("ofx", "", "OFX/QFX statement to append to the user's transactions")
	cmd.Flags().String("window", string(service.WindowMonth), "transaction window (month, trailing30, all)")
	cmd.Flags().String("as-of", "", "evaluation time, RFC 3339 (default: now)")
	cmd.Flags().Bool("subscription-penalty", false, "deduct 5 points when any subscription is barely used")

	for _, name := range []string{"seed", "user", "ofx", "window", "as-of", "subscription-penalty"} {
		_ = a.v.BindPFlag(name, cmd.Flags().Lookup(name))
	}
	return cmd
}

func (a *app) runEvaluate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	seedPath := a.v.GetString("seed")
	userID := a.v.GetString("user")
	if seedPath == "" || userID == "" {
		return fmt.Errorf("--seed and --user are required")
	}

	mode, err := service.ParseWindowMode(a.v.GetString("window"))
	if err != nil {
		return err
	}
	asOf := time.Now().UTC()
	if s := a.v.GetString("as-of"); s != "" {
		if asOf, err = time.Parse(time.RFC3339, s); err != nil {
			return fmt.Errorf("invalid --as-of: %w", err)
		}
	}

	store, err := memstore.LoadFile(seedPath)
	if err != nil {
		return err
	}

	if path := a.v.GetString("ofx"); path != "" {
		n, err := appendStatement(cmd, store, userID, path)
		if err != nil {
			return err
		}
		a.logger.Info("statement imported", zap.String("file", path), zap.Int("transactions", n))
	}

	window := mode.Window(asOf)
	snap := &domain.Snapshot{Window: window, FetchedAt: asOf}
	if snap.Profile, err = store.GetUserProfile(ctx, userID); err != nil {
		return err
	}
	if snap.Transactions, err = store.GetTransactions(ctx, userID, window); err != nil {
		return err
	}
	if snap.Subscriptions, err = store.GetSubscriptions(ctx, userID); err != nil {
		return err
	}
	if snap.Accounts, err = store.GetAccounts(ctx, userID); err != nil {
		return err
	}

	engine := insight.NewEngine(insight.Options{SubscriptionWastePenalty: a.v.GetBool("subscription-penalty")})
	report, err := engine.Evaluate(snap)
	if err != nil {
		return err
	}

	a.logger.Debug("report generated",
		zap.String("user_id", userID),
		zap.Int("score", report.Wellness.Score),
		zap.Int("transactions", len(snap.Transactions)),
	)
	return printJSON(cmd.OutOrStdout(), report)
}

func appendStatement(cmd *cobra.Command, store *memstore.Store, userID, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening statement: %w", err)
	}
	defer f.Close()

	stmt, err := ofx.Parse(f)
	if err != nil {
		return 0, err
	}
	for i := range stmt.Transactions {
		if _, err := store.InsertTransaction(cmd.Context(), userID, &stmt.Transactions[i]); err != nil {
			return 0, fmt.Errorf("importing %s: %w", stmt.Transactions[i].ID, err)
		}
	}
	return len(stmt.Transactions), nil
}
