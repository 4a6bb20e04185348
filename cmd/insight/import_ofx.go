package main

import (
	"fmt"
	"os"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/ofx"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) importOFXCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-ofx <file>",
		Short: "Print the normalised transactions of an OFX/QFX statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening statement: %w", err)
			}
			defer f.Close()

			stmt, err := ofx.Parse(f)
			if err != nil {
				return err
			}
			a.logger.Info("statement parsed",
				zap.String("file", args[0]),
				zap.Strings("accounts", stmt.Accounts),
				zap.Int("transactions", len(stmt.Transactions)),
			)
			return printJSON(cmd.OutOrStdout(), stmt)
		},
	}
}
