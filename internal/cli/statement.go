package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NgigiN/ledger/internal/apperr"
)

type StatementOptions struct {
	*RootOptions
	Email string
}

func NewStatementCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatementOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "statement",
		Short: "Write an account's CSV statement to stdout",
		Long: `Write the CSV statement of the account registered under --email, in
the order its transactions were recorded.

Example:
  ledger statement --email alice@example.com > alice.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer a.Close()

			acc, err := a.db.FindAccountByEmail(cmd.Context(), opts.Email)
			if errors.Is(err, apperr.ErrNotFound) {
				return NewExitError(ExitFailure, fmt.Sprintf("no account registered under %s", opts.Email))
			}
			if err != nil {
				return WrapExitError(ExitFailure, "failed to look up account", err)
			}
			if err := a.engine.ExportStatement(cmd.Context(), acc.ID, cmd.OutOrStdout()); err != nil {
				return WrapExitError(ExitFailure, "failed to export statement", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "account email (required)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
