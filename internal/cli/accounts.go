package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/NgigiN/ledger/internal/storage"
)

type accountRow struct {
	ID      uint           `json:"id"`
	Name    string         `json:"name"`
	Email   string         `json:"email"`
	Balance int64          `json:"balance"`
	Status  storage.Status `json:"status"`
	Role    storage.Role   `json:"role"`
}

func NewAccountsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List every account with its balance",
		Long: `List every account, acting as the bootstrap admin. The listing is
recorded in the admin's audit log.

Example:
  ledger accounts
  ledger accounts --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			accounts, err := a.engine.Accounts(cmd.Context(), a.admin.ID)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list accounts", err)
			}
			rows := make([]accountRow, 0, len(accounts))
			for _, acc := range accounts {
				rows = append(rows, accountRow{
					ID:      acc.ID,
					Name:    acc.Name,
					Email:   acc.Email,
					Balance: acc.Balance,
					Status:  acc.Status,
					Role:    acc.Role,
				})
			}

			return emit(cmd.OutOrStdout(), opts.Format, rows, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tBALANCE\tSTATUS\tROLE")
				for _, r := range rows {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n", r.ID, r.Name, r.Email, r.Balance, r.Status, r.Role)
				}
				return tw.Flush()
			})
		},
	}
}
