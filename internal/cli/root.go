package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/NgigiN/ledger/internal/config"
)

// RootOptions holds global flags and the configuration resolved before any
// subcommand runs.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string

	cfg *config.Config
	log *slog.Logger
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Account ledger service",
		Long:  "A small account ledger: registration, bearer login, transfers, admin credits and CSV statements over HTTP.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			cfg, err := config.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}
			if opts.Database != "" {
				cfg.DatabasePath = opts.Database
			}
			opts.cfg = cfg

			level := cfg.SlogLevel()
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			slog.SetDefault(opts.log)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides LEDGER_DB_PATH)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewAccountsCommand(opts))
	cmd.AddCommand(NewStatementCommand(opts))

	return cmd
}
