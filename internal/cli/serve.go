package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/NgigiN/ledger/internal/discord"
	"github.com/NgigiN/ledger/internal/server"
)

const purgeInterval = 10 * time.Minute

type ServeOptions struct {
	*RootOptions
	Addr string
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Open (and migrate) the database, make sure the admin account exists,
then serve the HTTP API until SIGINT or SIGTERM.

Example:
  ledger serve
  ledger serve --addr 127.0.0.1:8080 --db /var/lib/ledger.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides LEDGER_LISTEN_ADDR)")
	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			opts.log.Error("error closing resources", "error", err)
		}
	}()

	addr := opts.cfg.ListenAddr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	if opts.cfg.NotificationsEnabled() {
		bot, err := discord.NewBot(opts.cfg.DiscordBotToken, opts.cfg.DiscordChannelId, a.db, opts.log)
		if err == nil {
			err = bot.Start()
		}
		if err != nil {
			opts.log.Warn("discord chat commands unavailable", "error", err)
		} else {
			defer bot.Stop()
			opts.log.Info("discord chat commands enabled")
		}
	}

	purgeCtx, cancelPurge := context.WithCancel(ctx)
	defer cancelPurge()
	go purgeLoop(purgeCtx, a, opts)

	srv := server.New(a.engine, a.gateway, a.db, server.WithLogger(opts.log))
	fmt.Fprintf(cmd.OutOrStdout(), "Ledger listening on %s\n", addr)
	if err := srv.Run(ctx, addr); err != nil {
		return WrapExitError(ExitFailure, "http server error", err)
	}
	opts.log.Info("ledger stopped gracefully")
	return nil
}

// purgeLoop drops expired bearer assertions until ctx is canceled.
func purgeLoop(ctx context.Context, a *app, opts *ServeOptions) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := a.gateway.PurgeExpired(ctx)
			if err != nil {
				opts.log.Warn("assertion purge failed", "error", err)
				continue
			}
			if n > 0 {
				opts.log.Debug("expired assertions purged", "count", n)
			}
		}
	}
}
