package cli

import (
	"context"
	"errors"

	"github.com/NgigiN/ledger/internal/auth"
	"github.com/NgigiN/ledger/internal/ledger"
	"github.com/NgigiN/ledger/internal/notify"
	"github.com/NgigiN/ledger/internal/storage"
)

// app is the wired set of components every command works against.
type app struct {
	db       *storage.Database
	gateway  *auth.Gateway
	engine   *ledger.Engine
	admin    storage.Account
	notifier notify.Notifier
	discord  *notify.Discord
}

// openApp opens the database (migrating it), bootstraps the admin account
// and wires the gateway and engine.
func openApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg := opts.cfg
	log := opts.log

	db, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "failed to open database", err)
	}
	a := &app{db: db, notifier: notify.Nop{}}

	if cfg.NotificationsEnabled() {
		d, err := notify.NewDiscord(cfg.DiscordBotToken, cfg.DiscordChannelId)
		if err != nil {
			db.Close()
			return nil, WrapExitError(ExitCommandError, "failed to set up discord notifications", err)
		}
		a.discord, a.notifier = d, d
		log.Info("discord notifications enabled", "channel", cfg.DiscordChannelId)
	}

	a.gateway = auth.New(db,
		auth.WithHasher(auth.NewBcryptHasher(cfg.BcryptCost)),
		auth.WithTTLs(cfg.LoginTTL, cfg.RecoveryTTL),
		auth.WithNotifier(a.notifier),
		auth.WithLogger(log),
	)
	a.engine = ledger.New(db, a.gateway,
		ledger.WithNotifier(a.notifier),
		ledger.WithLogger(log),
	)

	admin, created, err := a.gateway.Bootstrap(ctx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.Phone)
	if err != nil {
		a.Close()
		return nil, WrapExitError(ExitFailure, "failed to bootstrap admin account", err)
	}
	if created {
		log.Info("admin account created", "email", admin.Email)
	} else {
		log.Debug("admin account already exists", "email", admin.Email)
	}
	a.admin = admin
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if a.discord != nil {
		errs = append(errs, a.discord.Close())
	}
	errs = append(errs, a.db.Close())
	return errors.Join(errs...)
}
