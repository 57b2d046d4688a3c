// Package server exposes the ledger over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/NgigiN/ledger/internal/auth"
	"github.com/NgigiN/ledger/internal/ledger"
	"github.com/NgigiN/ledger/internal/storage"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	engine    *ledger.Engine
	auth      *auth.Gateway
	db        *storage.Database
	log       *slog.Logger
	startTime time.Time
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

func New(engine *ledger.Engine, gw *auth.Gateway, db *storage.Database, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		auth:      gw,
		db:        db,
		log:       slog.Default(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the full handler chain.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.index)
	mux.HandleFunc("GET /health", s.health)

	mux.HandleFunc("POST /register", s.register)
	mux.HandleFunc("POST /login", s.login)
	mux.HandleFunc("POST /recover", s.recoverAccount)
	mux.HandleFunc("POST /reset-password", s.requireAuth(s.resetPassword, storage.PurposeLogin, storage.PurposeRecovery))

	mux.HandleFunc("GET /account", s.requireAuth(s.getAccount))
	mux.HandleFunc("PUT /account", s.requireAuth(s.updateAccount))
	mux.HandleFunc("POST /transfer", s.requireAuth(s.transfer))
	mux.HandleFunc("GET /transactions/history", s.requireAuth(s.history))
	mux.HandleFunc("GET /transactions/download", s.requireAuth(s.download))

	mux.HandleFunc("GET /admin/accounts", s.requireAdmin(s.adminAccounts))
	mux.HandleFunc("POST /admin/add-funds", s.requireAdmin(s.adminAddFunds))

	return s.logRequests(mux)
}

// Run listens on addr and serves until ctx is canceled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then drains
// in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
