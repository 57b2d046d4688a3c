// Package auth verifies credentials, issues bearer assertions and classifies
// privilege. Passwords never leave this package in plaintext form.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/NgigiN/ledger/internal/apperr"
	"github.com/NgigiN/ledger/internal/notify"
	"github.com/NgigiN/ledger/internal/storage"
)

const (
	DefaultLoginTTL    = 2 * time.Hour
	DefaultRecoveryTTL = 10 * time.Minute

	// AdminName is the display name given to the bootstrap admin. It carries
	// no privilege; the role field does.
	AdminName = "Admin"
)

// Assertion is an issued bearer credential. Token is only ever returned
// here; storage keeps its digest.
type Assertion struct {
	Token     string
	AccountID uint
	Purpose   storage.Purpose
	ExpiresAt time.Time
}

// Identity is the caller resolved from a valid bearer token.
type Identity struct {
	AccountID   uint
	Purpose     storage.Purpose
	AssertionID string
	ExpiresAt   time.Time
}

// Registration holds the fields submitted to Register.
type Registration struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// Gateway is the authentication gateway.
type Gateway struct {
	db          *storage.Database
	hasher      Hasher
	loginTTL    time.Duration
	recoveryTTL time.Duration
	now         func() time.Time
	newID       func() string
	notifier    notify.Notifier
	log         *slog.Logger
}

type Option func(*Gateway)

func WithHasher(h Hasher) Option {
	return func(g *Gateway) { g.hasher = h }
}

// WithTTLs overrides assertion lifetimes. Non-positive values keep the
// defaults.
func WithTTLs(login, recovery time.Duration) Option {
	return func(g *Gateway) {
		if login > 0 {
			g.loginTTL = login
		}
		if recovery > 0 {
			g.recoveryTTL = recovery
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

func WithNotifier(n notify.Notifier) Option {
	return func(g *Gateway) { g.notifier = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

func New(db *storage.Database, opts ...Option) *Gateway {
	g := &Gateway{
		db:          db,
		hasher:      NewBcryptHasher(0),
		loginTTL:    DefaultLoginTTL,
		recoveryTTL: DefaultRecoveryTTL,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.Must(uuid.NewV7()).String() },
		notifier:    notify.Nop{},
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register creates a user account with a hashed password.
func (g *Gateway) Register(ctx context.Context, r Registration) (storage.Account, error) {
	return g.register(ctx, r, storage.RoleUser)
}

func (g *Gateway) register(ctx context.Context, r Registration, role storage.Role) (storage.Account, error) {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	switch {
	case r.Name == "":
		return storage.Account{}, apperr.New(apperr.KindInvalidInput, "name is required")
	case r.Email == "" || !strings.Contains(r.Email, "@"):
		return storage.Account{}, apperr.New(apperr.KindInvalidInput, "a valid email is required")
	case r.Password == "":
		return storage.Account{}, apperr.New(apperr.KindInvalidInput, "password is required")
	}

	hash, err := g.hash(r.Password)
	if err != nil {
		return storage.Account{}, err
	}
	a, err := g.db.CreateAccount(ctx, storage.NewAccount{
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		return storage.Account{}, err
	}
	g.log.Info("account registered", "account", a.ID, "role", a.Role)
	return a, nil
}

// Login verifies credentials and issues a login assertion. Unknown email and
// wrong password produce the same error.
func (g *Gateway) Login(ctx context.Context, email, password, device string) (Assertion, error) {
	a, err := g.db.FindAccountByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return Assertion{}, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return Assertion{}, err
	}
	if err := g.hasher.Compare(a.PasswordHash, password); err != nil {
		return Assertion{}, apperr.ErrInvalidCredentials
	}

	as, err := g.issue(ctx, a.ID, storage.PurposeLogin, g.loginTTL)
	if err != nil {
		return Assertion{}, err
	}
	if err := g.db.AppendAuthEvent(ctx, &storage.AuthenticationEvent{
		AccountID:   a.ID,
		Login:       g.now(),
		Device:      device,
		Description: "login",
	}); err != nil {
		g.log.Warn("auth event write failed", "account", a.ID, "error", err)
	}
	return as, nil
}

// Authenticate resolves a bearer token. Expiry is checked here, at entry,
// and nowhere else.
func (g *Gateway) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, apperr.New(apperr.KindUnauthorized, "missing token")
	}
	a, err := g.db.FindAssertion(ctx, digestOf(token))
	if err != nil {
		return Identity{}, err
	}
	if !g.now().Before(a.ExpiresAt) {
		return Identity{}, apperr.New(apperr.KindUnauthorized, "token expired")
	}
	return Identity{
		AccountID:   a.AccountID,
		Purpose:     a.Purpose,
		AssertionID: a.ID,
		ExpiresAt:   a.ExpiresAt,
	}, nil
}

// IsAdmin reports whether accountID holds the admin role. Any lookup failure
// answers false.
func (g *Gateway) IsAdmin(ctx context.Context, accountID uint) bool {
	a, err := g.db.GetAccount(ctx, accountID)
	if err != nil {
		g.log.Debug("admin check failed closed", "account", accountID, "error", err)
		return false
	}
	return a.Role == storage.RoleAdmin
}

// InitiateRecovery issues a short-lived recovery assertion for email.
// No second factor is verified.
func (g *Gateway) InitiateRecovery(ctx context.Context, email string) (Assertion, error) {
	a, err := g.db.FindAccountByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return Assertion{}, apperr.New(apperr.KindNotFound, "Email not found")
	}
	if err != nil {
		return Assertion{}, err
	}

	as, err := g.issue(ctx, a.ID, storage.PurposeRecovery, g.recoveryTTL)
	if err != nil {
		return Assertion{}, err
	}
	g.audit(ctx, a.ID, storage.ActionRecoveryInitiated, fmt.Sprintf("recovery token issued, expires %s", as.ExpiresAt.Format(time.RFC3339)))
	return as, nil
}

// ResetPassword overwrites the caller's password. A recovery assertion is
// consumed by a successful reset.
func (g *Gateway) ResetPassword(ctx context.Context, id Identity, newPassword string) error {
	if newPassword == "" {
		return apperr.New(apperr.KindInvalidInput, "new_password is required")
	}
	a, err := g.db.GetAccount(ctx, id.AccountID)
	if err != nil {
		return err
	}
	hash, err := g.hash(newPassword)
	if err != nil {
		return err
	}
	if err := g.db.SetPasswordHash(ctx, a.ID, hash); err != nil {
		return err
	}

	if id.Purpose == storage.PurposeRecovery {
		if err := g.db.DeleteAssertion(ctx, id.AssertionID); err != nil {
			g.log.Warn("recovery token revoke failed", "account", a.ID, "error", err)
		}
	}
	g.audit(ctx, a.ID, storage.ActionPasswordReset, fmt.Sprintf("password reset via %s token", id.Purpose))
	g.log.Info("password reset", "account", a.ID, "purpose", id.Purpose)

	if err := g.notifier.Notify(ctx, notify.Event{
		Kind:      notify.EventPasswordReset,
		AccountID: a.ID,
		Email:     a.Email,
		At:        g.now(),
	}); err != nil {
		g.log.Warn("notification failed", "kind", notify.EventPasswordReset, "error", err)
	}
	return nil
}

// Bootstrap creates the admin account unless email is already registered.
// It reports whether an account was created.
func (g *Gateway) Bootstrap(ctx context.Context, email, password, phone string) (storage.Account, bool, error) {
	existing, err := g.db.FindAccountByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return storage.Account{}, false, err
	}

	a, err := g.register(ctx, Registration{
		Name:     AdminName,
		Email:    email,
		Phone:    phone,
		Password: password,
	}, storage.RoleAdmin)
	if errors.Is(err, apperr.ErrDuplicateEmail) {
		// lost a race with another bootstrap
		existing, err := g.db.FindAccountByEmail(ctx, email)
		return existing, false, err
	}
	if err != nil {
		return storage.Account{}, false, err
	}
	return a, true, nil
}

// PurgeExpired removes assertions that can no longer authenticate.
func (g *Gateway) PurgeExpired(ctx context.Context) (int64, error) {
	return g.db.PurgeExpiredAssertions(ctx, g.now())
}

func (g *Gateway) issue(ctx context.Context, accountID uint, purpose storage.Purpose, ttl time.Duration) (Assertion, error) {
	token, digest, err := newToken()
	if err != nil {
		return Assertion{}, apperr.Storage("issue token", err)
	}
	now := g.now()
	rec := &storage.IdentityAssertion{
		ID:        g.newID(),
		AccountID: accountID,
		Purpose:   purpose,
		Digest:    digest,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := g.db.CreateAssertion(ctx, rec); err != nil {
		return Assertion{}, err
	}
	return Assertion{Token: token, AccountID: accountID, Purpose: purpose, ExpiresAt: rec.ExpiresAt}, nil
}

func (g *Gateway) audit(ctx context.Context, accountID uint, action, desc string) {
	if err := g.db.AppendAudit(ctx, &storage.AuditLogEntry{
		AccountID:   accountID,
		Action:      action,
		Timestamp:   g.now(),
		Description: desc,
	}); err != nil {
		g.log.Warn("audit write failed", "account", accountID, "action", action, "error", err)
	}
}

// hash rejects passwords the hasher cannot take as InvalidInput. Any other
// hashing failure is internal.
func (g *Gateway) hash(password string) (string, error) {
	tooLong := apperr.New(apperr.KindInvalidInput, fmt.Sprintf("password must be at most %d bytes", MaxPasswordBytes))
	if len(password) > MaxPasswordBytes {
		return "", tooLong
	}
	h, err := g.hasher.Hash(password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", tooLong
	}
	if err != nil {
		return "", apperr.Storage("hash password", err)
	}
	return h, nil
}
