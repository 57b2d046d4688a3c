package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/NgigiN/ledger/internal/apperr"
	"github.com/NgigiN/ledger/internal/notify"
	"github.com/NgigiN/ledger/internal/storage"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type captureNotifier struct {
	events []notify.Event
}

func (n *captureNotifier) Notify(_ context.Context, ev notify.Event) error {
	n.events = append(n.events, ev)
	return nil
}

func newGateway(t *testing.T) (*Gateway, *storage.Database, *fakeClock, *captureNotifier) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 9, 17, 18, 56, 0, 0, time.UTC)}
	db, err := storage.Open(filepath.Join(t.TempDir(), "auth.db"), storage.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	n := &captureNotifier{}
	g := New(db,
		WithHasher(NewBcryptHasher(bcrypt.MinCost)),
		WithClock(clock.Now),
		WithNotifier(n),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return g, db, clock, n
}

func register(t *testing.T, g *Gateway, name, email, password string) storage.Account {
	t.Helper()
	a, err := g.Register(context.Background(), Registration{Name: name, Email: email, Phone: "0712345678", Password: password})
	require.NoError(t, err)
	return a
}

func TestRegisterThenLogin(t *testing.T) {
	g, db, clock, _ := newGateway(t)
	ctx := context.Background()
	acc := register(t, g, "Alice", "alice@example.com", "s3cret")

	assert.Equal(t, storage.RoleUser, acc.Role)
	assert.Equal(t, int64(0), acc.Balance)
	assert.NotEqual(t, "s3cret", acc.PasswordHash)

	as, err := g.Login(ctx, "Alice@Example.com", "s3cret", "curl/8.0")
	require.NoError(t, err)
	assert.NotEmpty(t, as.Token)
	assert.Equal(t, acc.ID, as.AccountID)
	assert.Equal(t, storage.PurposeLogin, as.Purpose)
	assert.Equal(t, clock.Now().Add(DefaultLoginTTL), as.ExpiresAt)

	id, err := g.Authenticate(ctx, as.Token)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, id.AccountID)
	assert.Equal(t, storage.PurposeLogin, id.Purpose)

	events, err := db.ListAuthEvents(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "curl/8.0", events[0].Device)
	assert.Nil(t, events[0].Logout)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	g, db, _, _ := newGateway(t)
	ctx := context.Background()
	acc := register(t, g, "Alice", "alice@example.com", "s3cret")

	_, wrongPassword := g.Login(ctx, "alice@example.com", "nope", "")
	_, unknownEmail := g.Login(ctx, "bob@example.com", "s3cret", "")

	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	assert.True(t, errors.Is(wrongPassword, apperr.ErrInvalidCredentials))
	assert.True(t, errors.Is(unknownEmail, apperr.ErrInvalidCredentials))
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())

	events, err := db.ListAuthEvents(ctx, acc.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRegister_Validation(t *testing.T) {
	g, _, _, _ := newGateway(t)
	ctx := context.Background()
	register(t, g, "Alice", "alice@example.com", "pw")

	cases := []struct {
		name string
		reg  Registration
		want error
	}{
		{"missing name", Registration{Email: "x@example.com", Password: "pw"}, apperr.ErrInvalidInput},
		{"bad email", Registration{Name: "X", Email: "not-an-email", Password: "pw"}, apperr.ErrInvalidInput},
		{"missing password", Registration{Name: "X", Email: "x@example.com"}, apperr.ErrInvalidInput},
		{"password too long", Registration{Name: "X", Email: "x@example.com", Password: strings.Repeat("p", MaxPasswordBytes+1)}, apperr.ErrInvalidInput},
		{"duplicate email", Registration{Name: "A2", Email: " ALICE@example.com", Password: "pw"}, apperr.ErrDuplicateEmail},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := g.Register(ctx, c.reg)
			assert.True(t, errors.Is(err, c.want), "got %v", err)
		})
	}
}

// tooLongHasher reports the bcrypt length error for every password.
type tooLongHasher struct{ BcryptHasher }

func (tooLongHasher) Hash(string) (string, error) { return "", bcrypt.ErrPasswordTooLong }

func TestRegister_PasswordLength(t *testing.T) {
	g, _, _, _ := newGateway(t)
	ctx := context.Background()

	_, err := g.Register(ctx, Registration{Name: "Max", Email: "max@example.com", Password: strings.Repeat("p", MaxPasswordBytes)})
	require.NoError(t, err)

	g.hasher = tooLongHasher{}
	_, err = g.Register(ctx, Registration{Name: "Y", Email: "y@example.com", Password: "short"})
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput), "got %v", err)
	assert.False(t, errors.Is(err, apperr.ErrStorage))
}

func TestAuthenticate_Rejects(t *testing.T) {
	g, _, clock, _ := newGateway(t)
	ctx := context.Background()
	register(t, g, "Alice", "alice@example.com", "pw")
	as, err := g.Login(ctx, "alice@example.com", "pw", "")
	require.NoError(t, err)

	_, err = g.Authenticate(ctx, "")
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

	_, err = g.Authenticate(ctx, "forged-token")
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

	clock.Advance(DefaultLoginTTL - time.Second)
	_, err = g.Authenticate(ctx, as.Token)
	assert.NoError(t, err)

	clock.Advance(time.Second)
	_, err = g.Authenticate(ctx, as.Token)
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
}

func TestRecoveryAndReset(t *testing.T) {
	g, db, clock, n := newGateway(t)
	ctx := context.Background()
	acc := register(t, g, "Alice", "alice@example.com", "old")

	_, err := g.InitiateRecovery(ctx, "ghost@example.com")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	rec, err := g.InitiateRecovery(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, storage.PurposeRecovery, rec.Purpose)
	assert.Equal(t, clock.Now().Add(DefaultRecoveryTTL), rec.ExpiresAt)

	id, err := g.Authenticate(ctx, rec.Token)
	require.NoError(t, err)
	require.NoError(t, g.ResetPassword(ctx, id, "new"))

	_, err = g.Login(ctx, "alice@example.com", "old", "")
	assert.True(t, errors.Is(err, apperr.ErrInvalidCredentials))
	_, err = g.Login(ctx, "alice@example.com", "new", "")
	assert.NoError(t, err)

	// recovery tokens are single use
	_, err = g.Authenticate(ctx, rec.Token)
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

	audit, err := db.ListAudit(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, audit, 2)
	assert.Equal(t, storage.ActionRecoveryInitiated, audit[0].Action)
	assert.Equal(t, storage.ActionPasswordReset, audit[1].Action)

	require.Len(t, n.events, 1)
	assert.Equal(t, notify.EventPasswordReset, n.events[0].Kind)
	assert.Equal(t, "alice@example.com", n.events[0].Email)
}

func TestRecoveryTokenExpires(t *testing.T) {
	g, _, clock, _ := newGateway(t)
	ctx := context.Background()
	register(t, g, "Alice", "alice@example.com", "pw")

	rec, err := g.InitiateRecovery(ctx, "alice@example.com")
	require.NoError(t, err)

	clock.Advance(DefaultRecoveryTTL)
	_, err = g.Authenticate(ctx, rec.Token)
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
}

func TestResetPassword_WithLoginTokenKeepsToken(t *testing.T) {
	g, _, _, _ := newGateway(t)
	ctx := context.Background()
	register(t, g, "Alice", "alice@example.com", "pw")
	as, err := g.Login(ctx, "alice@example.com", "pw", "")
	require.NoError(t, err)

	id, err := g.Authenticate(ctx, as.Token)
	require.NoError(t, err)
	assert.True(t, errors.Is(g.ResetPassword(ctx, id, ""), apperr.ErrInvalidInput))
	err = g.ResetPassword(ctx, id, strings.Repeat("p", MaxPasswordBytes+1))
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput), "got %v", err)
	require.NoError(t, g.ResetPassword(ctx, id, "pw2"))

	_, err = g.Authenticate(ctx, as.Token)
	assert.NoError(t, err)
}

func TestIsAdmin_UsesRoleNotName(t *testing.T) {
	g, _, _, _ := newGateway(t)
	ctx := context.Background()

	admin, created, err := g.Bootstrap(ctx, "admin@example.com", "admin123", "9999999999")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, AdminName, admin.Name)
	assert.Equal(t, storage.RoleAdmin, admin.Role)

	impostor := register(t, g, "Admin", "impostor@example.com", "pw")

	assert.True(t, g.IsAdmin(ctx, admin.ID))
	assert.False(t, g.IsAdmin(ctx, impostor.ID))
	assert.False(t, g.IsAdmin(ctx, 4242))
}

func TestBootstrap_Idempotent(t *testing.T) {
	g, db, _, _ := newGateway(t)
	ctx := context.Background()

	first, created, err := g.Bootstrap(ctx, "admin@example.com", "admin123", "9999999999")
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := g.Bootstrap(ctx, "admin@example.com", "other", "1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	accounts, err := db.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	_, err = g.Login(ctx, "admin@example.com", "admin123", "")
	assert.NoError(t, err)
}

func TestPurgeExpired(t *testing.T) {
	g, _, clock, _ := newGateway(t)
	ctx := context.Background()
	register(t, g, "Alice", "alice@example.com", "pw")

	_, err := g.InitiateRecovery(ctx, "alice@example.com")
	require.NoError(t, err)
	login, err := g.Login(ctx, "alice@example.com", "pw", "")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	n, err := g.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = g.Authenticate(ctx, login.Token)
	assert.NoError(t, err)
}

func TestNewToken(t *testing.T) {
	a, da, err := newToken()
	require.NoError(t, err)
	b, db, err := newToken()
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, da, db)
	assert.Equal(t, da, digestOf(a))
	assert.Len(t, da, 64)
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	hash, err := h.Hash("pw")
	require.NoError(t, err)
	assert.NoError(t, h.Compare(hash, "pw"))
	assert.Error(t, h.Compare(hash, "PW"))

	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(99).cost)
}
