package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"
	"gorm.io/gorm"

	"github.com/NgigiN/ledger/internal/apperr"
)

// NormalizeEmail case-folds and trims an address so lookups and the unique
// index agree on identity.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// NewAccount holds the fields supplied at account creation.
type NewAccount struct {
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	Role         Role
}

// ProfileUpdate is a partial update; nil fields are left unchanged.
type ProfileUpdate struct {
	Name  *string
	Phone *string
}

// CreateAccount inserts a new active account with a zero balance.
// Returns DuplicateEmail if the normalized email is already registered.
func (d *Database) CreateAccount(ctx context.Context, na NewAccount) (Account, error) {
	role := na.Role
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return Account{}, fmt.Errorf("create account: invalid role %q", role)
	}
	a := Account{
		Name:         na.Name,
		Email:        NormalizeEmail(na.Email),
		Phone:        na.Phone,
		PasswordHash: na.PasswordHash,
		Status:       StatusActive,
		Role:         role,
		CreatedAt:    d.now(),
		UpdatedAt:    d.now(),
	}
	if err := d.db.WithContext(ctx).Create(&a).Error; err != nil {
		if isUniqueViolation(err) {
			return Account{}, apperr.New(apperr.KindDuplicateEmail, "email already registered")
		}
		return Account{}, apperr.Storage("create account", err)
	}
	return a, nil
}

// GetAccount returns the account with the given id or NotFound.
func (d *Database) GetAccount(ctx context.Context, id uint) (Account, error) {
	return getAccount(d.db.WithContext(ctx), id)
}

// FindAccountByEmail returns the account registered under email or NotFound.
func (d *Database) FindAccountByEmail(ctx context.Context, email string) (Account, error) {
	return findAccountByEmail(d.db.WithContext(ctx), email)
}

// ListAccounts returns every account ordered by id.
func (d *Database) ListAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := d.db.WithContext(ctx).Order("id ASC").Find(&accounts).Error; err != nil {
		return nil, apperr.Storage("list accounts", err)
	}
	return accounts, nil
}

// UpdateProfile applies a partial name/phone update. Balance and password
// are never touched.
func (d *Database) UpdateProfile(ctx context.Context, id uint, upd ProfileUpdate) (Account, error) {
	fields := map[string]any{}
	if upd.Name != nil {
		fields["name"] = *upd.Name
	}
	if upd.Phone != nil {
		fields["phone"] = *upd.Phone
	}

	db := d.db.WithContext(ctx)
	if len(fields) > 0 {
		fields["updated_at"] = d.now()
		res := db.Model(&Account{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return Account{}, apperr.Storage("update profile", res.Error)
		}
		if res.RowsAffected == 0 {
			return Account{}, notFound(id)
		}
	}
	return getAccount(db, id)
}

// SetPasswordHash overwrites the stored password hash.
func (d *Database) SetPasswordHash(ctx context.Context, id uint, hash string) error {
	res := d.db.WithContext(ctx).Model(&Account{}).Where("id = ?", id).
		Updates(map[string]any{"password_hash": hash, "updated_at": d.now()})
	if res.Error != nil {
		return apperr.Storage("set password", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(id)
	}
	return nil
}

// GetAccount reads an account inside the transaction.
func (t *Tx) GetAccount(id uint) (Account, error) {
	return getAccount(t.db, id)
}

// FindAccountByEmail resolves an email inside the transaction.
func (t *Tx) FindAccountByEmail(email string) (Account, error) {
	return findAccountByEmail(t.db, email)
}

// AdjustBalance adds delta (which may be negative) to the account balance and
// returns the updated account. The update is conditional on the result staying
// within 0..MaxInt64; otherwise it fails with InsufficientFunds (debit) or
// InvalidAmount (credit overflow) and nothing changes.
func (t *Tx) AdjustBalance(id uint, delta int64) (Account, error) {
	q := t.db.Model(&Account{}).Where("id = ?", id)
	if delta < 0 {
		q = q.Where("balance + ? >= 0", delta)
	} else {
		q = q.Where("balance <= ?", math.MaxInt64-delta)
	}
	res := q.Updates(map[string]any{
		"balance":    gorm.Expr("balance + ?", delta),
		"updated_at": t.now(),
	})
	if res.Error != nil {
		return Account{}, apperr.Storage("adjust balance", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := getAccount(t.db, id); err != nil {
			return Account{}, err
		}
		if delta > 0 {
			return Account{}, apperr.New(apperr.KindInvalidAmount, "amount would overflow the balance")
		}
		return Account{}, apperr.New(apperr.KindInsufficientFunds, "insufficient funds")
	}
	return getAccount(t.db, id)
}

func getAccount(db *gorm.DB, id uint) (Account, error) {
	var a Account
	err := db.First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, notFound(id)
	}
	if err != nil {
		return Account{}, apperr.Storage("get account", err)
	}
	return a, nil
}

func findAccountByEmail(db *gorm.DB, email string) (Account, error) {
	var a Account
	err := db.Where("email = ?", NormalizeEmail(email)).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, apperr.New(apperr.KindNotFound, "account not found")
	}
	if err != nil {
		return Account{}, apperr.Storage("find account", err)
	}
	return a, nil
}

func notFound(id uint) error {
	return apperr.New(apperr.KindNotFound, fmt.Sprintf("account %d not found", id))
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
