package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/NgigiN/ledger/internal/apperr"
)

// CreateAssertion stores a newly issued identity assertion.
func (d *Database) CreateAssertion(ctx context.Context, a *IdentityAssertion) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = d.now()
	}
	return apperr.Storage("create assertion", d.db.WithContext(ctx).Create(a).Error)
}

// FindAssertion looks up an assertion by token digest. Expiry is not checked
// here.
func (d *Database) FindAssertion(ctx context.Context, digest string) (IdentityAssertion, error) {
	var a IdentityAssertion
	err := d.db.WithContext(ctx).Where("digest = ?", digest).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return IdentityAssertion{}, apperr.New(apperr.KindUnauthorized, "invalid token")
	}
	if err != nil {
		return IdentityAssertion{}, apperr.Storage("find assertion", err)
	}
	return a, nil
}

// DeleteAssertion revokes a single assertion.
func (d *Database) DeleteAssertion(ctx context.Context, id string) error {
	err := d.db.WithContext(ctx).Where("id = ?", id).Delete(&IdentityAssertion{}).Error
	return apperr.Storage("delete assertion", err)
}

// PurgeExpiredAssertions deletes assertions that expired before now and
// returns how many were removed.
func (d *Database) PurgeExpiredAssertions(ctx context.Context, now time.Time) (int64, error) {
	res := d.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&IdentityAssertion{})
	if res.Error != nil {
		return 0, apperr.Storage("purge assertions", res.Error)
	}
	return res.RowsAffected, nil
}
