package storage

import (
	"context"

	"github.com/NgigiN/ledger/internal/apperr"
)

// Audit actions written by the gateway and the ledger.
const (
	ActionAdminCredit       = "admin-credit"
	ActionPasswordReset     = "password-reset"
	ActionRecoveryInitiated = "recovery-initiated"
	ActionAccountsListed    = "admin-accounts-listed"
)

// AppendAudit records an audit entry inside the scoped transaction.
func (t *Tx) AppendAudit(e *AuditLogEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = t.now()
	}
	return apperr.Storage("append audit", t.db.Create(e).Error)
}

// AppendAudit records an audit entry outside any ledger transaction.
func (d *Database) AppendAudit(ctx context.Context, e *AuditLogEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = d.now()
	}
	return apperr.Storage("append audit", d.db.WithContext(ctx).Create(e).Error)
}

// ListAudit returns an account's audit entries oldest first.
func (d *Database) ListAudit(ctx context.Context, accountID uint) ([]AuditLogEntry, error) {
	var out []AuditLogEntry
	err := d.db.WithContext(ctx).Where("account_id = ?", accountID).Order("id ASC").Find(&out).Error
	return out, apperr.Storage("list audit", err)
}

// AppendAuthEvent records a login.
func (d *Database) AppendAuthEvent(ctx context.Context, e *AuthenticationEvent) error {
	if e.Login.IsZero() {
		e.Login = d.now()
	}
	return apperr.Storage("append auth event", d.db.WithContext(ctx).Create(e).Error)
}

// ListAuthEvents returns an account's login records oldest first.
func (d *Database) ListAuthEvents(ctx context.Context, accountID uint) ([]AuthenticationEvent, error) {
	var out []AuthenticationEvent
	err := d.db.WithContext(ctx).Where("account_id = ?", accountID).Order("id ASC").Find(&out).Error
	return out, apperr.Storage("list auth events", err)
}

// AppendInternalLog records a system incident.
func (d *Database) AppendInternalLog(ctx context.Context, e *InternalLog) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = d.now()
	}
	return apperr.Storage("append internal log", d.db.WithContext(ctx).Create(e).Error)
}

// ListUnresolvedInternalLogs returns open incidents oldest first.
func (d *Database) ListUnresolvedInternalLogs(ctx context.Context) ([]InternalLog, error) {
	var out []InternalLog
	err := d.db.WithContext(ctx).Where("resolved = ?", false).Order("id ASC").Find(&out).Error
	return out, apperr.Storage("list internal logs", err)
}
