// Package ledger is the only component allowed to move money.
//
// Every mutation locks the accounts it touches (ascending id order), then runs
// the balance updates and the matching transaction rows inside one storage
// transaction. Readers never see a balance change without its log rows.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/NgigiN/ledger/internal/apperr"
	"github.com/NgigiN/ledger/internal/notify"
	"github.com/NgigiN/ledger/internal/statement"
	"github.com/NgigiN/ledger/internal/storage"
)

// AdminDescription is the description of every admin credit row.
const AdminDescription = "Admin added funds"

// AdminChecker classifies an account as privileged. Implementations must fail
// closed: any lookup failure answers false.
type AdminChecker interface {
	IsAdmin(ctx context.Context, accountID uint) bool
}

// Engine executes transfers and admin credits.
type Engine struct {
	db       *storage.Database
	admins   AdminChecker
	locks    *lockTable
	now      func() time.Time
	newID    func() string
	notifier notify.Notifier
	log      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used to stamp transaction rows.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides the transfer id generator.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// WithNotifier sets the post-commit event sink.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an engine over db. admins decides who may credit accounts.
func New(db *storage.Database, admins AdminChecker, opts ...Option) *Engine {
	e := &Engine{
		db:       db,
		admins:   admins,
		locks:    newLockTable(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.Must(uuid.NewV7()).String() },
		notifier: notify.Nop{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TransferReceipt describes a committed transfer.
type TransferReceipt struct {
	TransferID string
	Amount     int64
	Timestamp  time.Time
	Sender     storage.Account
	Recipient  storage.Account
}

// Transfer moves amount from senderID to the account registered under
// recipientEmail. Either both balances change and both rows are appended, or
// nothing changes.
func (e *Engine) Transfer(ctx context.Context, senderID uint, recipientEmail string, amount int64) (TransferReceipt, error) {
	if err := ctx.Err(); err != nil {
		return TransferReceipt{}, err
	}
	if amount <= 0 {
		return TransferReceipt{}, apperr.New(apperr.KindInvalidAmount, "amount must be a positive integer")
	}

	recipient, err := e.db.FindAccountByEmail(ctx, recipientEmail)
	if errors.Is(err, apperr.ErrNotFound) {
		return TransferReceipt{}, apperr.New(apperr.KindRecipientNotFound, "recipient not found")
	}
	if err != nil {
		return TransferReceipt{}, err
	}
	if recipient.ID == senderID {
		return TransferReceipt{}, apperr.New(apperr.KindInvalidTransfer, "cannot transfer to the same account")
	}

	r := TransferReceipt{TransferID: e.newID(), Amount: amount, Timestamp: e.now()}
	err = e.locks.with([]uint{senderID, recipient.ID}, func() error {
		return e.db.InTx(ctx, func(tx *storage.Tx) error {
			sender, err := tx.GetAccount(senderID)
			if err != nil {
				return err
			}
			if sender.Balance < amount {
				return apperr.New(apperr.KindInsufficientFunds, "insufficient funds")
			}

			if r.Sender, err = tx.AdjustBalance(senderID, -amount); err != nil {
				return err
			}
			if r.Recipient, err = tx.AdjustBalance(recipient.ID, amount); err != nil {
				return err
			}

			return tx.AppendTransactions(
				&storage.Transaction{
					AccountID:   sender.ID,
					TransferID:  r.TransferID,
					Type:        storage.Debit,
					Amount:      amount,
					Timestamp:   r.Timestamp,
					Description: fmt.Sprintf("Transfer to %s", r.Recipient.Email),
				},
				&storage.Transaction{
					AccountID:   recipient.ID,
					TransferID:  r.TransferID,
					Type:        storage.Credit,
					Amount:      amount,
					Timestamp:   r.Timestamp,
					Description: fmt.Sprintf("Received from %s", sender.Email),
				},
			)
		})
	})
	if err != nil {
		e.log.Warn("transfer failed", "sender", senderID, "recipient", recipient.ID, "amount", amount, "error", err)
		return TransferReceipt{}, err
	}

	e.log.Info("transfer committed", "transfer_id", r.TransferID, "sender", senderID, "recipient", recipient.ID, "amount", amount)
	e.publish(ctx, notify.Event{
		Kind:         notify.EventTransfer,
		AccountID:    senderID,
		Email:        r.Sender.Email,
		Counterparty: r.Recipient.Email,
		Amount:       amount,
		TransferID:   r.TransferID,
		At:           r.Timestamp,
	})
	return r, nil
}

// CreditAdmin adds amount to accountID on behalf of actingAdminID. The credit
// row and an audit entry commit together with the balance change.
func (e *Engine) CreditAdmin(ctx context.Context, accountID uint, amount int64, actingAdminID uint) (storage.Account, error) {
	if err := ctx.Err(); err != nil {
		return storage.Account{}, err
	}
	if !e.admins.IsAdmin(ctx, actingAdminID) {
		return storage.Account{}, apperr.New(apperr.KindForbidden, "Unauthorized")
	}
	if amount <= 0 {
		return storage.Account{}, apperr.New(apperr.KindInvalidAmount, "Amount must be positive")
	}

	now := e.now()
	var updated, admin storage.Account
	err := e.locks.with([]uint{accountID}, func() error {
		return e.db.InTx(ctx, func(tx *storage.Tx) error {
			var err error
			if admin, err = tx.GetAccount(actingAdminID); err != nil {
				return err
			}
			if updated, err = tx.AdjustBalance(accountID, amount); err != nil {
				return err
			}
			if err := tx.AppendTransactions(&storage.Transaction{
				AccountID:   accountID,
				Type:        storage.Credit,
				Amount:      amount,
				Timestamp:   now,
				Description: AdminDescription,
			}); err != nil {
				return err
			}
			return tx.AppendAudit(&storage.AuditLogEntry{
				AccountID:   admin.ID,
				Action:      storage.ActionAdminCredit,
				Timestamp:   now,
				Description: fmt.Sprintf("credited %d to %s", amount, updated.Email),
			})
		})
	})
	if err != nil {
		e.log.Warn("admin credit failed", "admin", actingAdminID, "account", accountID, "amount", amount, "error", err)
		return storage.Account{}, err
	}

	e.log.Info("admin credit committed", "admin", actingAdminID, "account", accountID, "amount", amount)
	e.publish(ctx, notify.Event{
		Kind:         notify.EventAdminCredit,
		AccountID:    accountID,
		Email:        updated.Email,
		Counterparty: admin.Email,
		Amount:       amount,
		At:           now,
	})
	return updated, nil
}

// CreditAdminByEmail resolves the target by email, then behaves like
// CreditAdmin. The privilege check runs before the lookup so unprivileged
// callers learn nothing about which emails exist.
func (e *Engine) CreditAdminByEmail(ctx context.Context, email string, amount int64, actingAdminID uint) (storage.Account, error) {
	if !e.admins.IsAdmin(ctx, actingAdminID) {
		return storage.Account{}, apperr.New(apperr.KindForbidden, "Unauthorized")
	}
	target, err := e.db.FindAccountByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return storage.Account{}, apperr.New(apperr.KindNotFound, "User not found")
	}
	if err != nil {
		return storage.Account{}, err
	}
	return e.CreditAdmin(ctx, target.ID, amount, actingAdminID)
}

// Account returns the current state of an account.
func (e *Engine) Account(ctx context.Context, id uint) (storage.Account, error) {
	return e.db.GetAccount(ctx, id)
}

// Accounts lists every account for an admin caller.
func (e *Engine) Accounts(ctx context.Context, actingAdminID uint) ([]storage.Account, error) {
	if !e.admins.IsAdmin(ctx, actingAdminID) {
		return nil, apperr.New(apperr.KindForbidden, "Unauthorized")
	}
	accounts, err := e.db.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.db.AppendAudit(ctx, &storage.AuditLogEntry{
		AccountID:   actingAdminID,
		Action:      storage.ActionAccountsListed,
		Description: fmt.Sprintf("listed %d accounts", len(accounts)),
	}); err != nil {
		e.log.Warn("audit write failed", "admin", actingAdminID, "error", err)
	}
	return accounts, nil
}

// History returns an account's transactions newest first, optionally
// restricted to one direction.
func (e *Engine) History(ctx context.Context, accountID uint, typ storage.TxType) ([]storage.Transaction, error) {
	return e.db.ListByAccount(ctx, accountID, typ)
}

// ExportStatement writes an account's statement in insertion order.
func (e *Engine) ExportStatement(ctx context.Context, accountID uint, w io.Writer) error {
	txs, err := e.db.ListByAccountInsertion(ctx, accountID)
	if err != nil {
		return err
	}
	return statement.Write(w, statement.FromTransactions(txs))
}

func (e *Engine) publish(ctx context.Context, ev notify.Event) {
	if err := e.notifier.Notify(ctx, ev); err != nil {
		e.log.Warn("notification failed", "kind", ev.Kind, "error", err)
		if err := e.db.AppendInternalLog(ctx, &storage.InternalLog{
			Type:        "notify",
			Description: fmt.Sprintf("%s notification failed: %v", ev.Kind, err),
		}); err != nil {
			e.log.Error("internal log write failed", "error", err)
		}
	}
}
