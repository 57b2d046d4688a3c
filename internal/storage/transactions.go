package storage

import (
	"context"
	"fmt"

	"github.com/NgigiN/ledger/internal/apperr"
)

// AppendTransactions inserts transaction rows inside the scoped transaction.
// Rows are validated first so an invalid leg never reaches the database.
func (t *Tx) AppendTransactions(txs ...*Transaction) error {
	for _, tx := range txs {
		if !tx.Type.Valid() {
			return fmt.Errorf("append transaction: invalid type %q", tx.Type)
		}
		if tx.Amount <= 0 {
			return apperr.New(apperr.KindInvalidAmount, "amount must be a positive integer")
		}
		if tx.Timestamp.IsZero() {
			tx.Timestamp = t.now()
		}
	}
	if len(txs) == 0 {
		return nil
	}
	if err := t.db.Create(txs).Error; err != nil {
		return apperr.Storage("append transaction", err)
	}
	return nil
}

// ListByAccount returns an account's transactions newest first. Rows with
// equal timestamps keep insertion order. An empty typ lists both directions.
func (d *Database) ListByAccount(ctx context.Context, accountID uint, typ TxType) ([]Transaction, error) {
	q := d.db.WithContext(ctx).Where("account_id = ?", accountID)
	if typ != "" {
		if !typ.Valid() {
			return nil, fmt.Errorf("list transactions: invalid type %q", typ)
		}
		q = q.Where("type = ?", typ)
	}
	var txs []Transaction
	if err := q.Order("timestamp DESC").Order("id ASC").Find(&txs).Error; err != nil {
		return nil, apperr.Storage("list transactions", err)
	}
	return txs, nil
}

// ListByAccountInsertion returns an account's transactions in the order they
// were appended. Statement export uses this order.
func (d *Database) ListByAccountInsertion(ctx context.Context, accountID uint) ([]Transaction, error) {
	var txs []Transaction
	err := d.db.WithContext(ctx).Where("account_id = ?", accountID).Order("id ASC").Find(&txs).Error
	if err != nil {
		return nil, apperr.Storage("list transactions", err)
	}
	return txs, nil
}

// ListByTransfer returns both legs of a transfer.
func (d *Database) ListByTransfer(ctx context.Context, transferID string) ([]Transaction, error) {
	var txs []Transaction
	err := d.db.WithContext(ctx).Where("transfer_id = ?", transferID).Order("id ASC").Find(&txs).Error
	if err != nil {
		return nil, apperr.Storage("list transfer", err)
	}
	return txs, nil
}

// CountTransactions returns the total number of transaction rows.
func (d *Database) CountTransactions(ctx context.Context) (int64, error) {
	var n int64
	if err := d.db.WithContext(ctx).Model(&Transaction{}).Count(&n).Error; err != nil {
		return 0, apperr.Storage("count transactions", err)
	}
	return n, nil
}
