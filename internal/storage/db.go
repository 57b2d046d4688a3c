// Package storage persists accounts, the transaction log, audit records and
// identity assertions in SQLite through gorm.
//
// All balance writes go through a Tx obtained from Database.InTx so that a
// balance change and its transaction rows commit or roll back together.
package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/NgigiN/ledger/internal/apperr"
)

// dsnParams configures the mattn/go-sqlite3 connection:
// WAL for readers during writes, a 5s busy timeout, and BEGIN IMMEDIATE so a
// write transaction takes the database write lock up front.
const dsnParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"

type Database struct {
	db  *gorm.DB
	now func() time.Time
}

// Option configures a Database.
type Option func(*Database)

// WithClock overrides the wall clock used for audit and log timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Database) { d.now = now }
}

// Open opens (creating if needed) the database at path and migrates the schema.
// It is safe to call repeatedly against the same file.
func Open(path string, opts ...Option) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(path+dsnParams), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	// SQLite has a single writer; one connection keeps readers from observing
	// a half-applied write and avoids SQLITE_BUSY between our own connections.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(
		&Account{},
		&Transaction{},
		&AuditLogEntry{},
		&AuthenticationEvent{},
		&InternalLog{},
		&IdentityAssertion{},
	); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	d := &Database{db: db, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Close releases the underlying connection.
func (d *Database) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifies the connection is usable.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return apperr.Storage("ping", err)
	}
	return apperr.Storage("ping", sqlDB.PingContext(ctx))
}

// Tx is a scoped storage transaction. It is only valid inside the callback
// passed to InTx.
type Tx struct {
	db  *gorm.DB
	now func() time.Time
}

// InTx runs fn in a single database transaction. The transaction commits if
// fn returns nil and rolls back on any error or panic.
func (d *Database) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	err := d.db.WithContext(ctx).Transaction(func(g *gorm.DB) error {
		return fn(&Tx{db: g, now: d.now})
	})
	return apperr.Storage("transaction", err)
}
