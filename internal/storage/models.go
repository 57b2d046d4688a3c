package storage

import (
	"time"
)

// Status is the lifecycle state of an account. No operation transitions it yet.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusDormant  Status = "dormant"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusDormant:
		return true
	}
	return false
}

// Role is the privilege class of an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// TxType is the direction of a transaction relative to its account.
type TxType string

const (
	Credit TxType = "credit"
	Debit  TxType = "debit"
)

func (t TxType) Valid() bool {
	return t == Credit || t == Debit
}

// Purpose distinguishes login assertions from recovery assertions.
type Purpose string

const (
	PurposeLogin    Purpose = "login"
	PurposeRecovery Purpose = "recovery"
)

// Account is a ledger account. Balance is in the smallest currency unit and
// is only ever written through Tx.AdjustBalance.
type Account struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Phone        string `gorm:"not null"`
	Balance      int64  `gorm:"not null;default:0;check:chk_accounts_balance,balance >= 0"`
	Status       Status `gorm:"size:16;not null;default:active"`
	Role         Role   `gorm:"size:16;not null;default:user"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Transaction is one immutable leg of a balance change. Both legs of a
// transfer share a TransferID and a Timestamp.
type Transaction struct {
	ID          uint      `gorm:"primaryKey"`
	AccountID   uint      `gorm:"index;not null"`
	TransferID  string    `gorm:"size:36;index"`
	Type        TxType    `gorm:"size:8;not null"`
	Amount      int64     `gorm:"not null;check:chk_transactions_amount,amount > 0"`
	Timestamp   time.Time `gorm:"column:timestamp;index;not null"`
	Description string
}

// AuditLogEntry records an administrative or security-relevant action.
type AuditLogEntry struct {
	ID          uint      `gorm:"primaryKey"`
	AccountID   uint      `gorm:"index;not null"`
	Action      string    `gorm:"not null"`
	Timestamp   time.Time `gorm:"column:timestamp;not null"`
	Description string
}

// AuthenticationEvent records a successful login.
type AuthenticationEvent struct {
	ID          uint      `gorm:"primaryKey"`
	AccountID   uint      `gorm:"index;not null"`
	Login       time.Time `gorm:"not null"`
	Logout      *time.Time
	Device      string
	Description string
}

// InternalLog is a system-level incident record.
type InternalLog struct {
	ID          uint      `gorm:"primaryKey"`
	Type        string    `gorm:"not null"`
	Timestamp   time.Time `gorm:"column:timestamp;not null"`
	Description string
	Resolved    bool
}

// IdentityAssertion is a stored bearer credential. Only the SHA-256 digest of
// the token is kept.
type IdentityAssertion struct {
	ID        string    `gorm:"primaryKey;size:36"`
	AccountID uint      `gorm:"index;not null"`
	Purpose   Purpose   `gorm:"size:16;not null"`
	Digest    string    `gorm:"uniqueIndex;size:64;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}
