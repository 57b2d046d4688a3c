// Package notify publishes committed ledger and security events to an
// operator channel. Delivery is best effort: a failed notification never
// affects the operation that produced it.
package notify

import (
	"context"
	"fmt"
	"time"
)

// EventKind names what happened.
type EventKind string

const (
	EventTransfer      EventKind = "transfer"
	EventAdminCredit   EventKind = "admin-credit"
	EventPasswordReset EventKind = "password-reset"
)

// Event describes a committed change.
type Event struct {
	Kind         EventKind
	AccountID    uint
	Email        string
	Counterparty string
	Amount       int64
	TransferID   string
	At           time.Time
}

// Notifier delivers events.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Format renders an event as a single chat line.
func Format(ev Event) string {
	at := ev.At.UTC().Format("Jan 2, 2006 3:04 PM")
	switch ev.Kind {
	case EventTransfer:
		return fmt.Sprintf("💸 **Transfer** %d from %s to %s (%s) at %s", ev.Amount, ev.Email, ev.Counterparty, ev.TransferID, at)
	case EventAdminCredit:
		return fmt.Sprintf("🏦 **Admin credit** %d to %s by %s at %s", ev.Amount, ev.Email, ev.Counterparty, at)
	case EventPasswordReset:
		return fmt.Sprintf("🔐 **Password reset** for %s at %s", ev.Email, at)
	default:
		return fmt.Sprintf("**%s** account %d at %s", ev.Kind, ev.AccountID, at)
	}
}
