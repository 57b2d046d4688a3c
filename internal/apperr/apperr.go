// Package apperr defines the closed set of failure kinds surfaced by the
// ledger, the authentication gateway and the storage layer.
//
// Every error that crosses a package boundary is an *Error or wraps one, so
// the HTTP layer can map it to a status code without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes an application error.
type Kind string

const (
	KindDuplicateEmail     Kind = "DUPLICATE_EMAIL"
	KindNotFound           Kind = "NOT_FOUND"
	KindInvalidCredentials Kind = "INVALID_CREDENTIALS"
	KindInsufficientFunds  Kind = "INSUFFICIENT_FUNDS"
	KindRecipientNotFound  Kind = "RECIPIENT_NOT_FOUND"
	KindInvalidAmount      Kind = "INVALID_AMOUNT"
	KindInvalidTransfer    Kind = "INVALID_TRANSFER"
	KindInvalidInput       Kind = "INVALID_INPUT"
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindForbidden          Kind = "FORBIDDEN"
	KindStorage            Kind = "STORAGE_ERROR"
)

// Error is an application error with a kind, a caller-facing message and an
// optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. This lets callers
// use errors.Is(err, apperr.ErrNotFound) regardless of message or cause.
// A Forbidden error also matches Unauthorized: it is an authenticated caller
// lacking privilege.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if e.Kind == KindForbidden && t.Kind == KindUnauthorized {
		return true
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrDuplicateEmail     = &Error{Kind: KindDuplicateEmail, Message: "email already registered"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "Bad credentials"}
	ErrInsufficientFunds  = &Error{Kind: KindInsufficientFunds, Message: "insufficient funds"}
	ErrRecipientNotFound  = &Error{Kind: KindRecipientNotFound, Message: "recipient not found"}
	ErrInvalidAmount      = &Error{Kind: KindInvalidAmount, Message: "amount must be a positive integer"}
	ErrInvalidTransfer    = &Error{Kind: KindInvalidTransfer, Message: "invalid transfer"}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput, Message: "invalid request"}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Message: "Unauthorized"}
	ErrForbidden          = &Error{Kind: KindForbidden, Message: "Unauthorized"}
	ErrStorage            = &Error{Kind: KindStorage, Message: "storage failure"}
)

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Storage wraps a persistence fault. A nil err yields nil so call sites can
// wrap unconditionally.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindStorage, Message: op, Err: err}
}

// KindOf extracts the kind of err. Errors that are not application errors
// are treated as storage faults.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindStorage
}

// MessageOf returns the caller-facing message for err. Storage faults never
// leak their cause.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return ErrStorage.Message
}

// HTTPStatus maps an error kind to an HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindDuplicateEmail:
		return http.StatusConflict
	case KindNotFound, KindRecipientNotFound:
		return http.StatusNotFound
	case KindInvalidCredentials, KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindInsufficientFunds, KindInvalidAmount, KindInvalidTransfer, KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
