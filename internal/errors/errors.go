package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers. The transport layer picks status
// codes from it; the message is safe to show to clients.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindAuth
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// Error is a classified service error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so that wrapped copies of a sentinel still compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Kind == t.Kind
}

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrSelfRequest = newErr(KindValidation, "self_request", "cannot send request to yourself")

	ErrUserNotFound    = newErr(KindNotFound, "user_not_found", "user not found")
	ErrProfileNotFound = newErr(KindNotFound, "profile_not_found", "profile not found")
	ErrRequestNotFound = newErr(KindNotFound, "request_not_found", "match request not found or already processed")

	ErrDuplicateEmail   = newErr(KindConflict, "duplicate_email", "email already registered")
	ErrDuplicateRequest = newErr(KindConflict, "duplicate_request", "match request already sent")
	ErrAlreadyActive    = newErr(KindConflict, "already_active", "user already active")

	ErrInvalidCredentials = newErr(KindAuth, "invalid_credentials", "invalid email or password")
	ErrInvalidToken       = newErr(KindAuth, "invalid_token", "invalid or expired token")
	ErrAccountNotActive   = newErr(KindForbidden, "account_not_active", "account pending verification, please wait for admin approval")
	ErrForbidden          = newErr(KindForbidden, "forbidden", "access denied")
)

// Validation builds a validation error with a caller-facing message.
func Validation(msg string) error {
	return newErr(KindValidation, "validation", msg)
}

// Internal wraps an infrastructure failure. The cause is kept for logging
// and never rendered to clients.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindInternal, Code: "internal", Message: "internal error", Err: err}
}

// KindOf returns the Kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Public returns the message that may be shown to a client.
func Public(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "server error"
}

// Is and As re-export the standard helpers so callers need a single import.
func Is(err, target error) bool     { return errors.Is(err, target) }
func As(err error, target any) bool { return errors.As(err, target) }
