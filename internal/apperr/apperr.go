// Package apperr defines the error taxonomy shared by the services and the
// HTTP layer. Every failure surfaced to a caller carries exactly one Kind.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the caller
type Kind int

const (
	KindInternal Kind = iota
	KindAuthentication
	KindValidation
	KindNotFound
	KindConflict
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "AUTHENTICATION_ERROR"
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindUnavailable:
		return "STORAGE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

// Error is a classified application error
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AuthMessage is the only message an authentication failure ever carries.
const AuthMessage = "invalid or missing credentials"

// Unauthenticated reports a missing, invalid, or revoked credential
func Unauthenticated() *Error {
	return &Error{Kind: KindAuthentication, Message: AuthMessage}
}

// Validation reports malformed input for one field
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// NotFound reports an unknown or out-of-scope entity
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict reports a detected race or duplicate
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// Unavailable reports a storage failure that is safe to retry
func Unavailable(err error) *Error {
	return &Error{Kind: KindUnavailable, Message: "storage unavailable", Err: err}
}

// Internal wraps an unexpected failure
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
