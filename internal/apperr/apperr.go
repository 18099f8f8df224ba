// Package apperr defines the error taxonomy shared by every portal operation.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes an error for callers and transports.
type Kind string

const (
	KindValidation Kind = "validation"
	KindForbidden  Kind = "forbidden"
	KindConflict   Kind = "conflict"
	KindIntegrity  Kind = "integrity"
	KindNotFound   Kind = "not_found"
	KindInternal   Kind = "internal"
)

// Error is the structured error returned by the portal's core operations.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Op names the operation that failed, e.g. "review.Resubmit".
	Op string

	// Message is safe to show to the caller.
	Message string

	// Reason is a short machine-readable code. Integrity errors surface it to
	// the payment gateway redirect.
	Reason string

	// Err is the underlying cause, kept for logs only.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports malformed or missing input.
func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Forbidden reports that the caller may not perform the operation. The
// message is deliberately fixed so nothing leaks about why.
func Forbidden(op string) *Error {
	return &Error{Kind: KindForbidden, Op: op, Message: "forbidden"}
}

// Conflict reports an operation that is not valid in the current state.
func Conflict(op, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Integrity reports untrusted input, such as a tampered gateway callback.
func Integrity(op, reason, message string) *Error {
	return &Error{Kind: KindIntegrity, Op: op, Reason: reason, Message: message}
}

// NotFound reports a missing record.
func NotFound(op, what string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: what + " not found"}
}

// Internal wraps an unexpected collaborator failure. The caller sees a
// generic message; the cause stays in Err.
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Message: "internal error", Err: err}
}

// KindOf returns the Kind of err. Errors outside the taxonomy are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ReasonOf returns the Reason code of err, or "" if it carries none.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// Is reports whether err belongs to kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage returns the message safe to show to callers.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps a Kind to the status code used by the HTTP surface.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindIntegrity:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
