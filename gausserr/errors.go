// Package gausserr defines the closed set of error kinds from spec.md
// section 7. Every public operation in gaussconn, gausspool, and mplex
// returns one of these (possibly wrapping a lower-level cause with
// github.com/pkg/errors) so callers can type-switch on stable,
// machine-readable kinds instead of parsing error strings.
package gausserr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the stable, machine-readable error classification from spec.md
// section 7.
type Kind string

const (
	KindConnectionFailed     Kind = "connection_failed"
	KindAuthenticationFailed Kind = "authentication_failed"
	KindTimeout              Kind = "timeout"
	KindCanceled             Kind = "canceled"
	KindServerError          Kind = "server_error"
	KindProtocolViolation    Kind = "protocol_violation"
	KindOperationInProgress  Kind = "operation_in_progress"
	KindBroken               Kind = "broken"
	KindConfigurationInvalid Kind = "configuration_invalid"
)

// Error is the common shape of every error this module returns directly.
// IncludeErrorDetail governs whether Error() renders Detail/Hint (spec.md
// section 7 "sensitive fields ... are omitted unless IncludeErrorDetail").
type Error struct {
	Kind    Kind
	Cause   error
	Message string

	// Populated only for KindServerError.
	SQLSTATE   string
	Detail     string
	Hint       string
	Column     string
	Table      string
	Constraint string
	File       string
	Line       int32
	Routine    string

	IncludeDetail bool
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.SQLSTATE != "" {
		msg = fmt.Sprintf("%s (sqlstate %s)", msg, e.SQLSTATE)
	}
	if e.IncludeDetail {
		if e.Detail != "" {
			msg += ": " + e.Detail
		}
		if e.Hint != "" {
			msg += " (hint: " + e.Hint + ")"
		}
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, gausserr.Broken) style sentinel comparisons work
// against the Kind rather than pointer identity.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newf(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Cause: cause, Message: fmt.Sprintf(format, args...)}
}

// ConnectionFailed wraps a DNS, refused-connection, or TLS-handshake
// failure.
func ConnectionFailed(cause error, format string, args ...interface{}) *Error {
	return newf(KindConnectionFailed, errors.WithStack(cause), format, args...)
}

// AuthenticationFailed wraps a server-reported or local credential error.
func AuthenticationFailed(cause error, format string, args ...interface{}) *Error {
	return newf(KindAuthenticationFailed, errors.WithStack(cause), format, args...)
}

// Timeout reports an open/rent/command deadline expiring.
func Timeout(format string, args ...interface{}) *Error {
	return newf(KindTimeout, nil, format, args...)
}

// Canceled reports a caller-initiated cancellation that completed cleanly.
func Canceled(format string, args ...interface{}) *Error {
	return newf(KindCanceled, nil, format, args...)
}

// ProtocolViolation reports an unexpected message, bad length, or truncated
// body. Per spec.md section 7, this always marks the connector Broken.
func ProtocolViolation(format string, args ...interface{}) *Error {
	return newf(KindProtocolViolation, nil, format, args...)
}

// OperationInProgress reports an attempt to execute on a non-Ready
// connector (spec.md section 3 invariant).
func OperationInProgress() *Error {
	return newf(KindOperationInProgress, nil, "connector has an outstanding operation in progress")
}

// Broken reports that the underlying connector became unusable after an
// I/O or protocol failure.
func Broken(cause error, format string, args ...interface{}) *Error {
	return newf(KindBroken, errors.WithStack(cause), format, args...)
}

// ConfigurationInvalid reports a bad connection string or incompatible
// option combination (spec.md section 6 "Validation rules").
func ConfigurationInvalid(format string, args ...interface{}) *Error {
	return newf(KindConfigurationInvalid, nil, format, args...)
}

// ServerError is a *Error of KindServerError, one per spec.md section 7.
// Retryable reports whether the SQLSTATE class is one of the transient
// classes ("57" operator intervention, "08" connection exception, ...) an
// opt-in retry strategy at the pool boundary may retry on open.
func ServerError(sqlstate, message, detail, hint, column, table, constraint, file string, line int32, routine string) *Error {
	return &Error{
		Kind:       KindServerError,
		Message:    message,
		SQLSTATE:   sqlstate,
		Detail:     detail,
		Hint:       hint,
		Column:     column,
		Table:      table,
		Constraint: constraint,
		File:       file,
		Line:       line,
		Routine:    routine,
	}
}

// Retryable reports whether e's SQLSTATE belongs to a transient class that
// an opt-in retrying strategy may retry on open (spec.md section 7).
func (e *Error) Retryable() bool {
	if e.Kind != KindServerError || len(e.SQLSTATE) < 2 {
		return false
	}
	switch e.SQLSTATE[:2] {
	case "57", "08":
		return true
	}
	return false
}
