package gateway

import (
	"errors"
	"fmt"
)

// ErrKind classifies a gateway failure. Every request-terminal error
// carries exactly one kind; the HTTP and MCP layers map kinds to
// status codes without inspecting messages.
type ErrKind string

const (
	ErrInvalidRequest       ErrKind = "INVALID_REQUEST"
	ErrTenantNotFound       ErrKind = "TENANT_NOT_FOUND"
	ErrRegistryUnavailable  ErrKind = "TENANT_REGISTRY_UNAVAILABLE"
	ErrUnsupportedType      ErrKind = "UNSUPPORTED_TYPE"
	ErrCoercion             ErrKind = "COERCION_ERROR"
	ErrUnexpectedParameters ErrKind = "UNEXPECTED_PARAMETERS"
	ErrExecution            ErrKind = "EXECUTION_FAILURE"
	ErrTimeout              ErrKind = "EXECUTION_TIMEOUT"
	ErrResultDecode         ErrKind = "RESULT_DECODE_FAILURE"
)

// Error is a terminal gateway failure. Message is safe to surface to
// the caller: it never contains credentials or driver internals beyond
// the underlying database's own error text.
type Error struct {
	Kind    ErrKind
	Message string
	err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("gateway: %s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.err }

func newErr(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapErr(kind ErrKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), err: err}
}

// KindOf extracts the kind from a gateway error chain. Unrecognized
// errors report ErrExecution so no failure escapes unclassified.
func KindOf(err error) ErrKind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ErrExecution
}

// MessageOf returns the caller-safe message for a gateway error chain.
func MessageOf(err error) string {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Message
	}
	return "internal error"
}
