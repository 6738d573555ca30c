// Package domainerrors defines the closed error taxonomy shared by storage,
// messaging, and domain layers. Callers branch on the code, never on error
// strings.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for recovery dispatch.
type Code string

const (
	// CodeNotFound is a lookup miss. Surfaced to the caller; the owning
	// request scope rolls back and clears its outbound batch.
	CodeNotFound Code = "not_found"
	// CodeConflict is a persistence constraint violation.
	CodeConflict Code = "conflict"
	// CodeInvalidState is a domain invariant violation, e.g. mutating a
	// voided invoice. Fatal to the operation, never retried.
	CodeInvalidState Code = "invalid_state"
	// CodeTransient is a broker or connection failure that is retried with
	// fixed backoff at the connection layer.
	CodeTransient Code = "transient"
	// CodeProtocol is a channel-level protocol failure. Fatal: consumption
	// stops instead of retrying.
	CodeProtocol Code = "protocol"
	// CodeInternal is everything else.
	CodeInternal Code = "internal"
)

// Error carries a code alongside the message and an optional cause.
type Error struct {
	Code  Code
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Msg: msg}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an existing error. A nil cause yields
// nil so call sites can wrap return values unconditionally.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Msg: msg, Cause: err}
}

// CodeOf extracts the outermost code, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HasCode reports whether any error in the chain carries the code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}
