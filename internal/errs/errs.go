/*
Package errs defines the closed set of domain error kinds used across
recall-cycle.

Every failure that crosses a package boundary is wrapped in an *Error
carrying a kind, a machine-readable code, and a retryable flag. The phase
runner switches on the kind exactly once, at its top-level catch point, to
decide between aborting and entering Safe-Degrade.
*/
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the closed domain categories.
type Kind int

const (
	// KindConfig is an invalid or missing configuration. Not retryable.
	KindConfig Kind = iota

	// KindInfra is an I/O, lock, or network failure. Retryable by default.
	KindInfra

	// KindStore is a failure reported by the external note store. Retryable.
	KindStore

	// KindData is an item-store inconsistency. Not retryable.
	KindData

	// KindDegrade signals that the Safe-Degrade path itself failed. Terminal.
	KindDegrade
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindInfra:
		return "infra"
	case KindStore:
		return "store"
	case KindData:
		return "data"
	case KindDegrade:
		return "degrade"
	default:
		return "unknown"
	}
}

// Error is a classified domain error.
type Error struct {
	// Kind is the closed-set category.
	Kind Kind

	// Code is a stable machine-readable identifier (e.g. "STORE_ERROR").
	Code string

	// Message is the human-readable description.
	Message string

	// Retryable indicates whether retrying the operation may succeed.
	Retryable bool

	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Config creates a configuration error (not retryable).
func Config(format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Code: "CONFIG_ERROR", Message: fmt.Sprintf(format, args...)}
}

// Infra creates an infrastructure error (retryable).
func Infra(format string, args ...any) *Error {
	return &Error{Kind: KindInfra, Code: "INFRA_ERROR", Message: fmt.Sprintf(format, args...), Retryable: true}
}

// Store creates a note-store error (retryable).
func Store(format string, args ...any) *Error {
	return &Error{Kind: KindStore, Code: "STORE_ERROR", Message: fmt.Sprintf(format, args...), Retryable: true}
}

// Data creates an item-store inconsistency error (not retryable).
func Data(format string, args ...any) *Error {
	return &Error{Kind: KindData, Code: "DATA_ERROR", Message: fmt.Sprintf(format, args...)}
}

// Degrade creates a terminal degrade failure (not retryable).
func Degrade(format string, args ...any) *Error {
	return &Error{Kind: KindDegrade, Code: "DEGRADE_FAILED", Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to e and returns e.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// WithCode overrides the default code and returns e.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// KindOf reports the kind of err if it is (or wraps) a classified *Error.
func KindOf(err error) (Kind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}

// CodeOf returns the stable code for err, or "UNKNOWN" for unclassified errors.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "UNKNOWN"
}

// IsRetryable reports whether err is a classified error marked retryable.
func IsRetryable(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}
