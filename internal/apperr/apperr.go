package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a failure into the closed set understood by the batch
// ledger, the retry policy, and the CLI.
type Kind string

const (
	UnsupportedInput Kind = "UnsupportedInput"
	NotFound         Kind = "NotFound"
	NetworkError     Kind = "NetworkError"
	ValidationError  Kind = "ValidationError"
	ParseError       Kind = "ParseError"
	IOFailed         Kind = "IOFailed"
	Cancelled        Kind = "Cancelled"
	ConfigError      Kind = "ConfigError"
)

// Error couples a Kind with an underlying cause.
type Error struct {
	Kind Kind
	Op   string // failing operation, e.g. "entrez.fetch"
	// Status carries the HTTP status code when the failure came from a
	// remote response, else 0.
	Status int
	// Transient marks failures that are worth retrying regardless of
	// Kind, such as a garbled payload on an otherwise successful fetch.
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with a formatted message.
func New(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a kind to an existing error.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf maps any error onto the closed kind set. Errors that never went
// through this package are classified from their shape: cancellation wins,
// transport errors are NetworkError, everything else is IOFailed.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, context.Canceled) {
		return Cancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NetworkError
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return NetworkError
	}
	return IOFailed
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
