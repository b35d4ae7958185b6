// Package ctxerr defines the typed error kinds and result envelope every
// store and service method in ctxengine returns through, instead of ad hoc
// string errors. It is a reusable error type that carries a
// machine-checkable Kind alongside its message, in place of a one-off
// apiError/writeError pair per caller.
package ctxerr

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindInvalidInput        Kind = "invalid_input"
	KindConflict            Kind = "conflict"
	KindIO                  Kind = "io"
	KindParse               Kind = "parse"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindTimeout             Kind = "timeout"
	KindCancelled           Kind = "cancelled"
	KindCorruption          Kind = "corruption"
	KindInternal            Kind = "internal"
)

// Error is the concrete error type returned by ctxengine components. Hint is
// an optional, user-facing suggestion distinct from Message's diagnostic text.
type Error struct {
	Kind    Kind
	Message string
	Hint    string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches kind and message to an existing error.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithHint returns a copy of e with Hint set.
func (e *Error) WithHint(hint string) *Error {
	cp := *e
	cp.Hint = hint
	return &cp
}

// KindOf extracts the Kind of err, defaulting to KindInternal for errors
// that were never wrapped as *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err (or something it wraps) has the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Envelope is the {success, data?, error?} response shape spec'd for every
// action dispatched through the facade's action router.
type Envelope struct {
	Success bool          `json:"success"`
	Data    any           `json:"data,omitempty"`
	Error   *EnvelopeErr  `json:"error,omitempty"`
}

// EnvelopeErr is the wire form of *Error inside an Envelope.
type EnvelopeErr struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// Ok wraps a successful result.
func Ok(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

// Fail wraps err into a failure Envelope, promoting plain errors to
// KindInternal the same way KindOf does.
func Fail(err error) Envelope {
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Kind: KindInternal, Message: err.Error()}
	}
	return Envelope{Success: false, Error: &EnvelopeErr{Kind: e.Kind, Message: e.Message, Hint: e.Hint}}
}
