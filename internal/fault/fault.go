package fault

import (
	"errors"
	"fmt"
)

// Kind categorizes a recoverable failure.
// The string value is part of every error message and must not change.
type Kind string

const (
	// InvalidInput indicates malformed input such as an empty URI or a negative dimension.
	InvalidInput Kind = "InvalidInputError"

	// SchemaViolation indicates a document that does not conform to its schema.
	SchemaViolation Kind = "SchemaViolationError"

	// NotFound indicates a missing uuid, label, property or entity.
	NotFound Kind = "NotFoundError"

	// ShapeMismatch indicates a value whose shape differs from the resolved property shape.
	ShapeMismatch Kind = "ShapeMismatchError"

	// UnresolvedDimension indicates a shape expression referencing a dimension without a value.
	UnresolvedDimension Kind = "UnresolvedDimensionError"

	// UnsupportedScheme indicates a storage URL whose scheme has no registered driver.
	UnsupportedScheme Kind = "UnsupportedSchemeError"

	// ImmutableTarget indicates an overwrite attempted without explicit permission.
	ImmutableTarget Kind = "ImmutableTargetError"

	// StorageIO indicates an I/O failure at any stage of load or save.
	StorageIO Kind = "StorageIOError"
)

// Error is the single error type crossing package boundaries.
//
// The message rendered by Error() is "<Kind>: <Reason>: <Subject>" and is
// asserted by callers, so Detail and Err never leak into it. Use Details()
// when diagnostics are wanted.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Reason is a short human-readable description.
	Reason string

	// Subject is the uri, uuid, label or path the error is about.
	Subject string

	// Detail holds additional context (validator output, offending field).
	Detail string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Reason, e.Subject)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Details returns the message followed by detail and cause.
func (e *Error) Details() string {
	s := e.Error()
	if e.Detail != "" {
		s += " (" + e.Detail + ")"
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// New creates an error of the given kind.
func New(kind Kind, reason, subject string) *Error {
	return &Error{Kind: kind, Reason: reason, Subject: subject}
}

// Wrap creates an error of the given kind with an underlying cause.
func Wrap(kind Kind, err error, reason, subject string) *Error {
	return &Error{Kind: kind, Reason: reason, Subject: subject, Err: err}
}

// WithDetail returns a copy of e carrying detail.
func (e *Error) WithDetail(format string, args ...any) *Error {
	c := *e
	c.Detail = fmt.Sprintf(format, args...)
	return &c
}

// KindOf returns the kind of err, or "" if err is not (and does not wrap) an *Error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Invariant aborts on an internal invariant violation.
// Corrupted refcounts or out-of-bounds offsets must never be recovered from.
func Invariant(format string, args ...any) {
	panic(fmt.Sprintf("istore: invariant violated: "+format, args...))
}
