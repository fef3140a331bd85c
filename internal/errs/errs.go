package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an operational failure so callers can choose between
// retrying, surfacing, or ignoring it.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindValidation
	KindConnectionRefused
	KindTimeout
	KindAuthFailed
	KindProtocol
	KindRuntimeUnavailable
	KindPartialFailure
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConnectionRefused:
		return "connection_refused"
	case KindTimeout:
		return "timeout"
	case KindAuthFailed:
		return "authentication_failed"
	case KindProtocol:
		return "protocol_error"
	case KindRuntimeUnavailable:
		return "runtime_unavailable"
	case KindPartialFailure:
		return "partial_failure"
	default:
		return "unknown"
	}
}

// Error carries a kind, a human-readable reason and an optional cause.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is match any *Error with the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// New creates an error of the given kind
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap creates an error of the given kind wrapping a cause
func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// NotFound reports a missing server, backup or plugin identifier
func NotFound(what, id string) *Error {
	return &Error{Kind: KindNotFound, Reason: fmt.Sprintf("%s %s not found", what, id)}
}

// Validation reports malformed input that must never be retried
func Validation(reason string) *Error {
	return &Error{Kind: KindValidation, Reason: reason}
}

// KindOf extracts the Kind from an error chain, KindUnknown if none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether the error chain carries the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
