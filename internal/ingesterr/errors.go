// Package ingesterr centralizes the error taxonomy of spec.md §7 as
// typed, eris-wrapped errors, each carrying the model.ItemErrorKind it
// maps to and whether the orchestrator (C11) should retry it.
package ingesterr

import (
	"errors"

	"github.com/rotisserie/eris"

	"github.com/csrc-disclosure/fundreport-sync/internal/model"
	"github.com/csrc-disclosure/fundreport-sync/internal/resilience"
)

// ValidationError is bad user input (spec §4.1). Never enqueued, never
// retried — it is surfaced directly to the caller.
type ValidationError struct{ Err error }

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Err: eris.Errorf(format, args...)}
}

// PortalError is a non-2xx or malformed response from the disclosure
// portal (C2). Retryable on 5xx/timeouts, terminal otherwise.
type PortalError struct {
	Err        error
	StatusCode int
}

func (e *PortalError) Error() string { return e.Err.Error() }
func (e *PortalError) Unwrap() error { return e.Err }

func NewPortalError(err error, statusCode int) *PortalError {
	return &PortalError{Err: eris.Wrap(err, "portal"), StatusCode: statusCode}
}

// HTTPError is a downloader (C3) non-2xx response. Retryable on 5xx
// only — 4xx responses mean the artifact genuinely doesn't exist.
type HTTPError struct {
	Err        error
	StatusCode int
}

func (e *HTTPError) Error() string { return e.Err.Error() }
func (e *HTTPError) Unwrap() error { return e.Err }

func NewHTTPError(statusCode int) *HTTPError {
	return &HTTPError{Err: eris.Errorf("downloader: unexpected status %d", statusCode), StatusCode: statusCode}
}

// NetworkError wraps a transport-level failure (connection reset, DNS,
// timeout). Always retryable.
type NetworkError struct{ Err error }

func (e *NetworkError) Error() string { return e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

func NewNetworkError(err error) *NetworkError {
	return &NetworkError{Err: eris.Wrap(err, "network")}
}

// TimeoutError wraps a context-deadline or client-timeout failure.
// Always retryable.
type TimeoutError struct{ Err error }

func (e *TimeoutError) Error() string { return e.Err.Error() }
func (e *TimeoutError) Unwrap() error { return e.Err }

func NewTimeoutError(err error) *TimeoutError {
	return &TimeoutError{Err: eris.Wrap(err, "timeout")}
}

// FormatError means the detector returned UNKNOWN and every fallback
// was exhausted. Terminal per-item — there is nothing left to retry.
type FormatError struct{ Err error }

func (e *FormatError) Error() string { return e.Err.Error() }
func (e *FormatError) Unwrap() error { return e.Err }

func NewFormatError(err error) *FormatError {
	return &FormatError{Err: eris.Wrap(err, "format")}
}

// ParseError is an extractor or concept-mapper failure. Terminal
// per-item: a malformed document will not parse differently on retry.
type ParseError struct{ Err error }

func (e *ParseError) Error() string { return e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

func NewParseError(err error) *ParseError {
	return &ParseError{Err: eris.Wrap(err, "parse")}
}

// DbErrorKind distinguishes a transient connectivity failure (retry the
// persist step) from a constraint violation (terminal per-item).
type DbErrorKind string

const (
	DbTransport  DbErrorKind = "transport"
	DbConstraint DbErrorKind = "constraint"
)

// DbError wraps a persistence-layer (C12) failure.
type DbError struct {
	Err  error
	Kind DbErrorKind
}

func (e *DbError) Error() string { return e.Err.Error() }
func (e *DbError) Unwrap() error { return e.Err }

func NewDbError(err error, kind DbErrorKind) *DbError {
	return &DbError{Err: eris.Wrap(err, "db"), Kind: kind}
}

// TaskCancelledError marks an item skipped because of a user-initiated
// cancel (spec §4.11). Not a failure — the item's terminal status is
// CANCELLED, not FAILED.
type TaskCancelledError struct{ Err error }

func (e *TaskCancelledError) Error() string { return e.Err.Error() }
func (e *TaskCancelledError) Unwrap() error { return e.Err }

func NewTaskCancelledError() *TaskCancelledError {
	return &TaskCancelledError{Err: eris.New("task: cancelled")}
}

// Classify maps any error from the download→parse→persist chain to the
// model.ItemErrorKind spec.md §3/§7 persists on an ItemOutcome. Errors
// not recognized as one of the typed kinds above default to PARSE,
// since by the time an unclassified error reaches here it almost always
// originated in extraction logic rather than I/O.
func Classify(err error) model.ItemErrorKind {
	var (
		portalErr    *PortalError
		httpErr      *HTTPError
		netErr       *NetworkError
		timeoutErr   *TimeoutError
		formatErr    *FormatError
		parseErr     *ParseError
		dbErr        *DbError
		cancelledErr *TaskCancelledError
	)
	switch {
	case errors.As(err, &cancelledErr):
		return model.ItemErrorCancelled
	case errors.As(err, &httpErr):
		return model.ItemErrorHTTP
	case errors.As(err, &portalErr):
		return model.ItemErrorHTTP
	case errors.As(err, &netErr):
		return model.ItemErrorNetwork
	case errors.As(err, &timeoutErr):
		return model.ItemErrorTimeout
	case errors.As(err, &formatErr):
		return model.ItemErrorFormat
	case errors.As(err, &parseErr):
		return model.ItemErrorParse
	case errors.As(err, &dbErr):
		if dbErr.Kind == DbConstraint {
			return model.ItemErrorDBConstraint
		}
		return model.ItemErrorDBTransport
	default:
		return model.ItemErrorParse
	}
}

// ShouldRetry reports whether the orchestrator should retry the step
// that produced err, per spec.md §7's policy column. It defers to
// resilience.IsTransient/IsTransientHTTPStatus for the generic
// network-level heuristics and only special-cases the typed errors
// whose retryability is fixed by their type (NetworkError and
// TimeoutError always retry) or depends on a field resilience can't see
// (e.g. an HTTPError's status code, or a DbError's kind).
func ShouldRetry(err error) bool {
	var (
		validationErr *ValidationError
		httpErr       *HTTPError
		portalErr     *PortalError
		formatErr     *FormatError
		parseErr      *ParseError
		dbErr         *DbError
		cancelledErr  *TaskCancelledError
		netErr        *NetworkError
		timeoutErr    *TimeoutError
	)
	switch {
	case errors.As(err, &validationErr), errors.As(err, &formatErr), errors.As(err, &parseErr), errors.As(err, &cancelledErr):
		return false
	case errors.As(err, &httpErr):
		return resilience.IsTransientHTTPStatus(httpErr.StatusCode)
	case errors.As(err, &portalErr):
		return portalErr.StatusCode == 0 || resilience.IsTransientHTTPStatus(portalErr.StatusCode)
	case errors.As(err, &dbErr):
		return dbErr.Kind == DbTransport
	case errors.As(err, &netErr), errors.As(err, &timeoutErr):
		return true
	default:
		return resilience.IsTransient(err)
	}
}
