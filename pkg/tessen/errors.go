package tessen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnrecognizedUpdate indicates an update that matches none of the
	// recognized payload variants.
	ErrUnrecognizedUpdate = errors.New("tessen: unrecognized update kind")
	// ErrInvalidRule indicates a pattern rule that fails validation at
	// registration time.
	ErrInvalidRule = errors.New("tessen: invalid pattern rule")
	// ErrDuplicateEvent indicates two registrations competing for one event name.
	ErrDuplicateEvent = errors.New("tessen: duplicate event registration")
)

// StatusError carries a transport status code alongside a wrapped cause so
// the boundary can answer the originating webhook call.
type StatusError struct {
	Code int
	Err  error
}

// Error formats the status and the wrapped cause.
func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %v", e.Code, e.Err)
}

// Unwrap exposes the cause for errors.Is/As checks.
func (e *StatusError) Unwrap() error {
	return e.Err
}

// StatusCode returns the transport status to answer with.
func (e *StatusError) StatusCode() int {
	return e.Code
}

// WithStatus wraps err with a transport status code.
func WithStatus(code int, err error) error {
	if err == nil {
		return nil
	}

	return &StatusError{Code: code, Err: err}
}

// HTTPStatus derives the response status for a dispatch failure: the code
// carried on the error when present, otherwise a generic client error.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var coded interface{ StatusCode() int }
	if errors.As(err, &coded) {
		return coded.StatusCode()
	}

	return http.StatusBadRequest
}

// FailureKind partitions isolated dispatch failures by origin.
type FailureKind string

const (
	// FailureHandler is a failure (error or panic) raised by caller-supplied
	// handler code.
	FailureHandler FailureKind = "handler_invocation"
	// FailureEnrichment is a failure from the file-lookup collaborator
	// during attachment resolution.
	FailureEnrichment FailureKind = "attachment_resolution"
)

// Failure is one isolated dispatch failure delivered to the failure sink.
// Failures never propagate to whichever transport call produced the update.
type Failure struct {
	// Kind is the failure origin.
	Kind FailureKind
	// Scope names the code path that isolated the failure.
	Scope string
	// CorrelationID ties the failure back to one inbound update or flush.
	CorrelationID string
	// Err is the underlying cause.
	Err error
}

// FailureSink receives isolated failures. Implementations must not block.
type FailureSink func(context.Context, Failure)
