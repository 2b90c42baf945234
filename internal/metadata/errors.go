package metadata

import (
	"context"
	"errors"
	"fmt"
)

// Failure kinds surfaced by Service. Match them with errors.Is.
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNotFound            = errors.New("not found")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrInternal            = errors.New("internal error")
)

// ErrGameNotFound is returned by a Provider when the upstream API confirms a
// game id does not exist.
var ErrGameNotFound = errors.New("game not found upstream")

// Error is a failed Search or GetByID call.
type Error struct {
	Op   string // Operation that failed (e.g., "get game")
	Kind error  // One of the Err* kinds above
	Err  error  // Underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func invalidArgument(op, msg string) error {
	return &Error{Op: op, Kind: ErrInvalidArgument, Err: errors.New(msg)}
}

// StatusError is a non-success HTTP response from the upstream API.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status: %s", e.Endpoint, e.Status)
}

// TransportError is a failure to reach the upstream API at all, including
// timeouts.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// classify maps any failure to one of the four kinds. Errors that already
// carry a kind keep it, so failures from nested calls are not re-wrapped.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}

	var (
		statusErr    *StatusError
		transportErr *TransportError
	)
	switch {
	case errors.Is(err, ErrGameNotFound):
		return &Error{Op: op, Kind: ErrNotFound, Err: err}
	case errors.As(err, &statusErr), errors.As(err, &transportErr),
		errors.Is(err, context.DeadlineExceeded):
		return &Error{Op: op, Kind: ErrUpstreamUnavailable, Err: err}
	default:
		return &Error{Op: op, Kind: ErrInternal, Err: err}
	}
}
