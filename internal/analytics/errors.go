package analytics

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks client-caused failures (HTTP 400).
	ErrInvalidInput = errors.New("invalid input")
	// ErrInternal marks store, mail, or other server-side failures (HTTP 500).
	ErrInternal = errors.New("internal error")
	// ErrNotFound is returned by stores for a missing key or object.
	ErrNotFound = errors.New("not found")
)

// OpError wraps a server-side failure with the operation that failed.
type OpError struct {
	Op  string
	Err error
}

// Internal wraps err as an internal failure of op.
func Internal(op string, err error) error {
	return &OpError{Op: op, Err: err}
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Is matches ErrInternal so callers can classify without unwrapping.
func (e *OpError) Is(target error) bool {
	return target == ErrInternal
}

// TrackDiagnostics explains why a tracking payload was rejected.
type TrackDiagnostics struct {
	SessionIDPresent bool    `json:"sessionIdPresent"`
	EventType        *string `json:"eventType,omitempty"`
	EventTypeValid   bool    `json:"eventTypeValid"`
}

// TrackValidationError is returned for a malformed tracking payload.
type TrackValidationError struct {
	Details TrackDiagnostics
}

func (e *TrackValidationError) Error() string {
	return fmt.Sprintf(
		"invalid payload: session_id_present=%t event_type_valid=%t",
		e.Details.SessionIDPresent,
		e.Details.EventTypeValid,
	)
}

func (e *TrackValidationError) Unwrap() error {
	return ErrInvalidInput
}
