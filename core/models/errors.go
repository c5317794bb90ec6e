package models

import (
	"errors"
	"fmt"
)

// Error taxonomy for the orchestration core. Handlers map these onto
// HTTP status codes; everything else is treated as internal.
var (
	// ErrInvalidInput rejects a malformed request before any state exists
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound signals an unknown job id
	ErrNotFound = errors.New("job not found")

	// ErrInvalidTransition signals misuse of the job state machine
	ErrInvalidTransition = errors.New("invalid state transition")
)

func invalidInputf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func invalidTransitionf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

// OrchestrationError wraps an internal fault (spawn failure, store
// unavailability) so callers can distinguish it from bad input.
type OrchestrationError struct {
	Op  string
	Err error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("orchestration error during %s: %v", e.Op, e.Err)
}

func (e *OrchestrationError) Unwrap() error { return e.Err }

// Orchestrationf wraps err as an OrchestrationError for operation op
func Orchestrationf(op string, err error) error {
	return &OrchestrationError{Op: op, Err: err}
}
