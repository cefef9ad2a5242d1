/*
errors.go - Error kinds shared by the leave and attendance engines

PURPOSE:
  Every failure the engine surfaces to a caller maps to one of the sentinel
  errors below. Structured errors carry the context needed to render a
  user-facing message and unwrap to their sentinel, so callers branch with
  errors.Is / errors.As.

RETRY POLICY:
  Only ErrConcurrentModification is retryable. Everything else is either bad
  input or a genuine state conflict that a human must resolve.

SEE ALSO:
  - leave/service.go, attendance/service.go: Producers
  - api/errors.go: HTTP status mapping
*/
package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidTimeRange    = errors.New("invalid time range")
	ErrPolicyViolation     = errors.New("policy violation")
	ErrInvalidTransition   = errors.New("invalid transition")

	ErrAlreadyClockedIn  = errors.New("already clocked in")
	ErrAlreadyClockedOut = errors.New("already clocked out")
	ErrAlreadyCompleted  = errors.New("attendance already completed for the day")
	ErrNoClockInFound    = errors.New("no clock-in found")

	ErrNotFound = errors.New("not found")

	// ErrConcurrentModification is returned when an optimistic version check
	// fails or a balance lock cannot be obtained in time.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrInvalidInput covers malformed values (negative amounts, bad enums).
	ErrInvalidInput = errors.New("invalid input")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID
	Year        int
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s/%s/%d: available %s, requested %s",
		e.EmployeeID, e.LeaveTypeID, e.Year, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// Shortfall is how much more balance the request needed.
func (e *InsufficientBalanceError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

// TransitionError reports an action attempted from the wrong state.
type TransitionError struct {
	Subject string
	From    string
	Action  string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s %s in state %s", e.Action, e.Subject, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// NotFoundError names the kind and id of a missing resource.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.ID) }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// PolicyViolationError reports a request that the configured policy forbids.
type PolicyViolationError struct {
	Policy string
	Reason string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("policy violation (%s): %s", e.Policy, e.Reason)
}

func (e *PolicyViolationError) Unwrap() error { return ErrPolicyViolation }

func NotFound(kind string, id any) error {
	return &NotFoundError{Kind: kind, ID: fmt.Sprint(id)}
}

func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func InvalidTimeRange(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTimeRange, fmt.Sprintf(format, args...))
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input or
// a state conflict the caller caused.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidTimeRange) ||
		errors.Is(err, ErrPolicyViolation) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrAlreadyClockedIn) ||
		errors.Is(err, ErrAlreadyClockedOut) ||
		errors.Is(err, ErrAlreadyCompleted) ||
		errors.Is(err, ErrNoClockInFound) ||
		errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
