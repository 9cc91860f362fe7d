package privacy

import (
	"errors"
	"fmt"
)

// Common errors returned by the privacy core. Callers should match with
// errors.Is; services wrap these with context via fmt.Errorf("...: %w", err).
var (
	// ErrPrivacyViolation marks operations that would exceed what the user's
	// privacy settings permit. Never retried.
	ErrPrivacyViolation = errors.New("privacy violation")

	// ErrInvalidCoordinates marks coordinates outside valid lat/lng ranges.
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrSuspiciousCoordinates marks placeholder-looking input such as an
	// exact (0,0) fix. Rejected before any noise or storage step.
	ErrSuspiciousCoordinates = errors.New("suspicious coordinates")

	// ErrStorage marks a persistence read/write failure.
	ErrStorage = errors.New("storage failure")

	// ErrInsufficientData distinguishes "not enough history to answer" from
	// an answer of zero.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNotFound marks a missing record.
	ErrNotFound = errors.New("not found")
)

// ViolationError carries the reason a privacy refusal happened.
type ViolationError struct {
	Reason string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("privacy violation: %s", e.Reason)
}

func (e *ViolationError) Unwrap() error {
	return ErrPrivacyViolation
}
