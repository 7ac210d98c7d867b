package appointment

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned for operations referencing an unknown
	// appointment id.
	ErrNotFound = errors.New("appointment not found")

	// ErrStaleStatus is returned when a compare-and-swap write finds the
	// stored status no longer matches the one the caller read.
	ErrStaleStatus = errors.New("appointment status changed concurrently")

	// ErrBeingBooked is returned when the per-resource lock could not be
	// acquired; the caller should retry.
	ErrBeingBooked = errors.New("resource is currently being booked, please retry")
)

// ValidationError reports a missing or malformed field on create or update.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid appointment: %s %s", e.Field, e.Reason)
}

// InvalidTransitionError reports a status change the state machine does not
// permit.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// ConflictError carries every detected collision so the caller can report
// which resource collided and with which appointment.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	parts := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		parts[i] = fmt.Sprintf("%s with %s", strings.ToLower(string(c.Kind)), c.With)
	}
	return "booking conflict: " + strings.Join(parts, ", ")
}
