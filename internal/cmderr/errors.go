// Package cmderr defines the error kinds of §7. No variant names leak into
// command interfaces — commands surface a message and a boolean/ExecResult,
// but internally these types let the dispatcher and tests distinguish a
// recoverable condition (EntityNotFound during replay) from a hard failure
// (StoreError, InvariantViolation).
package cmderr

import "fmt"

// MissingParameter: a required argument is absent or empty.
type MissingParameter struct {
	Command string
	Field   string
}

func (e *MissingParameter) Error() string {
	return fmt.Sprintf("%s: missing required parameter %q", e.Command, e.Field)
}

// EntityNotFound: a target id could not be resolved.
type EntityNotFound struct {
	Kind string
	ID   string
}

func (e *EntityNotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// ConstraintViolation: split outside clip bounds, rename to empty, unknown
// target type, occluded ripple-delete gap, and similar.
type ConstraintViolation struct {
	Message string
}

func (e *ConstraintViolation) Error() string { return e.Message }

// MediaBoundary: a ripple-out would exceed media duration. Per §4.10 this is
// not a hard failure — the batch engine clamps — but the type exists so a
// caller can detect and surface which edges hit it.
type MediaBoundary struct {
	ClipID string
}

func (e *MediaBoundary) Error() string {
	return fmt.Sprintf("clip %q ripple exceeds media boundary", e.ClipID)
}

// UndoFailure: the undoer could not restore a mutation.
type UndoFailure struct {
	Command string
	Cause   error
}

func (e *UndoFailure) Error() string {
	return fmt.Sprintf("undo failed for %s: %v", e.Command, e.Cause)
}

func (e *UndoFailure) Unwrap() error { return e.Cause }

// InvariantViolation: assertion-grade bugs (rate mismatch, missing
// timeline_start on an entity passed to the batch engine).
type InvariantViolation struct {
	Message string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Message)
}
