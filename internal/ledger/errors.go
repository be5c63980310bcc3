// Package ledger holds the task-approval rules: the transition table that
// decides which status changes are legal for which actor, and the error
// kinds the rest of the system maps to HTTP responses.
package ledger

import "errors"

var (
	// ErrValidation marks malformed or missing input.
	ErrValidation = errors.New("invalid input")
	// ErrNotFound marks a reference to an id that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden marks an actor whose role may not perform the transition.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition marks a status change that is not reachable from
	// the task's current status.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrConflict marks a transition that was legal when requested but lost
	// a race: the row changed before commit. Callers should re-pull the
	// snapshot and retry if still desired.
	ErrConflict = errors.New("conflict")
)
