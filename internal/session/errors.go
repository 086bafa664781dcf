package session

import "errors"

// The session engine reports failures in three categories, each surfaced
// differently by the transport layer: missing resources, insufficient role,
// and invalid state transitions. A denied line lock is none of these; it is
// a normal protocol outcome and never travels as an error.

// NotFoundError reports an absent team, class, task, user or submission.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// NotFound builds a NotFoundError for the named resource.
func NotFound(resource string) error { return &NotFoundError{Resource: resource} }

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// RoleError reports an actor lacking the role an operation requires.
type RoleError struct {
	Reason string
}

func (e *RoleError) Error() string { return e.Reason }

func IsRoleViolation(err error) bool {
	var e *RoleError
	return errors.As(err, &e)
}

// StateError reports an operation that is invalid in the current derived
// state (blocked team submitting, task not assigned to the class, class not
// in session).
type StateError struct {
	Reason string
}

func (e *StateError) Error() string { return e.Reason }

func IsStateViolation(err error) bool {
	var e *StateError
	return errors.As(err, &e)
}
