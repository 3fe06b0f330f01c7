// Package errors carries the error taxonomy of the realtime core.
//
// TransportUnavailable is deliberately absent: a push target not being live
// is a normal condition reported as a boolean by the multiplexer, and callers
// route it to the offline queue instead of failing.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrNotFound    = fmt.Errorf("not found")
)

// ValidationError rejects malformed input or a sender that is not a
// participant of the targeted conversation. Nothing is persisted.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Reason)
}

func NewValidation(format string, args ...any) ValidationError {
	return ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}

// AuthorizationError rejects an action on a resource the actor does not own,
// such as marking another user's notification as read.
type AuthorizationError struct {
	Reason string
}

func (e AuthorizationError) Error() string {
	return fmt.Sprintf("authorization: %s", e.Reason)
}

func NewAuthorization(format string, args ...any) AuthorizationError {
	return AuthorizationError{Reason: fmt.Sprintf(format, args...)}
}

func IsAuthorization(err error) bool {
	var a AuthorizationError
	return errors.As(err, &a)
}

// PersistenceFailure wraps a store error. It is fatal to the individual
// operation and must surface to the caller for retry; swallowing it would
// break the persist-before-push contract.
type PersistenceFailure struct {
	Op  string
	Err error
}

func (e PersistenceFailure) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e PersistenceFailure) Unwrap() error { return e.Err }

func NewPersistence(op string, err error) PersistenceFailure {
	return PersistenceFailure{Op: op, Err: err}
}

func IsPersistence(err error) bool {
	var p PersistenceFailure
	return errors.As(err, &p)
}
