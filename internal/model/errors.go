package model

import (
	"errors"
	"fmt"
)

// Error kinds. Every domain error wraps exactly one kind so callers can
// classify failures with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrConflict         = errors.New("conflict")
	ErrBadRequest       = errors.New("bad request")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// kindError is a domain error belonging to one error kind
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

var (
	// Authentication and authorization errors
	ErrNotAuthenticated      = newError(ErrUnauthenticated, "authentication required")
	ErrInvalidCredentials    = newError(ErrUnauthenticated, "invalid username or password")
	ErrInvalidSession        = newError(ErrUnauthenticated, "invalid or expired session")
	ErrInsufficientAuthority = newError(ErrForbidden, "insufficient authority")
	ErrInvalidCSRFToken      = newError(ErrForbidden, "missing or invalid anti-forgery token")

	// User errors
	ErrUserNotFound      = newError(ErrNotFound, "user not found")
	ErrReservedUsername  = newError(ErrBadRequest, "username is reserved")
	ErrDuplicateUsername = newError(ErrConflict, "username already exists")
	ErrInvalidUser       = newError(ErrBadRequest, "invalid user details")

	// Scenario errors
	ErrScenarioNotFound = newError(ErrNotFound, "scenario not found")

	// Game errors
	ErrGameNotFound          = newError(ErrNotFound, "game not found")
	ErrCurrentGameNotFound   = newError(ErrNotFound, "user has no current game")
	ErrGameNotWaitingToStart = newError(ErrConflict, "game is not waiting to start")
	ErrNotRecruiting         = newError(ErrConflict, "game is not recruiting players")
	ErrPlayingOtherGame      = newError(ErrConflict, "user is already playing a different game")
	ErrNoFreeCharacter       = newError(ErrConflict, "no free character in game")
	ErrVersionConflict       = newError(ErrConflict, "record was modified concurrently")

	// Request errors
	ErrInvalidID = newError(ErrBadRequest, "malformed identifier")
)

// StoreError reports a failure of a storage backend. It matches both
// ErrStoreUnavailable and the underlying cause.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// WrapStoreError wraps a backend error, passing nil and domain errors through
func WrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ke *kindError
	if errors.As(err, &ke) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
