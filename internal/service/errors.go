// Package service implements the festival workflow: identity and sessions,
// program and screening state machines, role resolution and visibility.
// Handlers call it with an authenticated *model.User (nil for anonymous
// callers) and map the sentinel errors below to HTTP responses.
package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/cinema-festival/internal/repository"
	"github.com/iliyamo/cinema-festival/internal/utils"
)

var (
	// ErrNotFound means a referenced user, program, screening or session
	// does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict covers uniqueness violations, invalid date or time
	// ordering and deletes blocked by references.
	ErrConflict = errors.New("conflict")
	// ErrForbidden means the caller lacks the required role or ownership,
	// or acts outside the allowed program or screening state.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition means the requested program state is not the
	// next one in sequence.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrAuthFailed covers bad credentials and dead sessions.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrIntegrityViolation means a session token is bound to a different
	// user than the one it claims.  Both accounts have been deactivated by
	// the time it is returned.
	ErrIntegrityViolation = errors.New("session integrity violation")
	// ErrValidation means the input itself is malformed.
	ErrValidation = errors.New("validation failed")
)

func errorf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// translate maps repository sentinels onto service errors, naming the
// entity involved.  Unknown errors pass through unchanged.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return errorf(ErrNotFound, "%s not found", what)
	case errors.Is(err, repository.ErrDuplicate):
		return errorf(ErrConflict, "%s already exists", what)
	case errors.Is(err, repository.ErrConflict):
		return errorf(ErrConflict, "%s is still referenced", what)
	}
	return err
}

// validate checks the validate tags of v and reports the first failure as
// ErrValidation.
func validate(v any) error {
	if err := utils.ValidateStruct(v); err != nil {
		return errorf(ErrValidation, "%s", err.Error())
	}
	return nil
}
