// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"strings"
)

// Common sentinels across repo/service layers.
var (
	// ErrValidation indicates missing or malformed input the caller can fix.
	ErrValidation = errors.New("validation error")

	// ErrInvalidState indicates the operation is illegal in the record's current lifecycle state,
	// including a failed check-then-set guard.
	ErrInvalidState = errors.New("invalid state")

	// ErrTokenInvalid indicates no live record holds the presented token.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrTokenExpired indicates the token matched but its expiry has passed.
	ErrTokenExpired = errors.New("token expired")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the actor lacks the role or ownership required.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict indicates a uniqueness violation or a job that is already running.
	ErrConflict = errors.New("conflict")

	// ErrInternal indicates an unexpected failure, e.g. an audit write that could not be persisted.
	ErrInternal = errors.New("internal error")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates the caller is temporarily blocked after repeated bad tokens.
	ErrRateLimited = errors.New("rate limited")
)

// ValidationError carries every unmet requirement so callers can fix them in one round trip.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return ErrValidation.Error()
	}
	return ErrValidation.Error() + ": " + strings.Join(e.Details, "; ")
}

// Is makes errors.Is(err, ErrValidation) hold for every ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Validation builds a ValidationError from the given details.
func Validation(details ...string) error {
	return &ValidationError{Details: append([]string(nil), details...)}
}

// Details returns the validation details carried by err, or nil.
func Details(err error) []string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Details
	}
	return nil
}

// Code returns the stable wire code for err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrInvalidState):
		return "INVALID_STATE"
	case errors.Is(err, ErrTokenInvalid):
		return "TOKEN_INVALID"
	case errors.Is(err, ErrTokenExpired):
		return "TOKEN_EXPIRED"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	default:
		return "INTERNAL"
	}
}
