package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Guard outcomes
	ErrUnknownAction   = errors.New("unknown action")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrAccountBlocked  = errors.New("account is temporarily blocked")
	ErrUpstreamFailure = errors.New("upstream storage failure")
)

// FieldError reports a request parameter that failed validation. Handlers use
// it to name the offending field without leaking anything else.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Field, e.Reason)
}

// NewFieldError creates a FieldError for the given field.
func NewFieldError(field, reason string) *FieldError {
	return &FieldError{Field: field, Reason: reason}
}

// AsFieldError unwraps a FieldError from err, if present.
func AsFieldError(err error) (*FieldError, bool) {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
