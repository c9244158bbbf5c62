package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking
// infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// ErrInvalidToken covers bad signature, malformed payload, and expiry.
	ErrInvalidToken = fmt.Errorf("invalid token: %w", ErrUnauthorized)
	// ErrInvalidSession is returned when the token's session id no longer
	// matches the stored one; the caller must log in again.
	ErrInvalidSession = fmt.Errorf("invalid session: %w", ErrUnauthorized)
)

// InvalidInputError names the offending field so handlers can return a
// field-level 400 response.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrBadRequest }

func NewInvalidInput(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}
