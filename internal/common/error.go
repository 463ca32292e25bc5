// Package common defines shared constants and sentinel errors used across
// client and server layers of gophsync. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Input errors. Always surfaced to the caller before any store is touched.
	ErrValidation = errors.New("validation error")

	// Local filesystem or local store failure.
	ErrIO = errors.New("io error")

	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Remote replica errors. Never propagated past the sync engine.
	ErrRemoteUnavailable = errors.New("remote unavailable")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrConflict          = errors.New("remote holds a newer version")

	// Transfer session protocol errors.
	ErrSessionNotFound  = errors.New("transfer session not found")
	ErrSessionTerminal  = errors.New("transfer session is terminal")
	ErrSizeMismatch     = errors.New("size mismatch")
	ErrIntegrityFailure = errors.New("integrity check failed")
	ErrChunkOrder       = errors.New("chunk out of order")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// ValidationError describes a rejected input field. It matches ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid is a shorthand for building a *ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IOError wraps err so that it matches ErrIO while keeping the original cause.
func IOError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, errors.Join(ErrIO, err))
}
