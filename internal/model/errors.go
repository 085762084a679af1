package model

import (
	"errors"
	"fmt"
)

var (
	// Auth outcomes
	ErrUsernameTaken      = errors.New("username already registered")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrVerificationFailed = errors.New("identity verification failed")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidResetToken  = errors.New("invalid reset token")
	ErrIdentityConflict   = errors.New("identity conflict")
	ErrStoreFailure       = errors.New("store failure")

	// Storage
	ErrNotFound = errors.New("record not found")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)

// DuplicateError reports a unique constraint violation. Field is one of
// "username", "email" or "oauth_id".
type DuplicateError struct {
	Field string
	Err   error
}

func (e *DuplicateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("duplicate %s: %v", e.Field, e.Err)
	}
	return "duplicate " + e.Field
}

func (e *DuplicateError) Unwrap() error {
	return e.Err
}

// ValidationError represents a field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
