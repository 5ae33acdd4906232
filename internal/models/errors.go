package models

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a unique field is already taken
	ErrAlreadyExists = errors.New("already exists")
	// ErrForbidden is returned when the record belongs to another user
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials is returned for a failed login
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrValidation is returned for malformed input
	ErrValidation = errors.New("validation failed")
	// ErrGeneratorFailure is returned when questions could not be generated
	ErrGeneratorFailure = errors.New("question generation failed")
)
