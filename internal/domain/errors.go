package domain

import "errors"

var (
	// ErrInvalidInput marks a request rejected before touching the store.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateUser is returned when username or email is already taken.
	ErrDuplicateUser = errors.New("user already exists")
	// ErrStorageUnavailable covers pool exhaustion and an unreachable database. Safe to retry.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
