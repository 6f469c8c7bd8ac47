package database

import "errors"

var (
	// ErrNotFound is returned when a record does not exist or is owned by
	// another user.
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
)
