package services

import (
	"errors"

	"github.com/cliniccompass/cliniccompass-backend/internal/database"
)

var (
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrSessionNotFound     = errors.New("session not found")
	ErrUnknownProfileField = errors.New("unknown profile field")
	ErrTriageUnavailable   = errors.New("triage unavailable")

	// ErrNotFound covers records that don't exist and records owned by
	// someone else.
	ErrNotFound = database.ErrNotFound
)
