package services

import (
	"context"
	"time"

	"github.com/cliniccompass/cliniccompass-backend/internal/models"
)

// CredentialStore holds sign-in credentials (PostgreSQL).
type CredentialStore interface {
	CreateCredential(ctx context.Context, c models.Credential) error
	CredentialByEmail(ctx context.Context, email string) (*models.Credential, error)
	CredentialByID(ctx context.Context, userID string) (*models.Credential, error)
	DeleteCredential(ctx context.Context, userID string) error
}

// ProfileStore holds one profile document per user.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p models.Profile) error
	ProfileDocument(ctx context.Context, userID string) (map[string]any, error)
	SetLanguage(ctx context.Context, userID, lang string) error
}

// MedicationStore is scoped by user id on every call; a record owned by
// another user reads as ErrNotFound.
type MedicationStore interface {
	InsertMedication(ctx context.Context, m *models.Medication) error
	ActiveMedications(ctx context.Context, userID string) ([]models.Medication, error)
	UpdateMedication(ctx context.Context, userID, id string, in models.MedicationInput, at time.Time) error
	DeactivateMedication(ctx context.Context, userID, id string, at time.Time) error
}

type VisitStore interface {
	InsertVisit(ctx context.Context, v *models.Visit) error
	Visits(ctx context.Context, userID string) ([]models.Visit, error)
	UpdateVisit(ctx context.Context, userID, id string, in models.VisitInput, at time.Time) error
	CompleteVisit(ctx context.Context, userID, id, notes string, at time.Time) error
	DeleteVisit(ctx context.Context, userID, id string) error
}

// RecordStore is implemented by both document backends.
type RecordStore interface {
	ProfileStore
	MedicationStore
	VisitStore
}
