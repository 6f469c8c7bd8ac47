package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliniccompass/cliniccompass-backend/internal/models"
)

// These run against the Firestore emulator only:
//
//	gcloud emulators firestore start --host-port=localhost:8086
//	FIRESTORE_EMULATOR_HOST=localhost:8086 go test ./internal/database/
func newEmulatorStore(t *testing.T) *FirestoreStore {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := ConnectFirestore(context.Background(), "cliniccompass-test", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewFirestoreStore(client)
}

func TestFirestoreStore_MedicationLifecycle(t *testing.T) {
	store := newEmulatorStore(t)
	ctx := context.Background()
	userID := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Millisecond)

	med := &models.Medication{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      "Aspirin",
		Dosage:    "100mg",
		Frequency: models.FrequencyDaily,
		Time:      "08:00",
		Active:    true,
		CreatedAt: now,
	}
	require.NoError(t, store.InsertMedication(ctx, med))

	meds, err := store.ActiveMedications(ctx, userID)
	require.NoError(t, err)
	require.Len(t, meds, 1)
	assert.Equal(t, med.ID, meds[0].ID)
	assert.Equal(t, "Aspirin", meds[0].Name)

	assert.ErrorIs(t, store.DeactivateMedication(ctx, "someone-else", med.ID, now), ErrNotFound)

	require.NoError(t, store.DeactivateMedication(ctx, userID, med.ID, now))
	meds, err = store.ActiveMedications(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, meds)

	assert.ErrorIs(t, store.DeactivateMedication(ctx, userID, med.ID, now), ErrNotFound)
}

func TestFirestoreStore_VisitsAndProfile(t *testing.T) {
	store := newEmulatorStore(t)
	ctx := context.Background()
	userID := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, store.CreateProfile(ctx, models.Profile{
		ID: userID, Email: "ana@example.com", DisplayName: "Ana", PreferredLanguage: "en", CreatedAt: now,
	}))
	require.NoError(t, store.SetLanguage(ctx, userID, "es"))
	doc, err := store.ProfileDocument(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "es", doc["preferredLanguage"])

	visit := &models.Visit{ID: uuid.NewString(), UserID: userID, DoctorName: "Dr. Ruiz", Hospital: "General", Date: now.Add(48 * time.Hour), Reason: "checkup", CreatedAt: now}
	require.NoError(t, store.InsertVisit(ctx, visit))
	require.NoError(t, store.CompleteVisit(ctx, userID, visit.ID, "all good", now))

	visits, err := store.Visits(ctx, userID)
	require.NoError(t, err)
	require.Len(t, visits, 1)
	assert.True(t, visits[0].Completed)
	assert.Equal(t, "all good", visits[0].CompletionNotes)

	assert.ErrorIs(t, store.DeleteVisit(ctx, "someone-else", visit.ID), ErrNotFound)
	require.NoError(t, store.DeleteVisit(ctx, userID, visit.ID))
	assert.ErrorIs(t, store.DeleteVisit(ctx, userID, visit.ID), ErrNotFound)
}
