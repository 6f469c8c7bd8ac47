package database

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cliniccompass/cliniccompass-backend/internal/models"
)

// ConnectFirestore opens a client for projectID. Credentials come from the
// environment (Application Default Credentials, or FIRESTORE_EMULATOR_HOST).
func ConnectFirestore(ctx context.Context, projectID string, logger zerolog.Logger) (*firestore.Client, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("while creating firestore client: %w", err)
	}
	logger.Info().Str("project", projectID).Msg("connected to Firestore")
	return client, nil
}

// FirestoreStore keeps profiles, medications and hospital visits in
// Firestore, one document per record keyed by its id.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) CreateProfile(ctx context.Context, p models.Profile) error {
	if _, err := s.client.Collection(UsersCollection).Doc(p.ID).Create(ctx, p); err != nil {
		return fmt.Errorf("while creating profile %q: %w", p.ID, err)
	}
	return nil
}

func (s *FirestoreStore) ProfileDocument(ctx context.Context, userID string) (map[string]any, error) {
	snap, err := s.client.Collection(UsersCollection).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("while reading profile %q: %w", userID, err)
	}
	return snap.Data(), nil
}

func (s *FirestoreStore) SetLanguage(ctx context.Context, userID, lang string) error {
	_, err := s.client.Collection(UsersCollection).Doc(userID).Update(ctx, []firestore.Update{
		{Path: "preferredLanguage", Value: lang},
	})
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("while updating language for %q: %w", userID, err)
	}
	return nil
}

func (s *FirestoreStore) InsertMedication(ctx context.Context, m *models.Medication) error {
	if _, err := s.client.Collection(MedicationsCollection).Doc(m.ID).Create(ctx, m); err != nil {
		return fmt.Errorf("while creating medication: %w", err)
	}
	return nil
}

// ActiveMedications returns the user's active medications in no particular
// order; ordering by createdAt alongside the equality filters would need a
// composite index.
func (s *FirestoreStore) ActiveMedications(ctx context.Context, userID string) ([]models.Medication, error) {
	iter := s.client.Collection(MedicationsCollection).
		Where("userId", "==", userID).
		Where("active", "==", true).
		Documents(ctx)
	defer iter.Stop()

	meds := []models.Medication{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while listing medications: %w", err)
		}
		m := models.Medication{}
		if err := snap.DataTo(&m); err != nil {
			return nil, fmt.Errorf("while unmarshaling medication %q: %w", snap.Ref.ID, err)
		}
		m.ID = snap.Ref.ID
		meds = append(meds, m)
	}
	return meds, nil
}

func (s *FirestoreStore) UpdateMedication(ctx context.Context, userID, id string, in models.MedicationInput, at time.Time) error {
	return s.updateOwned(ctx, MedicationsCollection, userID, id, true, []firestore.Update{
		{Path: "name", Value: in.Name},
		{Path: "dosage", Value: in.Dosage},
		{Path: "frequency", Value: in.Frequency},
		{Path: "time", Value: in.Time},
		{Path: "instructions", Value: in.Instructions},
		{Path: "updatedAt", Value: at},
	})
}

func (s *FirestoreStore) DeactivateMedication(ctx context.Context, userID, id string, at time.Time) error {
	return s.updateOwned(ctx, MedicationsCollection, userID, id, true, []firestore.Update{
		{Path: "active", Value: false},
		{Path: "deletedAt", Value: at},
		{Path: "updatedAt", Value: at},
	})
}

func (s *FirestoreStore) InsertVisit(ctx context.Context, v *models.Visit) error {
	if _, err := s.client.Collection(VisitsCollection).Doc(v.ID).Create(ctx, v); err != nil {
		return fmt.Errorf("while creating visit: %w", err)
	}
	return nil
}

func (s *FirestoreStore) Visits(ctx context.Context, userID string) ([]models.Visit, error) {
	iter := s.client.Collection(VisitsCollection).Where("userId", "==", userID).Documents(ctx)
	defer iter.Stop()

	visits := []models.Visit{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while listing visits: %w", err)
		}
		v := models.Visit{}
		if err := snap.DataTo(&v); err != nil {
			return nil, fmt.Errorf("while unmarshaling visit %q: %w", snap.Ref.ID, err)
		}
		v.ID = snap.Ref.ID
		visits = append(visits, v)
	}
	return visits, nil
}

func (s *FirestoreStore) UpdateVisit(ctx context.Context, userID, id string, in models.VisitInput, at time.Time) error {
	return s.updateOwned(ctx, VisitsCollection, userID, id, false, []firestore.Update{
		{Path: "doctorName", Value: in.DoctorName},
		{Path: "hospital", Value: in.Hospital},
		{Path: "date", Value: in.Date},
		{Path: "reason", Value: in.Reason},
		{Path: "notes", Value: in.Notes},
		{Path: "updatedAt", Value: at},
	})
}

func (s *FirestoreStore) CompleteVisit(ctx context.Context, userID, id, notes string, at time.Time) error {
	return s.updateOwned(ctx, VisitsCollection, userID, id, false, []firestore.Update{
		{Path: "completed", Value: true},
		{Path: "completionNotes", Value: notes},
		{Path: "completedAt", Value: at},
		{Path: "updatedAt", Value: at},
	})
}

func (s *FirestoreStore) DeleteVisit(ctx context.Context, userID, id string) error {
	ref, err := s.owned(ctx, VisitsCollection, userID, id, false)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("while deleting visit %q: %w", id, err)
	}
	return nil
}

func (s *FirestoreStore) updateOwned(ctx context.Context, collection, userID, id string, activeOnly bool, updates []firestore.Update) error {
	ref, err := s.owned(ctx, collection, userID, id, activeOnly)
	if err != nil {
		return err
	}
	if _, err := ref.Update(ctx, updates); err != nil {
		return fmt.Errorf("while updating %s %q: %w", collection, id, err)
	}
	return nil
}

// owned returns the document reference when it exists and belongs to
// userID. Anything else reads as ErrNotFound.
func (s *FirestoreStore) owned(ctx context.Context, collection, userID, id string, activeOnly bool) (*firestore.DocumentRef, error) {
	ref := s.client.Collection(collection).Doc(id)
	snap, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("while reading %s %q: %w", collection, id, err)
	}

	owner, err := snap.DataAt("userId")
	if err != nil || owner != userID {
		return nil, ErrNotFound
	}
	if activeOnly {
		active, err := snap.DataAt("active")
		if err != nil || active != true {
			return nil, ErrNotFound
		}
	}
	return ref, nil
}
