package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cliniccompass/cliniccompass-backend/internal/models"
)

// Collection names shared by both document backends.
const (
	UsersCollection       = "users"
	MedicationsCollection = "medications"
	VisitsCollection      = "hospital_visits"
)

// MongoStore keeps profiles, medications and hospital visits in MongoDB.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

// EnsureIndexes creates the per-user indexes the list queries rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(MedicationsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "active", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create medications index: %w", err)
	}
	_, err = s.db.Collection(VisitsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create visits index: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateProfile(ctx context.Context, p models.Profile) error {
	if _, err := s.db.Collection(UsersCollection).InsertOne(ctx, p); err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// ProfileDocument returns the raw profile fields without the _id key.
// Dates are converted to time.Time so callers see the same shapes from every
// backend.
func (s *MongoStore) ProfileDocument(ctx context.Context, userID string) (map[string]any, error) {
	var doc bson.M
	err := s.db.Collection(UsersCollection).FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find profile: %w", err)
	}

	delete(doc, "_id")
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if dt, ok := v.(primitive.DateTime); ok {
			v = dt.Time().UTC()
		}
		out[k] = v
	}
	return out, nil
}

func (s *MongoStore) SetLanguage(ctx context.Context, userID, lang string) error {
	res, err := s.db.Collection(UsersCollection).UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"preferredLanguage": lang}},
	)
	if err != nil {
		return fmt.Errorf("update language: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) InsertMedication(ctx context.Context, m *models.Medication) error {
	if _, err := s.db.Collection(MedicationsCollection).InsertOne(ctx, m); err != nil {
		return fmt.Errorf("insert medication: %w", err)
	}
	return nil
}

// ActiveMedications lists the user's active medications, newest first.
func (s *MongoStore) ActiveMedications(ctx context.Context, userID string) ([]models.Medication, error) {
	findOptions := options.Find()
	findOptions.SetSort(bson.M{"created_at": -1})

	cursor, err := s.db.Collection(MedicationsCollection).Find(ctx, bson.M{"user_id": userID, "active": true}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("find medications: %w", err)
	}
	defer cursor.Close(ctx)

	meds := []models.Medication{}
	if err := cursor.All(ctx, &meds); err != nil {
		return nil, fmt.Errorf("decode medications: %w", err)
	}
	return meds, nil
}

func (s *MongoStore) UpdateMedication(ctx context.Context, userID, id string, in models.MedicationInput, at time.Time) error {
	return s.updateOwned(ctx, MedicationsCollection, bson.M{"_id": id, "user_id": userID, "active": true}, bson.M{
		"name":         in.Name,
		"dosage":       in.Dosage,
		"frequency":    in.Frequency,
		"time":         in.Time,
		"instructions": in.Instructions,
		"updated_at":   at,
	})
}

// DeactivateMedication is the soft delete: the document stays, flagged
// inactive.
func (s *MongoStore) DeactivateMedication(ctx context.Context, userID, id string, at time.Time) error {
	return s.updateOwned(ctx, MedicationsCollection, bson.M{"_id": id, "user_id": userID, "active": true}, bson.M{
		"active":     false,
		"deleted_at": at,
		"updated_at": at,
	})
}

func (s *MongoStore) InsertVisit(ctx context.Context, v *models.Visit) error {
	if _, err := s.db.Collection(VisitsCollection).InsertOne(ctx, v); err != nil {
		return fmt.Errorf("insert visit: %w", err)
	}
	return nil
}

func (s *MongoStore) Visits(ctx context.Context, userID string) ([]models.Visit, error) {
	findOptions := options.Find()
	findOptions.SetSort(bson.M{"date": -1})

	cursor, err := s.db.Collection(VisitsCollection).Find(ctx, bson.M{"user_id": userID}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("find visits: %w", err)
	}
	defer cursor.Close(ctx)

	visits := []models.Visit{}
	if err := cursor.All(ctx, &visits); err != nil {
		return nil, fmt.Errorf("decode visits: %w", err)
	}
	return visits, nil
}

func (s *MongoStore) UpdateVisit(ctx context.Context, userID, id string, in models.VisitInput, at time.Time) error {
	return s.updateOwned(ctx, VisitsCollection, bson.M{"_id": id, "user_id": userID}, bson.M{
		"doctor_name": in.DoctorName,
		"hospital":    in.Hospital,
		"date":        in.Date,
		"reason":      in.Reason,
		"notes":       in.Notes,
		"updated_at":  at,
	})
}

func (s *MongoStore) CompleteVisit(ctx context.Context, userID, id, notes string, at time.Time) error {
	return s.updateOwned(ctx, VisitsCollection, bson.M{"_id": id, "user_id": userID}, bson.M{
		"completed":        true,
		"completion_notes": notes,
		"completed_at":     at,
		"updated_at":       at,
	})
}

func (s *MongoStore) DeleteVisit(ctx context.Context, userID, id string) error {
	res, err := s.db.Collection(VisitsCollection).DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("delete visit: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// updateOwned applies $set to the single document matching filter. The
// filter always includes user_id, so another user's id matches nothing.
func (s *MongoStore) updateOwned(ctx context.Context, collection string, filter, set bson.M) error {
	res, err := s.db.Collection(collection).UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update %s: %w", collection, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
