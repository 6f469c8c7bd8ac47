package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/cliniccompass/cliniccompass-backend/internal/models"
)

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	created := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	mt.Run("insert medication", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := store.InsertMedication(ctx, &models.Medication{ID: "m-1", UserID: "u-1", Name: "Aspirin", Active: true})
		require.NoError(mt, err)
	})

	mt.Run("active medications", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB)
		ns := mt.DB.Name() + "." + MedicationsCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: "m-1"},
				{Key: "user_id", Value: "u-1"},
				{Key: "name", Value: "Aspirin"},
				{Key: "dosage", Value: "100mg"},
				{Key: "frequency", Value: "daily"},
				{Key: "time", Value: "08:00"},
				{Key: "active", Value: true},
				{Key: "created_at", Value: primitive.NewDateTimeFromTime(created)},
			},
		))

		meds, err := store.ActiveMedications(ctx, "u-1")
		require.NoError(mt, err)
		require.Len(mt, meds, 1)
		assert.Equal(mt, "m-1", meds[0].ID)
		assert.Equal(mt, models.FrequencyDaily, meds[0].Frequency)
		assert.True(mt, meds[0].CreatedAt.Equal(created))
		assert.Nil(mt, meds[0].DeletedAt)
	})

	mt.Run("empty list is not nil", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+"."+VisitsCollection, mtest.FirstBatch))

		visits, err := store.Visits(ctx, "u-1")
		require.NoError(mt, err)
		assert.NotNil(mt, visits)
		assert.Empty(mt, visits)
	})

	mt.Run("deactivate medication", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		require.NoError(mt, store.DeactivateMedication(ctx, "u-1", "m-1", created))
	})

	mt.Run("update of another user's record is not found", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := store.CompleteVisit(ctx, "u-2", "v-1", "fine", created)
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("delete missing visit", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		assert.ErrorIs(mt, store.DeleteVisit(ctx, "u-1", "v-404"), ErrNotFound)
	})

	mt.Run("profile document", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+"."+UsersCollection, mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: "u-1"},
				{Key: "email", Value: "ana@example.com"},
				{Key: "displayName", Value: "Ana"},
				{Key: "preferredLanguage", Value: "es"},
				{Key: "createdAt", Value: primitive.NewDateTimeFromTime(created)},
			},
		))

		doc, err := store.ProfileDocument(ctx, "u-1")
		require.NoError(mt, err)
		assert.NotContains(mt, doc, "_id")
		assert.Equal(mt, "es", doc["preferredLanguage"])
		ts, ok := doc["createdAt"].(time.Time)
		require.True(mt, ok, "createdAt should be a time.Time")
		assert.True(mt, ts.Equal(created))
	})

	mt.Run("missing profile", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+"."+UsersCollection, mtest.FirstBatch))

		_, err := store.ProfileDocument(ctx, "u-404")
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("store error propagates", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 13, Message: "unauthorized"}))

		_, err := store.ActiveMedications(ctx, "u-1")
		require.Error(mt, err)
		assert.NotErrorIs(mt, err, ErrNotFound)
	})
}
