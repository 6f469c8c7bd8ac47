package models

import "time"

type Frequency string

const (
	FrequencyDaily           Frequency = "daily"
	FrequencyTwiceDaily      Frequency = "twice_daily"
	FrequencyThreeTimesDaily Frequency = "three_times_daily"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyTwiceDaily, FrequencyThreeTimesDaily:
		return true
	}
	return false
}

// Medication is a medicine the user is tracking. Deleting one clears Active
// and stamps DeletedAt; the document is kept.
type Medication struct {
	ID           string     `bson:"_id" json:"id" firestore:"-"`
	UserID       string     `bson:"user_id" json:"userId" firestore:"userId"`
	Name         string     `bson:"name" json:"name" firestore:"name"`
	Dosage       string     `bson:"dosage" json:"dosage" firestore:"dosage"`
	Frequency    Frequency  `bson:"frequency" json:"frequency" firestore:"frequency"`
	Time         string     `bson:"time" json:"time" firestore:"time"`
	Instructions string     `bson:"instructions,omitempty" json:"instructions,omitempty" firestore:"instructions,omitempty"`
	Active       bool       `bson:"active" json:"active" firestore:"active"`
	CreatedAt    time.Time  `bson:"created_at" json:"createdAt" firestore:"createdAt"`
	UpdatedAt    *time.Time `bson:"updated_at,omitempty" json:"updatedAt,omitempty" firestore:"updatedAt,omitempty"`
	DeletedAt    *time.Time `bson:"deleted_at,omitempty" json:"deletedAt,omitempty" firestore:"deletedAt,omitempty"`
}

// MedicationInput holds the user-editable fields.
type MedicationInput struct {
	Name         string    `json:"name"`
	Dosage       string    `json:"dosage"`
	Frequency    Frequency `json:"frequency"`
	Time         string    `json:"time"`
	Instructions string    `json:"instructions"`
}
