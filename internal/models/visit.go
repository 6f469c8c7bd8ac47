package models

import "time"

// Visit is a hospital or clinic appointment. Whether it is upcoming or past
// is computed on every read and never stored.
type Visit struct {
	ID              string     `bson:"_id" json:"id" firestore:"-"`
	UserID          string     `bson:"user_id" json:"userId" firestore:"userId"`
	DoctorName      string     `bson:"doctor_name" json:"doctorName" firestore:"doctorName"`
	Hospital        string     `bson:"hospital" json:"hospital" firestore:"hospital"`
	Date            time.Time  `bson:"date" json:"date" firestore:"date"`
	Reason          string     `bson:"reason" json:"reason" firestore:"reason"`
	Notes           string     `bson:"notes,omitempty" json:"notes,omitempty" firestore:"notes,omitempty"`
	Completed       bool       `bson:"completed" json:"completed" firestore:"completed"`
	CompletionNotes string     `bson:"completion_notes,omitempty" json:"completionNotes,omitempty" firestore:"completionNotes,omitempty"`
	CompletedAt     *time.Time `bson:"completed_at,omitempty" json:"completedAt,omitempty" firestore:"completedAt,omitempty"`
	CreatedAt       time.Time  `bson:"created_at" json:"createdAt" firestore:"createdAt"`
	UpdatedAt       *time.Time `bson:"updated_at,omitempty" json:"updatedAt,omitempty" firestore:"updatedAt,omitempty"`
}

// Upcoming reports whether v is still ahead of now and not completed.
func (v Visit) Upcoming(now time.Time) bool {
	return !v.Completed && !v.Date.Before(now)
}

// VisitInput holds the user-editable fields.
type VisitInput struct {
	DoctorName string    `json:"doctorName"`
	Hospital   string    `json:"hospital"`
	Date       time.Time `json:"date"`
	Reason     string    `json:"reason"`
	Notes      string    `json:"notes"`
}

// VisitList is a user's visits split at read time. All and Past are newest
// first; Upcoming is soonest first, so Upcoming[0] is the next visit.
type VisitList struct {
	Upcoming []Visit `json:"upcoming"`
	Past     []Visit `json:"past"`
	All      []Visit `json:"all"`
}

// Next returns the next upcoming visit, if any.
func (l VisitList) Next() *Visit {
	if len(l.Upcoming) == 0 {
		return nil
	}
	v := l.Upcoming[0]
	return &v
}
