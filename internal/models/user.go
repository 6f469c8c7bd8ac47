package models

import "time"

// User is the merged view of a credential and its profile document.
type User struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	DisplayName       string    `json:"displayName"`
	PreferredLanguage string    `json:"preferredLanguage"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Profile is the per-user document in the users collection, keyed by user id.
// Both backends store it under the same field names.
type Profile struct {
	ID                string    `bson:"_id" json:"id" firestore:"-"`
	Email             string    `bson:"email" json:"email" firestore:"email"`
	DisplayName       string    `bson:"displayName" json:"displayName" firestore:"displayName"`
	PreferredLanguage string    `bson:"preferredLanguage" json:"preferredLanguage" firestore:"preferredLanguage"`
	CreatedAt         time.Time `bson:"createdAt" json:"createdAt" firestore:"createdAt"`
}

// Credential is the sign-in record. It never leaves the server.
type Credential struct {
	UserID       string
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
}

// Session is what a resolved bearer token yields: nil User means signed out.
type Session struct {
	Token string `json:"token,omitempty"`
	User  *User  `json:"user"`
}
