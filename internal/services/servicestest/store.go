// Package servicestest provides in-memory stores for tests of the services
// and the HTTP layer.
package servicestest

import (
	"context"
	"sync"
	"time"

	"github.com/cliniccompass/cliniccompass-backend/internal/database"
	"github.com/cliniccompass/cliniccompass-backend/internal/models"
)

// Store is an in-memory credential, profile and record store for tests.
// It is safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	credentials map[string]models.Credential // by email
	profiles    map[string]map[string]any
	meds        map[string]models.Medication
	visits      map[string]models.Visit
	failWith    error
	profileErr  error
}

func NewStore() *Store {
	return &Store{
		credentials: map[string]models.Credential{},
		profiles:    map[string]map[string]any{},
		meds:        map[string]models.Medication{},
		visits:      map[string]models.Visit{},
	}
}

func (s *Store) CreateCredential(_ context.Context, c models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if _, ok := s.credentials[c.Email]; ok {
		return database.ErrDuplicateEmail
	}
	s.credentials[c.Email] = c
	return nil
}

func (s *Store) CredentialByEmail(_ context.Context, email string) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[email]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &c, nil
}

func (s *Store) CredentialByID(_ context.Context, userID string) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.credentials {
		if c.UserID == userID {
			c := c
			return &c, nil
		}
	}
	return nil, database.ErrNotFound
}

// DeleteCredential removes the credential of userID, if any.
func (s *Store) DeleteCredential(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	for email, c := range s.credentials {
		if c.UserID == userID {
			delete(s.credentials, email)
		}
	}
	return nil
}

// FailNextProfile makes the next CreateProfile call return err.
func (s *Store) FailNextProfile(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileErr = err
}

func (s *Store) CreateProfile(_ context.Context, p models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.profileErr; err != nil {
		s.profileErr = nil
		return err
	}
	s.profiles[p.ID] = map[string]any{
		"email":             p.Email,
		"displayName":       p.DisplayName,
		"preferredLanguage": p.PreferredLanguage,
		"createdAt":         p.CreatedAt,
	}
	return nil
}

func (s *Store) ProfileDocument(_ context.Context, userID string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.profiles[userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out, nil
}

func (s *Store) SetLanguage(_ context.Context, userID, lang string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.profiles[userID]
	if !ok {
		return database.ErrNotFound
	}
	doc["preferredLanguage"] = lang
	return nil
}

func (s *Store) InsertMedication(_ context.Context, m *models.Medication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.meds[m.ID] = *m
	return nil
}

// ActiveMedications returns every stored medication of the user, inactive
// ones included, so callers' own filtering is exercised.
func (s *Store) ActiveMedications(_ context.Context, userID string) ([]models.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	var out []models.Medication
	for _, m := range s.meds {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) UpdateMedication(_ context.Context, userID, id string, in models.MedicationInput, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meds[id]
	if !ok || m.UserID != userID || !m.Active {
		return database.ErrNotFound
	}
	m.Name, m.Dosage, m.Frequency, m.Time, m.Instructions = in.Name, in.Dosage, in.Frequency, in.Time, in.Instructions
	m.UpdatedAt = &at
	s.meds[id] = m
	return nil
}

func (s *Store) DeactivateMedication(_ context.Context, userID, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meds[id]
	if !ok || m.UserID != userID || !m.Active {
		return database.ErrNotFound
	}
	m.Active = false
	m.DeletedAt = &at
	s.meds[id] = m
	return nil
}

func (s *Store) InsertVisit(_ context.Context, v *models.Visit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visits[v.ID] = *v
	return nil
}

func (s *Store) Visits(_ context.Context, userID string) ([]models.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Visit
	for _, v := range s.visits {
		if v.UserID == userID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *Store) UpdateVisit(_ context.Context, userID, id string, in models.VisitInput, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visits[id]
	if !ok || v.UserID != userID {
		return database.ErrNotFound
	}
	v.DoctorName, v.Hospital, v.Date, v.Reason, v.Notes = in.DoctorName, in.Hospital, in.Date, in.Reason, in.Notes
	v.UpdatedAt = &at
	s.visits[id] = v
	return nil
}

func (s *Store) CompleteVisit(_ context.Context, userID, id, notes string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visits[id]
	if !ok || v.UserID != userID {
		return database.ErrNotFound
	}
	v.Completed = true
	v.CompletionNotes = notes
	v.CompletedAt = &at
	s.visits[id] = v
	return nil
}

func (s *Store) DeleteVisit(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visits[id]
	if !ok || v.UserID != userID {
		return database.ErrNotFound
	}
	delete(s.visits, id)
	return nil
}

// Fail makes every later credential and medication call return err. A nil
// err clears it.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// Medication returns the stored document as written, ciphertext included.
func (s *Store) Medication(id string) (models.Medication, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meds[id]
	return m, ok
}

func (s *Store) Visit(id string) (models.Visit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visits[id]
	return v, ok
}
