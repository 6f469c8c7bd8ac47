package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cliniccompass/cliniccompass-backend/internal/models"
	"github.com/cliniccompass/cliniccompass-backend/pkg/utils"
)

// VisitService manages hospital and clinic visits. Notes are encrypted at
// rest when a cipher is configured.
type VisitService struct {
	store  VisitStore
	cipher *utils.Cipher
	now    func() time.Time
}

func NewVisitService(store VisitStore, cipher *utils.Cipher) *VisitService {
	return &VisitService{store: store, cipher: cipher, now: time.Now}
}

func validateVisit(in *models.VisitInput) error {
	in.DoctorName = strings.TrimSpace(in.DoctorName)
	in.Hospital = strings.TrimSpace(in.Hospital)
	in.Reason = strings.TrimSpace(in.Reason)
	in.Notes = strings.TrimSpace(in.Notes)

	if err := utils.Required(map[string]string{
		"doctorName": in.DoctorName,
		"hospital":   in.Hospital,
		"reason":     in.Reason,
	}, "doctorName", "hospital", "reason"); err != nil {
		return err
	}
	if in.Date.IsZero() {
		return &utils.ValidationError{Field: "date", Key: "error.invalid_date"}
	}
	in.Date = in.Date.UTC()
	return nil
}

func (s *VisitService) Add(ctx context.Context, userID string, in models.VisitInput) (string, error) {
	if err := validateVisit(&in); err != nil {
		return "", err
	}
	notes, err := s.cipher.Encrypt(in.Notes)
	if err != nil {
		return "", fmt.Errorf("encrypt notes: %w", err)
	}

	v := &models.Visit{
		ID:         uuid.NewString(),
		UserID:     userID,
		DoctorName: in.DoctorName,
		Hospital:   in.Hospital,
		Date:       in.Date,
		Reason:     in.Reason,
		Notes:      notes,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.InsertVisit(ctx, v); err != nil {
		return "", err
	}
	return v.ID, nil
}

// List returns the user's visits split into upcoming and past as of now.
func (s *VisitService) List(ctx context.Context, userID string) (models.VisitList, error) {
	stored, err := s.store.Visits(ctx, userID)
	if err != nil {
		return models.VisitList{}, err
	}

	visits := make([]models.Visit, 0, len(stored))
	for _, v := range stored {
		if v.UserID != userID {
			continue
		}
		if v.Notes, err = s.cipher.Decrypt(v.Notes); err != nil {
			return models.VisitList{}, fmt.Errorf("decrypt notes of %s: %w", v.ID, err)
		}
		if v.CompletionNotes, err = s.cipher.Decrypt(v.CompletionNotes); err != nil {
			return models.VisitList{}, fmt.Errorf("decrypt completion notes of %s: %w", v.ID, err)
		}
		visits = append(visits, v)
	}
	return PartitionVisits(visits, s.now()), nil
}

// PartitionVisits splits visits at now. All and Past are newest first;
// Upcoming is soonest first.
func PartitionVisits(visits []models.Visit, now time.Time) models.VisitList {
	all := append([]models.Visit(nil), visits...)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Date.After(all[j].Date)
	})

	list := models.VisitList{
		Upcoming: []models.Visit{},
		Past:     []models.Visit{},
		All:      all,
	}
	if list.All == nil {
		list.All = []models.Visit{}
	}
	for _, v := range all {
		if v.Upcoming(now) {
			list.Upcoming = append(list.Upcoming, v)
		} else {
			list.Past = append(list.Past, v)
		}
	}
	sort.SliceStable(list.Upcoming, func(i, j int) bool {
		return list.Upcoming[i].Date.Before(list.Upcoming[j].Date)
	})
	return list
}

func (s *VisitService) Update(ctx context.Context, userID, id string, in models.VisitInput) error {
	if err := validateVisit(&in); err != nil {
		return err
	}
	notes, err := s.cipher.Encrypt(in.Notes)
	if err != nil {
		return fmt.Errorf("encrypt notes: %w", err)
	}
	in.Notes = notes
	return s.store.UpdateVisit(ctx, userID, id, in, s.now().UTC())
}

// Complete marks the visit done with optional notes from the appointment.
func (s *VisitService) Complete(ctx context.Context, userID, id, notes string) error {
	enc, err := s.cipher.Encrypt(strings.TrimSpace(notes))
	if err != nil {
		return fmt.Errorf("encrypt completion notes: %w", err)
	}
	return s.store.CompleteVisit(ctx, userID, id, enc, s.now().UTC())
}

// Delete removes the visit permanently.
func (s *VisitService) Delete(ctx context.Context, userID, id string) error {
	return s.store.DeleteVisit(ctx, userID, id)
}
