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

// MedicationService manages a user's medication list. Instructions are
// encrypted at rest when a cipher is configured.
type MedicationService struct {
	store  MedicationStore
	cipher *utils.Cipher
	now    func() time.Time
}

func NewMedicationService(store MedicationStore, cipher *utils.Cipher) *MedicationService {
	return &MedicationService{store: store, cipher: cipher, now: time.Now}
}

func validateMedication(in *models.MedicationInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Dosage = strings.TrimSpace(in.Dosage)
	in.Time = strings.TrimSpace(in.Time)
	in.Instructions = strings.TrimSpace(in.Instructions)

	if err := utils.Required(map[string]string{
		"name":   in.Name,
		"dosage": in.Dosage,
		"time":   in.Time,
	}, "name", "dosage", "time"); err != nil {
		return err
	}
	if in.Frequency == "" {
		in.Frequency = models.FrequencyDaily
	}
	if !in.Frequency.Valid() {
		return &utils.ValidationError{Field: "frequency", Key: "error.invalid_frequency"}
	}
	return utils.ValidateTimeOfDay(in.Time)
}

// Add stores a new active medication and returns its id.
func (s *MedicationService) Add(ctx context.Context, userID string, in models.MedicationInput) (string, error) {
	if err := validateMedication(&in); err != nil {
		return "", err
	}
	instructions, err := s.cipher.Encrypt(in.Instructions)
	if err != nil {
		return "", fmt.Errorf("encrypt instructions: %w", err)
	}

	m := &models.Medication{
		ID:           uuid.NewString(),
		UserID:       userID,
		Name:         in.Name,
		Dosage:       in.Dosage,
		Frequency:    in.Frequency,
		Time:         in.Time,
		Instructions: instructions,
		Active:       true,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.InsertMedication(ctx, m); err != nil {
		return "", err
	}
	return m.ID, nil
}

// List returns the user's active medications, newest first.
func (s *MedicationService) List(ctx context.Context, userID string) ([]models.Medication, error) {
	stored, err := s.store.ActiveMedications(ctx, userID)
	if err != nil {
		return nil, err
	}

	meds := make([]models.Medication, 0, len(stored))
	for _, m := range stored {
		if !m.Active || m.UserID != userID {
			continue
		}
		if m.Instructions, err = s.cipher.Decrypt(m.Instructions); err != nil {
			return nil, fmt.Errorf("decrypt instructions of %s: %w", m.ID, err)
		}
		meds = append(meds, m)
	}
	sort.SliceStable(meds, func(i, j int) bool {
		return meds[i].CreatedAt.After(meds[j].CreatedAt)
	})
	return meds, nil
}

func (s *MedicationService) Update(ctx context.Context, userID, id string, in models.MedicationInput) error {
	if err := validateMedication(&in); err != nil {
		return err
	}
	instructions, err := s.cipher.Encrypt(in.Instructions)
	if err != nil {
		return fmt.Errorf("encrypt instructions: %w", err)
	}
	in.Instructions = instructions
	return s.store.UpdateMedication(ctx, userID, id, in, s.now().UTC())
}

// Delete deactivates the medication. It stays stored but is never listed
// again.
func (s *MedicationService) Delete(ctx context.Context, userID, id string) error {
	return s.store.DeactivateMedication(ctx, userID, id, s.now().UTC())
}
