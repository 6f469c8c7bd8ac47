package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/cliniccompass/cliniccompass-backend/internal/models"
)

// HealthContext is what the dashboard and the assistant know about a user.
type HealthContext struct {
	Medications []models.Medication
	Visits      models.VisitList
}

// Dashboard is the home screen payload.
type Dashboard struct {
	Medications    []models.Medication `json:"medications"`
	UpcomingVisits []models.Visit      `json:"upcomingVisits"`
	NextVisit      *models.Visit       `json:"nextVisit"`
}

// LoadHealthContext reads medications and visits in parallel.
func LoadHealthContext(ctx context.Context, meds *MedicationService, visits *VisitService, userID string) (*HealthContext, error) {
	hc := &HealthContext{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := meds.List(gctx, userID)
		hc.Medications = list
		return err
	})
	g.Go(func() error {
		list, err := visits.List(gctx, userID)
		hc.Visits = list
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hc, nil
}

func (hc *HealthContext) Dashboard() Dashboard {
	return Dashboard{
		Medications:    hc.Medications,
		UpcomingVisits: hc.Visits.Upcoming,
		NextVisit:      hc.Visits.Next(),
	}
}
