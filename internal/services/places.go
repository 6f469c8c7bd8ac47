package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cliniccompass/cliniccompass-backend/internal/models"
)

const (
	placesQuery      = "community health center OR free clinic near me"
	placesRadius     = 8000
	placesConsidered = 10
	placesMax        = 8
)

// PlacesClient runs a Google Places text search through a public relay.
type PlacesClient struct {
	apiKey     string
	baseURL    string
	relayURL   string
	httpClient *http.Client
}

func NewPlacesClient(apiKey, baseURL, relayURL string) *PlacesClient {
	return &PlacesClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		relayURL:   relayURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type placesResponse struct {
	Status  string `json:"status"`
	Results []struct {
		PlaceID          string   `json:"place_id"`
		Name             string   `json:"name"`
		FormattedAddress string   `json:"formatted_address"`
		Vicinity         string   `json:"vicinity"`
		Types            []string `json:"types"`
		Rating           *float64 `json:"rating"`
		Geometry         struct {
			Location models.Coordinates `json:"location"`
		} `json:"geometry"`
		OpeningHours *struct {
			OpenNow bool `json:"open_now"`
		} `json:"opening_hours"`
	} `json:"results"`
}

func (p *PlacesClient) searchURL(at models.Coordinates) string {
	q := url.Values{}
	q.Set("query", placesQuery)
	q.Set("location", strconv.FormatFloat(at.Lat, 'f', -1, 64)+","+strconv.FormatFloat(at.Lng, 'f', -1, 64))
	q.Set("radius", strconv.Itoa(placesRadius))
	q.Set("key", p.apiKey)
	target := p.baseURL + "?" + q.Encode()
	if p.relayURL == "" {
		return target
	}
	return p.relayURL + EncodeURIComponent(target)
}

// Search returns up to eight unique places near at, in the order the API
// ranks them.
func (p *PlacesClient) Search(ctx context.Context, at models.Coordinates) ([]models.Clinic, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.searchURL(at), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places request failed with status %d", resp.StatusCode)
	}

	var body placesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode places response: %w", err)
	}

	results := body.Results
	if len(results) > placesConsidered {
		results = results[:placesConsidered]
	}

	seen := make(map[string]struct{}, len(results))
	clinics := make([]models.Clinic, 0, len(results))
	for _, place := range results {
		if _, dup := seen[place.PlaceID]; dup {
			continue
		}
		seen[place.PlaceID] = struct{}{}

		cost := CostFromName(place.Name)
		address := firstNonEmpty(place.FormattedAddress, place.Vicinity)
		hours := "Call for hours"
		if place.OpeningHours != nil && place.OpeningHours.OpenNow {
			hours = "Open Now"
		}
		clinics = append(clinics, models.Clinic{
			ID:            place.PlaceID,
			Name:          place.Name,
			Type:          cost.Label(),
			Address:       address,
			Phone:         "Call for info",
			Distance:      HaversineMiles(at, place.Geometry.Location),
			Services:      GuessServices(place.Types),
			Cost:          cost,
			Hours:         hours,
			Rating:        place.Rating,
			PlaceID:       place.PlaceID,
			GoogleMapsURL: "https://www.google.com/maps/place/?q=place_id:" + place.PlaceID,
		})
	}
	if len(clinics) > placesMax {
		clinics = clinics[:placesMax]
	}
	return clinics, nil
}

// CostFromName guesses the cost category from a clinic's name.
func CostFromName(name string) models.CostCategory {
	lower := strings.ToLower(name)
	switch {
	case containsAny(lower, []string{"free", "charity", "volunteer"}):
		return models.CostFree
	case containsAny(lower, []string{"community", "fqhc", "federally qualified"}):
		return models.CostSliding
	case containsAny(lower, []string{"affordable", "low cost"}):
		return models.CostLow
	}
	return models.CostSliding
}

// GuessServices maps Places types to service tags.
func GuessServices(types []string) []string {
	has := make(map[string]bool, len(types))
	for _, t := range types {
		has[t] = true
	}

	services := []string{"Primary Care"}
	if has["dentist"] {
		services = append(services, "Dental")
	}
	if has["pharmacy"] {
		services = append(services, "Pharmacy")
	}
	if has["hospital"] {
		services = append(services, "Emergency Care", "X-Ray")
	}
	if has["doctor"] {
		services = append(services, "Family Medicine")
	}
	if len(services) == 1 {
		services = append(services, "Preventive Care", "Health Screening")
	}
	return services
}
