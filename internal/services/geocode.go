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

// DefaultCity labels places the geocoder could not name.
const DefaultCity = "Your Area"

// NominatimGeocoder reverse-geocodes coordinates with OpenStreetMap's
// Nominatim service. Results are cached per ~1 km cell.
type NominatimGeocoder struct {
	baseURL    string
	httpClient *http.Client
	cache      *Cache
}

func NewNominatimGeocoder(baseURL string, cache *Cache) *NominatimGeocoder {
	return &NominatimGeocoder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      cache,
	}
}

type nominatimResponse struct {
	Address struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		County  string `json:"county"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"address"`
}

func (g *NominatimGeocoder) ReverseGeocode(ctx context.Context, at models.Coordinates) (models.Location, error) {
	key := CacheKey("geocode", fmt.Sprintf("%.2f,%.2f", at.Lat, at.Lng))
	var cached models.Location
	if hit, err := g.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(at.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(at.Lng, 'f', -1, 64))
	q.Set("zoom", "10")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return models.Location{}, err
	}
	req.Header.Set("User-Agent", "ClinicCompass/1.0")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return models.Location{}, fmt.Errorf("geocoding request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.Location{}, fmt.Errorf("geocoding failed with status %d", resp.StatusCode)
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Location{}, fmt.Errorf("decode geocoding response: %w", err)
	}

	a := body.Address
	loc := models.Location{
		City:    firstNonEmpty(a.City, a.Town, a.Village, a.County, DefaultCity),
		State:   a.State,
		Country: firstNonEmpty(a.Country, "USA"),
	}
	_ = g.cache.Set(ctx, key, loc)
	return loc, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
