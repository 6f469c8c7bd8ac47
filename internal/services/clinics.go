package services

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cliniccompass/cliniccompass-backend/internal/models"
)

// Geocoder names the place around a coordinate.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, at models.Coordinates) (models.Location, error)
}

// PlacesSearcher finds real clinics near a coordinate.
type PlacesSearcher interface {
	Search(ctx context.Context, at models.Coordinates) ([]models.Clinic, error)
}

const (
	FilterAll  = "all"
	FilterFree = "free"
	FilterLow  = "low"

	earthRadiusMiles = 3959
	generatedClinics = 6
)

var (
	clinicNames = []string{
		"Community Health Center",
		"Neighborhood Medical Clinic",
		"Free Health Services",
		"Affordable Care Clinic",
		"People's Health Center",
		"Family Wellness Center",
		"County Health Department",
		"Federally Qualified Health Center",
		"Community Care Clinic",
		"Volunteers in Medicine",
	}
	streetNames = []string{
		"Main Street", "Oak Avenue", "Elm Street", "Pine Road", "Maple Drive",
		"First Street", "Second Avenue", "Market Street", "Church Street", "Park Avenue",
		"Washington Boulevard", "Lincoln Drive", "Jefferson Way", "Madison Street", "Monroe Avenue",
	}
	serviceSets = [][]string{
		{"Primary Care", "Dental", "Mental Health"},
		{"Urgent Care", "Lab Tests", "X-Ray"},
		{"Primary Care", "Pharmacy", "Vaccines"},
		{"Family Medicine", "Pediatrics", "Women's Health"},
		{"Primary Care", "Chronic Disease Management", "Health Education"},
		{"Dental", "Vision", "Pharmacy"},
		{"Mental Health", "Substance Abuse", "Counseling"},
		{"Prenatal Care", "Women's Health", "Family Planning"},
	}
	clinicHours = []string{
		"Mon-Fri 8AM-6PM",
		"Mon-Sat 7AM-9PM",
		"Tue-Thu 9AM-5PM",
		"Mon-Fri 8AM-8PM, Sat 9AM-3PM",
		"Mon-Fri 8AM-6PM",
		"Mon-Fri 9AM-5PM, Sat 9AM-1PM",
	}
	costRotation = []models.CostCategory{
		models.CostFree, models.CostFree, models.CostLow, models.CostSliding, models.CostFree, models.CostLow,
	}
	areaCodes = map[string][]string{
		"Texas":      {"214", "512", "713", "210"},
		"California": {"213", "415", "619", "818"},
		"New York":   {"212", "718", "516", "914"},
		"Florida":    {"305", "407", "561", "813"},
	}
)

// ClinicLocator lists low-cost clinics near a coordinate. It prefers live
// Places results and otherwise synthesizes listings for the surrounding
// city. It never fails: every lookup error degrades to the next source.
type ClinicLocator struct {
	geocoder Geocoder
	places   PlacesSearcher
	logger   zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewClinicLocator builds a locator. places may be nil when no Places key
// is configured.
func NewClinicLocator(geocoder Geocoder, places PlacesSearcher, logger zerolog.Logger) *ClinicLocator {
	seed := uint64(time.Now().UnixNano())
	return &ClinicLocator{
		geocoder: geocoder,
		places:   places,
		logger:   logger,
		rng:      rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

// Find returns clinics near at matching filter, nearest first.
func (l *ClinicLocator) Find(ctx context.Context, at models.Coordinates, filter string) []models.Clinic {
	var clinics []models.Clinic

	if l.places != nil {
		found, err := l.places.Search(ctx, at)
		if err != nil {
			l.logger.Warn().Err(err).Msg("places search failed; using generated clinics")
		}
		clinics = found
	}

	if len(clinics) == 0 {
		loc := models.Location{City: DefaultCity, Country: "USA"}
		if l.geocoder != nil {
			got, err := l.geocoder.ReverseGeocode(ctx, at)
			if err != nil {
				l.logger.Warn().Err(err).Msg("reverse geocoding failed")
			} else {
				loc = got
			}
		}
		clinics = l.generate(loc)
	}

	clinics = FilterClinics(clinics, filter)
	SortByDistance(clinics)
	for i := range clinics {
		clinics[i].DirectionsURL = DirectionsURL(clinics[i].Address)
		clinics[i].CallURL = CallURL(clinics[i].Phone)
	}
	return clinics
}

// generate synthesizes listings from the name, street, service and hours
// templates. Street numbers, phone numbers and distances are random.
func (l *ClinicLocator) generate(loc models.Location) []models.Clinic {
	label := loc.City
	if loc.State != "" {
		label = loc.City + ", " + loc.State
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	clinics := make([]models.Clinic, 0, generatedClinics)
	for i := 0; i < generatedClinics; i++ {
		cost := costRotation[i]
		streetNum := l.rng.IntN(9000) + 1000

		areaCode := "555"
		if codes, ok := areaCodes[loc.State]; ok {
			areaCode = codes[l.rng.IntN(len(codes))]
		}
		phone := fmt.Sprintf("(%s) %d-%d", areaCode, l.rng.IntN(900)+100, l.rng.IntN(9000)+1000)

		services := serviceSets[i%len(serviceSets)]
		clinics = append(clinics, models.Clinic{
			ID:       strconv.Itoa(i + 1),
			Name:     clinicNames[i],
			Type:     cost.Label(),
			Address:  fmt.Sprintf("%d %s, %s", streetNum, streetNames[i%len(streetNames)], label),
			Phone:    phone,
			Distance: generatedDistance(l.rng.Float64()),
			Services: append([]string(nil), services...),
			Cost:     cost,
			Hours:    clinicHours[i],
		})
	}
	return clinics
}

// FilterClinics keeps free clinics for "free", low-cost and sliding-scale
// ones for "low", and everything otherwise.
func FilterClinics(clinics []models.Clinic, filter string) []models.Clinic {
	out := make([]models.Clinic, 0, len(clinics))
	for _, c := range clinics {
		switch filter {
		case FilterFree:
			if c.Cost != models.CostFree {
				continue
			}
		case FilterLow:
			if c.Cost != models.CostLow && c.Cost != models.CostSliding {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func SortByDistance(clinics []models.Clinic) {
	sort.SliceStable(clinics, func(i, j int) bool {
		return clinics[i].Distance < clinics[j].Distance
	})
}

// HaversineMiles is the great-circle distance between two points in miles,
// rounded to one decimal.
func HaversineMiles(a, b models.Coordinates) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return roundTenth(earthRadiusMiles * c)
}

// generatedDistance maps u in [0, 1) to a distance in [0.5, 3.5) miles,
// rounded to a tenth.
func generatedDistance(u float64) float64 {
	return math.Min(roundTenth(0.5+u*3), 3.4)
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// DirectionsURL is the Google Maps directions link for address.
func DirectionsURL(address string) string {
	return "https://www.google.com/maps/dir/?api=1&destination=" + EncodeURIComponent(address)
}

// CallURL is a tel: link with every non-digit removed from phone.
func CallURL(phone string) string {
	var b strings.Builder
	b.WriteString("tel:")
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EncodeURIComponent percent-encodes s the way browsers do for a URI
// component: only letters, digits and -_.!~*'() are left as is.
func EncodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case strings.IndexByte("-_.!~*'()", c) >= 0:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&15])
		}
	}
	return b.String()
}

// ParseCoordinates reads lat/lng query values. Missing, malformed or out of
// range values give the (0, 0) placeholder.
func ParseCoordinates(lat, lng string) models.Coordinates {
	la, errLat := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	ln, errLng := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if errLat != nil || errLng != nil || math.IsNaN(la) || math.IsNaN(ln) ||
		la < -90 || la > 90 || ln < -180 || ln > 180 {
		return models.Coordinates{}
	}
	return models.Coordinates{Lat: la, Lng: ln}
}
