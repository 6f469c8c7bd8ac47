package models

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type CostCategory string

const (
	CostFree    CostCategory = "free"
	CostLow     CostCategory = "low"
	CostSliding CostCategory = "sliding"
)

// Label is the listing type shown next to a clinic name.
func (c CostCategory) Label() string {
	switch c {
	case CostFree:
		return "Free Clinic"
	case CostLow:
		return "Low Cost"
	}
	return "Sliding Scale"
}

// Location is a reverse-geocoded place name.
type Location struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// Clinic is a search result. It is rebuilt on every search and never stored.
type Clinic struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Type          string       `json:"type"`
	Address       string       `json:"address"`
	Phone         string       `json:"phone"`
	Distance      float64      `json:"distance"`
	Services      []string     `json:"services"`
	Cost          CostCategory `json:"cost"`
	Hours         string       `json:"hours"`
	Rating        *float64     `json:"rating,omitempty"`
	PlaceID       string       `json:"placeId,omitempty"`
	GoogleMapsURL string       `json:"googleMapsUrl,omitempty"`
	DirectionsURL string       `json:"directionsUrl"`
	CallURL       string       `json:"callUrl"`
}
