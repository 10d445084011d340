package model

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Location is an immutable geographic position.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city"`
}

// NewLocation validates the coordinates; out-of-range values are rejected,
// never clamped.
func NewLocation(latitude, longitude float64, city string) (Location, error) {
	loc := Location{Latitude: latitude, Longitude: longitude, City: city}
	if err := loc.Validate(); err != nil {
		return Location{}, err
	}
	return loc, nil
}

func (l Location) Validate() error {
	if math.IsNaN(l.Latitude) || l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidCoordinates, l.Latitude)
	}
	if math.IsNaN(l.Longitude) || l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidCoordinates, l.Longitude)
	}
	return nil
}

func (l Location) String() string {
	if l.City != "" {
		return fmt.Sprintf("%s (%.4f, %.4f)", l.City, l.Latitude, l.Longitude)
	}
	return fmt.Sprintf("%.4f, %.4f", l.Latitude, l.Longitude)
}

// DefaultLocation is used when no settings have been stored yet.
var DefaultLocation = Location{Latitude: 41.0082, Longitude: 28.9784, City: "İstanbul"}
