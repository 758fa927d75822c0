package geolocate

import (
	"context"

	"github.com/resqrelief/incident-feed/internal/domain"
)

// Static is a Location Provider pinned to one position. Used when no
// positioning service is configured, and in tests.
type Static struct {
	location domain.Location
}

// NewStatic creates a provider that always returns the given position.
func NewStatic(label string, lat, lon float64) *Static {
	return &Static{
		location: domain.Location{
			Label:       label,
			Coordinates: &domain.Coordinates{Latitude: lat, Longitude: lon},
		},
	}
}

func (s *Static) Locate(_ context.Context) (domain.Location, error) {
	return s.location, nil
}
