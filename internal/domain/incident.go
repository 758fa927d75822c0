package domain

import (
	"errors"
	"strings"
	"time"
)

// Well-known disaster type tags. Free-form values are allowed; these two get
// dedicated presentation treatment in clients.
const (
	DisasterFloods   = "floods"
	DisasterWildfire = "wildfire"
)

// ErrMissingDisasterType marks an incident submitted without a type tag.
var ErrMissingDisasterType = errors.New("disaster type is required")

// Coordinates is a WGS-84 latitude/longitude pair in signed degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location is the assigned position of a report: a human-readable label,
// required, plus an optional coordinate pair.
type Location struct {
	Label       string       `json:"label"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Incident is a single emergency report. ID and CreatedAt are assigned by
// the store at insert time and never change afterwards.
type Incident struct {
	ID           string       `json:"id"`
	DisasterType string       `json:"disaster_type"`
	Message      string       `json:"message,omitempty"`
	ImageURL     string       `json:"image_url,omitempty"`
	Location     string       `json:"location"`
	Coordinates  *Coordinates `json:"coordinates,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Validate checks the submission-time invariants. Only the disaster type is
// mandatory; message, image, and coordinates are all optional.
func (in Incident) Validate() error {
	if strings.TrimSpace(in.DisasterType) == "" {
		return ErrMissingDisasterType
	}
	return nil
}

// ExpiredAt reports whether the incident has aged past the retention
// boundary: created_at older than now minus the window.
func (in Incident) ExpiredAt(now time.Time, window time.Duration) bool {
	return in.CreatedAt.Before(now.Add(-window))
}

// CompareFeedOrder defines the feed ordering rule: newest first, ties on
// created_at broken by descending id. Returns a negative value when a sorts
// before b, positive when after, zero only for the same record.
func CompareFeedOrder(a, b Incident) int {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	}
	return strings.Compare(b.ID, a.ID)
}
