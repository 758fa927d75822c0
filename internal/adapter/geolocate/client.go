// Package geolocate provides Location Provider implementations: an HTTP
// client for a positioning service and a fixed fallback position.
package geolocate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/resqrelief/incident-feed/internal/domain"
)

// Client implements submit.LocationProvider against a positioning service
// that resolves the reporting device to a place label and coordinates.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a positioning client. baseURL is the service root, e.g.
// "https://geo.example.com".
func NewClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// Locate asks the positioning service for the current location. Exactly one
// of {location, error} is returned; a response without a label is an error,
// a response without coordinates is not.
func (c *Client) Locate(ctx context.Context) (domain.Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/position", nil)
	if err != nil {
		return domain.Location{}, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Location{}, fmt.Errorf("position request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.Location{}, fmt.Errorf("positioning API error: status %d: %s", resp.StatusCode, body)
	}

	var pos position
	if err := json.NewDecoder(resp.Body).Decode(&pos); err != nil {
		return domain.Location{}, fmt.Errorf("decode position: %w", err)
	}
	if pos.Label == "" {
		return domain.Location{}, fmt.Errorf("positioning API returned no label")
	}

	location := domain.Location{Label: pos.Label}
	if pos.Latitude != nil && pos.Longitude != nil {
		location.Coordinates = &domain.Coordinates{
			Latitude:  *pos.Latitude,
			Longitude: *pos.Longitude,
		}
	}
	return location, nil
}

// position is the positioning service response shape.
type position struct {
	Label     string   `json:"label"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}
