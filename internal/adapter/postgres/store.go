// Package postgres backs the incident store with a PostgreSQL table and
// mirrors every mutation onto the change stream.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resqrelief/incident-feed/internal/domain"
	"github.com/resqrelief/incident-feed/internal/feed"
)

// EventPublisher pushes a change stream event after a store mutation
// commits. Publishing is best-effort: a lost event is repaired by the next
// seeding pass, so failures are logged and swallowed.
type EventPublisher interface {
	Publish(ctx context.Context, event feed.Event) error
}

// Store persists incidents in a single `incidents` table keyed by uuid with
// created_at indexed for range queries.
type Store struct {
	pool      *pgxpool.Pool
	publisher EventPublisher
	logger    *slog.Logger
}

// NewStore creates a Store. publisher may be nil, in which case mutations
// are not announced on the change stream.
func NewStore(pool *pgxpool.Pool, publisher EventPublisher, logger *slog.Logger) *Store {
	return &Store{pool: pool, publisher: publisher, logger: logger}
}

const schema = `
CREATE TABLE IF NOT EXISTS incidents (
	id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	disaster_type TEXT NOT NULL,
	message       TEXT NOT NULL DEFAULT '',
	image_url     TEXT NOT NULL DEFAULT '',
	location      TEXT NOT NULL,
	latitude      DOUBLE PRECISION,
	longitude     DOUBLE PRECISION,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS incidents_created_at_idx ON incidents (created_at);
`

// EnsureSchema creates the incidents table and its created_at index if they
// do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure incidents schema: %w", err)
	}
	return nil
}

// Insert writes a new incident and returns it with the store-assigned id
// and created_at filled in.
func (s *Store) Insert(ctx context.Context, incident domain.Incident) (domain.Incident, error) {
	if err := incident.Validate(); err != nil {
		return domain.Incident{}, err
	}

	query := `
		INSERT INTO incidents (disaster_type, message, image_url, location, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at;
	`
	var lat, lon *float64
	if incident.Coordinates != nil {
		lat = &incident.Coordinates.Latitude
		lon = &incident.Coordinates.Longitude
	}

	err := s.pool.QueryRow(ctx, query,
		incident.DisasterType,
		incident.Message,
		incident.ImageURL,
		incident.Location,
		lat,
		lon,
	).Scan(&incident.ID, &incident.CreatedAt)
	if err != nil {
		return domain.Incident{}, fmt.Errorf("insert incident: %w", err)
	}

	s.announce(ctx, feed.Event{Kind: feed.EventInsert, ID: incident.ID, Incident: incident})
	return incident, nil
}

// Snapshot returns all incidents created at or after since, newest first
// with ties broken by descending id — the same order the feed view keeps.
func (s *Store) Snapshot(ctx context.Context, since time.Time) ([]domain.Incident, error) {
	query := `
		SELECT id, disaster_type, message, image_url, location, latitude, longitude, created_at
		FROM incidents
		WHERE created_at >= $1
		ORDER BY created_at DESC, id DESC;
	`
	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("snapshot incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]domain.Incident, 0)
	for rows.Next() {
		var incident domain.Incident
		var lat, lon *float64
		err := rows.Scan(
			&incident.ID,
			&incident.DisasterType,
			&incident.Message,
			&incident.ImageURL,
			&incident.Location,
			&lat,
			&lon,
			&incident.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan incident row: %w", err)
		}
		if lat != nil && lon != nil {
			incident.Coordinates = &domain.Coordinates{Latitude: *lat, Longitude: *lon}
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incident rows: %w", err)
	}
	return incidents, nil
}

// Delete removes one incident by id. Deleting an absent id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("delete incident: invalid id %q: %w", id, err)
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM incidents WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete incident: %w", err)
	}
	if tag.RowsAffected() > 0 {
		s.announce(ctx, feed.Event{Kind: feed.EventDelete, ID: id})
	}
	return nil
}

// PruneOlderThan deletes every incident created before cutoff and returns
// the removed ids. Each removal is announced on the change stream so live
// views converge without waiting for lazy eviction.
func (s *Store) PruneOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx, `DELETE FROM incidents WHERE created_at < $1 RETURNING id;`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("prune incidents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pruned id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pruned ids: %w", err)
	}

	for _, id := range ids {
		s.announce(ctx, feed.Event{Kind: feed.EventDelete, ID: id})
	}
	return ids, nil
}

func (s *Store) announce(ctx context.Context, event feed.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish change event failed, next seed will repair",
			"kind", event.Kind, "incident_id", event.ID, "error", err)
	}
}
