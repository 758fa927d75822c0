// Command seed inserts a set of sample incidents, useful for demos and for
// exercising a freshly provisioned environment.
//
// Usage:
//
//	DATABASE_URL=postgres://... go run ./cmd/seed [-publish]
//
// With -publish, each insert is also announced on the change stream so
// running feeds pick the samples up live.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	kafkaadapter "github.com/resqrelief/incident-feed/internal/adapter/kafka"
	"github.com/resqrelief/incident-feed/internal/adapter/postgres"
	"github.com/resqrelief/incident-feed/internal/config"
	"github.com/resqrelief/incident-feed/internal/domain"
	"github.com/resqrelief/incident-feed/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	publish := flag.Bool("publish", false, "announce inserts on the change stream")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	var publisher postgres.EventPublisher
	if *publish {
		kp := kafkaadapter.NewPublisher(cfg, logger)
		defer kp.Close()
		publisher = kp
	}

	store := postgres.NewStore(pool, publisher, logger)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	for _, sample := range samples() {
		stored, err := store.Insert(ctx, sample)
		if err != nil {
			return err
		}
		log.Printf("inserted %s %s at %q", stored.ID, stored.DisasterType, stored.Location)
	}

	log.Printf("seeded %d incidents", len(samples()))
	return nil
}

// samples are the demo incidents shown when no real reports exist yet.
func samples() []domain.Incident {
	return []domain.Incident{
		{
			DisasterType: domain.DisasterFloods,
			Message:      "Water rising fast near the lake underpass, two streets cut off.",
			Location:     "Hebbal",
			Coordinates:  &domain.Coordinates{Latitude: 13.0358, Longitude: 77.5970},
		},
		{
			DisasterType: domain.DisasterWildfire,
			Message:      "Smoke visible from the ridge, fire spreading along the tree line.",
			Location:     "Nandi Hills",
			Coordinates:  &domain.Coordinates{Latitude: 13.3702, Longitude: 77.6835},
		},
		{
			DisasterType: domain.DisasterFloods,
			Location:     "Sector 12",
			Coordinates:  &domain.Coordinates{Latitude: 13.02, Longitude: 77.59},
		},
	}
}
