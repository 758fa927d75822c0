//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resqrelief/incident-feed/internal/adapter/kafka"
	"github.com/resqrelief/incident-feed/internal/config"
	"github.com/resqrelief/incident-feed/internal/domain"
	"github.com/resqrelief/incident-feed/internal/feed"
	"github.com/resqrelief/incident-feed/internal/observability"
)

const testEventsTopic = "test-incident-events"

// emptyStore is a Snapshotter with no history, so everything the feed shows
// arrives over the change stream.
type emptyStore struct{}

func (emptyStore) Snapshot(_ context.Context, _ time.Time) ([]domain.Incident, error) {
	return nil, nil
}

// TestChangeStreamRoundTrip verifies the adapter layer: kafka.Publisher and
// kafka.Source round-trip a change event through a real broker, keyed by
// incident id with the kind header intact.
func TestChangeStreamRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testEventsTopic)

	cfg := &config.Config{
		KafkaBrokers:     []string{broker},
		KafkaEventsTopic: testEventsTopic,
		KafkaGroupID:     fmt.Sprintf("test-roundtrip-%d", time.Now().UnixNano()),
	}

	publisher := kafka.NewPublisher(cfg, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	createdAt := time.Now().UTC().Truncate(time.Millisecond)
	sent := feed.Event{
		Kind: feed.EventInsert,
		ID:   "11111111-1111-1111-1111-111111111111",
		Incident: domain.Incident{
			ID:           "11111111-1111-1111-1111-111111111111",
			DisasterType: domain.DisasterFloods,
			Message:      "water rising",
			Location:     "Sector 12",
			Coordinates:  &domain.Coordinates{Latitude: 13.02, Longitude: 77.59},
			CreatedAt:    createdAt,
		},
	}
	require.NoError(t, publisher.Publish(ctx, sent))

	source := kafka.NewSource(cfg, discardLogger())
	t.Cleanup(func() { _ = source.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 60*time.Second)
	defer readCancel()

	got, err := source.Next(readCtx)
	require.NoError(t, err, "read from events topic")
	assert.Equal(t, sent, got)
}

// TestFeedFollowsChangeStream wires Publisher → broker → Source → Synchronizer
// and verifies the live view converges on published inserts and deletes.
func TestFeedFollowsChangeStream(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testEventsTopic)

	cfg := &config.Config{
		KafkaBrokers:     []string{broker},
		KafkaEventsTopic: testEventsTopic,
		KafkaGroupID:     fmt.Sprintf("test-feed-%d", time.Now().UnixNano()),
	}

	publisher := kafka.NewPublisher(cfg, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	source := kafka.NewSource(cfg, discardLogger())
	t.Cleanup(func() { _ = source.Close() })

	synchronizer := feed.New(emptyStore{}, source, clockwork.NewRealClock(),
		20*24*time.Hour, discardLogger(), observability.NewMetricsForTesting())

	runCtx, runCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- synchronizer.Run(runCtx) }()

	now := time.Now().UTC()
	older := domain.Incident{
		ID:           "22222222-2222-2222-2222-222222222222",
		DisasterType: domain.DisasterWildfire,
		Location:     "Nandi Hills",
		CreatedAt:    now.Add(-time.Hour),
	}
	newer := domain.Incident{
		ID:           "33333333-3333-3333-3333-333333333333",
		DisasterType: domain.DisasterFloods,
		Location:     "Hebbal",
		CreatedAt:    now,
	}

	require.NoError(t, publisher.Publish(ctx, feed.Event{Kind: feed.EventInsert, ID: older.ID, Incident: older}))
	require.NoError(t, publisher.Publish(ctx, feed.Event{Kind: feed.EventInsert, ID: newer.ID, Incident: newer}))

	require.Eventually(t, func() bool {
		return len(synchronizer.Snapshot()) == 2
	}, 60*time.Second, 100*time.Millisecond, "feed never received both inserts")

	view := synchronizer.Snapshot()
	require.Len(t, view, 2)
	assert.Equal(t, newer.ID, view[0].ID, "newest first")
	assert.Equal(t, older.ID, view[1].ID)

	require.NoError(t, publisher.Publish(ctx, feed.Event{Kind: feed.EventDelete, ID: newer.ID}))

	require.Eventually(t, func() bool {
		view := synchronizer.Snapshot()
		return len(view) == 1 && view[0].ID == older.ID
	}, 60*time.Second, 100*time.Millisecond, "feed never applied the delete")

	synchronizer.Close()
	runCancel()
	require.NoError(t, <-errCh)
}
