package feed

import (
	"context"
	"time"

	"github.com/resqrelief/incident-feed/internal/domain"
)

// EventKind tags a change stream event.
type EventKind string

const (
	// EventInsert carries a newly stored incident.
	EventInsert EventKind = "insert"
	// EventDelete carries the id of a removed incident.
	EventDelete EventKind = "delete"
)

// Event is one entry of the change stream: a tagged insert/delete union
// mirroring a store mutation. ID is always set; Incident only for inserts.
// Delivery is at-least-once, so the same event may arrive more than once.
type Event struct {
	Kind     EventKind       `json:"kind"`
	ID       string          `json:"id"`
	Incident domain.Incident `json:"incident,omitzero"`
}

// Snapshotter is the point-in-time store query the synchronizer seeds from.
type Snapshotter interface {
	// Snapshot returns all incidents created at or after since, ordered by
	// the feed rule (created_at descending, then id descending).
	Snapshot(ctx context.Context, since time.Time) ([]domain.Incident, error)
}

// EventSource delivers change stream events one at a time.
type EventSource interface {
	// Next blocks until an event is available or ctx is done. A non-context
	// error means the stream is interrupted; callers may keep calling Next,
	// the source is expected to reconnect underneath.
	Next(ctx context.Context) (Event, error)
}

// NoticeKind classifies a non-fatal feed degradation.
type NoticeKind string

const (
	// NoticeSnapshotFailed reports a failed seeding query; the view carries
	// on empty (or with its previous contents on a re-seed).
	NoticeSnapshotFailed NoticeKind = "snapshot_failed"
	// NoticeStreamInterrupted reports a change stream error; the
	// synchronizer re-seeds and resumes.
	NoticeStreamInterrupted NoticeKind = "stream_interrupted"
)

// Notice is a non-fatal condition surfaced to the consumer. Feed failures
// never propagate as errors; the view stays readable and a Notice records
// what degraded.
type Notice struct {
	Kind NoticeKind
	Err  error
}
