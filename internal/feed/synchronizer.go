package feed

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/resqrelief/incident-feed/internal/domain"
	"github.com/resqrelief/incident-feed/internal/observability"
)

// State is the lifecycle phase of a Synchronizer.
type State int32

const (
	StateUninitialized State = iota
	StateSeeding
	StateLive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSeeding:
		return "seeding"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Synchronizer owns one client-local feed view: an ordered, time-windowed
// materialization of the incident store. It seeds the view from a store
// snapshot, then reconciles change stream events into it until closed.
//
// All reconciliation for one Synchronizer happens on the goroutine running
// [Synchronizer.Run]; Snapshot and Close may be called from any goroutine.
type Synchronizer struct {
	store   Snapshotter
	source  EventSource
	clock   clockwork.Clock
	window  time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics

	notices chan Notice
	seeded  atomic.Bool

	mu    sync.Mutex
	state State
	view  []domain.Incident
	known map[string]struct{}
}

// New creates a Synchronizer over the given store and event source. The
// window bounds how old an incident may be and still appear in the view.
func New(store Snapshotter, source EventSource, clock clockwork.Clock, window time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Synchronizer {
	return &Synchronizer{
		store:   store,
		source:  source,
		clock:   clock,
		window:  window,
		logger:  logger,
		metrics: metrics,
		notices: make(chan Notice, 16),
		state:   StateUninitialized,
		known:   make(map[string]struct{}),
	}
}

// Run seeds the view and then reconciles events until ctx is cancelled or
// Close is called. Store and stream failures never abort the loop; they
// degrade to notices while Run keeps the view as consistent as it can.
func (s *Synchronizer) Run(ctx context.Context) error {
	s.logger.Info("feed synchronizer starting", "window", s.window)
	s.metrics.FeedRunning.Set(1)
	defer s.metrics.FeedRunning.Set(0)

	s.seed(ctx)

	// Exponential backoff between stream failures: start at 200ms, double
	// each retry, cap at 5s.
	const initialBackoff = 200 * time.Millisecond
	const maxBackoff = 5 * time.Second
	backoff := initialBackoff

	for {
		if ctx.Err() != nil || s.State() == StateClosed {
			s.logger.Info("feed synchronizer stopping", "state", s.State().String())
			return nil
		}

		event, err := s.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				continue
			}
			s.logger.Warn("change stream interrupted", "error", err)
			s.notify(Notice{Kind: NoticeStreamInterrupted, Err: err})
			if !s.sleep(ctx, backoff) {
				continue
			}
			backoff = min(backoff*2, maxBackoff)
			// A reconnect is a fresh seeding pass merged into the existing
			// view; idempotent inserts keep the merge duplicate-free.
			s.metrics.FeedReseeds.Inc()
			s.seed(ctx)
			continue
		}

		backoff = initialBackoff
		s.Apply(event)
	}
}

// seed queries the store for everything inside the retention window and
// merges the result into the view. On failure the view is left as-is (empty
// on the first pass) and the synchronizer goes Live anyway: a degraded feed
// beats a blocked one.
func (s *Synchronizer) seed(ctx context.Context) {
	s.transition(StateUninitialized, StateSeeding)

	since := s.clock.Now().Add(-s.window)
	start := s.clock.Now()
	rows, err := s.store.Snapshot(ctx, since)
	s.metrics.FeedSeedDuration.Observe(s.clock.Since(start).Seconds())

	if err != nil {
		s.logger.Warn("snapshot query failed, serving degraded view", "error", err, "since", since)
		s.notify(Notice{Kind: NoticeSnapshotFailed, Err: err})
	} else {
		for _, incident := range rows {
			s.Apply(Event{Kind: EventInsert, ID: incident.ID, Incident: incident})
		}
		s.seeded.Store(true)
	}

	s.transition(StateSeeding, StateLive)
}

// Apply reconciles a single event into the view. Inserts are idempotent and
// position-ordered; deletes of unknown ids are no-ops; events past Close are
// dropped. Exported so replay tooling can drive a synchronizer directly.
func (s *Synchronizer) Apply(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		s.metrics.FeedEvents.WithLabelValues(string(event.Kind), "dropped").Inc()
		return
	}

	switch event.Kind {
	case EventInsert:
		s.applyInsert(event.Incident)
	case EventDelete:
		s.applyDelete(event.ID)
	default:
		s.logger.Warn("unknown event kind, ignoring", "kind", event.Kind, "id", event.ID)
		s.metrics.FeedEvents.WithLabelValues(string(event.Kind), "unknown").Inc()
	}

	s.metrics.FeedViewSize.Set(float64(len(s.view)))
}

func (s *Synchronizer) applyInsert(incident domain.Incident) {
	if _, ok := s.known[incident.ID]; ok {
		s.metrics.FeedEvents.WithLabelValues(string(EventInsert), "duplicate").Inc()
		return
	}
	if incident.ExpiredAt(s.clock.Now(), s.window) {
		s.metrics.FeedEvents.WithLabelValues(string(EventInsert), "expired").Inc()
		return
	}

	i := sort.Search(len(s.view), func(i int) bool {
		return domain.CompareFeedOrder(s.view[i], incident) >= 0
	})
	s.view = slices.Insert(s.view, i, incident)
	s.known[incident.ID] = struct{}{}
	s.metrics.FeedEvents.WithLabelValues(string(EventInsert), "applied").Inc()
}

func (s *Synchronizer) applyDelete(id string) {
	if _, ok := s.known[id]; !ok {
		s.metrics.FeedEvents.WithLabelValues(string(EventDelete), "absent").Inc()
		return
	}
	for i := range s.view {
		if s.view[i].ID == id {
			s.view = slices.Delete(s.view, i, i+1)
			break
		}
	}
	delete(s.known, id)
	s.metrics.FeedEvents.WithLabelValues(string(EventDelete), "applied").Inc()
}

// Snapshot returns a read-only copy of the current view. Entries that aged
// past the retention boundary since they were inserted are evicted here, so
// an expired incident is never observable no matter how it arrived.
func (s *Synchronizer) Snapshot() []domain.Incident {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if s.state != StateClosed {
		s.evictLocked(now)
	}

	out := make([]domain.Incident, 0, len(s.view))
	for _, incident := range s.view {
		if incident.ExpiredAt(now, s.window) {
			continue
		}
		out = append(out, incident)
	}
	return out
}

// evictLocked drops expired entries from the retained view. Entries are
// sorted newest first, so everything from the first expired index on is out
// of the window.
func (s *Synchronizer) evictLocked(now time.Time) {
	i := sort.Search(len(s.view), func(i int) bool {
		return s.view[i].ExpiredAt(now, s.window)
	})
	if i == len(s.view) {
		return
	}
	for _, expired := range s.view[i:] {
		delete(s.known, expired.ID)
	}
	s.view = s.view[:i]
	s.metrics.FeedViewSize.Set(float64(len(s.view)))
}

// Close tears the subscription down: the state moves to Closed immediately
// and any event still in flight is dropped instead of applied. Snapshot
// remains callable and returns the final view.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = StateClosed
	s.logger.Info("feed synchronizer closed", "view_size", len(s.view))
}

// Notices exposes non-fatal degradation events. The channel is buffered and
// sends are non-blocking: a consumer that stops reading loses notices rather
// than stalling reconciliation.
func (s *Synchronizer) Notices() <-chan Notice {
	return s.notices
}

// State returns the current lifecycle phase.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CheckReadiness reports nil once the first seeding pass has completed
// successfully.
func (s *Synchronizer) CheckReadiness(_ context.Context) error {
	if !s.seeded.Load() {
		return errors.New("feed has not completed its initial seed yet")
	}
	return nil
}

// transition moves the state machine only when the current state matches.
// A re-seed happens while Live, so neither seeding transition fires then,
// and a transport failure never changes state.
func (s *Synchronizer) transition(from, to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == from {
		s.state = to
	}
}

func (s *Synchronizer) notify(notice Notice) {
	s.metrics.FeedNotices.WithLabelValues(string(notice.Kind)).Inc()
	select {
	case s.notices <- notice:
	default:
		s.logger.Debug("notice dropped, consumer not reading", "kind", notice.Kind)
	}
}

func (s *Synchronizer) sleep(ctx context.Context, d time.Duration) bool {
	timer := s.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
