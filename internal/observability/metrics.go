package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// submission pipeline and the feed synchronizer.
type Metrics struct {
	// Submission metrics.
	Submissions  *prometheus.CounterVec // labels: outcome={accepted,invalid,location_unavailable,persistence_failed}
	MediaUploads *prometheus.CounterVec // labels: outcome={success,error}

	// Feed synchronizer metrics.
	FeedEvents       *prometheus.CounterVec // labels: kind={insert,delete}, outcome={applied,duplicate,expired,absent,dropped,unknown}
	FeedNotices      *prometheus.CounterVec // labels: kind={snapshot_failed,stream_interrupted}
	FeedViewSize     prometheus.Gauge
	FeedReseeds      prometheus.Counter
	FeedSeedDuration prometheus.Histogram
	FeedRunning      prometheus.Gauge

	// Retention metrics.
	IncidentsPruned prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Submissions,
		m.MediaUploads,
		m.FeedEvents,
		m.FeedNotices,
		m.FeedViewSize,
		m.FeedReseeds,
		m.FeedSeedDuration,
		m.FeedRunning,
		m.IncidentsPruned,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "incident_feed",
			Name:      "submissions_total",
			Help:      "Incident submissions by outcome.",
		}, []string{"outcome"}),
		MediaUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "incident_feed",
			Name:      "media_uploads_total",
			Help:      "Photo uploads by outcome.",
		}, []string{"outcome"}),
		FeedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "incident_feed",
			Name:      "feed_events_total",
			Help:      "Change stream events reconciled into the view, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		FeedNotices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "incident_feed",
			Name:      "feed_notices_total",
			Help:      "Non-fatal feed degradations surfaced to the consumer.",
		}, []string{"kind"}),
		FeedViewSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "incident_feed",
			Name:      "feed_view_size",
			Help:      "Incidents currently retained in the feed view.",
		}),
		FeedReseeds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "incident_feed",
			Name:      "feed_reseeds_total",
			Help:      "Seeding passes triggered by stream reconnects.",
		}),
		FeedSeedDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "incident_feed",
			Name:      "feed_seed_duration_seconds",
			Help:      "Duration of store snapshot queries during seeding.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		FeedRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "incident_feed",
			Name:      "feed_running",
			Help:      "1 while a synchronizer run loop is active, 0 otherwise.",
		}),
		IncidentsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "incident_feed",
			Name:      "incidents_pruned_total",
			Help:      "Incidents removed from the store by the retention pruner.",
		}),
	}
}
