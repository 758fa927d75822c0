// Package retention removes incidents from the store once they age past
// the retention window, so the table tracks what feeds are allowed to show.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/resqrelief/incident-feed/internal/observability"
)

// PruneStore deletes incidents older than a cutoff and reports their ids.
type PruneStore interface {
	PruneOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
}

// Pruner periodically prunes expired incidents. The store announces each
// removal on the change stream, so live views converge ahead of their own
// lazy eviction.
type Pruner struct {
	store    PruneStore
	clock    clockwork.Clock
	window   time.Duration
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a Pruner that fires every interval and deletes incidents
// older than the retention window.
func New(store PruneStore, clock clockwork.Clock, window, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Pruner {
	return &Pruner{
		store:    store,
		clock:    clock,
		window:   window,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run prunes on a ticker until ctx is cancelled.
func (p *Pruner) Run(ctx context.Context) error {
	p.logger.Info("retention pruner started", "window", p.window, "interval", p.interval)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("retention pruner stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	cutoff := p.clock.Now().Add(-p.window)
	ids, err := p.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Warn("prune pass failed", "cutoff", cutoff, "error", err)
		return
	}
	if len(ids) == 0 {
		return
	}
	p.metrics.IncidentsPruned.Add(float64(len(ids)))
	p.logger.Info("pruned expired incidents", "count", len(ids), "cutoff", cutoff)
}
