// Command feedd runs the incident feed service: it accepts SOS submissions,
// stores them, mirrors store mutations onto the change stream, and serves a
// live, retention-bounded feed view over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/resqrelief/incident-feed/internal/adapter/geolocate"
	httpadapter "github.com/resqrelief/incident-feed/internal/adapter/http"
	kafkaadapter "github.com/resqrelief/incident-feed/internal/adapter/kafka"
	"github.com/resqrelief/incident-feed/internal/adapter/media"
	"github.com/resqrelief/incident-feed/internal/adapter/postgres"
	"github.com/resqrelief/incident-feed/internal/config"
	"github.com/resqrelief/incident-feed/internal/feed"
	"github.com/resqrelief/incident-feed/internal/observability"
	"github.com/resqrelief/incident-feed/internal/retention"
	"github.com/resqrelief/incident-feed/internal/submit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	publisher := kafkaadapter.NewPublisher(cfg, logger)
	source := kafkaadapter.NewSource(cfg, logger)

	store := postgres.NewStore(pool, publisher, logger)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	// Location provider: positioning service when configured, otherwise the
	// fixed fallback position.
	var location submit.LocationProvider
	if cfg.GeoBaseURL != "" {
		location = geolocate.NewClient(cfg.GeoBaseURL, cfg.GeoToken, cfg.GeoTimeout, logger)
		logger.Info("positioning service enabled", "base_url", cfg.GeoBaseURL)
	} else {
		location = geolocate.NewStatic(cfg.FallbackLocation, cfg.FallbackLatitude, cfg.FallbackLongitude)
		logger.Info("using fallback location", "label", cfg.FallbackLocation)
	}

	// Media store: photo uploads are feature-flagged; submissions work
	// without them.
	var mediaStore submit.MediaStore
	if cfg.MediaEnabled {
		mediaStore = media.NewClient(cfg.MediaBaseURL, cfg.MediaBucket, cfg.MediaToken, cfg.MediaTimeout, logger)
		logger.Info("media uploads enabled", "bucket", cfg.MediaBucket)
	} else {
		logger.Info("media uploads disabled")
	}

	pipeline := submit.New(location, mediaStore, store, logger, metrics)
	synchronizer := feed.New(store, source, clock, cfg.RetentionWindow, logger, metrics)
	pruner := retention.New(store, clock, cfg.RetentionWindow, cfg.PruneInterval, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, synchronizer, pipeline, synchronizer, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := synchronizer.Run(ctx); err != nil {
			logger.Error("feed synchronizer error", "error", err)
		}
	}()

	go func() {
		if err := pruner.Run(ctx); err != nil {
			logger.Error("retention pruner error", "error", err)
		}
	}()

	// Feed degradations are non-fatal; surface them in the logs.
	go func() {
		for notice := range synchronizer.Notices() {
			logger.Warn("feed degraded", "kind", notice.Kind, "error", notice.Err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	synchronizer.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := source.Close(); err != nil {
		logger.Error("kafka source close error", "error", err)
	}
	if err := publisher.Close(); err != nil {
		logger.Error("kafka publisher close error", "error", err)
	}

	logger.Info("shutdown complete")
}
