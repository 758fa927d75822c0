package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DatabaseURL      string
	KafkaBrokers     []string
	KafkaEventsTopic string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	// RetentionWindow bounds how old an incident may be and still appear in
	// a feed view. The one externally tunable feed parameter.
	RetentionWindow time.Duration
	PruneInterval   time.Duration

	// Media storage configuration.
	MediaBaseURL string
	MediaBucket  string
	MediaToken   string
	MediaTimeout time.Duration
	MediaEnabled bool

	// Geolocation provider configuration. When no base URL is set, the
	// service falls back to a fixed location.
	GeoBaseURL        string
	GeoToken          string
	GeoTimeout        time.Duration
	FallbackLocation  string
	FallbackLatitude  float64
	FallbackLongitude float64
}

// Load reads configuration from the environment (and an optional .env
// file), applying defaults where unset.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	retentionWindow, err := envDuration("RETENTION_WINDOW", 20*24*time.Hour)
	if err != nil {
		return nil, err
	}
	pruneInterval, err := envDuration("PRUNE_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}
	mediaTimeout, err := envDuration("MEDIA_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	geoTimeout, err := envDuration("GEO_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	fallbackLat, err := envFloat("FALLBACK_LATITUDE", 13.1209289)
	if err != nil {
		return nil, err
	}
	fallbackLon, err := envFloat("FALLBACK_LONGITUDE", 77.7337622)
	if err != nil {
		return nil, err
	}

	mediaBaseURL := os.Getenv("MEDIA_BASE_URL")
	mediaEnabled := mediaBaseURL != ""
	if v := os.Getenv("MEDIA_ENABLED"); v != "" {
		mediaEnabled = v == "true"
	}

	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		KafkaBrokers:     splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaEventsTopic: envOrDefault("KAFKA_EVENTS_TOPIC", "incident-events"),
		KafkaGroupID:     envOrDefault("KAFKA_GROUP_ID", "incident-feed"),
		HTTPAddr:         envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		LogFormat:        envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,

		RetentionWindow: retentionWindow,
		PruneInterval:   pruneInterval,

		MediaBaseURL: mediaBaseURL,
		MediaBucket:  envOrDefault("MEDIA_BUCKET", "incident-photos"),
		MediaToken:   os.Getenv("MEDIA_TOKEN"),
		MediaTimeout: mediaTimeout,
		MediaEnabled: mediaEnabled,

		GeoBaseURL:        os.Getenv("GEO_BASE_URL"),
		GeoToken:          os.Getenv("GEO_TOKEN"),
		GeoTimeout:        geoTimeout,
		FallbackLocation:  envOrDefault("FALLBACK_LOCATION", "Bengaluru"),
		FallbackLatitude:  fallbackLat,
		FallbackLongitude: fallbackLon,
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaEventsTopic == "" {
		return nil, errors.New("KAFKA_EVENTS_TOPIC is required")
	}
	if cfg.RetentionWindow <= 0 {
		return nil, errors.New("RETENTION_WINDOW must be positive")
	}
	if cfg.MediaEnabled && cfg.MediaBaseURL == "" {
		return nil, errors.New("MEDIA_ENABLED is true but MEDIA_BASE_URL is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return f, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
