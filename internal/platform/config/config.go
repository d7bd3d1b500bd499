// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full service configuration.
type Config struct {
	Server   Server
	Postgres Postgres
	Redis    Redis
	Detector Detector
	Stream   Stream
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	AdminToken    string
}

// Postgres captures database configuration.
type Postgres struct {
	URL string
}

// Redis captures the optional unread-count cache configuration. An empty URL
// disables the cache.
type Redis struct {
	URL string
	TTL time.Duration
}

// Trigger is one (entity type, status) pair the detector watches.
type Trigger struct {
	EntityType string
	Status     string
}

// Detector captures scan scheduling configuration.
type Detector struct {
	Interval    time.Duration
	LeaseTTL    time.Duration
	Concurrency int
	Triggers    []Trigger
}

// Stream captures the optional audit stream export configuration. No brokers
// means export is disabled.
type Stream struct {
	Brokers    []string
	Topic      string
	Partitions int32
	Interval   time.Duration
	BatchSize  int
}

// FromEnv builds the configuration from environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		Server: Server{
			Addr:          envOr("BEACON_ADDR", ":8080"),
			JWTSigningKey: envOr("BEACON_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:     os.Getenv("BEACON_JWT_ISSUER"),
			AdminToken:    os.Getenv("BEACON_ADMIN_TOKEN"),
		},
		Postgres: Postgres{
			URL: envOr("BEACON_POSTGRES_URL", "postgres://localhost:5432/beacon?sslmode=disable"),
		},
		Redis: Redis{
			URL: os.Getenv("BEACON_REDIS_URL"),
			TTL: envDurationOr("BEACON_REDIS_TTL", 5*time.Minute),
		},
		Detector: Detector{
			Interval:    envDurationOr("BEACON_DETECTOR_INTERVAL", time.Minute),
			LeaseTTL:    envDurationOr("BEACON_DETECTOR_LEASE_TTL", 5*time.Minute),
			Concurrency: envIntOr("BEACON_DETECTOR_CONCURRENCY", 4),
		},
		Stream: Stream{
			Topic:      envOr("BEACON_STREAM_TOPIC", "beacon.audit"),
			Partitions: int32(envIntOr("BEACON_STREAM_PARTITIONS", 3)),
			Interval:   envDurationOr("BEACON_STREAM_INTERVAL", 5*time.Second),
			BatchSize:  envIntOr("BEACON_STREAM_BATCH_SIZE", 200),
		},
	}

	if brokers := os.Getenv("BEACON_STREAM_BROKERS"); brokers != "" {
		cfg.Stream.Brokers = strings.Split(brokers, ",")
	}

	triggers, err := parseTriggers(os.Getenv("BEACON_DETECTOR_TRIGGERS"))
	if err != nil {
		return Config{}, err
	}
	cfg.Detector.Triggers = triggers

	return cfg, nil
}

// parseTriggers reads "entityType:status" pairs separated by commas, e.g.
// "installment:overdue,invoice:disputed".
func parseTriggers(raw string) ([]Trigger, error) {
	if raw == "" {
		return nil, nil
	}

	var triggers []Trigger
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		entityType, status, ok := strings.Cut(pair, ":")
		if !ok || entityType == "" || status == "" {
			return nil, fmt.Errorf("invalid trigger %q: want entityType:status", pair)
		}
		triggers = append(triggers, Trigger{EntityType: entityType, Status: status})
	}
	return triggers, nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}
