// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joao-fontenele/sipasera/internal/domain"
)

type Config struct {
	Port         string
	NotifierPort string
	PostgresURL  string
	RedisAddr    string
	KafkaBrokers []string
	EventsTopic  string
	NotifierURL  string
	ServiceName  string

	// NominalLimit is the limit new accounts open with. Accounts at or
	// below it cannot use paylater until an application is approved.
	NominalLimit    domain.Money
	TermDays        int
	OutboxBatchSize int
	OutboxInterval  time.Duration

	// ConsumerAttempts bounds how often the worker retries one message
	// before it stops and leaves the message uncommitted.
	ConsumerAttempts int

	OTLPEndpoint     string
	TraceSampleRatio float64
}

// Load reads the environment. Unset values fall back to local defaults;
// malformed numbers and durations are errors.
func Load() (Config, error) {
	cfg := Config{
		Port:         getenv("PORT", "8080"),
		NotifierPort: getenv("NOTIFIER_PORT", "8084"),
		PostgresURL:  os.Getenv("POSTGRES_URL"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
		EventsTopic:  getenv("EVENTS_TOPIC", "sipasera.events"),
		NotifierURL:  os.Getenv("NOTIFIER_URL"),
		ServiceName:  getenv("SERVICE_NAME", "sipasera-api"),
		OTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	var err error
	if cfg.NominalLimit, err = domain.ParseMoney(getenv("PAYLATER_NOMINAL_LIMIT", "0")); err != nil {
		return Config{}, fmt.Errorf("PAYLATER_NOMINAL_LIMIT: %w", err)
	}
	if cfg.NominalLimit < 0 {
		return Config{}, fmt.Errorf("PAYLATER_NOMINAL_LIMIT: %w", domain.ErrInvalidAmount)
	}
	if cfg.TermDays, err = positiveInt("PAYLATER_TERM_DAYS", 30); err != nil {
		return Config{}, err
	}
	if cfg.OutboxBatchSize, err = positiveInt("OUTBOX_BATCH_SIZE", 100); err != nil {
		return Config{}, err
	}
	if cfg.OutboxInterval, err = time.ParseDuration(getenv("OUTBOX_INTERVAL", "1s")); err != nil {
		return Config{}, fmt.Errorf("OUTBOX_INTERVAL: %w", err)
	}
	if cfg.ConsumerAttempts, err = positiveInt("WORKER_MAX_ATTEMPTS", 3); err != nil {
		return Config{}, err
	}
	if cfg.TraceSampleRatio, err = strconv.ParseFloat(getenv("TRACE_SAMPLE_RATIO", "1"), 64); err != nil ||
		cfg.TraceSampleRatio < 0 || cfg.TraceSampleRatio > 1 {
		return Config{}, fmt.Errorf("TRACE_SAMPLE_RATIO must be between 0 and 1, got %q", os.Getenv("TRACE_SAMPLE_RATIO"))
	}

	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func positiveInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", k, v)
	}
	return n, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
