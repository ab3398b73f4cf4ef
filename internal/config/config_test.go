package config

import (
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, k := range []string{"PORT", "KAFKA_BROKERS", "PAYLATER_NOMINAL_LIMIT", "PAYLATER_TERM_DAYS", "OUTBOX_BATCH_SIZE", "OUTBOX_INTERVAL", "EVENTS_TOPIC", "WORKER_MAX_ATTEMPTS", "TRACE_SAMPLE_RATIO"} {
			t.Setenv(k, "")
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Port != "8080" || cfg.EventsTopic != "sipasera.events" || cfg.TermDays != 30 ||
			cfg.OutboxBatchSize != 100 || cfg.OutboxInterval != time.Second || cfg.NominalLimit != 0 {
			t.Errorf("unexpected defaults %+v", cfg)
		}
		if cfg.ConsumerAttempts != 3 || cfg.TraceSampleRatio != 1 {
			t.Errorf("unexpected worker defaults %+v", cfg)
		}
		if len(cfg.KafkaBrokers) != 0 {
			t.Errorf("expected no brokers, got %v", cfg.KafkaBrokers)
		}
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
		t.Setenv("PAYLATER_NOMINAL_LIMIT", "100000")
		t.Setenv("PAYLATER_TERM_DAYS", "14")
		t.Setenv("OUTBOX_INTERVAL", "250ms")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
			t.Errorf("unexpected brokers %v", cfg.KafkaBrokers)
		}
		if cfg.NominalLimit != 100_000 || cfg.TermDays != 14 || cfg.OutboxInterval != 250*time.Millisecond {
			t.Errorf("unexpected overrides %+v", cfg)
		}
	})

	for _, tt := range []struct{ key, value string }{
		{"PAYLATER_NOMINAL_LIMIT", "10.5"},
		{"PAYLATER_NOMINAL_LIMIT", "-1"},
		{"PAYLATER_TERM_DAYS", "0"},
		{"OUTBOX_BATCH_SIZE", "many"},
		{"OUTBOX_INTERVAL", "soon"},
		{"WORKER_MAX_ATTEMPTS", "-2"},
		{"TRACE_SAMPLE_RATIO", "1.5"},
		{"TRACE_SAMPLE_RATIO", "half"},
	} {
		t.Run("invalid "+tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
