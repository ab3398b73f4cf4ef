package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/joao-fontenele/sipasera/internal/config"
	"github.com/joao-fontenele/sipasera/internal/idempotency"
	"github.com/joao-fontenele/sipasera/internal/messaging"
	"github.com/joao-fontenele/sipasera/internal/notify"
	"github.com/joao-fontenele/sipasera/internal/outbox"
	"github.com/joao-fontenele/sipasera/internal/redisx"
	"github.com/joao-fontenele/sipasera/internal/store/postgres"
	"github.com/joao-fontenele/sipasera/internal/telemetry"
	"github.com/joao-fontenele/sipasera/internal/worker"
)

const (
	serviceName = "sipasera-worker"
	version     = "0.1.0"
)

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.PostgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	if len(cfg.KafkaBrokers) == 0 {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, telemetry.TracingOptions{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Endpoint:       cfg.OTLPEndpoint,
		SampleRatio:    cfg.TraceSampleRatio,
	})
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	db, err := telemetry.OpenDB("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.EventsTopic)
	defer func() { _ = producer.Close() }()

	consumer := messaging.NewConsumer(cfg.KafkaBrokers, cfg.EventsTopic, "notification-worker",
		messaging.WithRetry(cfg.ConsumerAttempts, time.Second),
	)
	defer func() { _ = consumer.Close() }()

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.NotifierURL != "" {
		notifier = notify.NewClient(cfg.NotifierURL, telemetry.HTTPClient(10*time.Second))
	} else {
		logger.Warn("NOTIFIER_URL not set, logging notifications locally")
	}

	var seen idempotency.Store = idempotency.NewMemoryStore()
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer func() { _ = rdb.Close() }()
		seen = idempotency.NewRedisStore(rdb)
	}

	relay := outbox.NewRelay(postgres.New(db), producer, logger,
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithInterval(cfg.OutboxInterval),
		outbox.WithProducer(cfg.ServiceName),
	)
	notificationHandler := worker.NewNotificationHandler(notifier, seen, logger)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	go func() {
		if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("outbox relay stopped", "error", err)
			cancel()
		}
	}()

	logger.Info("starting notification worker", "brokers", cfg.KafkaBrokers, "topic", cfg.EventsTopic)

	if err := consumer.Consume(ctx, notificationHandler.Handle); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
