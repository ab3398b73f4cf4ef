// Package outbox relays domain events committed to the outbox table onto the
// event bus.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/store"
	"github.com/joao-fontenele/sipasera/internal/telemetry"
)

const (
	DefaultBatchSize = 100
	DefaultInterval  = time.Second
)

type Publisher interface {
	Publish(ctx context.Context, key, eventType string, event any) error
}

type Relay struct {
	store     store.Store
	publisher Publisher
	producer  string
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
	relayed   metric.Int64Counter
}

type Option func(*Relay)

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithProducer sets the producer name stamped on every envelope.
func WithProducer(name string) Option {
	return func(r *Relay) { r.producer = name }
}

func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

func NewRelay(st store.Store, publisher Publisher, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		store:     st,
		publisher: publisher,
		producer:  "sipasera",
		batchSize: DefaultBatchSize,
		interval:  DefaultInterval,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		relayed:   telemetry.Counter("outbox", "outbox.events.relayed", "Outbox events published to the event bus"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RelayOnce publishes one batch of pending events in order and marks the
// published ones. When a publish fails, the events before it are still
// marked and the rest wait for the next run. Delivery is at least once;
// consumers dedupe on the envelope's event id.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var (
		published  int
		publishErr error
	)

	err := r.store.WithTx(ctx, func(tx store.Store) error {
		events, err := tx.PendingOutboxEvents(ctx, r.batchSize)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(events))
		for _, e := range events {
			if err := r.publisher.Publish(ctx, e.AggregateID, string(e.Type), r.envelope(e)); err != nil {
				publishErr = err
				r.logger.Error("failed to publish event", "error", err, "event_id", e.ID, "event_type", e.Type)
				break
			}
			r.relayed.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", string(e.Type))))
			ids = append(ids, e.ID)
		}

		if len(ids) == 0 {
			return nil
		}
		if err := tx.MarkOutboxPublished(ctx, ids, r.now()); err != nil {
			return err
		}
		published = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}

	return published, publishErr
}

func (r *Relay) envelope(e domain.OutboxEvent) domain.Envelope {
	return domain.Envelope{
		EventID:     e.ID,
		EventType:   e.Type,
		OccurredAt:  e.CreatedAt,
		Producer:    r.producer,
		AggregateID: e.AggregateID,
		Payload:     e.Payload,
	}
}

// Run relays until ctx is cancelled. A full batch is followed immediately by
// another run; otherwise the relay waits for the interval.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("starting outbox relay", "batch_size", r.batchSize, "interval", r.interval.String())

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		n, err := r.RelayOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.Error("failed to relay outbox events", "error", err)
		}
		if n > 0 {
			r.logger.Info("outbox events relayed", "count", n)
		}

		next := r.interval
		if err == nil && n == r.batchSize {
			next = 0
		}
		timer.Reset(next)
	}
}
