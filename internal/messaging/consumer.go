package messaging

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/sipasera/internal/telemetry"
)

var consumerTracer = otel.Tracer("messaging/consumer")

// HandlerFunc processes one message. Handlers must tolerate redelivery.
type HandlerFunc func(ctx context.Context, eventType string, payload []byte) error

type Consumer struct {
	reader   *kafka.Reader
	topic    string
	groupID  string
	attempts int
	backoff  time.Duration
	consumed metric.Int64Counter
}

type consumerConfig struct {
	reader   kafka.ReaderConfig
	attempts int
	backoff  time.Duration
}

type ConsumerOption func(*consumerConfig)

// WithStartOffset picks where a new consumer group starts reading,
// kafka.FirstOffset or kafka.LastOffset.
func WithStartOffset(offset int64) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.reader.StartOffset = offset
	}
}

// WithRetry sets how many times a failing message is handed to the handler
// and the linear backoff between tries.
func WithRetry(attempts int, backoff time.Duration) ConsumerOption {
	return func(cfg *consumerConfig) {
		if attempts > 0 {
			cfg.attempts = attempts
		}
		cfg.backoff = backoff
	}
}

func NewConsumer(brokers []string, topic, groupID string, opts ...ConsumerOption) *Consumer {
	cfg := consumerConfig{
		reader: kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		},
		attempts: 1,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := newConsumer(topic, groupID, cfg.attempts, cfg.backoff)
	c.reader = kafka.NewReader(cfg.reader)
	return c
}

func newConsumer(topic, groupID string, attempts int, backoff time.Duration) *Consumer {
	return &Consumer{
		topic:    topic,
		groupID:  groupID,
		attempts: attempts,
		backoff:  backoff,
		consumed: telemetry.Counter("messaging", "messaging.events.consumed", "Event deliveries to handlers by type and outcome"),
	}
}

// Consume hands messages to handler in partition order and commits each one
// after it succeeds. When a message still fails after every retry, Consume
// returns without committing it so the next run picks it up again.
func (c *Consumer) Consume(ctx context.Context, handler HandlerFunc) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		if err := c.deliver(ctx, msg, handler); err != nil {
			return fmt.Errorf("partition %d offset %d: %w", msg.Partition, msg.Offset, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, msg kafka.Message, handler HandlerFunc) error {
	for attempt := 1; ; attempt++ {
		err := c.process(ctx, msg, handler, attempt)
		if err == nil || attempt >= c.attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message, handler HandlerFunc, attempt int) (err error) {
	carrier := NewMessageCarrier(&msg)
	eventType := carrier.Get(HeaderEventType)

	ctx, span := consumerTracer.Start(otel.GetTextMapPropagator().Extract(ctx, carrier), "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
			attribute.String("event.type", eventType),
			attribute.Int("delivery.attempt", attempt),
		),
	)
	defer func() {
		telemetry.End(ctx, span, c.consumed, err, attribute.String("event.type", eventType))
	}()

	return handler(ctx, eventType, msg.Value)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
