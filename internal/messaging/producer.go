// Package messaging moves domain events over Kafka, carrying the trace
// context in message headers.
package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/sipasera/internal/telemetry"
)

// HeaderEventType names the event carried by a message, so consumers can
// skip events they do not handle without decoding the body.
const HeaderEventType = "event_type"

var producerTracer = otel.Tracer("messaging/producer")

type Producer struct {
	writer    *kafka.Writer
	topic     string
	published metric.Int64Counter
}

// NewProducer writes to topic with acks from all in-sync replicas. The
// outbox relay marks an event published only after that ack.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		topic: topic,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
		},
		published: telemetry.Counter("messaging", "messaging.events.published", "Events written to Kafka by type and outcome"),
	}
}

// Publish sends event as JSON. Messages with the same key land on the same
// partition, which keeps one aggregate's events in order.
func (p *Producer) Publish(ctx context.Context, key, eventType string, event any) (err error) {
	ctx, span := producerTracer.Start(ctx, "send "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("send"),
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingKafkaMessageKey(key),
			attribute.String("event.type", eventType),
		),
	)
	defer func() {
		telemetry.End(ctx, span, p.published, err, attribute.String("event.type", eventType))
	}()

	msg, err := newMessage(ctx, key, eventType, event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func newMessage(ctx context.Context, key, eventType string, event any) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}

	msg := kafka.Message{Key: []byte(key), Value: data}
	carrier := NewMessageCarrier(&msg)
	carrier.Set(HeaderEventType, eventType)
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return msg, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
