package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/sipasera/internal/domain"
)

// Counter creates an Int64Counter on the global meter provider, falling back
// to a no-op counter if the instrument cannot be created.
func Counter(scope, name, description string) metric.Int64Counter {
	c, err := otel.Meter(scope).Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		c, _ = noop.NewMeterProvider().Meter(scope).Int64Counter(name)
	}
	return c
}

// Outcome classifies err for metric attributes.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case domain.IsDomain(err):
		return "rejected"
	default:
		return "error"
	}
}

// End records err on span, counts the outcome and ends the span.
func End(ctx context.Context, span trace.Span, counter metric.Int64Counter, err error, attrs ...attribute.KeyValue) {
	attrs = append(attrs, attribute.String("outcome", Outcome(err)))
	counter.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
