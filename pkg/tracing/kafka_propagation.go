package tracing

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
)

const TraceparentHeader = "traceparent"

// Kafka headers always carry W3C trace context, whatever global propagator
// the process installed.
var kafkaPropagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

func InjectKafkaHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := propagation.MapCarrier{}
	kafkaPropagator.Inject(ctx, carrier)

	for _, k := range carrier.Keys() {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(carrier.Get(k))})
	}
	return headers
}

func ExtractKafkaHeaders(ctx context.Context, headers []kafka.Header) context.Context {
	carrier := propagation.MapCarrier{}

	for _, h := range headers {
		carrier[h.Key] = string(h.Value)
	}

	return kafkaPropagator.Extract(ctx, carrier)
}

// Traceparent renders the current span context as a W3C traceparent value,
// or "" when ctx carries no span.
func Traceparent(ctx context.Context) string {
	carrier := propagation.MapCarrier{}
	kafkaPropagator.Inject(ctx, carrier)
	return carrier.Get(TraceparentHeader)
}

// WithTraceparent restores a remote span context recorded by Traceparent.
// Malformed values leave ctx unchanged.
func WithTraceparent(ctx context.Context, traceparent string) context.Context {
	if traceparent == "" {
		return ctx
	}
	return kafkaPropagator.Extract(ctx, propagation.MapCarrier{TraceparentHeader: traceparent})
}
