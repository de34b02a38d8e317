package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func header(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}

func TestKafkaHeaderRoundTrip(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "produce")
	defer span.End()

	headers := InjectKafkaHeaders(ctx, []kafka.Header{{Key: "event_type", Value: []byte("OrderFulfilled")}})
	require.NotEmpty(t, header(headers, TraceparentHeader))
	assert.Equal(t, "OrderFulfilled", header(headers, "event_type"))
	assert.Equal(t, header(headers, TraceparentHeader), Traceparent(ctx))

	extracted := ExtractKafkaHeaders(context.Background(), headers)
	got := trace.SpanContextFromContext(extracted)
	assert.Equal(t, span.SpanContext().TraceID(), got.TraceID())
}

func TestTraceparentRestoresSpanContext(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "book")
	recorded := Traceparent(ctx)
	span.End()

	restored := WithTraceparent(context.Background(), recorded)
	assert.Equal(t, span.SpanContext().TraceID(), trace.SpanContextFromContext(restored).TraceID())
	assert.Equal(t, recorded, header(InjectKafkaHeaders(restored, nil), TraceparentHeader))
}

func TestTraceparentWithoutSpan(t *testing.T) {
	assert.Empty(t, Traceparent(context.Background()))
	assert.Empty(t, InjectKafkaHeaders(WithTraceparent(context.Background(), "not-a-traceparent"), nil))
}
