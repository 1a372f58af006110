package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestEventMetaRoundTrip(t *testing.T) {
	msg := kafka.Message{
		Topic:   "calendar.appointment.created.v1",
		Key:     []byte("evt-1"),
		Headers: EventMeta{EventID: "id-1", EventType: "calendar.appointment.created.v1"}.Headers(),
	}
	meta := ExtractEventMeta(msg)
	if meta.EventID != "id-1" || meta.EventType != "calendar.appointment.created.v1" {
		t.Fatalf("unexpected meta: %+v", meta)
	}

	bare := ExtractEventMeta(kafka.Message{Topic: "t", Key: []byte("k")})
	if bare.EventID != "k" || bare.EventType != "t" {
		t.Fatalf("fallback meta: %+v", bare)
	}
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := InjectTraceHeaders(ctx, EventMeta{EventID: "1", EventType: "x"}.Headers())
	if HeaderValue(headers, "traceparent") == "" {
		t.Fatalf("traceparent not injected: %+v", headers)
	}
	if HeaderValue(headers, HeaderEventID) != "1" {
		t.Fatalf("existing headers lost")
	}

	got := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), kafka.Message{Headers: headers}))
	if got.TraceID() != traceID {
		t.Fatalf("trace id = %s", got.TraceID())
	}
}

func TestReadyCheckWithoutBrokers(t *testing.T) {
	if err := ReadyCheck(nil)(context.Background()); err == nil {
		t.Fatalf("expected error without brokers")
	}
}
