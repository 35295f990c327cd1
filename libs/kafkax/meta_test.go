package kafkax

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestExtractEventMetaFallsBackToKeyAndTopic(t *testing.T) {
	meta := ExtractEventMeta(kafka.Message{Topic: "scheduling.appointment.created.v1", Key: []byte("appt-1")})
	if meta.EventID != "appt-1" || meta.EventType != "scheduling.appointment.created.v1" {
		t.Fatalf("unexpected meta %+v", meta)
	}

	meta = ExtractEventMeta(kafka.Message{
		Topic: "t",
		Key:   []byte("k"),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte("evt-9")},
			{Key: "event_type", Value: []byte("custom")},
		},
	})
	if meta.EventID != "evt-9" || meta.EventType != "custom" {
		t.Fatalf("headers not preferred: %+v", meta)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka:9092, ,kafka-2:9092 ")
	if len(got) != 2 || got[0] != "kafka:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", got)
	}
}

func TestEventMetaHeadersRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	in := EventMeta{EventID: "evt-1", EventType: "scheduling.appointment.cancelled.v1", AggregateID: "appt-7", OccurredAt: at}
	out := ExtractEventMeta(kafka.Message{Topic: "ignored", Headers: in.Headers()})
	if out.EventID != in.EventID || out.EventType != in.EventType || out.AggregateID != in.AggregateID || !out.OccurredAt.Equal(at) {
		t.Fatalf("unexpected meta %+v", out)
	}
	if n := len((EventMeta{EventID: "only"}).Headers()); n != 1 {
		t.Fatalf("expected empty fields to be skipped, got %d headers", n)
	}
}

func TestInjectTraceHeadersReplacesExisting(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	headers := InjectTraceHeaders(ctx, []kafka.Header{{Key: "traceparent", Value: []byte("stale")}})
	if len(headers) != 1 || HeaderValue(headers, "traceparent") == "stale" {
		t.Fatalf("expected traceparent to be replaced, got %v", headers)
	}
	got := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), kafka.Message{Headers: headers}))
	if got.TraceID() != traceID {
		t.Fatalf("trace id not extracted")
	}
}

func TestReadyCheckWithoutBrokers(t *testing.T) {
	if err := ReadyCheck(nil)(context.Background()); err == nil {
		t.Fatalf("expected error without brokers")
	}
}
