package observe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// useTestTracer installs an in-memory tracer as the global provider for the
// duration of the test.
func useTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

// captureLogs routes the default slog logger into a buffer.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

func TestStartSpan_AttemptNestsUnderSpeak(t *testing.T) {
	exp := useTestTracer(t)

	ctx, speak := StartSpan(context.Background(), "speak")
	_, attempt := StartSpan(ctx, "tts.attempt")
	attempt.End()
	speak.End()

	spans := exp.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(spans))
	}
	child, parent := spans[0], spans[1]
	if child.Name != "tts.attempt" || parent.Name != "speak" {
		t.Fatalf("span order = %q, %q", child.Name, parent.Name)
	}
	if child.Parent.SpanID() != parent.SpanContext.SpanID() {
		t.Error("attempt span is not a child of the speak span")
	}
	if child.SpanContext.TraceID() != parent.SpanContext.TraceID() {
		t.Error("attempt span has a different trace id")
	}
}

func TestEndSpan(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   codes.Code
		wantEvents int
	}{
		{name: "success", wantCode: codes.Unset},
		{name: "quota", err: errors.New("elevenlabs: quota exceeded"), wantCode: codes.Error, wantEvents: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := useTestTracer(t)
			_, span := StartSpan(context.Background(), "tts.attempt")
			EndSpan(span, tt.err)

			spans := exp.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("spans = %d, want 1", len(spans))
			}
			got := spans[0]
			if got.Status.Code != tt.wantCode {
				t.Errorf("status = %v, want %v", got.Status.Code, tt.wantCode)
			}
			if len(got.Events) != tt.wantEvents {
				t.Errorf("events = %d, want %d", len(got.Events), tt.wantEvents)
			}
			if tt.err != nil && got.Status.Description != tt.err.Error() {
				t.Errorf("description = %q", got.Status.Description)
			}
		})
	}
}

func TestCorrelationID(t *testing.T) {
	useTestTracer(t)

	remoteTrace, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	remoteSpan, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	remote := trace.ContextWithRemoteSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: remoteTrace,
		SpanID:  remoteSpan,
		Remote:  true,
	}))

	local, span := StartSpan(context.Background(), "voice.call")
	defer span.End()

	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"no span", context.Background(), ""},
		{"remote parent", remote, "4bf92f3577b34da6a3ce929d0e0e4736"},
		{"local span", local, span.SpanContext().TraceID().String()},
	}
	for _, tt := range tests {
		if got := CorrelationID(tt.ctx); got != tt.want {
			t.Errorf("%s: CorrelationID = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestLogger_TraceAttributes(t *testing.T) {
	useTestTracer(t)
	buf := captureLogs(t)

	ctx, span := StartSpan(context.Background(), "speak")
	Logger(ctx).Info("fallback used", "voice", "es-US-Chirp3-HD-Kore")
	span.End()
	Logger(context.Background()).Info("no trace")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("log lines = %d, want 2", len(lines))
	}
	wantTrace := "trace_id=" + span.SpanContext().TraceID().String()
	if !strings.Contains(lines[0], wantTrace) || !strings.Contains(lines[0], "span_id=") {
		t.Errorf("traced line = %q, want %s and span_id", lines[0], wantTrace)
	}
	if strings.Contains(lines[1], "trace_id") {
		t.Errorf("untraced line = %q, want no trace_id", lines[1])
	}
}
