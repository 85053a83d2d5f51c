package observe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// useTestTracerProvider installs an in-memory tracer provider globally for one test.
func useTestTracerProvider(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

// TestStartRunSpanRecordsError checks the run span name, attributes and error status.
func TestStartRunSpanRecordsError(t *testing.T) {
	exp := useTestTracerProvider(t)

	_, span := StartRunSpan(context.Background(), "run-1", "vtt")
	EndSpan(span, errors.New("engine failed"))

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	got := spans[0]
	if got.Name != "transcribe.run" {
		t.Fatalf("span name = %q, want transcribe.run", got.Name)
	}
	if got.Status.Code != codes.Error {
		t.Fatalf("status = %v, want error", got.Status.Code)
	}
	found := false
	for _, kv := range got.Attributes {
		if string(kv.Key) == "run.id" && kv.Value.AsString() == "run-1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("run.id attribute missing: %+v", got.Attributes)
	}
}

// TestLoggerAddsTraceIDs checks span identifiers are attached to log records.
func TestLoggerAddsTraceIDs(t *testing.T) {
	useTestTracerProvider(t)
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	ctx, span := StartSpan(context.Background(), "test")
	defer span.End()
	Logger(ctx, base).Info("hello")

	if !strings.Contains(buf.String(), "trace_id=") {
		t.Fatalf("log = %q, want trace_id", buf.String())
	}

	buf.Reset()
	Logger(context.Background(), base).Info("plain")
	if strings.Contains(buf.String(), "trace_id=") {
		t.Fatalf("log = %q, want no trace_id", buf.String())
	}
}

// TestMetricsHandlerServesMetrics checks the scrape endpoint is mounted.
func TestMetricsHandlerServesMetrics(t *testing.T) {
	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
