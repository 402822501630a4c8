package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// newSpanRecorder returns a TracerProvider backed by an in-memory exporter
// so tests can inspect the spans a pipeline cycle produces.
func newSpanRecorder(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exp
}

func TestStartSpan_RecordsNamedSpan(t *testing.T) {
	tp, exp := newSpanRecorder(t)
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })

	ctx, span := StartSpan(context.Background(), "app.handleTrigger")
	if CorrelationID(ctx) == "" {
		t.Error("StartSpan produced no trace ID")
	}
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Name != "app.handleTrigger" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "app.handleTrigger")
	}
}

func TestCorrelationID_EmptyWithoutSpan(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}
}

func TestCorrelationID_IsHexTraceID(t *testing.T) {
	tp, _ := newSpanRecorder(t)
	ctx, span := tp.Tracer("stream").Start(context.Background(), "stream.listen")
	defer span.End()

	cid := CorrelationID(ctx)
	if len(cid) != 32 {
		t.Fatalf("len(CorrelationID) = %d, want 32", len(cid))
	}
	if strings.Trim(cid, "0123456789abcdef") != "" {
		t.Errorf("CorrelationID %q contains non-hex characters", cid)
	}
}

func TestCorrelationID_DistinctPerCycle(t *testing.T) {
	tp, _ := newSpanRecorder(t)
	tracer := tp.Tracer("stream")

	seen := make(map[string]struct{}, 50)
	for range 50 {
		ctx, span := tracer.Start(context.Background(), "stream.listen")
		cid := CorrelationID(ctx)
		span.End()
		if _, dup := seen[cid]; dup {
			t.Fatalf("CorrelationID %q repeated across cycles", cid)
		}
		seen[cid] = struct{}{}
	}
}

func TestLogger_AnnotatesWithSpanContext(t *testing.T) {
	tp, _ := newSpanRecorder(t)

	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })

	ctx, span := tp.Tracer("stream").Start(context.Background(), "stream.listen")
	defer span.End()

	Logger(ctx).Info("window decoded")

	out := buf.String()
	if !strings.Contains(out, "trace_id=") {
		t.Errorf("log line missing trace_id: %s", out)
	}
	if !strings.Contains(out, "span_id=") {
		t.Errorf("log line missing span_id: %s", out)
	}
}

func TestLogger_PlainWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })

	Logger(context.Background()).Info("no active cycle")

	if out := buf.String(); strings.Contains(out, "trace_id") {
		t.Errorf("log line outside a span carries trace_id: %s", out)
	}
}

func TestTracer_NotNil(t *testing.T) {
	tr := Tracer()
	if tr == nil {
		t.Fatal("Tracer() = nil")
	}
	var _ trace.Tracer = tr
}
