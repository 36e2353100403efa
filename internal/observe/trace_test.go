package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestCorrelationID(t *testing.T) {
	t.Parallel()

	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx1, s1 := tp.Tracer("test").Start(context.Background(), "cycle-1")
	ctx2, s2 := tp.Tracer("test").Start(context.Background(), "cycle-2")
	s1.End()
	s2.End()

	a, b := CorrelationID(ctx1), CorrelationID(ctx2)
	if len(a) != 32 || a != s1.SpanContext().TraceID().String() {
		t.Errorf("CorrelationID = %q, want span trace id", a)
	}
	if a == b {
		t.Error("independent cycles share a correlation id")
	}
}

// TestLogger swaps the default slog logger and therefore does not run in
// parallel.
func TestLogger(t *testing.T) {
	orig := slog.Default()
	t.Cleanup(func() { slog.SetDefault(orig) })

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))

	Logger(context.Background()).Info("no span")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("log without span contains trace_id: %s", buf.String())
	}

	buf.Reset()
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "announce")
	defer span.End()

	Logger(ctx).Info("with span")
	for _, want := range []string{"trace_id=", "span_id="} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("log output missing %s: %s", want, buf.String())
		}
	}
}
