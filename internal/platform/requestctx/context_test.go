package requestctx

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestLoggerFallsBackToNoop(t *testing.T) {
	if Logger(context.Background()) != NoopLogger() {
		t.Fatalf("expected noop logger on empty context")
	}
	if Logger(WithLogger(context.Background(), nil)) != NoopLogger() {
		t.Fatalf("expected noop logger when nil was attached")
	}

	logger := zap.NewExample()
	if Logger(WithLogger(context.Background(), logger)) != logger {
		t.Fatalf("expected attached logger")
	}
}

func TestTraceSlotsAreIndependent(t *testing.T) {
	ctx := WithLogger(context.Background(), zap.NewExample())
	if _, ok := Trace(ctx); ok {
		t.Fatalf("logger must not satisfy the trace slot")
	}

	ctx = WithTrace(ctx, TraceInfo{TraceID: "abc", ProjectID: "p"})
	if TraceID(ctx) != "abc" {
		t.Fatalf("unexpected trace id %q", TraceID(ctx))
	}
	if Logger(ctx) == NoopLogger() {
		t.Fatalf("trace must not shadow the logger")
	}
}
