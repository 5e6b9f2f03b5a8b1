// Package requestctx carries request-scoped values shared by middleware,
// handlers and the error writer without those packages importing each other.
package requestctx

import (
	"context"

	"go.uber.org/zap"
)

// slot is a typed context key; each stored type gets its own key.
type slot[T any] struct{}

func put[T any](ctx context.Context, value T) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, slot[T]{}, value)
}

func get[T any](ctx context.Context) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	value, ok := ctx.Value(slot[T]{}).(T)
	return value, ok
}

var discard = zap.NewNop()

// TraceInfo is the Cloud Trace context of the current request.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

// WithLogger attaches logger; nil attaches the shared no-op logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if logger == nil {
		logger = discard
	}
	return put(ctx, logger)
}

// Logger returns the attached logger or the shared no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if logger, ok := get[*zap.Logger](ctx); ok && logger != nil {
		return logger
	}
	return discard
}

// NoopLogger is the logger Logger falls back to, so callers can substitute their own.
func NoopLogger() *zap.Logger { return discard }

// WithTrace attaches trace metadata.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	return put(ctx, info)
}

// Trace returns the attached trace metadata.
func Trace(ctx context.Context) (TraceInfo, bool) {
	return get[TraceInfo](ctx)
}

// TraceID is Trace(ctx).TraceID, empty when untraced.
func TraceID(ctx context.Context) string {
	info, _ := get[TraceInfo](ctx)
	return info.TraceID
}
