package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContext(t *testing.T) {
	l := zap.NewExample()
	ctx := WithContext(context.Background(), l)

	assert.Same(t, l, FromContext(ctx))
}

func TestFromContext_NotFound(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	l.Info("does not panic")
}

func TestFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), LoggerKey, "not a logger")
	assert.NotNil(t, FromContext(ctx))
}

func TestWithRequestIDAndOperator(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx, l := WithRequestID(context.Background(), base, "req-1")
	ctx, l = WithOperator(ctx, l, "marta")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "marta", GetOperator(ctx))
	assert.Same(t, l, FromContext(ctx))

	l.Info("charged")
	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "marta", fields["operator"])
}

func TestGetters_Empty(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetOperator(ctx))
	assert.Empty(t, GetTraceID(ctx))
}

// ----------------------------------------------------------------------------
// Trace correlation
// ----------------------------------------------------------------------------

func contextWithSpan(t *testing.T) context.Context {
	t.Helper()
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	t.Cleanup(func() { span.End() })
	return ctx
}

func TestGetTraceID_WithSpan(t *testing.T) {
	ctx := contextWithSpan(t)
	id := GetTraceID(ctx)
	assert.Len(t, id, 32)
}

func TestWithTraceContext(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	t.Run("no span returns same logger", func(t *testing.T) {
		assert.Same(t, base, WithTraceContext(context.Background(), base))
	})

	t.Run("span adds trace and span ids", func(t *testing.T) {
		ctx := contextWithSpan(t)
		WithTraceContext(ctx, base).Info("traced")

		entries := recorded.FilterMessage("traced").All()
		require.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		assert.Equal(t, GetTraceID(ctx), fields["trace_id"])
		assert.NotEmpty(t, fields["span_id"])
	})
}

func TestL(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx := WithContext(contextWithSpan(t), zap.New(core))

	L(ctx).Info("hello", zap.Int64("order_id", 1001))

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(1001), fields["order_id"])
	assert.Contains(t, fields, "trace_id")
}
