package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
		otel.SetTracerProvider(prev)
	})
	return sr
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	return attrs
}

func newTracedRouter(status int) *gin.Engine {
	router := gin.New()
	router.Use(
		RequestID(),
		Tracing(),
		SpanErrorMarker(),
		OperatorFromHeader("dev"),
		TracingAttributeInjector(),
	)
	router.POST("/api/v1/orders/:id/charge", func(c *gin.Context) {
		c.Status(status)
	})
	return router
}

func TestTracingWithConfig_Disabled(t *testing.T) {
	sr := setupTestTracer(t)

	router := gin.New()
	router.Use(TracingWithConfig(TracingConfig{Enabled: false, ServiceName: "collections-console"}))
	router.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestTracing_SpanAttributes(t *testing.T) {
	sr := setupTestTracer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/1001/charge", nil)
	req.Header.Set(RequestIDHeader, "req-7")
	req.Header.Set(OperatorHeader, "mlopez")
	w := httptest.NewRecorder()
	newTracedRouter(http.StatusOK).ServeHTTP(w, req)

	require.Len(t, sr.Ended(), 1)
	span := sr.Ended()[0]
	assert.Contains(t, span.Name(), "/api/v1/orders/:id/charge")
	attrs := spanAttrs(span)
	assert.Equal(t, "req-7", attrs["request_id"].AsString())
	assert.Equal(t, "mlopez", attrs["operator"].AsString())
	assert.NotEqual(t, codes.Error, span.Status().Code)
}

func TestSpanErrorMarker(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantError bool
		wantDesc  string
	}{
		{name: "success", status: http.StatusOK},
		{name: "already charged", status: http.StatusConflict, wantError: true, wantDesc: "Conflict"},
		{name: "not found", status: http.StatusNotFound, wantError: true, wantDesc: "Not Found"},
		{name: "upstream down", status: http.StatusBadGateway, wantError: true},
		{name: "insufficient credit", status: http.StatusUnprocessableEntity, wantError: true, wantDesc: "Client Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := setupTestTracer(t)

			w := httptest.NewRecorder()
			newTracedRouter(tt.status).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/orders/1001/charge", nil))

			require.Len(t, sr.Ended(), 1)
			span := sr.Ended()[0]
			if !tt.wantError {
				assert.NotEqual(t, codes.Error, span.Status().Code)
				return
			}
			assert.Equal(t, codes.Error, span.Status().Code)
			if tt.wantDesc != "" {
				assert.Equal(t, tt.wantDesc, span.Status().Description)
			}
			assert.Equal(t, int64(tt.status), spanAttrs(span)["http.status_code"].AsInt64())
		})
	}
}

func TestTracingAttributeInjector_NoSpan(t *testing.T) {
	router := gin.New()
	router.Use(TracingAttributeInjector(), SpanErrorMarker())
	router.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
