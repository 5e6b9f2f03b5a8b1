package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tamil-braille/api/internal/platform/requestctx"
)

func TestParseCloudTraceContext(t *testing.T) {
	sc, ok := parseCloudTraceContext("105445aa7843bc8bf206b12000100000/1;o=1")
	if !ok {
		t.Fatal("expected header to parse")
	}
	if got := sc.TraceID().String(); got != "105445aa7843bc8bf206b12000100000" {
		t.Fatalf("unexpected trace id %s", got)
	}
	if got := sc.SpanID().String(); got != "0000000000000001" {
		t.Fatalf("unexpected span id %s", got)
	}
	if !sc.IsSampled() || !sc.IsRemote() {
		t.Fatalf("expected sampled remote span context")
	}

	for _, header := range []string{"", "abc", "105445aa7843bc8bf206b12000100000", "105445aa7843bc8bf206b12000100000/0", "zz5445aa7843bc8bf206b12000100000/1"} {
		if _, ok := parseCloudTraceContext(header); ok {
			t.Fatalf("expected %q to be rejected", header)
		}
	}
}

func TestTraceMiddlewarePropagatesTrace(t *testing.T) {
	var got requestctx.TraceInfo
	handler := TraceMiddleware("braille-prod")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = requestctx.Trace(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/braille/table", nil)
	req.Header.Set(cloudTraceHeader, "105445aa7843bc8bf206b12000100000/10;o=1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got.TraceID != "105445aa7843bc8bf206b12000100000" {
		t.Fatalf("expected trace id propagated, got %q", got.TraceID)
	}
	if got.ProjectID != "braille-prod" {
		t.Fatalf("expected project id, got %q", got.ProjectID)
	}
	if !strings.HasPrefix(rec.Header().Get(cloudTraceHeader), got.TraceID+"/") {
		t.Fatalf("expected trace header echoed, got %q", rec.Header().Get(cloudTraceHeader))
	}
}

func TestRequestLoggerMiddlewareLogsCompletion(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	router := chi.NewRouter()
	router.Use(InjectLoggerMiddleware(logger), RequestLoggerMiddleware())
	router.Get("/conversions/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversions/cnv_1", nil))

	completed := logs.FilterMessage("request completed").All()
	if len(completed) != 1 {
		t.Fatalf("expected one completion entry, got %d", len(completed))
	}
	entry := completed[0]
	if entry.Level != zap.WarnLevel {
		t.Fatalf("expected warn level for 404, got %s", entry.Level)
	}
	fields := entry.ContextMap()
	if fields["status"] != int64(http.StatusNotFound) {
		t.Fatalf("unexpected status field %v", fields["status"])
	}
	if fields["route"] != "/conversions/{id}" {
		t.Fatalf("unexpected route field %v", fields["route"])
	}
}

func TestRecoveryMiddlewareWritesJSON(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	handler := RecoveryMiddleware(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/braille:convert", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"internal_server_error"`) {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Fatalf("expected panic to be logged")
	}
}

func TestEventLoggerPrefersContextLogger(t *testing.T) {
	fallbackCore, fallbackLogs := observer.New(zap.InfoLevel)
	ctxCore, ctxLogs := observer.New(zap.InfoLevel)

	log := EventLogger(zap.New(fallbackCore), "conversions")
	log(context.Background(), "conversion.saved", map[string]any{"recordId": "cnv_1"})
	log(WithLogger(context.Background(), zap.New(ctxCore)), "conversion.saved", nil)

	if fallbackLogs.Len() != 1 || ctxLogs.Len() != 1 {
		t.Fatalf("expected one entry per logger, got fallback=%d ctx=%d", fallbackLogs.Len(), ctxLogs.Len())
	}
	entry := fallbackLogs.All()[0]
	if entry.LoggerName != "conversions" {
		t.Fatalf("expected named logger, got %q", entry.LoggerName)
	}
	if entry.ContextMap()["recordId"] != "cnv_1" {
		t.Fatalf("expected recordId field, got %v", entry.ContextMap())
	}
}

func TestLogSafe(t *testing.T) {
	if got := logSafe("ab\x00c\nd", 10); got != "abcd" {
		t.Fatalf("unexpected sanitised value %q", got)
	}
	if got := logSafe("தமிழ்", 2); got != "தம" {
		t.Fatalf("expected rune-aware truncation, got %q", got)
	}
	if loggedRoute("") != "/" {
		t.Fatalf("expected root route for empty value")
	}
}

func TestConversionMetricsRecord(t *testing.T) {
	m, err := NewConversionMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("NewConversionMetrics returned error: %v", err)
	}
	m.RecordConversion(context.Background(), 5, 1, true)
	m.RecordExtraction(context.Background(), "image", "ok")

	var nilMetrics *ConversionMetrics
	nilMetrics.RecordConversion(context.Background(), 1, 0, false)
	nilMetrics.RecordExtraction(context.Background(), "text", "ok")
}

func TestClientValuesAreBoundedBeforeLogging(t *testing.T) {
	if got := remoteIP(" 203.0.113.9:4411 "); got != "203.0.113.9" {
		t.Fatalf("expected host without port, got %q", got)
	}
	if got := remoteIP("10.0.0.1\n" + strings.Repeat("9", 100)); len(got) != maxLoggedAddr || strings.Contains(got, "\n") {
		t.Fatalf("expected bounded address, got %q", got)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/braille:convert", nil)
	req.Header.Set("User-Agent", "braillectl/1.0\r\nforged: yes "+strings.Repeat("x", 400))
	var agent string
	for _, attr := range requestAttributes(req) {
		if attr.Key == "user_agent.original" {
			agent = attr.Value.AsString()
		}
	}
	if len(agent) != maxLoggedUserAgent || strings.ContainsAny(agent, "\r\n") {
		t.Fatalf("expected user agent bounded to %d runes without control characters, got %d %q", maxLoggedUserAgent, len(agent), agent)
	}
}
