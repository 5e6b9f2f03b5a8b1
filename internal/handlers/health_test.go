package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	domain "github.com/tamil-braille/api/internal/domain"
	"github.com/tamil-braille/api/internal/services"
)

type stubSystemService struct {
	report services.SystemHealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, s.err
}

var _ services.SystemService = (*stubSystemService)(nil)

var probeTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func probe(t *testing.T, handler http.HandlerFunc, path string) (int, healthPayload) {
	t.Helper()
	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodGet, path, nil))

	var payload healthPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("%s: decode body %q: %v", path, rr.Body.String(), err)
	}
	return rr.Code, payload
}

func TestHealthzEchoesBuildInfo(t *testing.T) {
	h := NewHealthHandlers(
		WithHealthBuildInfo(services.BuildInfo{
			Version:     "0.4.0",
			CommitSHA:   "9f1c2e7",
			Environment: "staging",
			StartedAt:   probeTime.Add(-90 * time.Second),
		}),
		WithHealthClock(func() time.Time { return probeTime }),
		// /healthz must answer even when dependencies are down.
		WithHealthSystemService(&stubSystemService{err: errors.New("firestore unreachable")}),
	)

	code, got := probe(t, h.Healthz, "/healthz")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	want := healthPayload{
		Status:      domain.HealthStatusOK,
		Version:     "0.4.0",
		CommitSHA:   "9f1c2e7",
		Environment: "staging",
		Uptime:      "1m30s",
		GeneratedAt: "2025-03-14T09:26:53Z",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected payload\n got %+v\nwant %+v", got, want)
	}
}

func TestReadyzWithoutSystemServiceFallsBackToLiveness(t *testing.T) {
	h := NewHealthHandlers(WithHealthClock(func() time.Time { return probeTime }))

	code, got := probe(t, h.Readyz, "/readyz")
	if code != http.StatusOK || got.Status != domain.HealthStatusOK {
		t.Fatalf("expected ok liveness answer, got %d %+v", code, got)
	}
}

func TestReadyzStatusCodes(t *testing.T) {
	checkedAt := probeTime.Add(-time.Second)
	cases := []struct {
		name        string
		report      services.SystemHealthReport
		wantCode    int
		wantDetails []string
	}{
		{
			name: "all ok",
			report: services.SystemHealthReport{
				Status: domain.HealthStatusOK,
				Checks: map[string]domain.SystemHealthCheck{
					"history": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond, CheckedAt: checkedAt},
					"mapping": {Status: domain.HealthStatusOK, Detail: "92 entries"},
				},
			},
			wantCode: http.StatusOK,
		},
		{
			name: "degraded optional dependency",
			report: services.SystemHealthReport{
				Status: domain.HealthStatusDegraded,
				Checks: map[string]domain.SystemHealthCheck{
					"history": {Status: domain.HealthStatusOK},
					"pubsub":  {Status: domain.HealthStatusDegraded, Error: "topic not found"},
				},
			},
			wantCode:    http.StatusServiceUnavailable,
			wantDetails: []string{"pubsub: topic not found"},
		},
		{
			name: "critical failure reports every unhealthy check by name",
			report: services.SystemHealthReport{
				Status: domain.HealthStatusError,
				Checks: map[string]domain.SystemHealthCheck{
					"mapping": {Status: domain.HealthStatusError, Detail: "table is empty"},
					"history": {Status: domain.HealthStatusError},
				},
			},
			wantCode:    http.StatusServiceUnavailable,
			wantDetails: []string{"history: error", "mapping: table is empty"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHealthHandlers(
				WithHealthSystemService(&stubSystemService{report: tc.report}),
				WithHealthClock(func() time.Time { return probeTime }),
			)
			code, got := probe(t, h.Readyz, "/readyz")
			if code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, code)
			}
			if got.Status != tc.report.Status {
				t.Fatalf("expected status %s, got %s", tc.report.Status, got.Status)
			}
			if !reflect.DeepEqual(got.Details, tc.wantDetails) {
				t.Fatalf("expected details %v, got %v", tc.wantDetails, got.Details)
			}
			if len(got.Checks) != len(tc.report.Checks) {
				t.Fatalf("expected %d checks, got %v", len(tc.report.Checks), got.Checks)
			}
			// GeneratedAt was left zero, so the handler clock fills it in.
			if got.GeneratedAt != "2025-03-14T09:26:53Z" {
				t.Fatalf("unexpected generatedAt %q", got.GeneratedAt)
			}
		})
	}
}

func TestReadyzCheckPayload(t *testing.T) {
	h := NewHealthHandlers(WithHealthSystemService(&stubSystemService{report: services.SystemHealthReport{
		Status: domain.HealthStatusOK,
		Checks: map[string]domain.SystemHealthCheck{
			"history": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond, CheckedAt: probeTime},
		},
	}}))

	_, got := probe(t, h.Readyz, "/readyz")
	want := healthCheckPayload{Status: domain.HealthStatusOK, LatencyMS: 12, CheckedAt: "2025-03-14T09:26:53Z"}
	if got.Checks["history"] != want {
		t.Fatalf("unexpected check payload %+v", got.Checks["history"])
	}
}

func TestReadyzCollectError(t *testing.T) {
	h := NewHealthHandlers(WithHealthSystemService(&stubSystemService{err: errors.New("boom")}))

	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "health_check_failed" {
		t.Fatalf("expected health_check_failed, got %v", body["error"])
	}
}
