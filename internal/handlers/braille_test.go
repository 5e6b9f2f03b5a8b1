package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tamil-braille/api/internal/braille"
	"github.com/tamil-braille/api/internal/repositories/memory"
	"github.com/tamil-braille/api/internal/services"
)

func newTestConversionService(t *testing.T) services.ConversionService {
	t.Helper()
	table, err := braille.DefaultTable()
	if err != nil {
		t.Fatalf("DefaultTable: %v", err)
	}
	conv, err := braille.NewConverter(table)
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc, err := services.NewConversionService(services.ConversionServiceDeps{
		Converter:  conv,
		Repository: memory.NewConversionRepository(),
		Clock: func() time.Time {
			now = now.Add(time.Second)
			return now
		},
	})
	if err != nil {
		t.Fatalf("NewConversionService: %v", err)
	}
	return svc
}

func newBrailleRouter(t *testing.T) chi.Router {
	t.Helper()
	router := chi.NewRouter()
	NewBrailleHandlers(newTestConversionService(t)).Routes(router)
	return router
}

func TestBrailleHandlersConvert(t *testing.T) {
	router := newBrailleRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/braille:convert", strings.NewReader(`{"text":"அம்மா!"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var body struct {
		Text     string      `json:"text"`
		Cells    [][]int     `json:"cells"`
		Braille  string      `json:"braille"`
		Matrices [][][2]bool `json:"matrices"`
		Unmapped []struct {
			Position int    `json:"position"`
			Char     string `json:"char"`
		} `json:"unmapped"`
		Record any `json:"record"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !strings.HasPrefix(body.Braille, "⠁⠈⠍⠍⠜") {
		t.Fatalf("unexpected braille %q", body.Braille)
	}
	if len(body.Matrices) != len(body.Cells) {
		t.Fatalf("expected one matrix per cell, got %d for %d", len(body.Matrices), len(body.Cells))
	}
	if len(body.Matrices[0]) != 3 || !body.Matrices[0][0][0] {
		t.Fatalf("unexpected first matrix %v", body.Matrices[0])
	}
	if body.Record != nil {
		t.Fatalf("stateless conversion must not save a record")
	}
	for _, miss := range body.Unmapped {
		if miss.Char == "" {
			t.Fatalf("unexpected unmapped entry %+v", miss)
		}
	}
}

func TestBrailleHandlersConvertRejectsBadInput(t *testing.T) {
	router := newBrailleRouter(t)

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{name: "empty body", body: "", status: http.StatusBadRequest, code: "invalid_request"},
		{name: "bad json", body: `{"text":`, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "blank text", body: `{"text":"   "}`, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "too large", body: `{"text":"` + strings.Repeat("a", maxConvertRequestBody) + `"}`, status: http.StatusRequestEntityTooLarge, code: "payload_too_large"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/braille:convert", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("expected JSON error body: %v", err)
			}
			if body["error"] != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, body["error"])
			}
		})
	}
}

func TestBrailleHandlersRender(t *testing.T) {
	router := newBrailleRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/braille:render", strings.NewReader(`{"cells":[[1,2,5],[],[1,3]]}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["braille"] != "⠓⠀⠅" {
		t.Fatalf("unexpected braille %q", body["braille"])
	}

	req = httptest.NewRequest(http.MethodPost, "/braille:render", strings.NewReader(`{"cells":[[0]]}`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for dot 0, got %d", rr.Code)
	}
}

func TestBrailleHandlersTable(t *testing.T) {
	router := newBrailleRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/braille/table", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body struct {
		Entries      int    `json:"entries"`
		MaxKeyLength int    `json:"maxKeyLength"`
		Source       string `json:"source"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Entries < 80 || body.MaxKeyLength != 4 || body.Source != "embedded" {
		t.Fatalf("unexpected table summary %+v", body)
	}
}

func TestBrailleHandlersWithoutService(t *testing.T) {
	router := chi.NewRouter()
	NewBrailleHandlers(nil).Routes(router)

	req := httptest.NewRequest(http.MethodGet, "/braille/table", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
