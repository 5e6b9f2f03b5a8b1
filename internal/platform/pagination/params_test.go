package pagination

import (
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	params, err := Parse(url.Values{}, Options{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != DefaultPageSize {
		t.Fatalf("expected default page size %d got %d", DefaultPageSize, params.PageSize)
	}
	if params.PageToken != "" || !params.Cursor.IsZero() {
		t.Fatalf("expected first page, got %#v", params)
	}
}

func TestParsePageSize(t *testing.T) {
	opts := Options{DefaultPageSize: 10, MaxPageSize: 40}
	values := url.Values{}
	values.Set("pageSize", "30")

	params, err := Parse(values, opts)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != 30 {
		t.Fatalf("expected page size 30 got %d", params.PageSize)
	}

	values.Set("pageSize", "400")
	params, err = Parse(values, opts)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != opts.MaxPageSize {
		t.Fatalf("expected page size clamped to %d got %d", opts.MaxPageSize, params.PageSize)
	}
}

func TestParseInvalidPageSize(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-3"} {
		values := url.Values{}
		values.Set("pageSize", raw)
		if _, err := Parse(values, Options{}); !errors.Is(err, ErrInvalidPageSize) {
			t.Fatalf("pageSize %q: expected ErrInvalidPageSize got %v", raw, err)
		}
	}
}

func TestParsePageToken(t *testing.T) {
	cursor := Cursor{CreatedAt: time.Date(2025, 3, 4, 5, 6, 7, 8, time.UTC), ID: "cnv_01j"}
	token := EncodeToken(cursor)
	if token == "" {
		t.Fatalf("expected non-empty token")
	}

	values := url.Values{}
	values.Set("pageToken", token)
	params, err := Parse(values, Options{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageToken != token {
		t.Fatalf("expected page token %q got %q", token, params.PageToken)
	}
	if !params.Cursor.CreatedAt.Equal(cursor.CreatedAt) || params.Cursor.ID != cursor.ID {
		t.Fatalf("cursor mismatch: %#v", params.Cursor)
	}
}

func TestParseInvalidPageToken(t *testing.T) {
	for _, token := range []string{"!!!invalid!!!", "e30"} {
		values := url.Values{}
		values.Set("pageToken", token)
		if _, err := Parse(values, Options{}); !errors.Is(err, ErrInvalidPageToken) {
			t.Fatalf("token %q: expected ErrInvalidPageToken got %v", token, err)
		}
	}
}

func TestEncodeTokenZeroCursor(t *testing.T) {
	if token := EncodeToken(Cursor{}); token != "" {
		t.Fatalf("expected empty token, got %q", token)
	}
}

func TestCursorAfter(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Cursor{CreatedAt: at, ID: "cnv_b"}

	if !c.After(at.Add(-time.Second), "cnv_z") {
		t.Fatalf("older items sort after the cursor")
	}
	if c.After(at.Add(time.Second), "cnv_a") {
		t.Fatalf("newer items sort before the cursor")
	}
	if !c.After(at, "cnv_a") || c.After(at, "cnv_b") || c.After(at, "cnv_c") {
		t.Fatalf("ties break on descending id")
	}
	if !(Cursor{}).After(at, "x") {
		t.Fatalf("zero cursor admits everything")
	}
}

func TestFromRequest(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "/conversions?pageSize=5", nil)
	params, err := FromRequest(req, Options{})
	if err != nil {
		t.Fatalf("FromRequest returned error: %v", err)
	}
	if params.PageSize != 5 {
		t.Fatalf("expected 5 got %d", params.PageSize)
	}
	if _, err := FromRequest(nil, Options{}); err == nil {
		t.Fatalf("expected error for nil request")
	}
}
