package handlers

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tamil-braille/api/internal/platform/auth"
)

func TestWindowLimiterResetsAfterWindow(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := newWindowLimiter(1, time.Minute, func() time.Time { return now })

	if !limiter.Allow("ip:1") {
		t.Fatalf("first request should pass")
	}
	if limiter.Allow("ip:1") {
		t.Fatalf("second request in window should be rejected")
	}
	if !limiter.Allow("ip:2") {
		t.Fatalf("other clients keep their own window")
	}

	now = now.Add(time.Minute)
	if !limiter.Allow("ip:1") {
		t.Fatalf("request after window should pass")
	}
}

func TestNewWindowLimiterDisabled(t *testing.T) {
	if newWindowLimiter(0, time.Minute, nil) != nil {
		t.Fatalf("expected nil limiter for zero limit")
	}
	if newWindowLimiter(5, 0, nil) != nil {
		t.Fatalf("expected nil limiter for zero window")
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest("POST", "/extractions", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	if got := clientKey(req); got != "ip:203.0.113.9" {
		t.Fatalf("unexpected key %q", got)
	}

	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7"}))
	if got := clientKey(req); got != "uid:user-7" {
		t.Fatalf("unexpected key %q", got)
	}
}
