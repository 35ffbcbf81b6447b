package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"
)

func TestLimit_AllowsWithinBudget(t *testing.T) {
	rl := NewIPRateLimiter(rate.Limit(100), 5)
	handler := rl.Limit(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/resolve/stream/abc123", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
}

func TestLimit_RejectsOverBudget(t *testing.T) {
	rl := NewIPRateLimiter(rate.Limit(0.001), 2)
	handler := rl.Limit(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/resolve/stream/abc123", nil)
	req.RemoteAddr = "10.0.0.2:1234"

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected burst to be allowed, got %d", rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 over budget, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestLimit_PerIPIsolation(t *testing.T) {
	rl := NewIPRateLimiter(rate.Limit(0.001), 1)
	handler := rl.Limit(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "10.0.0.3:1"
	rec := httptest.NewRecorder()
	handler(rec, first)
	rec = httptest.NewRecorder()
	handler(rec, first)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected first IP to be limited, got %d", rec.Code)
	}

	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.RemoteAddr = "10.0.0.4:1"
	rec = httptest.NewRecorder()
	handler(rec, second)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected second IP unaffected, got %d", rec.Code)
	}
}

func TestClientIP_ForwardedHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:9999"

	if got := clientIP(req); got != "192.168.1.1" {
		t.Errorf("RemoteAddr: got %q", got)
	}

	req.Header.Set("X-Real-IP", "203.0.113.9")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Errorf("X-Real-IP: got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	if got := clientIP(req); got != "198.51.100.7" {
		t.Errorf("X-Forwarded-For: got %q", got)
	}
}
