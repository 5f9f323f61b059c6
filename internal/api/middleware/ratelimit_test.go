// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimit_EnforcesLimit(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	limitedHandler := RateLimit(RateLimitConfig{
		RequestLimit: 3,
		WindowSize:   time.Second,
	})(handler)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/download", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		limitedHandler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("Request %d: expected status 200, got %d", i+1, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/download", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	w := httptest.NewRecorder()
	limitedHandler.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("4th request: expected status 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After 1, got %q", w.Header().Get("Retry-After"))
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", ct)
	}
}

func TestRateLimit_DifferentIPsIndependent(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	limitedHandler := RateLimit(RateLimitConfig{RequestLimit: 1, WindowSize: time.Second})(handler)

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/download", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		limitedHandler.ServeHTTP(w, req)
		return w.Code
	}

	if code := do("192.168.1.1:1"); code != http.StatusOK {
		t.Fatalf("IP1 first request: expected 200, got %d", code)
	}
	if code := do("192.168.1.2:1"); code != http.StatusOK {
		t.Errorf("IP2 request: expected 200, got %d", code)
	}
	if code := do("192.168.1.1:1"); code != http.StatusTooManyRequests {
		t.Errorf("IP1 second request: expected 429, got %d", code)
	}
}

func TestDownloadRateLimit_Disabled(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, h := range []http.Handler{
		DownloadRateLimit(false, 1)(handler),
		DownloadRateLimit(true, 0)(handler),
	} {
		for i := 0; i < 5; i++ {
			req := httptest.NewRequest(http.MethodGet, "/download", nil)
			req.RemoteAddr = "10.0.0.1:1"
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Fatalf("request %d: expected 200 with limiter disabled, got %d", i+1, w.Code)
			}
		}
	}
}
