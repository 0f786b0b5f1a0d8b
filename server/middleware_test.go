package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestIPRateLimiterAllowsUnderLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := &rateLimiterConfig{enabled: true, requestsPerIP: 3, window: time.Minute}
	rl := newIPRateLimiter(ctx, cfg)

	for i := 0; i < 3; i++ {
		if !rl.allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("1.2.3.4") {
		t.Fatal("request over the limit should be denied")
	}
	// A different client has its own budget.
	if !rl.allow("5.6.7.8") {
		t.Fatal("other IP should be allowed")
	}
}

func TestIPRateLimiterDisabled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := &rateLimiterConfig{enabled: false, requestsPerIP: 1, window: time.Minute}
	rl := newIPRateLimiter(ctx, cfg)
	for i := 0; i < 10; i++ {
		if !rl.allow("1.2.3.4") {
			t.Fatal("disabled limiter must always allow")
		}
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := &rateLimiterConfig{enabled: true, requestsPerIP: 1, window: time.Minute}
	handler := rateLimitMiddleware(okHandler(), newIPRateLimiter(ctx, cfg))

	req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
	req.RemoteAddr = "9.9.9.9:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("429 must carry Retry-After")
	}
}

func TestRateLimitMiddlewareHonorsForwardedFor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := &rateLimiterConfig{enabled: true, requestsPerIP: 1, window: time.Minute}
	handler := rateLimitMiddleware(okHandler(), newIPRateLimiter(ctx, cfg))

	mk := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "10.0.0.1:80"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}
	if mk("1.1.1.1, 10.0.0.1") != http.StatusOK {
		t.Fatal("first client request")
	}
	if mk("1.1.1.1, 10.0.0.1") != http.StatusTooManyRequests {
		t.Fatal("same forwarded client must share one budget")
	}
	if mk("2.2.2.2") != http.StatusOK {
		t.Fatal("different forwarded client must not be limited")
	}
}

func TestCORSPermissivePreflight(t *testing.T) {
	handler := withCORSConfig(okHandler(), &corsConfig{permissive: true})
	req := httptest.NewRequest(http.MethodOptions, "/api/account", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("permissive mode must allow all origins")
	}
}

func TestCORSRestrictedOrigins(t *testing.T) {
	cfg := &corsConfig{permissive: false, allowedOrigins: []string{"https://dash.example.com", "*.bots.example.com"}}
	handler := withCORSConfig(okHandler(), cfg)

	cases := []struct {
		origin  string
		allowed bool
	}{
		{"https://dash.example.com", true},
		{"https://eu.bots.example.com", true},
		{"https://evil.example.org", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", tc.origin)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		got := rec.Header().Get("Access-Control-Allow-Origin") != ""
		if got != tc.allowed {
			t.Errorf("origin %s: allowed=%v want %v", tc.origin, got, tc.allowed)
		}
	}
}

func TestSessionIssueAndVerify(t *testing.T) {
	s := newSessionAuth("test-secret", time.Hour)
	token, err := s.Issue(42, "testchan")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := s.Verify(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.AccountID != 42 || claims.Channel != "testchan" {
		t.Fatalf("claims = %+v", claims)
	}

	if _, err := s.Verify(token + "x"); err == nil {
		t.Fatal("tampered token must fail")
	}
	other := newSessionAuth("other-secret", time.Hour)
	if _, err := other.Verify(token); err == nil {
		t.Fatal("token signed with a different secret must fail")
	}
}

func TestSessionExpiry(t *testing.T) {
	s := &sessionAuth{secret: []byte("test-secret"), ttl: time.Nanosecond}
	token, err := s.Issue(1, "c")
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := s.Verify(token); err == nil {
		t.Fatal("expired token must fail verification")
	}
}

func TestRequireSession(t *testing.T) {
	s := newSessionAuth("test-secret", time.Hour)
	var gotAccount int64
	protected := requireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := sessionFromContext(r.Context())
		gotAccount = claims.AccountID
		w.WriteHeader(http.StatusOK)
	}), s)

	req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: got %d want 401", rec.Code)
	}

	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: got %d want 401", rec.Code)
	}

	token, err := s.Issue(7, "chan")
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || gotAccount != 7 {
		t.Fatalf("valid token: code=%d account=%d", rec.Code, gotAccount)
	}
}
