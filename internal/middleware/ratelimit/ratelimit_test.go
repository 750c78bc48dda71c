package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, requests int, clock *time.Time) *Limiter {
	t.Helper()
	rl := NewLimiter(Config{Requests: requests, Window: time.Minute, CleanupInterval: time.Hour})
	rl.now = func() time.Time { return *clock }
	t.Cleanup(rl.Stop)
	return rl
}

func TestAllowWindow(t *testing.T) {
	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rl := newTestLimiter(t, 2, &clock)

	for i := 0; i < 2; i++ {
		if ok, _ := rl.Allow("a"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	clock = clock.Add(20 * time.Second)
	ok, wait := rl.Allow("a")
	if ok || wait != 40*time.Second {
		t.Fatalf("third request: ok=%v wait=%v", ok, wait)
	}
	if ok, _ := rl.Allow("b"); !ok {
		t.Errorf("other keys are limited separately")
	}

	clock = clock.Add(40 * time.Second)
	if ok, _ := rl.Allow("a"); !ok {
		t.Errorf("a new window should reset the count")
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rl := newTestLimiter(t, 1, &clock)
	rl.Allow("a")
	clock = clock.Add(30 * time.Second)
	rl.Allow("b")

	clock = clock.Add(45 * time.Second)
	rl.cleanupStaleEntries()
	if n := rl.ActiveClients(); n != 1 {
		t.Errorf("ActiveClients() = %d, want 1", n)
	}
}

func TestMiddleware(t *testing.T) {
	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rl := newTestLimiter(t, 1, &clock)
	h := rl.Middleware(func(*http.Request) string { return "k" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusAccepted) }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("first request status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("second request status = %d retry-after = %q", rec.Code, rec.Header().Get("Retry-After"))
	}
}
