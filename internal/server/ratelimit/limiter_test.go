package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, requests, burst int) (*Limiter, *time.Time) {
	t.Helper()
	l := NewLimiter(requests, time.Minute, burst)
	t.Cleanup(l.Close)
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_Allow(t *testing.T) {
	l, now := newTestLimiter(t, 5, 5)
	for i := range 5 {
		res := l.Allow("ip:a")
		if !res.Allowed {
			t.Fatalf("request %d refused", i+1)
		}
		if res.Limit != 5 {
			t.Errorf("got limit %d, want 5", res.Limit)
		}
		if res.Remaining != 4-i {
			t.Errorf("request %d: got remaining %d, want %d", i+1, res.Remaining, 4-i)
		}
	}
	res := l.Allow("ip:a")
	if res.Allowed {
		t.Fatal("6th request allowed")
	}
	if res.RetryAfter != 12*time.Second {
		t.Errorf("got RetryAfter %v, want 12s", res.RetryAfter)
	}
	if other := l.Allow("ip:b"); !other.Allowed {
		t.Error("keys must not share a bucket")
	}

	*now = now.Add(13 * time.Second)
	if res := l.Allow("ip:a"); !res.Allowed {
		t.Error("a token must have refilled")
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	l, now := newTestLimiter(t, 60, 10)
	l.Allow("idle")
	*now = now.Add(time.Hour)
	l.Allow("busy")
	l.cleanup()
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.buckets["idle"]; ok {
		t.Error("idle bucket kept")
	}
	if _, ok := l.buckets["busy"]; !ok {
		t.Error("busy bucket dropped")
	}
}

func TestTiers_Match(t *testing.T) {
	tiers := NewTiers(5, 60)
	defer tiers.Close()
	tests := []struct {
		method string
		path   string
		auth   bool
		want   *Tier
	}{
		{http.MethodPost, "/api/auth/login", false, tiers.Auth},
		{http.MethodPost, "/api/contact", false, tiers.Auth},
		{http.MethodPost, "/api/push/subscribe", false, tiers.Auth},
		{http.MethodGet, "/api/news", false, nil},
		{http.MethodGet, "/api/health", false, nil},
		{http.MethodPost, "/api/news", true, tiers.Write},
		{http.MethodPut, "/api/projects/PRJ-001", true, tiers.Write},
		{http.MethodDelete, "/api/news/1", true, tiers.Write},
		{http.MethodGet, "/api/admin/export", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if got := tiers.Match(tt.method, tt.path, tt.auth); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	disabled := NewTiers(0, 0)
	if disabled.Match(http.MethodPost, "/api/auth/login", false) != nil {
		t.Error("a zero limit must disable the tier")
	}
	var none *Tiers
	if none.Match(http.MethodPost, "/api/news", true) != nil {
		t.Error("nil Tiers must not limit")
	}
}

func TestWriteHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	WriteHeaders(w, Result{Limit: 5, Remaining: 0, ResetAt: time.Unix(1700000000, 0), RetryAfter: 3 * time.Second})
	want := map[string]string{
		"X-RateLimit-Limit":     "5",
		"X-RateLimit-Remaining": "0",
		"X-RateLimit-Reset":     "1700000000",
		"Retry-After":           "3",
	}
	for k, v := range want {
		if got := w.Header().Get(k); got != v {
			t.Errorf("%s: got %q, want %q", k, got, v)
		}
	}

	w = httptest.NewRecorder()
	WriteHeaders(w, Result{Allowed: true, Limit: 5, Remaining: 4})
	if w.Header().Get("Retry-After") != "" {
		t.Error("Retry-After set on an allowed request")
	}
}
