package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestLocalRateLimiter(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewLocalRateLimiter(0.5, 2, time.Minute)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		decision, err := limiter.Allow(ctx, "a")
		if err != nil || !decision.Allowed {
			t.Fatalf("request %d: expected allowed, got %+v (err %v)", i, decision, err)
		}
	}

	denied, err := limiter.Allow(ctx, "a")
	if err != nil {
		t.Fatalf("Allow returned error: %v", err)
	}
	if denied.Allowed || denied.RetryAfter <= 0 {
		t.Fatalf("expected denial with retry hint, got %+v", denied)
	}

	if other, _ := limiter.Allow(ctx, "b"); !other.Allowed {
		t.Fatal("expected independent bucket per key")
	}

	now = now.Add(2 * time.Second)
	if again, _ := limiter.Allow(ctx, "a"); !again.Allowed {
		t.Fatalf("expected refill after two seconds, got %+v", again)
	}

	now = now.Add(2 * time.Minute)
	if removed := limiter.Sweep(); removed != 2 {
		t.Fatalf("expected both idle buckets swept, got %d", removed)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("rejects with retry after once the bucket is empty", func(t *testing.T) {
		t.Parallel()

		limiter := NewLocalRateLimiter(0.1, 1, time.Minute)
		var limited int
		handler := RateLimit(limiter, discardLogger(), func() { limited++ })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		first := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/checkin", nil)
		req.RemoteAddr = "192.0.2.10:5000"
		handler.ServeHTTP(first, req)
		if first.Code != http.StatusOK {
			t.Fatalf("expected first request to pass, got %d", first.Code)
		}

		second := httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodPost, "/checkin", nil)
		req.RemoteAddr = "192.0.2.10:5001"
		handler.ServeHTTP(second, req)
		if second.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", second.Code)
		}
		if second.Header().Get("Retry-After") == "" {
			t.Fatal("expected Retry-After header")
		}
		if limited != 1 {
			t.Fatalf("expected limited hook once, got %d", limited)
		}
	})

	t.Run("fails open when redis is unreachable", func(t *testing.T) {
		t.Parallel()

		client := redis.NewClient(&redis.Options{
			Addr:        "127.0.0.1:1",
			DialTimeout: 200 * time.Millisecond,
			MaxRetries:  -1,
		})
		t.Cleanup(func() { _ = client.Close() })

		limiter := NewRedisRateLimiter(client, "test", 1, 1)
		if _, err := limiter.Allow(context.Background(), "k"); err == nil {
			t.Fatal("expected redis error")
		}

		var served bool
		handler := RateLimit(limiter, discardLogger(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			served = true
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/checkin", nil))
		if !served {
			t.Fatal("expected request to pass while limiter is down")
		}
	})

	t.Run("nil limiter is a passthrough", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		RateLimit(nil, discardLogger(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkin", nil))
		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected passthrough, got %d", rec.Code)
		}
	})
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"192.0.2.1:1234": "192.0.2.1",
		"[::1]:80":       "::1",
		"bare-host":      "bare-host",
		"":               "unknown",
	}
	for in, want := range cases {
		if got := clientIP(in); got != want {
			t.Fatalf("clientIP(%q) = %q, want %q", in, got, want)
		}
	}
}
