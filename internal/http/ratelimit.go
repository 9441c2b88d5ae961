package http

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateDecision is the outcome of one limiter check.
type RateDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter decides whether the client identified by key may proceed.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (RateDecision, error)
}

// LocalRateLimiter keeps one token bucket per key in process memory. Idle
// buckets are evicted by Sweep.
type LocalRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*localBucket
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalRateLimiter allows perSecond requests per key with the given burst.
func NewLocalRateLimiter(perSecond float64, burst int, idle time.Duration) *LocalRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if idle <= 0 {
		idle = 2 * time.Minute
	}
	return &LocalRateLimiter{
		buckets: make(map[string]*localBucket),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idle:    idle,
		now:     time.Now,
	}
}

// Allow implements RateLimiter.
func (l *LocalRateLimiter) Allow(_ context.Context, key string) (RateDecision, error) {
	now := l.now()

	l.mu.Lock()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = &localBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = bucket
	}
	bucket.lastSeen = now
	l.mu.Unlock()

	reservation := bucket.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return RateDecision{Allowed: false, Limit: l.burst}, nil
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return RateDecision{Allowed: false, Limit: l.burst, RetryAfter: delay}, nil
	}
	remaining := int(bucket.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return RateDecision{Allowed: true, Limit: l.burst, Remaining: remaining}, nil
}

// Sweep drops buckets unused for longer than the idle timeout.
func (l *LocalRateLimiter) Sweep() int {
	cutoff := l.now().Add(-l.idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, bucket := range l.buckets {
		if bucket.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Run sweeps periodically until ctx is done.
func (l *LocalRateLimiter) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = 30 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

var redisBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local interval_ms = tonumber(ARGV[3])
local ttl_seconds = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
  tokens = capacity
  last_refill = now_ms
end

if interval_ms > 0 then
  local elapsed = math.max(0, now_ms - last_refill)
  local intervals = math.floor(elapsed / interval_ms)
  if intervals > 0 then
    tokens = math.min(capacity, tokens + intervals)
    last_refill = last_refill + (intervals * interval_ms)
  end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
  allowed = 1
  tokens = tokens - 1
else
  retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`)

// RedisRateLimiter is a token bucket shared by every process through Redis.
type RedisRateLimiter struct {
	client   redis.Scripter
	prefix   string
	capacity int
	interval time.Duration
	ttl      time.Duration
	now      func() time.Time
}

// NewRedisRateLimiter refills one token every 1/perSecond seconds up to burst.
func NewRedisRateLimiter(client redis.Scripter, prefix string, perSecond float64, burst int) *RedisRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	interval := time.Second
	if perSecond > 0 {
		interval = time.Duration(float64(time.Second) / perSecond)
	}
	ttl := interval * time.Duration(burst+1)
	if ttl < time.Minute {
		ttl = time.Minute
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisRateLimiter{
		client:   client,
		prefix:   prefix,
		capacity: burst,
		interval: interval,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Allow implements RateLimiter.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (RateDecision, error) {
	values, err := redisBucketScript.Run(ctx, l.client, []string{l.prefix + ":" + key},
		l.now().UnixMilli(),
		l.capacity,
		l.interval.Milliseconds(),
		int64(l.ttl/time.Second),
	).Int64Slice()
	if err != nil {
		return RateDecision{}, fmt.Errorf("redis rate limit: %w", err)
	}
	if len(values) != 3 {
		return RateDecision{}, fmt.Errorf("redis rate limit: unexpected script result %v", values)
	}
	return RateDecision{
		Allowed:    values[0] == 1,
		Limit:      l.capacity,
		Remaining:  int(values[1]),
		RetryAfter: time.Duration(values[2]) * time.Millisecond,
	}, nil
}

// RateLimit throttles requests per client IP and route. Limiter failures are
// logged and the request is let through.
func RateLimit(limiter RateLimiter, logger *slog.Logger, onLimited func()) func(http.Handler) http.Handler {
	responder := newResponder(logger)
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r.RemoteAddr) + "|" + r.Method + " " + r.URL.Path
			decision, err := limiter.Allow(r.Context(), key)
			if err != nil {
				responder.loggerFor(r.Context()).WarnContext(r.Context(), "rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			if !decision.Allowed {
				secs := int(math.Ceil(decision.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				if onLimited != nil {
					onLimited()
				}
				responder.writeJSON(r.Context(), w, http.StatusTooManyRequests, errorResponse{
					ErrorCode: "RATE_LIMITED",
					Message:   localizedStatusMessage(http.StatusTooManyRequests),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(remote string) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(remote))
	if err != nil {
		if remote == "" {
			return "unknown"
		}
		return remote
	}
	return host
}
