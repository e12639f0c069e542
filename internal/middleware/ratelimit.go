package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"customer-analytics-api/internal/cache"
	"customer-analytics-api/internal/logger"
)

// RateLimiter is a fixed-window limiter over a shared counter store.
type RateLimiter struct {
	counter cache.Counter
	rate    int           // requests per window
	window  time.Duration // time window
	log     *logger.Logger

	cleanupTick *time.Ticker
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

type sweeper interface {
	Sweep()
}

// NewRateLimiter creates a new rate limiter. Counters that can sweep their
// expired keys are swept every five minutes until Stop.
func NewRateLimiter(counter cache.Counter, rate int, window time.Duration, log *logger.Logger) *RateLimiter {
	if log == nil {
		log = logger.NewNop()
	}
	rl := &RateLimiter{
		counter:     counter,
		rate:        rate,
		window:      window,
		log:         log,
		stopCleanup: make(chan struct{}),
	}

	if s, ok := counter.(sweeper); ok {
		rl.cleanupTick = time.NewTicker(5 * time.Minute)
		go rl.cleanup(s)
	}

	return rl
}

func (rl *RateLimiter) cleanup(s sweeper) {
	for {
		select {
		case <-rl.cleanupTick.C:
			s.Sweep()
		case <-rl.stopCleanup:
			return
		}
	}
}

// Stop stops the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		if rl.cleanupTick != nil {
			rl.cleanupTick.Stop()
		}
		close(rl.stopCleanup)
	})
}

// Allow counts a request for key and reports whether it is within the limit
// along with the requests left in the current window.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	n, err := rl.counter.Incr(ctx, key, rl.window)
	if err != nil {
		return true, rl.rate, err
	}
	remaining := rl.rate - int(n)
	if remaining < 0 {
		remaining = 0
	}
	return int(n) <= rl.rate, remaining, nil
}

// GetClientKey returns the host part of r.RemoteAddr. Forwarding headers are
// not read here; chimw.RealIP upstream rewrites RemoteAddr from them.
func GetClientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateLimitMiddleware rejects requests over the limit with 429. Counter
// failures are logged and the request is let through.
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	limit := strconv.Itoa(limiter.rate)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := GetClientKey(r)

			allowed, remaining, err := limiter.Allow(r.Context(), key)
			if err != nil {
				limiter.log.Warn("rate limit counter unavailable", "client", key, "error", err)
			}

			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(limiter.window.Seconds())))
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate limit exceeded","code":"rate_limited"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
