package httpx

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit applies l per client address. With failOpen, limiter errors let the request through.
func RateLimit(l Limiter, logger *slog.Logger, failOpen bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := l.Allow(r.Context(), clientKey(r))
			if err != nil {
				if logger != nil {
					logger.Warn("rate limiter error", "err", err, "request_id", RequestIDFromContext(r.Context()))
				}
				if !failOpen {
					WriteError(w, http.StatusServiceUnavailable, "rate limiter unavailable")
					return
				}
				ok = true
			}
			if !ok {
				w.Header().Set("Retry-After", "60")
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LocalLimiter keeps one token bucket per client in process memory.
// Idle buckets are evicted after idleTTL.
type LocalLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
	sweep   time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter allows perMinute requests per client per minute, bursting up to perMinute.
func NewLocalLimiter(perMinute int) *LocalLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &LocalLimiter{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   perMinute,
		idleTTL: 10 * time.Minute,
		buckets: map[string]*bucket{},
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.sweep) > l.idleTTL {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > l.idleTTL {
				delete(l.buckets, k)
			}
		}
		l.sweep = now
	}

	b := l.buckets[key]
	if b == nil {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1), nil
}

func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
