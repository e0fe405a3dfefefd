package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MrSnakeDoc/guide/internal/utils"
)

// RateLimitConfig sizes a per-IP token bucket.
type RateLimitConfig struct {
	Burst             int
	RefillPerIPPerMin int
	MaxEntries        int           // sweep early once this many IPs are tracked, 0 = unbounded
	IdleTTL           time.Duration // forget IPs idle for this long
	TrustProxy        bool
}

type bucket struct {
	tokens   float64
	refilled time.Time
}

// limiter is a set of token buckets keyed by client IP.
type limiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	capacity  float64
	perSecond float64
	maxIPs    int
	idleTTL   time.Duration
	lastSweep time.Time
}

func newLimiter(cfg RateLimitConfig, now time.Time) *limiter {
	l := &limiter{
		buckets:   make(map[string]*bucket),
		capacity:  float64(max(cfg.Burst, 1)),
		perSecond: float64(max(cfg.RefillPerIPPerMin, 1)) / 60,
		maxIPs:    cfg.MaxEntries,
		idleTTL:   cfg.IdleTTL,
		lastSweep: now,
	}
	if l.idleTTL <= 0 {
		l.idleTTL = 15 * time.Minute
	}
	return l
}

// take spends one token for key. When none is left it returns how long
// until the next one.
func (l *limiter) take(key string, now time.Time) (ok bool, remaining int, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= time.Minute || (l.maxIPs > 0 && len(l.buckets) >= l.maxIPs) {
		l.sweep(now)
	}

	b := l.buckets[key]
	if b == nil {
		b = &bucket{tokens: l.capacity, refilled: now}
		l.buckets[key] = b
	}

	if elapsed := now.Sub(b.refilled).Seconds(); elapsed > 0 {
		b.tokens = math.Min(l.capacity, b.tokens+elapsed*l.perSecond)
		b.refilled = now
	}

	if b.tokens < 1 {
		wait := time.Duration((1 - b.tokens) / l.perSecond * float64(time.Second))
		return false, 0, max(wait, time.Second)
	}
	b.tokens--
	return true, int(b.tokens), 0
}

// sweep forgets IPs not seen for idleTTL.
func (l *limiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.refilled) > l.idleTTL {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

// RateLimit answers 429 with Retry-After once a client IP exhausts its bucket.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := newLimiter(cfg, time.Now())
	limit := strconv.Itoa(int(l.capacity))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, remaining, retry := l.take(utils.ClientIP(r, cfg.TrustProxy), time.Now())

			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
