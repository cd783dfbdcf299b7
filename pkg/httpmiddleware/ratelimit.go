package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultRateLimitMessage is sent when a client exceeds its limit.
const DefaultRateLimitMessage = "Demasiadas solicitudes, intenta de nuevo más tarde"

// RateLimitConfig configures a sliding window limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window.
	Max int
	// Window is the window length.
	Window time.Duration
	// Message overrides DefaultRateLimitMessage in the 429 body.
	Message string
	// KeyFunc extracts the client key. Defaults to the client IP.
	KeyFunc func(*http.Request) string
}

// counter tracks two adjacent fixed windows; the previous one is weighted by
// its overlap with the sliding window.
type counter struct {
	prev      float64
	prevStart time.Time
	curr      float64
	currStart time.Time
}

// Limiter is a per-key sliding window rate limiter. A single Limiter can
// guard the whole server or one route.
type Limiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu       sync.Mutex
	counters map[string]*counter
}

// NewLimiter creates a Limiter. Max <= 0 disables limiting.
func NewLimiter(cfg RateLimitConfig) *Limiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.Message == "" {
		cfg.Message = DefaultRateLimitMessage
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Limiter{
		cfg:      cfg,
		now:      time.Now,
		counters: make(map[string]*counter),
	}
}

// Allow records a request for key at now and reports whether it fits the
// limit, the remaining budget and when the current window resets.
func (l *Limiter) Allow(key string, now time.Time) (remaining int, resetAt time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, found := l.counters[key]
	if !found {
		c = &counter{currStart: now}
		l.counters[key] = c
	}

	window := l.cfg.Window
	if now.Sub(c.currStart) >= window {
		c.prev, c.prevStart = c.curr, c.currStart
		c.curr = 0
		c.currStart = now.Truncate(window)
		if now.Sub(c.prevStart) >= 2*window {
			c.prev = 0
		}
	}

	overlap := 1 - now.Sub(c.currStart).Seconds()/window.Seconds()
	if overlap < 0 {
		overlap = 0
	}
	used := c.prev*overlap + c.curr
	resetAt = c.currStart.Add(window)

	if used >= float64(l.cfg.Max) {
		return 0, resetAt, false
	}
	c.curr++
	remaining = int(float64(l.cfg.Max) - used - 1)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, resetAt, true
}

// Sweep drops counters whose windows expired before now.
func (l *Limiter) Sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, c := range l.counters {
		if now.Sub(c.currStart) >= 2*l.cfg.Window {
			delete(l.counters, key)
		}
	}
}

// StartSweeper sweeps every two windows until ctx is done.
func (l *Limiter) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(2 * l.cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.Sweep(now)
			}
		}
	}()
}

// Handler guards next. Every response carries X-RateLimit-* headers; rejected
// requests get 429 with Retry-After and the JSON failure envelope.
func (l *Limiter) Handler(next http.Handler) http.Handler {
	if l.cfg.Max <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := l.now()
		remaining, resetAt, ok := l.Allow(l.cfg.KeyFunc(r), now)

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Max))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !ok {
			wait := resetAt.Sub(now)
			if wait < 0 {
				wait = 0
			}
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded", l.cfg.Message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit returns a middleware backed by a fresh Limiter. Stale counters
// are swept until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := NewLimiter(cfg)
	l.StartSweeper(ctx)
	return l.Handler
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// remote address host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
