package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/baechuer/community-service/internal/domain"
	"github.com/baechuer/community-service/internal/infrastructure/redis"
	"github.com/baechuer/community-service/internal/logger"
)

type RateLimiter interface {
	AllowFixedWindow(ctx context.Context, key string, limit int, window time.Duration) (redis.Decision, error)
}

// FixedWindowConfig defines one route's limit.
type FixedWindowConfig struct {
	RouteKey string
	Limit    int
	Window   time.Duration
}

// RateLimitFixedWindow limits requests per route and caller (user id, else IP).
// When the shared limiter is nil or failing, local takes over so a Redis outage
// degrades to per-process limits instead of none.
func RateLimitFixedWindow(limiter RateLimiter, local *LocalLimiter, cfg FixedWindowConfig, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.RouteKey == "" {
		cfg.RouteKey = "unknown"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			who := userOrIP(r)
			bucket := windowBucket(time.Now(), cfg.Window)

			allowed, retry, backend := true, time.Duration(0), ""
			if limiter != nil {
				key := fmt.Sprintf("rl:%s:%s:%d", cfg.RouteKey, who, bucket)
				dec, err := limiter.AllowFixedWindow(r.Context(), key, cfg.Limit, cfg.Window)
				if err == nil {
					allowed, retry, backend = dec.Allowed, dec.RetryAfter, "redis"
				} else {
					logger.WithCtx(r.Context()).Warn().Err(err).Str("route", cfg.RouteKey).Msg("rate limiter unavailable, using local limiter")
				}
			}
			if backend == "" && local != nil {
				allowed, retry = local.Allow(cfg.RouteKey+":"+who, cfg.Limit, cfg.Window)
				backend = "local"
			}

			if !allowed {
				rateLimitedTotal.WithLabelValues(cfg.RouteKey, backend).Inc()
				e := domain.ErrRateLimited(cfg.RouteKey)
				e.Meta["retry_after"] = strconv.Itoa(retrySeconds(retry))
				writeErr(w, r, e)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retrySeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

func windowBucket(now time.Time, window time.Duration) int64 {
	sec := int64(window.Seconds())
	if sec <= 0 {
		sec = 60
	}
	return now.Unix() / sec
}

// userOrIP prefers the authenticated user id; otherwise the client IP.
func userOrIP(r *http.Request) string {
	if uid, ok := UserIDFromContext(r.Context()); ok {
		return "u:" + strconv.FormatInt(uid, 10)
	}
	return "ip:" + clientIP(r)
}

// clientIP trusts X-Forwarded-For; deploy behind a proxy that overwrites it.
func clientIP(r *http.Request) string {
	xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xff != "" {
		parts := strings.Split(xff, ",")
		ip := strings.TrimSpace(parts[0])
		if ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

// -------- local fallback --------

// LocalLimiter is a per-process token bucket keyed by route and caller.
// A bucket refills limit tokens per window; idle buckets are pruned.
type LocalLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*localBucket
	maxIdle  time.Duration
	lastScan time.Time
	now      func() time.Time
}

type localBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{
		buckets: make(map[string]*localBucket),
		maxIdle: 10 * time.Minute,
		now:     time.Now,
	}
}

// Allow reports whether one more request fits, and if not, how long to wait.
func (l *LocalLimiter) Allow(key string, limit int, window time.Duration) (bool, time.Duration) {
	if limit <= 0 {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{lim: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)}
		l.buckets[key] = b
	}
	b.seen = now

	res := b.lim.ReserveN(now, 1)
	if !res.OK() {
		return false, window
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (l *LocalLimiter) prune(now time.Time) {
	if now.Sub(l.lastScan) < time.Minute {
		return
	}
	l.lastScan = now
	for k, b := range l.buckets {
		if now.Sub(b.seen) > l.maxIdle {
			delete(l.buckets, k)
		}
	}
}

func (l *LocalLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
