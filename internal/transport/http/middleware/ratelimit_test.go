package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/community-service/internal/domain"
	"github.com/baechuer/community-service/internal/infrastructure/redis"
)

type fakeLimiter struct {
	dec     redis.Decision
	err     error
	calls   int
	lastKey string
}

func (f *fakeLimiter) AllowFixedWindow(_ context.Context, key string, _ int, _ time.Duration) (redis.Decision, error) {
	f.calls++
	f.lastKey = key
	return f.dec, f.err
}

func serveLimited(h http.Handler, remote string) {
	req := httptest.NewRequest(http.MethodPost, "/api/token/", nil)
	req.RemoteAddr = remote
	h.ServeHTTP(httptest.NewRecorder(), req)
}

func TestRateLimit_SharedLimiterDenies(t *testing.T) {
	t.Parallel()

	lim := &fakeLimiter{dec: redis.Decision{Allowed: false, RetryAfter: 1500 * time.Millisecond}}
	we := &writeErrRecorder{}
	next := &nextRecorder{}
	h := RateLimitFixedWindow(lim, NewLocalLimiter(), FixedWindowConfig{RouteKey: "login", Limit: 5}, we.fn)(next)

	serveLimited(h, "10.0.0.1:1234")

	assert.Equal(t, 0, next.calls)
	assert.Contains(t, lim.lastKey, "rl:login:ip:10.0.0.1:")
	require.True(t, domain.Is(we.last, "rate_limited"))

	var de *domain.Error
	require.True(t, errors.As(we.last, &de))
	assert.Equal(t, "2", de.Meta["retry_after"])
	assert.Equal(t, "login", de.Meta["scope"])
}

func TestRateLimit_SharedLimiterAllows(t *testing.T) {
	t.Parallel()

	lim := &fakeLimiter{dec: redis.Decision{Allowed: true}}
	next := &nextRecorder{}
	h := RateLimitFixedWindow(lim, nil, FixedWindowConfig{RouteKey: "login", Limit: 5}, (&writeErrRecorder{}).fn)(next)

	serveLimited(h, "10.0.0.1:1234")
	assert.Equal(t, 1, next.calls)
}

func TestRateLimit_FallsBackToLocalOnError(t *testing.T) {
	t.Parallel()

	lim := &fakeLimiter{err: errors.New("redis down")}
	we := &writeErrRecorder{}
	next := &nextRecorder{}
	h := RateLimitFixedWindow(lim, NewLocalLimiter(), FixedWindowConfig{RouteKey: "signup", Limit: 2, Window: time.Minute}, we.fn)(next)

	for i := 0; i < 3; i++ {
		serveLimited(h, "10.0.0.9:1")
	}

	assert.Equal(t, 3, lim.calls)
	assert.Equal(t, 2, next.calls)
	assert.True(t, domain.Is(we.last, "rate_limited"))
}

func TestRateLimit_NoBackendsAllows(t *testing.T) {
	t.Parallel()

	next := &nextRecorder{}
	h := RateLimitFixedWindow(nil, nil, FixedWindowConfig{RouteKey: "x", Limit: 1}, (&writeErrRecorder{}).fn)(next)
	serveLimited(h, "1.1.1.1:1")
	serveLimited(h, "1.1.1.1:1")
	assert.Equal(t, 2, next.calls)
}

func TestRateLimit_KeyedByUserWhenAuthenticated(t *testing.T) {
	t.Parallel()

	lim := &fakeLimiter{dec: redis.Decision{Allowed: true}}
	h := RateLimitFixedWindow(lim, nil, FixedWindowConfig{RouteKey: "me", Limit: 5}, (&writeErrRecorder{}).fn)(&nextRecorder{})

	req := httptest.NewRequest(http.MethodGet, "/api/users/me/", nil)
	req = req.WithContext(WithUser(req.Context(), 7, "user"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, lim.lastKey, "rl:me:u:7:")
}

func TestRateLimit_WithMiniredis(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	c := redis.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })

	next := &nextRecorder{}
	we := &writeErrRecorder{}
	h := RateLimitFixedWindow(redis.NewFixedWindowLimiter(c), NewLocalLimiter(), FixedWindowConfig{RouteKey: "signup", Limit: 2, Window: time.Minute}, we.fn)(next)

	for i := 0; i < 3; i++ {
		serveLimited(h, "10.1.1.1:1")
	}
	assert.Equal(t, 2, next.calls)
	assert.Equal(t, 1, we.calls)
}

func TestLocalLimiter_RefillsOverWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalLimiter()
	l.now = func() time.Time { return now }

	ok, _ := l.Allow("k", 2, time.Minute)
	assert.True(t, ok)
	ok, _ = l.Allow("k", 2, time.Minute)
	assert.True(t, ok)

	ok, retry := l.Allow("k", 2, time.Minute)
	assert.False(t, ok)
	assert.InDelta(t, 30.0, retry.Seconds(), 0.01)

	// A rejected request does not consume a token.
	now = now.Add(31 * time.Second)
	ok, _ = l.Allow("k", 2, time.Minute)
	assert.True(t, ok)

	ok, _ = l.Allow("other", 2, time.Minute)
	assert.True(t, ok)
}

func TestLocalLimiter_PrunesIdleBuckets(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalLimiter()
	l.now = func() time.Time { return now }

	l.Allow("a", 1, time.Minute)
	require.Equal(t, 1, l.size())

	now = now.Add(11 * time.Minute)
	l.Allow("b", 1, time.Minute)
	assert.Equal(t, 1, l.size())
}

func TestRetrySeconds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, retrySeconds(0))
	assert.Equal(t, 1, retrySeconds(200*time.Millisecond))
	assert.Equal(t, 30, retrySeconds(30*time.Second))
}
