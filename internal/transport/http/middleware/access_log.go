package middleware

import (
	"net/http"
	"time"

	"github.com/baechuer/community-service/internal/logger"
)

// AccessLog writes one zerolog line per request. Must run after RequestID.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := newStatusWriter(w)
		next.ServeHTTP(sw, r)

		l := logger.WithCtx(r.Context())
		ev := l.Info()
		switch {
		case sw.status >= http.StatusInternalServerError:
			ev = l.Error()
		case sw.status >= http.StatusBadRequest:
			ev = l.Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", routePattern(r)).
			Int("status", sw.status).
			Int("bytes", sw.bytes).
			Dur("duration", time.Since(start)).
			Str("remote", clientIP(r)).
			Msg("http_request")
	})
}
