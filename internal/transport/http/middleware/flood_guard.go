package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/baechuer/community-service/internal/domain"
)

// FloodGuard is a coarse in-process per-IP ceiling applied ahead of routing.
// limit <= 0 disables it.
func FloodGuard(limit int, window time.Duration, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeErr(w, r, domain.ErrRateLimited("global"))
		}),
	)
}
