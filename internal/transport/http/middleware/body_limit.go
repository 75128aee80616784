package middleware

import (
	"net/http"

	"github.com/baechuer/community-service/internal/domain"
)

// BodyLimit caps request bodies at limit bytes. Declared oversize bodies are
// rejected up front; streaming ones fail at decode time.
func BodyLimit(limit int64, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > limit {
				writeErr(w, r, domain.ErrPayloadTooLarge())
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
