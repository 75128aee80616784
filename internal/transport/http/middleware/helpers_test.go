package middleware

import (
	"net/http"
)

type writeErrRecorder struct {
	calls int
	last  error
}

func (w *writeErrRecorder) fn(rw http.ResponseWriter, _ *http.Request, err error) {
	w.calls++
	w.last = err
	rw.WriteHeader(http.StatusTeapot)
}

// nextRecorder checks what reached the wrapped handler.
type nextRecorder struct {
	calls   int
	gotUID  int64
	gotRole string
}

func (n *nextRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.calls++
	n.gotUID, _ = UserIDFromContext(r.Context())
	n.gotRole, _ = RoleFromContext(r.Context())
	w.WriteHeader(http.StatusOK)
}
