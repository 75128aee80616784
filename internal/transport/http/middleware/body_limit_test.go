package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/baechuer/community-service/internal/domain"
	"github.com/baechuer/community-service/internal/transport/http/response"
)

func TestBodyLimit_RejectsDeclaredOversize(t *testing.T) {
	t.Parallel()

	we := &writeErrRecorder{}
	next := &nextRecorder{}
	req := httptest.NewRequest(http.MethodPost, "/api/sign-up/", strings.NewReader(strings.Repeat("a", 64)))

	BodyLimit(16, we.fn)(next).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 0, next.calls)
	assert.True(t, domain.Is(we.last, "payload_too_large"))
}

func TestBodyLimit_StreamingOversizeFailsAtDecode(t *testing.T) {
	t.Parallel()

	var decodeErr error
	h := BodyLimit(16, (&writeErrRecorder{}).fn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var v map[string]string
		decodeErr = response.DecodeJSON(r, &v)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/sign-up/", strings.NewReader(`{"username":"`+strings.Repeat("a", 64)+`"}`))
	req.ContentLength = -1
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, domain.Is(decodeErr, "payload_too_large"), "got %v", decodeErr)
}

func TestBodyLimit_DisabledPassesThrough(t *testing.T) {
	t.Parallel()

	next := &nextRecorder{}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	BodyLimit(0, (&writeErrRecorder{}).fn)(next).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1, next.calls)
}
