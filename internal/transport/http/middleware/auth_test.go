package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/community-service/internal/application/identity"
	"github.com/baechuer/community-service/internal/domain"
)

type fakeVerifier struct {
	claims identity.AccessClaims
	err    error
	calls  int
	gotTok string
}

func (f *fakeVerifier) VerifyAccessToken(token string) (identity.AccessClaims, error) {
	f.calls++
	f.gotTok = token
	return f.claims, f.err
}

func runAuth(t *testing.T, v *fakeVerifier, header string) (*writeErrRecorder, *nextRecorder) {
	t.Helper()
	we := &writeErrRecorder{}
	next := &nextRecorder{}

	req := httptest.NewRequest(http.MethodGet, "/api/users/me/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	Auth(v, we.fn)(next).ServeHTTP(httptest.NewRecorder(), req)
	return we, next
}

func TestAuth_MissingHeader(t *testing.T) {
	t.Parallel()

	v := &fakeVerifier{}
	we, next := runAuth(t, v, "")

	assert.Equal(t, 0, next.calls)
	assert.Equal(t, 0, v.calls)
	assert.True(t, domain.Is(we.last, "token_missing"))
}

func TestAuth_MalformedHeader(t *testing.T) {
	t.Parallel()

	for _, h := range []string{"Token abc", "Bearer", "Bearer    "} {
		v := &fakeVerifier{}
		we, next := runAuth(t, v, h)
		assert.Equal(t, 0, next.calls, h)
		assert.True(t, domain.Is(we.last, "token_invalid"), h)
	}
}

func TestAuth_VerifierError(t *testing.T) {
	t.Parallel()

	v := &fakeVerifier{err: domain.ErrTokenExpired()}
	we, next := runAuth(t, v, "Bearer abc")

	assert.Equal(t, 0, next.calls)
	assert.Equal(t, "abc", v.gotTok)
	assert.True(t, domain.Is(we.last, "token_expired"))
}

func TestAuth_RejectsZeroUserID(t *testing.T) {
	t.Parallel()

	v := &fakeVerifier{claims: identity.AccessClaims{UserID: 0, Role: domain.RoleUser}}
	we, next := runAuth(t, v, "Bearer abc")

	assert.Equal(t, 0, next.calls)
	assert.True(t, domain.Is(we.last, "token_invalid"))
}

func TestAuth_InjectsUser(t *testing.T) {
	t.Parallel()

	v := &fakeVerifier{claims: identity.AccessClaims{UserID: 42, Role: domain.RoleAdmin}}
	we, next := runAuth(t, v, "bearer tok")

	require.Equal(t, 0, we.calls)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, int64(42), next.gotUID)
	assert.Equal(t, "admin", next.gotRole)
	assert.Equal(t, "tok", v.gotTok)
}

func TestRequireAtLeast(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		role     string
		withUser bool
		wantNext bool
		wantCode string
	}{
		{name: "no auth context", withUser: false, wantCode: "token_invalid"},
		{name: "user below admin", role: "user", withUser: true, wantCode: "forbidden"},
		{name: "unknown role", role: "root", withUser: true, wantCode: "forbidden"},
		{name: "admin passes", role: "admin", withUser: true, wantNext: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			we := &writeErrRecorder{}
			next := &nextRecorder{}
			req := httptest.NewRequest(http.MethodDelete, "/api/users/2/", nil)
			if tc.withUser {
				req = req.WithContext(WithUser(req.Context(), 1, tc.role))
			}

			RequireAtLeast(domain.RoleAdmin, we.fn)(next).ServeHTTP(httptest.NewRecorder(), req)

			if tc.wantNext {
				assert.Equal(t, 1, next.calls)
				assert.Equal(t, 0, we.calls)
				return
			}
			assert.Equal(t, 0, next.calls)
			assert.True(t, domain.Is(we.last, tc.wantCode), "got %v", we.last)
		})
	}
}
