package http_handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/baechuer/community-service/internal/application/identity"
	"github.com/baechuer/community-service/internal/domain"
	"github.com/baechuer/community-service/internal/infrastructure/memory"
	"github.com/baechuer/community-service/internal/infrastructure/security"
	"github.com/baechuer/community-service/internal/transport/http/middleware"
	"github.com/baechuer/community-service/internal/validation"
)

const testSecret = "handler-test-secret-0123456789abcdef"

// capturePublisher keeps verify-email events so tests can read the token.
type capturePublisher struct {
	mu       sync.Mutex
	verifies []identity.VerifyEmailEvent
}

func (p *capturePublisher) PublishVerifyEmail(_ context.Context, evt identity.VerifyEmailEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verifies = append(p.verifies, evt)
	return nil
}

func (p *capturePublisher) PublishAccountsSuperseded(context.Context, identity.AccountsSupersededEvent) error {
	return nil
}

func (p *capturePublisher) lastVerify(t *testing.T) identity.VerifyEmailEvent {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.verifies)
	return p.verifies[len(p.verifies)-1]
}

type harness struct {
	store  *memory.Store
	hasher *security.BcryptHasher
	pub    *capturePublisher
	svc    *identity.Service
	auth   *AuthHandler
	users  *UsersHandler
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := memory.NewStore()
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	pub := &capturePublisher{}
	svc := identity.NewService(
		store,
		validation.MustNew(),
		hasher,
		security.NewJWTIssuer(testSecret, "community-test"),
		memory.NewRevocationStore(),
		memory.NewOneTimeTokenStore(),
		pub,
		identity.Config{VerifyEmailBaseURL: "http://front/verify?token="},
	)
	return &harness{
		store:  store,
		hasher: hasher,
		pub:    pub,
		svc:    svc,
		auth:   NewAuthHandler(svc),
		users:  NewUsersHandler(svc),
	}
}

// seedUser inserts an active user with password "pw" directly into the store.
func (h *harness) seedUser(t *testing.T, username string, role domain.Role) domain.User {
	t.Helper()

	hash, err := h.hasher.Hash("pw")
	require.NoError(t, err)

	var out domain.User
	err = h.store.WithinTx(context.Background(), func(ctx context.Context, tx identity.Tx) error {
		u, err := tx.CreateUser(ctx, domain.User{
			Username:     username,
			FirstName:    "First",
			LastName:     "Last",
			Email:        username + "@example.com",
			PasswordHash: hash,
			Role:         role,
			IsActive:     true,
		})
		out = u
		return err
	})
	require.NoError(t, err)
	return out
}

func signUpBody(username, email string) map[string]any {
	return map[string]any{
		"username":         username,
		"email":            email,
		"password":         "s3cret",
		"first_name":       "Ada",
		"last_name":        "Lovelace",
		"terms_of_service": "true",
	}
}

// mustJSONBody marshals v to JSON and returns an io.Reader for request body.
func mustJSONBody(t *testing.T, v any) io.Reader {
	t.Helper()

	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

// mustReadData decodes a {"data": ...} envelope into out.
func mustReadData(t *testing.T, r io.Reader, out any) {
	t.Helper()

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(r).Decode(&env))
	require.NotEmpty(t, env.Data)
	require.NoError(t, json.Unmarshal(env.Data, out))
}

type errorBody struct {
	Errors struct {
		DisplayError      string              `json:"display_error"`
		InternalErrorCode int                 `json:"internal_error_code"`
		FieldErrors       map[string][]string `json:"field_errors"`
	} `json:"errors"`
}

func mustReadError(t *testing.T, r io.Reader) errorBody {
	t.Helper()
	var b errorBody
	require.NoError(t, json.NewDecoder(r).Decode(&b))
	return b
}

// withUserCtx injects user_id + role the way the auth middleware does.
func withUserCtx(req *http.Request, userID int64, role domain.Role) *http.Request {
	return req.WithContext(middleware.WithUser(req.Context(), userID, string(role)))
}

// withURLParam injects chi URL param (e.g. /users/{id}) into request context.
func withURLParam(req *http.Request, key, val string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, val)

	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(ctx)
}

func serve(fn http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	fn(rr, req)
	return rr
}

func jsonDecode(rr *httptest.ResponseRecorder, out any) error {
	return json.NewDecoder(rr.Body).Decode(out)
}
