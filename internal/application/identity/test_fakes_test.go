package identity_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/baechuer/community-service/internal/application/identity"
	"github.com/baechuer/community-service/internal/domain"
	"github.com/baechuer/community-service/internal/infrastructure/memory"
	"github.com/baechuer/community-service/internal/validation"
)

/*
Shared audit capture
*/

type auditEntry struct {
	action string
	fields map[string]string
}

type auditLog struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *auditLog) record(_ context.Context, action string, fields map[string]string) {
	cp := map[string]string{}
	for k, v := range fields {
		cp[k] = v
	}
	a.mu.Lock()
	a.entries = append(a.entries, auditEntry{action: action, fields: cp})
	a.mu.Unlock()
}

func (a *auditLog) has(action string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.entries {
		if e.action == action {
			return true
		}
	}
	return false
}

/*
Fakes for ports
*/

type fakeHasher struct {
	hashFn func(pw string) (string, error)
}

func (h *fakeHasher) Hash(pw string) (string, error) {
	if h.hashFn != nil {
		return h.hashFn(pw)
	}
	return "HASH(" + pw + ")", nil
}

func (h *fakeHasher) Compare(hash, pw string) error {
	if hash != "HASH("+pw+")" {
		return errors.New("mismatch")
	}
	return nil
}

type fakeTokens struct {
	mu      sync.Mutex
	n       int
	refresh map[string]identity.RefreshClaims
	signErr error
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{refresh: map[string]identity.RefreshClaims{}}
}

func (f *fakeTokens) SignAccessToken(userID int64, role domain.Role, ttl time.Duration) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	return fmt.Sprintf("acc:%d:%s", userID, role), nil
}

func (f *fakeTokens) SignRefreshToken(userID int64, ttl time.Duration) (string, string, error) {
	if f.signErr != nil {
		return "", "", f.signErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	jti := fmt.Sprintf("jti-%d", f.n)
	tok := "rft:" + jti
	now := time.Now()
	f.refresh[tok] = identity.RefreshClaims{UserID: userID, JTI: jti, IssuedAt: now.Add(-time.Second), Exp: now.Add(ttl)}
	return tok, jti, nil
}

func (f *fakeTokens) VerifyAccessToken(token string) (identity.AccessClaims, error) {
	return identity.AccessClaims{}, domain.ErrTokenInvalid()
}

func (f *fakeTokens) VerifyRefreshToken(token string) (identity.RefreshClaims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.refresh[token]
	if !ok {
		return identity.RefreshClaims{}, domain.ErrTokenInvalid()
	}
	if time.Now().After(c.Exp) {
		return identity.RefreshClaims{}, domain.ErrTokenExpired()
	}
	return c, nil
}

// expire makes a previously issued refresh token look expired.
func (f *fakeTokens) expire(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.refresh[token]
	c.Exp = time.Now().Add(-time.Minute)
	f.refresh[token] = c
}

type fakePublisher struct {
	mu         sync.Mutex
	verify     []identity.VerifyEmailEvent
	superseded []identity.AccountsSupersededEvent
	err        error
}

func (p *fakePublisher) PublishVerifyEmail(ctx context.Context, evt identity.VerifyEmailEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.verify = append(p.verify, evt)
	return nil
}

func (p *fakePublisher) PublishAccountsSuperseded(ctx context.Context, evt identity.AccountsSupersededEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.superseded = append(p.superseded, evt)
	return nil
}

/*
Store wrappers for failure injection
*/

type faultyStore struct {
	*memory.Store

	usernameExistsErr error
	verifiedErr       error
	// wraps every tx handed to fn
	wrapTx func(identity.Tx) identity.Tx
}

func (s *faultyStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	if s.usernameExistsErr != nil {
		return false, s.usernameExistsErr
	}
	return s.Store.UsernameExists(ctx, username)
}

func (s *faultyStore) VerifiedClaimExists(ctx context.Context, email string) (bool, error) {
	if s.verifiedErr != nil {
		return false, s.verifiedErr
	}
	return s.Store.VerifiedClaimExists(ctx, email)
}

func (s *faultyStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx identity.Tx) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx identity.Tx) error {
		if s.wrapTx != nil {
			tx = s.wrapTx(tx)
		}
		return fn(ctx, tx)
	})
}

// failingPurgeTx fails the final step of an email claim.
type failingPurgeTx struct {
	identity.Tx
}

func (t failingPurgeTx) DeleteUsersByEmailExcept(ctx context.Context, email string, keep int64) ([]int64, error) {
	return nil, domain.ErrDBUnavailable(errors.New("connection reset"))
}

/*
Harness
*/

type harness struct {
	svc         *identity.Service
	store       *faultyStore
	hasher      *fakeHasher
	tokens      *fakeTokens
	revocations *memory.RevocationStore
	ott         *memory.OneTimeTokenStore
	pub         *fakePublisher
	audits      *auditLog
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:       &faultyStore{Store: memory.NewStore()},
		hasher:      &fakeHasher{},
		tokens:      newFakeTokens(),
		revocations: memory.NewRevocationStore(),
		ott:         memory.NewOneTimeTokenStore(),
		pub:         &fakePublisher{},
		audits:      &auditLog{},
	}
	cfg := identity.Config{
		AccessTTL:           5 * time.Minute,
		RefreshTTL:          24 * time.Hour,
		VerifyEmailBaseURL:  "https://fe/verify?token=",
		VerifyEmailTokenTTL: time.Hour,
	}
	h.svc = identity.NewService(h.store, validation.MustNew(), h.hasher, h.tokens, h.revocations, h.ott, h.pub, cfg).
		WithAudit(h.audits.record)

	if h.svc == nil {
		t.Fatalf("svc is nil")
	}
	return h
}

func signUp(username, email string) identity.CreateUserInput {
	return identity.CreateUserInput{
		Username:      username,
		Password:      "pw-" + username,
		Email:         email,
		TermsAccepted: true,
		FirstName:     "First",
		LastName:      "Last",
	}
}

// mustCreate registers a user and fails the test on error.
func (h *harness) mustCreate(t *testing.T, username, email string) identity.CreateUserResult {
	t.Helper()
	res, err := h.svc.CreateUser(context.Background(), signUp(username, email))
	if err != nil {
		t.Fatalf("create %s: %v", username, err)
	}
	return res
}

// verify marks the user's current claim verified through the public flow.
func (h *harness) verify(t *testing.T, userID int64) {
	t.Helper()
	ctx := context.Background()
	if err := h.svc.RequestEmailVerification(ctx, userID); err != nil {
		t.Fatalf("request verification: %v", err)
	}
	h.pub.mu.Lock()
	evt := h.pub.verify[len(h.pub.verify)-1]
	h.pub.mu.Unlock()

	token := evt.URL[len("https://fe/verify?token="):]
	if err := h.svc.ConfirmEmailVerification(ctx, token); err != nil {
		t.Fatalf("confirm verification: %v", err)
	}
}

/*
Small assertions
*/

func requireDomainCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected domain code %q, got nil", wantCode)
	}
	if !domain.Is(err, wantCode) {
		t.Fatalf("expected domain code %q, got err=%v", wantCode, err)
	}
}

func requireCounts(t *testing.T, s *memory.Store, users, claims int) {
	t.Helper()
	if got := len(s.Users()); got != users {
		t.Fatalf("expected %d users, got %d", users, got)
	}
	if got := len(s.Claims()); got != claims {
		t.Fatalf("expected %d claims, got %d", claims, got)
	}
}
