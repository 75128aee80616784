package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/baechuer/community-service/internal/domain"
)

type Service struct {
	store       Store
	validator   FieldValidator
	hasher      PasswordHasher
	tokens      TokenIssuer
	revocations RevocationStore
	ott         OneTimeTokenStore
	pub         EventPublisher

	accessTTL  time.Duration
	refreshTTL time.Duration
	audit      func(ctx context.Context, action string, fields map[string]string)
	now        func() time.Time

	// Link sent via the verify-email event, e.g. https://frontend/verify-email?token=
	verifyEmailBaseURL string
	verifyEmailTTL     time.Duration
}

type Config struct {
	AccessTTL           time.Duration
	RefreshTTL          time.Duration
	VerifyEmailBaseURL  string
	VerifyEmailTokenTTL time.Duration
}

func NewService(
	store Store,
	validator FieldValidator,
	hasher PasswordHasher,
	tokens TokenIssuer,
	revocations RevocationStore,
	ott OneTimeTokenStore,
	pub EventPublisher,
	cfg Config,
) *Service {
	auditFn := func(context.Context, string, map[string]string) {}
	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = 5 * time.Minute
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = 24 * time.Hour
	}
	verifyTTL := cfg.VerifyEmailTokenTTL
	if verifyTTL <= 0 {
		verifyTTL = 24 * time.Hour
	}
	return &Service{
		store:       store,
		validator:   validator,
		hasher:      hasher,
		tokens:      tokens,
		revocations: revocations,
		ott:         ott,
		pub:         pub,
		audit:       auditFn,
		now:         time.Now,

		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,

		verifyEmailBaseURL: cfg.VerifyEmailBaseURL,
		verifyEmailTTL:     verifyTTL,
	}
}

func (s *Service) WithAudit(fn func(ctx context.Context, action string, fields map[string]string)) *Service {
	if fn != nil {
		s.audit = fn
	}
	return s
}

// TokenPair is the common token output for handlers/DTO mapping.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // seconds
	TokenType    string
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   int64
	Role domain.Role
}

func (a Actor) IsAdmin() bool { return a.Role == domain.RoleAdmin }

// issueTokens issues an access token + refresh token for a user.
// Never called while a transaction is open.
func (s *Service) issueTokens(u domain.User) (TokenPair, error) {
	access, err := s.tokens.SignAccessToken(u.ID, u.Role, s.accessTTL)
	if err != nil {
		return TokenPair{}, domain.ErrTokenSignFailed(err)
	}
	refresh, _, err := s.tokens.SignRefreshToken(u.ID, s.refreshTTL)
	if err != nil {
		return TokenPair{}, domain.ErrTokenSignFailed(err)
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// newOpaqueToken returns a URL-safe opaque token.
func newOpaqueToken(bytesLen int) (string, error) {
	if bytesLen <= 0 {
		return "", errors.New("invalid token length")
	}
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
