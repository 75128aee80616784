package identity

import (
	"context"
	"strings"

	"github.com/baechuer/community-service/internal/domain"
)

type LoginResult struct {
	User   domain.User
	Tokens TokenPair
}

// Login authenticates by username and issues a token pair.
// IMPORTANT: must not leak whether the username exists (avoid user enumeration).
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)

	if username == "" || password == "" {
		return LoginResult{}, domain.ErrInvalidCredentials()
	}

	u, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if domain.Is(err, domain.CodeUserDoesNotExist) {
			s.audit(ctx, "login.failed", map[string]string{"username": username, "reason": "unknown_user"})
			return LoginResult{}, domain.ErrInvalidCredentials()
		}
		return LoginResult{}, err
	}

	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		s.audit(ctx, "login.failed", map[string]string{"username": username, "reason": "bad_password"})
		return LoginResult{}, domain.ErrInvalidCredentials()
	}
	if !u.IsActive {
		s.audit(ctx, "login.failed", map[string]string{"username": username, "reason": "inactive"})
		return LoginResult{}, domain.ErrInvalidCredentials()
	}

	toks, err := s.issueTokens(u)
	if err != nil {
		return LoginResult{}, err
	}

	s.audit(ctx, "login.succeeded", map[string]string{"user_id": idStr(u.ID)})
	return LoginResult{User: u, Tokens: toks}, nil
}
