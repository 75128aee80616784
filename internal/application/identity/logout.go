package identity

import (
	"context"

	"github.com/baechuer/community-service/internal/domain"
)

// Logout revokes a refresh token until it would have expired anyway.
// Empty or already expired tokens are a no-op; repeating a logout is harmless.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		if domain.Is(err, "token_expired") {
			return nil
		}
		return err
	}

	ttl := claims.Exp.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.revocations.Revoke(ctx, claims.JTI, ttl); err != nil {
		return err
	}

	s.audit(ctx, "logout", map[string]string{"user_id": idStr(claims.UserID)})
	return nil
}
