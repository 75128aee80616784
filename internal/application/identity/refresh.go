package identity

import (
	"context"

	"github.com/baechuer/community-service/internal/domain"
)

// Refresh issues a new access token for a valid, unrevoked refresh token.
// The refresh token itself is not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if refreshToken == "" {
		return TokenPair{}, domain.ErrTokenInvalid()
	}

	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.JTI)
	if err != nil {
		return TokenPair{}, err
	}
	if revoked {
		return TokenPair{}, domain.ErrTokenInvalid()
	}

	at, ok, err := s.revocations.UserRevokedAt(ctx, claims.UserID)
	if err != nil {
		return TokenPair{}, err
	}
	if ok && !claims.IssuedAt.After(at) {
		return TokenPair{}, domain.ErrTokenInvalid()
	}

	u, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		// user is gone: treat as invalid session
		if domain.Is(err, domain.CodeUserDoesNotExist) {
			return TokenPair{}, domain.ErrTokenInvalid()
		}
		return TokenPair{}, err
	}
	if !u.IsActive {
		return TokenPair{}, domain.ErrTokenInvalid()
	}

	access, err := s.tokens.SignAccessToken(u.ID, u.Role, s.accessTTL)
	if err != nil {
		return TokenPair{}, domain.ErrTokenSignFailed(err)
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}
