package identity

import (
	"context"
	"strings"

	"github.com/baechuer/community-service/internal/domain"
)

// RequestEmailVerification generates a one-time token and publishes an email event.
func (s *Service) RequestEmailVerification(ctx context.Context, userID int64) error {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	token, err := newOpaqueToken(32)
	if err != nil {
		return domain.ErrRandomFailed(err)
	}

	if err := s.ott.Save(ctx, TokenVerifyEmail, token, u.ID, s.verifyEmailTTL); err != nil {
		return err
	}

	s.audit(ctx, "email.verify_requested", map[string]string{"user_id": idStr(u.ID)})
	return s.pub.PublishVerifyEmail(ctx, VerifyEmailEvent{
		UserID: u.ID,
		Email:  u.Email,
		URL:    s.verifyEmailBaseURL + token,
	})
}

// ConfirmEmailVerification consumes the token and marks the user's current
// email claim as verified. Once verified the email can no longer be captured.
func (s *Service) ConfirmEmailVerification(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.ErrVerifyTokenNotFound()
	}

	userID, err := s.ott.Consume(ctx, TokenVerifyEmail, token)
	if err != nil {
		return err
	}

	var email string
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		u, err := tx.LockUser(ctx, userID)
		if err != nil {
			if domain.Is(err, domain.CodeUserDoesNotExist) {
				return domain.ErrVerifyTokenNotFound()
			}
			return err
		}

		claim, found, err := tx.LockClaimByEmail(ctx, u.Email)
		if err != nil {
			return err
		}
		// the claim moved to another account after the token was issued
		if !found || claim.UserID != u.ID {
			return domain.ErrVerifyTokenNotFound()
		}

		claim.IsVerified = true
		email = u.Email
		return tx.SaveEmailClaim(ctx, claim)
	})
	if err != nil {
		return err
	}

	s.audit(ctx, "email.verified", map[string]string{"user_id": idStr(userID), "email": email})
	return nil
}
