package identity

import (
	"context"
	"time"

	"github.com/baechuer/community-service/internal/domain"
)

// ClaimEmail binds email to userID inside an open transaction.
//
// The claim row is locked (created first if missing), so concurrent claims on
// the same email serialise here. A verified claim held by another user cannot
// be taken. On success every other user whose email equals the claimed one is
// deleted; their ids are returned so the caller can announce them after commit.
func (s *Service) ClaimEmail(ctx context.Context, tx Tx, userID int64, email string, isPrimary, isVerified bool) ([]int64, error) {
	claim, created, err := tx.LockOrCreateEmailClaim(ctx, email, userID)
	if err != nil {
		return nil, err
	}

	if !created && claim.IsVerified && claim.UserID != userID {
		return nil, domain.ErrEmailAddressAlreadyExists()
	}

	// at most one primary claim per user
	if isPrimary {
		if err := tx.DemoteOtherPrimaryClaims(ctx, userID, claim.ID); err != nil {
			return nil, err
		}
	}

	claim.UserID = userID
	claim.Email = email
	claim.IsVerified = isVerified
	claim.IsPrimary = isPrimary
	if err := tx.SaveEmailClaim(ctx, claim); err != nil {
		return nil, err
	}

	return tx.DeleteUsersByEmailExcept(ctx, email, userID)
}

// announceSuperseded runs after commit. Failures are audited, never returned:
// the removal is already durable.
func (s *Service) announceSuperseded(ctx context.Context, email string, winnerID int64, removed []int64) {
	if len(removed) == 0 {
		return
	}

	s.audit(ctx, "accounts.superseded", map[string]string{
		"winner_id":   idStr(winnerID),
		"removed_ids": idList(removed),
	})

	at := s.now()
	for _, id := range removed {
		if err := s.revocations.RevokeUser(ctx, id, at, s.refreshTTL); err != nil {
			s.audit(ctx, "accounts.superseded.revoke_failed", map[string]string{
				"user_id": idStr(id),
				"code":    domainCode(err),
			})
		}
	}

	evt := AccountsSupersededEvent{Email: email, WinnerID: winnerID, RemovedIDs: removed}
	if err := s.pub.PublishAccountsSuperseded(ctx, evt); err != nil {
		s.audit(ctx, "accounts.superseded.publish_failed", map[string]string{
			"winner_id": idStr(winnerID),
			"code":      domainCode(err),
		})
	}
}

// revokeAfter is shared by flows that end a user's sessions post-commit.
func (s *Service) revokeAfter(ctx context.Context, userID int64, at time.Time) {
	if err := s.revocations.RevokeUser(ctx, userID, at, s.refreshTTL); err != nil {
		s.audit(ctx, "user.revoke_failed", map[string]string{
			"user_id": idStr(userID),
			"code":    domainCode(err),
		})
	}
}
