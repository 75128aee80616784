package identity

import (
	"context"

	"github.com/baechuer/community-service/internal/domain"
)

// RemoveUser deletes a user and, transitively, their email claims.
// Callers cannot remove their own account.
func (s *Service) RemoveUser(ctx context.Context, actorID, id int64) error {
	if actorID == id {
		return domain.ErrCannotDeleteSelf()
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockUser(ctx, id); err != nil {
			return err
		}
		return tx.DeleteUser(ctx, id)
	})
	if err != nil {
		return err
	}

	s.audit(ctx, "user.removed", map[string]string{
		"target_user_id": idStr(id),
		"actor_user_id":  idStr(actorID),
	})
	s.revokeAfter(ctx, id, s.now())
	return nil
}
