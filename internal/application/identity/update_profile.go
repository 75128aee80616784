package identity

import (
	"context"

	"github.com/baechuer/community-service/internal/domain"
	"github.com/baechuer/community-service/internal/validation"
)

// ProfileUpdate carries optional profile fields.
// A nil field is absent. An empty string also leaves the field unchanged.
type ProfileUpdate struct {
	Username  *string
	FirstName *string
	LastName  *string
}

func provided(s *string) bool {
	return s != nil && *s != ""
}

// UpdateUserProfile applies a partial profile update under the target's row lock.
// Only admins or the owner may edit.
func (s *Service) UpdateUserProfile(ctx context.Context, actor Actor, id int64, upd ProfileUpdate) (domain.User, error) {
	if fields := s.validator.ValidateProfile(validation.ProfileChanges{
		Username:  upd.Username,
		FirstName: upd.FirstName,
		LastName:  upd.LastName,
	}); fields != nil {
		return domain.User{}, domain.ErrValidation(fields)
	}

	var updated domain.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		u, err := tx.LockUser(ctx, id)
		if err != nil {
			return err
		}

		if !actor.IsAdmin() && actor.ID != u.ID {
			return domain.ErrCannotEditUser()
		}

		if provided(upd.Username) && *upd.Username != u.Username {
			taken, err := tx.UsernameTakenByOther(ctx, *upd.Username, u.ID)
			if err != nil {
				return err
			}
			if taken {
				return domain.ErrUsernameAlreadyExists()
			}
			u.Username = *upd.Username
		}
		if provided(upd.FirstName) {
			u.FirstName = *upd.FirstName
		}
		if provided(upd.LastName) {
			u.LastName = *upd.LastName
		}

		if err := tx.UpdateUserProfile(ctx, u); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		if domain.Is(err, domain.CodeCannotEditUser) {
			s.audit(ctx, "user.update_denied", map[string]string{
				"target_user_id": idStr(id),
				"actor_user_id":  idStr(actor.ID),
			})
		}
		return domain.User{}, err
	}

	s.audit(ctx, "user.updated", map[string]string{
		"target_user_id": idStr(id),
		"actor_user_id":  idStr(actor.ID),
	})
	return updated, nil
}
