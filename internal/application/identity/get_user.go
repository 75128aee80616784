package identity

import (
	"context"

	"github.com/baechuer/community-service/internal/domain"
)

func (s *Service) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return s.store.GetUserByID(ctx, id)
}

// Profile returns the public view of a user.
func (s *Service) Profile(ctx context.Context, id int64) (domain.Profile, error) {
	u, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return domain.Profile{}, err
	}
	return u.Profile(), nil
}
