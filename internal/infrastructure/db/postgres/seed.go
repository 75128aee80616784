package postgres

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/baechuer/community-service/internal/application/identity"
	"github.com/baechuer/community-service/internal/domain"
)

type SeederHasher interface {
	Hash(password string) (string, error)
}

// SeedUsers creates dev accounts with verified primary claims.
// Works against any identity.Store; restart safe (existing usernames are skipped).
func SeedUsers(ctx context.Context, store identity.Store, hasher SeederHasher) int {
	type seedUser struct {
		Username string
		Email    string
		Role     domain.Role
		Pass     string
	}

	seeds := []seedUser{
		{Username: "admin", Email: "admin@example.com", Role: domain.RoleAdmin, Pass: "AdminPassword123!"},
		{Username: "user", Email: "user@example.com", Role: domain.RoleUser, Pass: "UserPassword123!"},
	}

	created := 0
	for _, s := range seeds {
		if ok, err := store.UsernameExists(ctx, s.Username); err != nil || ok {
			continue
		}

		hash, err := hasher.Hash(s.Pass)
		if err != nil {
			log.Warn().Err(err).Str("username", s.Username).Msg("seed: hash failed")
			continue
		}

		err = store.WithinTx(ctx, func(ctx context.Context, tx identity.Tx) error {
			u, err := tx.CreateUser(ctx, domain.User{
				Username:     s.Username,
				Email:        s.Email,
				PasswordHash: hash,
				Role:         s.Role,
				IsActive:     true,
			})
			if err != nil {
				return err
			}
			c, _, err := tx.LockOrCreateEmailClaim(ctx, s.Email, u.ID)
			if err != nil {
				return err
			}
			c.UserID = u.ID
			c.IsVerified = true
			c.IsPrimary = true
			return tx.SaveEmailClaim(ctx, c)
		})
		if err != nil {
			// ignore duplicates (restart safe)
			log.Warn().Err(err).Str("username", s.Username).Msg("seed: create failed")
			continue
		}
		created++
	}

	log.Info().Int("created", created).Msg("seed: users seeded")
	return created
}
