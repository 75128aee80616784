package identity

import (
	"context"

	"github.com/baechuer/community-service/internal/domain"
	"github.com/baechuer/community-service/internal/validation"
)

type CreateUserInput struct {
	Username      string
	Password      string
	Email         string
	TermsAccepted bool
	FirstName     string
	LastName      string
}

type CreateUserResult struct {
	User   domain.User
	Tokens TokenPair
	// Superseded holds the ids of accounts removed because they had this
	// email on an unverified claim.
	Superseded []int64
}

// CreateUser registers a user and claims their email as primary, unverified.
// Preconditions are checked in order and the first failure wins.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (CreateUserResult, error) {
	if fields := s.validator.ValidateSignUp(validation.SignUp{
		Username:  in.Username,
		Email:     in.Email,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}); fields != nil {
		return CreateUserResult{}, domain.ErrValidation(fields)
	}

	if !in.TermsAccepted {
		return CreateUserResult{}, domain.ErrTermsNotAccepted()
	}

	taken, err := s.store.UsernameExists(ctx, in.Username)
	if err != nil {
		return CreateUserResult{}, err
	}
	if taken {
		return CreateUserResult{}, domain.ErrUsernameAlreadyExists()
	}

	verified, err := s.store.VerifiedClaimExists(ctx, in.Email)
	if err != nil {
		return CreateUserResult{}, err
	}
	if verified {
		return CreateUserResult{}, domain.ErrEmailAddressAlreadyExists()
	}

	// no locks may be held while hashing
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return CreateUserResult{}, domain.ErrHashFailed(err)
	}

	var (
		created    domain.User
		superseded []int64
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		u, err := tx.CreateUser(ctx, domain.User{
			Username:     in.Username,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			Email:        in.Email,
			PasswordHash: hash,
			Role:         domain.RoleUser,
			IsActive:     true,
		})
		if err != nil {
			return err
		}

		removed, err := s.ClaimEmail(ctx, tx, u.ID, in.Email, true, false)
		if err != nil {
			return err
		}

		created, superseded = u, removed
		return nil
	})
	if err != nil {
		s.audit(ctx, "user.create_failed", map[string]string{
			"username": in.Username,
			"code":     domainCode(err),
		})
		return CreateUserResult{}, err
	}

	s.audit(ctx, "user.created", map[string]string{
		"user_id":  idStr(created.ID),
		"username": created.Username,
	})
	s.announceSuperseded(ctx, created.Email, created.ID, superseded)

	toks, err := s.issueTokens(created)
	if err != nil {
		return CreateUserResult{}, err
	}

	return CreateUserResult{User: created, Tokens: toks, Superseded: superseded}, nil
}
