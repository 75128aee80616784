package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/baechuer/community-service/internal/domain"
)

const (
	pgUniqueViolation      = "23505"
	pgLockNotAvailable     = "55P03"
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"

	constraintUsername = "users_username_key"
	constraintEmail    = "email_addresses_email_key"
)

// mapError converts driver errors into domain errors. Domain errors pass through.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			switch pgErr.ConstraintName {
			case constraintUsername:
				return domain.ErrUsernameAlreadyExists()
			case constraintEmail:
				return domain.ErrEmailAddressAlreadyExists()
			}
		case pgLockNotAvailable, pgDeadlockDetected, pgSerializationFailure:
			return domain.ErrTransientConflict(err)
		}
	}
	return domain.ErrDBUnavailable(err)
}
