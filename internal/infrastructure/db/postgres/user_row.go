package postgres

import (
	"time"

	"github.com/baechuer/community-service/internal/domain"
)

type userRow struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	DateJoined   time.Time
}

const userColumns = `id, username, first_name, last_name, email, password_hash, role, is_active, date_joined`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (userRow, error) {
	var ur userRow
	err := row.Scan(
		&ur.ID,
		&ur.Username,
		&ur.FirstName,
		&ur.LastName,
		&ur.Email,
		&ur.PasswordHash,
		&ur.Role,
		&ur.IsActive,
		&ur.DateJoined,
	)
	return ur, err
}

func toDomainUser(ur userRow) domain.User {
	return domain.User{
		ID:           ur.ID,
		Username:     ur.Username,
		FirstName:    ur.FirstName,
		LastName:     ur.LastName,
		Email:        ur.Email,
		PasswordHash: ur.PasswordHash,
		Role:         domain.Role(ur.Role),
		IsActive:     ur.IsActive,
		DateJoined:   ur.DateJoined.UTC(),
	}
}

const claimColumns = `id, user_id, email, is_verified, is_primary`

func scanClaim(row rowScanner) (domain.EmailAddress, error) {
	var c domain.EmailAddress
	err := row.Scan(&c.ID, &c.UserID, &c.Email, &c.IsVerified, &c.IsPrimary)
	return c, err
}
