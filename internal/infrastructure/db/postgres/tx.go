package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/baechuer/community-service/internal/domain"
)

// claimRetries bounds the insert-or-lock loop when a conflicting claim row
// disappears between the insert and the lock (its owner was deleted).
const claimRetries = 3

type tx struct {
	q queryer
}

func (t *tx) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	if u.Role == "" {
		u.Role = domain.RoleUser
	}

	const q = `
INSERT INTO users (username, first_name, last_name, email, password_hash, role, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + userColumns

	ur, err := scanUser(t.q.QueryRowContext(ctx, q,
		u.Username, u.FirstName, u.LastName, u.Email, u.PasswordHash, string(u.Role), u.IsActive,
	))
	if err != nil {
		return domain.User{}, mapError(err)
	}
	return toDomainUser(ur), nil
}

func (t *tx) LockUser(ctx context.Context, id int64) (domain.User, error) {
	return getUser(ctx, t.q, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
}

func (t *tx) UsernameTakenByOther(ctx context.Context, username string, id int64) (bool, error) {
	return exists(ctx, t.q, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND id <> $2)`, username, id)
}

func (t *tx) UpdateUserProfile(ctx context.Context, u domain.User) error {
	const q = `
UPDATE users
SET username = $2,
    first_name = $3,
    last_name = $4
WHERE id = $1;
`
	res, err := t.q.ExecContext(ctx, q, u.ID, u.Username, u.FirstName, u.LastName)
	if err != nil {
		return mapError(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrUserDoesNotExist()
	}
	return nil
}

func (t *tx) DeleteUser(ctx context.Context, id int64) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrUserDoesNotExist()
	}
	return nil
}

// LockOrCreateEmailClaim relies on ON CONFLICT waiting for any concurrent
// inserter of the same email, so the following SELECT sees the committed row.
func (t *tx) LockOrCreateEmailClaim(ctx context.Context, email string, userID int64) (domain.EmailAddress, bool, error) {
	const insert = `
INSERT INTO email_addresses (user_id, email, is_verified, is_primary)
VALUES ($1, $2, FALSE, FALSE)
ON CONFLICT (email) DO NOTHING
RETURNING ` + claimColumns

	for i := 0; i < claimRetries; i++ {
		c, err := scanClaim(t.q.QueryRowContext(ctx, insert, userID, email))
		if err == nil {
			return c, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return domain.EmailAddress{}, false, mapError(err)
		}

		c, found, err := t.LockClaimByEmail(ctx, email)
		if err != nil {
			return domain.EmailAddress{}, false, err
		}
		if found {
			return c, false, nil
		}
	}
	return domain.EmailAddress{}, false, domain.ErrTransientConflict(errors.New("email claim vanished while locking"))
}

func (t *tx) LockClaimByEmail(ctx context.Context, email string) (domain.EmailAddress, bool, error) {
	c, err := scanClaim(t.q.QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM email_addresses WHERE email = $1 FOR UPDATE`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.EmailAddress{}, false, nil
		}
		return domain.EmailAddress{}, false, mapError(err)
	}
	return c, true, nil
}

func (t *tx) SaveEmailClaim(ctx context.Context, c domain.EmailAddress) error {
	const q = `
UPDATE email_addresses
SET user_id = $2,
    email = $3,
    is_verified = $4,
    is_primary = $5
WHERE id = $1;
`
	res, err := t.q.ExecContext(ctx, q, c.ID, c.UserID, c.Email, c.IsVerified, c.IsPrimary)
	if err != nil {
		return mapError(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrInternal(errors.New("email claim not found"))
	}
	return nil
}

func (t *tx) DemoteOtherPrimaryClaims(ctx context.Context, userID, keepClaimID int64) error {
	const q = `
UPDATE email_addresses
SET is_primary = FALSE
WHERE user_id = $1 AND id <> $2 AND is_primary;
`
	if _, err := t.q.ExecContext(ctx, q, userID, keepClaimID); err != nil {
		return mapError(err)
	}
	return nil
}

func (t *tx) DeleteUsersByEmailExcept(ctx context.Context, email string, keepUserID int64) ([]int64, error) {
	rows, err := t.q.QueryContext(ctx,
		`DELETE FROM users WHERE email = $1 AND id <> $2 RETURNING id`, email, keepUserID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var removed []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, mapError(err)
		}
		removed = append(removed, id)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return removed, nil
}
