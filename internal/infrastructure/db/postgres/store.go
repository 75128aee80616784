package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/baechuer/community-service/internal/application/identity"
	"github.com/baechuer/community-service/internal/domain"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
}

// NewStore returns a Postgres-backed identity store.
// lockTimeout bounds every row-lock wait inside WithinTx; 0 disables it.
func NewStore(db *sql.DB, lockTimeout time.Duration) *Store {
	return &Store{db: db, lockTimeout: lockTimeout}
}

// WithinTx begins a transaction, runs fn, then commits on success or rolls
// back on error/panic. Panics are rethrown.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx identity.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
			return
		}
		if cerr := sqlTx.Commit(); cerr != nil {
			err = mapError(cerr)
		}
	}()

	if s.lockTimeout > 0 {
		// SET does not accept bind parameters; the value is an integer.
		q := fmt.Sprintf("SET LOCAL lock_timeout = %d", s.lockTimeout.Milliseconds())
		if _, err = sqlTx.ExecContext(ctx, q); err != nil {
			return mapError(err)
		}
	}

	err = fn(ctx, &tx{q: sqlTx})
	return mapError(err)
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	return getUser(ctx, s.db, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return getUser(ctx, s.db, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (s *Store) UsernameExists(ctx context.Context, username string) (bool, error) {
	return exists(ctx, s.db, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username)
}

func (s *Store) VerifiedClaimExists(ctx context.Context, email string) (bool, error) {
	return exists(ctx, s.db, `SELECT EXISTS (SELECT 1 FROM email_addresses WHERE email = $1 AND is_verified)`, email)
}

// ---------- helpers ----------

func getUser(ctx context.Context, q queryer, query string, args ...any) (domain.User, error) {
	ur, err := scanUser(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserDoesNotExist()
		}
		return domain.User{}, mapError(err)
	}
	return toDomainUser(ur), nil
}

func exists(ctx context.Context, q queryer, query string, args ...any) (bool, error) {
	var ok bool
	if err := q.QueryRowContext(ctx, query, args...).Scan(&ok); err != nil {
		return false, mapError(err)
	}
	return ok, nil
}
