package identity

import (
	"context"
	"time"

	"github.com/baechuer/community-service/internal/domain"
	"github.com/baechuer/community-service/internal/validation"
)

/*
Store
-----
Persistence port for users and email claims.
Reads outside a transaction see committed state only.
WithinTx runs fn in one transaction: fn returning an error (or panicking)
rolls everything back.
*/
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetUserByID(ctx context.Context, id int64) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	VerifiedClaimExists(ctx context.Context, email string) (bool, error)
}

/*
Tx
--
Operations available inside an open transaction.
Lock* methods take row locks held until commit/rollback.
*/
type Tx interface {
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	LockUser(ctx context.Context, id int64) (domain.User, error)
	UsernameTakenByOther(ctx context.Context, username string, id int64) (bool, error)
	UpdateUserProfile(ctx context.Context, u domain.User) error
	DeleteUser(ctx context.Context, id int64) error

	// LockOrCreateEmailClaim inserts an unverified, non-primary claim for userID
	// unless one exists, then locks the row. created reports whether this call inserted it.
	LockOrCreateEmailClaim(ctx context.Context, email string, userID int64) (claim domain.EmailAddress, created bool, err error)
	LockClaimByEmail(ctx context.Context, email string) (claim domain.EmailAddress, found bool, err error)
	SaveEmailClaim(ctx context.Context, c domain.EmailAddress) error
	DemoteOtherPrimaryClaims(ctx context.Context, userID, keepClaimID int64) error
	// DeleteUsersByEmailExcept removes every user whose email equals email,
	// except keepUserID, and returns the removed ids.
	DeleteUsersByEmailExcept(ctx context.Context, email string, keepUserID int64) ([]int64, error)
}

/*
FieldValidator
--------------
Field-shape checks. Returns nil when valid.
*/
type FieldValidator interface {
	ValidateSignUp(in validation.SignUp) map[string][]string
	ValidateProfile(in validation.ProfileChanges) map[string][]string
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash string, password string) error // nil if match
}

/*
TokenIssuer
-----------
Issues and verifies access + refresh tokens (JWT).
Used by service + auth middleware.
*/
type AccessClaims struct {
	UserID int64
	Role   domain.Role
	Exp    time.Time
}

type RefreshClaims struct {
	UserID   int64
	JTI      string
	IssuedAt time.Time
	Exp      time.Time
}

type TokenIssuer interface {
	SignAccessToken(userID int64, role domain.Role, ttl time.Duration) (string, error)
	SignRefreshToken(userID int64, ttl time.Duration) (token string, jti string, err error)
	VerifyAccessToken(token string) (AccessClaims, error)
	VerifyRefreshToken(token string) (RefreshClaims, error)
}

/*
RevocationStore
---------------
Refresh tokens are stateless JWTs; revocation is a denylist.
RevokeUser invalidates every refresh token issued to a user before `at`.
*/
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	RevokeUser(ctx context.Context, userID int64, at time.Time, ttl time.Duration) error
	UserRevokedAt(ctx context.Context, userID int64) (at time.Time, ok bool, err error)
}

/*
OneTimeTokenStore
-----------------
Opaque one-time tokens (email verification).
Consume is atomic: a token can be consumed at most once.
*/
type OneTimeTokenKind string

const (
	TokenVerifyEmail OneTimeTokenKind = "verify_email"
)

type OneTimeTokenStore interface {
	Save(ctx context.Context, kind OneTimeTokenKind, token string, userID int64, ttl time.Duration) error
	Consume(ctx context.Context, kind OneTimeTokenKind, token string) (userID int64, err error)
}

/*
EventPublisher
--------------
Publishes identity events to the broker.
Mail delivery is done by consumers, never here.
*/
type EventPublisher interface {
	PublishVerifyEmail(ctx context.Context, evt VerifyEmailEvent) error
	PublishAccountsSuperseded(ctx context.Context, evt AccountsSupersededEvent) error
}

type VerifyEmailEvent struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	URL    string `json:"url"`
}

// AccountsSupersededEvent is emitted when claiming an unverified email
// removed the accounts that had it as their email.
type AccountsSupersededEvent struct {
	Email      string  `json:"email"`
	WinnerID   int64   `json:"winner_id"`
	RemovedIDs []int64 `json:"removed_ids"`
}
