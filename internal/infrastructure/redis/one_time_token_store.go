package redis

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/baechuer/community-service/internal/application/identity"
	"github.com/baechuer/community-service/internal/domain"
)

type OneTimeTokenStore struct {
	rdb    *goredis.Client
	prefix string // e.g. "ott:"
}

func NewOneTimeTokenStore(c *Client) *OneTimeTokenStore {
	return &OneTimeTokenStore{
		rdb:    rdbOf(c),
		prefix: "ott:",
	}
}

func (s *OneTimeTokenStore) Save(ctx context.Context, kind identity.OneTimeTokenKind, token string, userID int64, ttl time.Duration) error {
	token = strings.TrimSpace(token)
	if token == "" || userID <= 0 || ttl <= 0 {
		return domain.ErrInternal(errors.New("ott save: token, user id and ttl are required"))
	}
	if s.rdb == nil {
		return domain.ErrCacheUnavailable(errors.New("redis one-time-token store not configured"))
	}

	// overwrite is fine (new request generates new token anyway)
	if err := s.rdb.Set(ctx, s.key(kind, token), strconv.FormatInt(userID, 10), ttl).Err(); err != nil {
		return domain.ErrCacheUnavailable(err)
	}
	return nil
}

// Consume atomically reads and deletes the token (GETDEL), so concurrent
// confirmations of the same token succeed at most once.
func (s *OneTimeTokenStore) Consume(ctx context.Context, kind identity.OneTimeTokenKind, token string) (int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, domain.ErrVerifyTokenNotFound()
	}
	if s.rdb == nil {
		return 0, domain.ErrCacheUnavailable(errors.New("redis one-time-token store not configured"))
	}

	raw, err := s.rdb.GetDel(ctx, s.key(kind, token)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			// not found, expired or already consumed
			return 0, domain.ErrVerifyTokenNotFound()
		}
		return 0, domain.ErrCacheUnavailable(err)
	}

	uid, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || uid <= 0 {
		return 0, domain.ErrVerifyTokenNotFound()
	}
	return uid, nil
}

func (s *OneTimeTokenStore) key(kind identity.OneTimeTokenKind, token string) string {
	return s.prefix + string(kind) + ":" + token
}
