package redis

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/baechuer/community-service/internal/domain"
)

// RevocationStore is a refresh-token denylist:
// - rvk:<jti> -> "1" with TTL = remaining token lifetime
// - rvu:<uid> -> cutoff unix nanos; tokens issued at or before it are dead
type RevocationStore struct {
	rdb *goredis.Client

	jtiPrefix  string
	userPrefix string
}

func NewRevocationStore(c *Client) *RevocationStore {
	return &RevocationStore{
		rdb:        rdbOf(c),
		jtiPrefix:  "rvk:",
		userPrefix: "rvu:",
	}
}

func (s *RevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return domain.ErrTokenInvalid()
	}
	if s.rdb == nil {
		return domain.ErrCacheUnavailable(errors.New("redis revocation store not configured"))
	}
	// already expired tokens need no denylist entry
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, s.jtiPrefix+jti, "1", ttl).Err(); err != nil {
		return domain.ErrCacheUnavailable(err)
	}
	return nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if s.rdb == nil {
		return false, domain.ErrCacheUnavailable(errors.New("redis revocation store not configured"))
	}
	n, err := s.rdb.Exists(ctx, s.jtiPrefix+jti).Result()
	if err != nil {
		return false, domain.ErrCacheUnavailable(err)
	}
	return n > 0, nil
}

func (s *RevocationStore) RevokeUser(ctx context.Context, userID int64, at time.Time, ttl time.Duration) error {
	if s.rdb == nil {
		return domain.ErrCacheUnavailable(errors.New("redis revocation store not configured"))
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	val := strconv.FormatInt(at.UnixNano(), 10)
	if err := s.rdb.Set(ctx, s.userKey(userID), val, ttl).Err(); err != nil {
		return domain.ErrCacheUnavailable(err)
	}
	return nil
}

func (s *RevocationStore) UserRevokedAt(ctx context.Context, userID int64) (time.Time, bool, error) {
	if s.rdb == nil {
		return time.Time{}, false, domain.ErrCacheUnavailable(errors.New("redis revocation store not configured"))
	}
	raw, err := s.rdb.Get(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, domain.ErrCacheUnavailable(err)
	}
	ns, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// unreadable cutoff: treat every token as revoked
		return time.Now(), true, nil
	}
	return time.Unix(0, ns), true, nil
}

func (s *RevocationStore) userKey(userID int64) string {
	return s.userPrefix + strconv.FormatInt(userID, 10)
}
