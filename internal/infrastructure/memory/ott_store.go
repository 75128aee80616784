package memory

import (
	"context"
	"sync"
	"time"

	"github.com/baechuer/community-service/internal/application/identity"
	"github.com/baechuer/community-service/internal/domain"
)

type ottEntry struct {
	userID    int64
	expiresAt time.Time
}

type OneTimeTokenStore struct {
	mu sync.Mutex
	// kind|token -> entry
	data map[string]ottEntry
	now  func() time.Time
}

func NewOneTimeTokenStore() *OneTimeTokenStore {
	return &OneTimeTokenStore{data: make(map[string]ottEntry), now: time.Now}
}

func key(kind identity.OneTimeTokenKind, token string) string { return string(kind) + "|" + token }

func (s *OneTimeTokenStore) Save(ctx context.Context, kind identity.OneTimeTokenKind, token string, userID int64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key(kind, token)] = ottEntry{userID: userID, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *OneTimeTokenStore) Consume(ctx context.Context, kind identity.OneTimeTokenKind, token string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(kind, token)
	e, ok := s.data[k]
	if !ok {
		return 0, domain.ErrVerifyTokenNotFound()
	}
	delete(s.data, k)
	if s.now().After(e.expiresAt) {
		return 0, domain.ErrVerifyTokenNotFound()
	}
	return e.userID, nil
}
