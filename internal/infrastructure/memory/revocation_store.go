package memory

import (
	"context"
	"sync"
	"time"
)

type revocation struct {
	at        time.Time
	expiresAt time.Time
}

// RevocationStore keeps revoked refresh-token ids and per-user cutoffs in memory.
type RevocationStore struct {
	mu    sync.RWMutex
	jtis  map[string]time.Time // jti -> expiresAt
	users map[int64]revocation
	now   func() time.Time
}

func NewRevocationStore() *RevocationStore {
	return &RevocationStore{
		jtis:  make(map[string]time.Time),
		users: make(map[int64]revocation),
		now:   time.Now,
	}
}

func (s *RevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jtis[jti] = s.now().Add(ttl)
	return nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	s.mu.RLock()
	exp, ok := s.jtis[jti]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if s.now().After(exp) {
		s.mu.Lock()
		delete(s.jtis, jti)
		s.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (s *RevocationStore) RevokeUser(ctx context.Context, userID int64, at time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = revocation{at: at, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *RevocationStore) UserRevokedAt(ctx context.Context, userID int64) (time.Time, bool, error) {
	s.mu.RLock()
	r, ok := s.users[userID]
	s.mu.RUnlock()
	if !ok || s.now().After(r.expiresAt) {
		return time.Time{}, false, nil
	}
	return r.at, true, nil
}
