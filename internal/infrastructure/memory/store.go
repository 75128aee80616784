package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/baechuer/community-service/internal/application/identity"
	"github.com/baechuer/community-service/internal/domain"
)

type state struct {
	users       map[int64]domain.User
	claims      map[int64]domain.EmailAddress
	nextUserID  int64
	nextClaimID int64
}

func (s *state) clone() *state {
	c := &state{
		users:       make(map[int64]domain.User, len(s.users)),
		claims:      make(map[int64]domain.EmailAddress, len(s.claims)),
		nextUserID:  s.nextUserID,
		nextClaimID: s.nextClaimID,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.claims {
		c.claims[k] = v
	}
	return c
}

// Store is an in-memory identity store for dev and tests.
// Transactions are serialised: each works on a private copy that replaces
// the committed state only when fn returns nil.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	st   *state
	now  func() time.Time
}

func NewStore() *Store {
	return &Store{
		st: &state{
			users:  make(map[int64]domain.User),
			claims: make(map[int64]domain.EmailAddress),
		},
		now: time.Now,
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx identity.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return domain.ErrDBUnavailable(err)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.st.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &tx{st: work, now: s.now}); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.st.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserDoesNotExist()
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.st.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserDoesNotExist()
}

func (s *Store) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		if domain.Is(err, domain.CodeUserDoesNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) VerifiedClaimExists(ctx context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.st.claims {
		if c.Email == email && c.IsVerified {
			return true, nil
		}
	}
	return false, nil
}

// Claims returns a snapshot of every email claim, ordered by id.
func (s *Store) Claims() []domain.EmailAddress {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.EmailAddress, 0, len(s.st.claims))
	for _, c := range s.st.claims {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Users returns a snapshot of every user, ordered by id.
func (s *Store) Users() []domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.User, 0, len(s.st.users))
	for _, u := range s.st.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	for _, existing := range t.st.users {
		if existing.Username == u.Username {
			return domain.User{}, domain.ErrUsernameAlreadyExists()
		}
	}
	t.st.nextUserID++
	u.ID = t.st.nextUserID
	if u.DateJoined.IsZero() {
		u.DateJoined = t.now().UTC()
	}
	t.st.users[u.ID] = u
	return u, nil
}

func (t *tx) LockUser(ctx context.Context, id int64) (domain.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserDoesNotExist()
	}
	return u, nil
}

func (t *tx) UsernameTakenByOther(ctx context.Context, username string, id int64) (bool, error) {
	for _, u := range t.st.users {
		if u.Username == username && u.ID != id {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) UpdateUserProfile(ctx context.Context, u domain.User) error {
	cur, ok := t.st.users[u.ID]
	if !ok {
		return domain.ErrUserDoesNotExist()
	}
	cur.Username = u.Username
	cur.FirstName = u.FirstName
	cur.LastName = u.LastName
	t.st.users[u.ID] = cur
	return nil
}

func (t *tx) DeleteUser(ctx context.Context, id int64) error {
	if _, ok := t.st.users[id]; !ok {
		return domain.ErrUserDoesNotExist()
	}
	delete(t.st.users, id)
	for cid, c := range t.st.claims {
		if c.UserID == id {
			delete(t.st.claims, cid)
		}
	}
	return nil
}

func (t *tx) findClaim(email string) (domain.EmailAddress, bool) {
	for _, c := range t.st.claims {
		if c.Email == email {
			return c, true
		}
	}
	return domain.EmailAddress{}, false
}

func (t *tx) LockOrCreateEmailClaim(ctx context.Context, email string, userID int64) (domain.EmailAddress, bool, error) {
	if c, ok := t.findClaim(email); ok {
		return c, false, nil
	}
	t.st.nextClaimID++
	c := domain.EmailAddress{ID: t.st.nextClaimID, UserID: userID, Email: email}
	t.st.claims[c.ID] = c
	return c, true, nil
}

func (t *tx) LockClaimByEmail(ctx context.Context, email string) (domain.EmailAddress, bool, error) {
	c, ok := t.findClaim(email)
	return c, ok, nil
}

func (t *tx) SaveEmailClaim(ctx context.Context, c domain.EmailAddress) error {
	if _, ok := t.st.claims[c.ID]; !ok {
		return domain.ErrInternal(nil)
	}
	if c.IsPrimary {
		for _, other := range t.st.claims {
			if other.ID != c.ID && other.UserID == c.UserID && other.IsPrimary {
				return domain.ErrInternal(nil)
			}
		}
	}
	t.st.claims[c.ID] = c
	return nil
}

func (t *tx) DemoteOtherPrimaryClaims(ctx context.Context, userID, keepClaimID int64) error {
	for id, c := range t.st.claims {
		if c.UserID == userID && c.ID != keepClaimID && c.IsPrimary {
			c.IsPrimary = false
			t.st.claims[id] = c
		}
	}
	return nil
}

func (t *tx) DeleteUsersByEmailExcept(ctx context.Context, email string, keepUserID int64) ([]int64, error) {
	var removed []int64
	for id, u := range t.st.users {
		if u.Email == email && id != keepUserID {
			removed = append(removed, id)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	for _, id := range removed {
		if err := t.DeleteUser(ctx, id); err != nil {
			return nil, err
		}
	}
	return removed, nil
}
