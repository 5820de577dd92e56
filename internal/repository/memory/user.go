package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lalith-99/hostchat/internal/apperr"
	"github.com/lalith-99/hostchat/internal/models"
	"github.com/lalith-99/hostchat/internal/repository"
)

type UserStore struct {
	db *DB
}

func (s *UserStore) Create(ctx context.Context, u models.User) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, existing := range s.db.users {
		if existing.Username == u.Username {
			return nil, fmt.Errorf("%w: username %q already exists", apperr.ErrConflict, u.Username)
		}
	}

	s.db.nextUserID++
	now := s.db.now()
	u.ID = s.db.nextUserID
	u.CreatedAt = now
	if u.LastSeen.IsZero() {
		u.LastSeen = now
	}
	s.db.users[u.ID] = &u
	return copyUser(&u), nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	u, ok := s.db.users[id]
	if !ok {
		return nil, nil
	}
	return copyUser(u), nil
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, u := range s.db.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (s *UserStore) List(ctx context.Context, filter repository.UserFilter) ([]models.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	users := make([]models.User, 0, len(s.db.users))
	for _, u := range s.db.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		users = append(users, *u)
	}

	sort.Slice(users, func(i, j int) bool {
		a, b := users[i], users[j]
		if a.IsOnline != b.IsOnline {
			return a.IsOnline
		}
		if !a.LastSeen.Equal(b.LastSeen) {
			return a.LastSeen.After(b.LastSeen)
		}
		return a.ID < b.ID
	})
	return users, nil
}

func (s *UserStore) Update(ctx context.Context, id int64, upd repository.UserUpdate) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	u, ok := s.db.users[id]
	if !ok {
		return nil, nil
	}

	if upd.Username != nil && *upd.Username != u.Username {
		for _, other := range s.db.users {
			if other.ID != id && other.Username == *upd.Username {
				return nil, fmt.Errorf("%w: username %q already exists", apperr.ErrConflict, *upd.Username)
			}
		}
		u.Username = *upd.Username
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.ProfilePicture != nil {
		u.ProfilePicture = *upd.ProfilePicture
	}
	if upd.IsOnline != nil {
		u.IsOnline = *upd.IsOnline
	}
	return copyUser(u), nil
}

func (s *UserStore) SetPresence(ctx context.Context, id int64, online bool, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if u, ok := s.db.users[id]; ok {
		u.IsOnline = online
		u.LastSeen = at.UTC()
	}
	return nil
}

func (s *UserStore) DeleteCascade(ctx context.Context, id int64) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.users[id]; !ok {
		return false, nil
	}
	for mid, m := range s.db.messages {
		if m.SenderID == id || m.ReceiverID == id {
			delete(s.db.messages, mid)
		}
	}
	for nid, n := range s.db.notifications {
		if n.UserID == id {
			delete(s.db.notifications, nid)
		}
	}
	delete(s.db.users, id)
	return true, nil
}
