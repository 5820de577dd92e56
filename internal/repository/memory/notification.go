package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"

	"github.com/lalith-99/hostchat/internal/apperr"
	"github.com/lalith-99/hostchat/internal/models"
)

type NotificationStore struct {
	db *DB
}

func (s *NotificationStore) Create(ctx context.Context, in models.NewNotification) (*models.Notification, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.users[in.UserID]; !ok {
		return nil, fmt.Errorf("%w: user %d", apperr.ErrNotFound, in.UserID)
	}

	s.db.nextNotificationID++
	n := &models.Notification{
		ID:        s.db.nextNotificationID,
		UserID:    in.UserID,
		Title:     in.Title,
		Content:   in.Content,
		Type:      in.Type,
		Timestamp: s.db.now(),
		Metadata:  maps.Clone(in.Metadata),
	}
	s.db.notifications[n.ID] = n

	out := copyNotification(n)
	return &out, nil
}

func (s *NotificationStore) GetByID(ctx context.Context, id int64) (*models.Notification, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	n, ok := s.db.notifications[id]
	if !ok {
		return nil, nil
	}
	out := copyNotification(n)
	return &out, nil
}

func (s *NotificationStore) ListByUser(ctx context.Context, userID int64) ([]models.Notification, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := make([]models.Notification, 0)
	for _, n := range s.db.notifications {
		if n.UserID == userID {
			out = append(out, copyNotification(n))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, id int64) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	n, ok := s.db.notifications[id]
	if !ok || n.IsRead {
		return false, nil
	}
	n.IsRead = true
	return true, nil
}
