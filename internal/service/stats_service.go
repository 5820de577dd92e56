package service

import (
	"context"
	"time"

	"github.com/lalith-99/hostchat/internal/models"
	"github.com/lalith-99/hostchat/internal/repository"
)

type StatsService struct {
	users    repository.UserRepository
	messages repository.MessageRepository
	now      func() time.Time
}

func NewStatsService(store *repository.Store) *StatsService {
	return &StatsService{users: store.Users, messages: store.Messages, now: time.Now}
}

// Dashboard computes the admin overview for adminID. "Today" starts at UTC
// midnight.
func (s *StatsService) Dashboard(ctx context.Context, adminID int64) (*models.DashboardStats, error) {
	hosts, err := s.users.List(ctx, repository.UserFilter{Role: models.RoleHost})
	if err != nil {
		return nil, err
	}

	out := &models.DashboardStats{Hosts: len(hosts)}
	for _, h := range hosts {
		if h.IsOnline {
			out.ActiveHosts++
		}
		conv, err := s.messages.ListBetween(ctx, adminID, h.ID)
		if err != nil {
			return nil, err
		}
		out.UnreadForAdmin += unreadFrom(conv, h.ID, adminID)
	}

	now := s.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	out.Messages, err = s.messages.Stats(ctx, midnight)
	if err != nil {
		return nil, err
	}
	return out, nil
}
