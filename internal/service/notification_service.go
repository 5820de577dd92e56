package service

import (
	"context"

	"github.com/lalith-99/hostchat/internal/models"
)

// NotificationService serves the host dashboard feed. Rows are owned by
// MessageService.
type NotificationService struct {
	messages *MessageService
}

func NewNotificationService(messages *MessageService) *NotificationService {
	return &NotificationService{messages: messages}
}

// Feed is a user's notification list with the number still unread.
type Feed struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
}

func (s *NotificationService) List(ctx context.Context, userID int64) (*Feed, error) {
	list, err := s.messages.Notifications(ctx, userID)
	if err != nil {
		return nil, err
	}
	feed := &Feed{Notifications: list}
	for i := range list {
		if !list[i].IsRead {
			feed.Unread++
		}
	}
	return feed, nil
}

func (s *NotificationService) Create(ctx context.Context, in models.NewNotification) (*models.Notification, error) {
	return s.messages.Notify(ctx, in)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID int64) error {
	return s.messages.MarkNotificationRead(ctx, userID, notificationID)
}
