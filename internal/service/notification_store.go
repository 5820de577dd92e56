package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/lalith-99/hostchat/internal/apperr"
	"github.com/lalith-99/hostchat/internal/models"
)

// Notify stores a dashboard notification. Type defaults to general; the
// title is required and the user must exist.
func (s *MessageService) Notify(ctx context.Context, in models.NewNotification) (*models.Notification, error) {
	if in.Type == "" {
		in.Type = models.NotificationGeneral
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown notification type %q", apperr.ErrInvalidArgument, in.Type)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", apperr.ErrInvalidArgument)
	}
	u, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %d", apperr.ErrNotFound, in.UserID)
	}
	return s.notifications.Create(ctx, in)
}

// Notifications returns the user's notifications, newest first.
func (s *MessageService) Notifications(ctx context.Context, userID int64) ([]models.Notification, error) {
	return s.notifications.ListByUser(ctx, userID)
}

// MarkNotificationRead flags one of viewerID's notifications as read.
// Unknown ids are a no-op; somebody else's notification is forbidden.
func (s *MessageService) MarkNotificationRead(ctx context.Context, viewerID, id int64) error {
	n, err := s.notifications.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n == nil {
		return nil
	}
	if n.UserID != viewerID {
		return fmt.Errorf("%w: notification %d belongs to another user", apperr.ErrForbidden, id)
	}
	_, err = s.notifications.MarkRead(ctx, id)
	return err
}
