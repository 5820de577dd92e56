package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/lalith-99/hostchat/internal/models"
)

type NotificationStore struct {
	db *gorm.DB
}

func (r *notificationRow) model() models.Notification {
	return models.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		Content:   r.Content,
		Type:      models.NotificationType(r.Type),
		IsRead:    r.IsRead,
		Timestamp: r.Timestamp,
		Metadata:  decodeMetadata(r.Metadata),
	}
}

func (s *NotificationStore) Create(ctx context.Context, in models.NewNotification) (*models.Notification, error) {
	meta, err := encodeMetadata(in.Metadata)
	if err != nil {
		return nil, err
	}
	row := notificationRow{
		UserID:    in.UserID,
		Title:     in.Title,
		Content:   in.Content,
		Type:      string(in.Type),
		Timestamp: time.Now().UTC(),
		Metadata:  meta,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUsers(tx, in.UserID); err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	n := row.model()
	return &n, nil
}

func (s *NotificationStore) GetByID(ctx context.Context, id int64) (*models.Notification, error) {
	var row notificationRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	n := row.model()
	return &n, nil
}

func (s *NotificationStore) ListByUser(ctx context.Context, userID int64) ([]models.Notification, error) {
	var rows []notificationRow
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("timestamp DESC, id DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out := make([]models.Notification, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].model())
	}
	return out, nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, id int64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&notificationRow{}).
		Where("id = ? AND is_read = ?", id, false).
		Update("is_read", true)
	if res.Error != nil {
		return false, fmt.Errorf("mark notification read: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
