package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/lalith-99/hostchat/internal/models"
)

type MessageStore struct {
	db *gorm.DB
}

func encodeMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}

func decodeMetadata(s string) map[string]any {
	if s == "" {
		return nil
	}
	var m map[string]any
	if json.Unmarshal([]byte(s), &m) != nil {
		return nil
	}
	return m
}

func (r *messageRow) model() models.Message {
	return models.Message{
		ID:          r.ID,
		SenderID:    r.SenderID,
		ReceiverID:  r.ReceiverID,
		Content:     r.Content,
		ContentType: models.ContentType(r.ContentType),
		MediaURL:    r.MediaURL,
		Timestamp:   time.Unix(0, r.Timestamp).UTC(),
		IsRead:      r.IsRead,
		IsDelivered: r.IsDelivered,
		Metadata:    decodeMetadata(r.Metadata),
	}
}

// Create reads the newest timestamp inside the insert transaction and never
// goes below it, so timestamps follow insert order even if the host clock
// steps back.
func (s *MessageStore) Create(ctx context.Context, in models.NewMessage) (*models.Message, error) {
	meta, err := encodeMetadata(in.Metadata)
	if err != nil {
		return nil, err
	}

	row := messageRow{
		SenderID:    in.SenderID,
		ReceiverID:  in.ReceiverID,
		Content:     in.Content,
		ContentType: string(in.ContentType),
		MediaURL:    in.MediaURL,
		Metadata:    meta,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUsers(tx, in.SenderID, in.ReceiverID); err != nil {
			return err
		}
		var last int64
		if err := tx.Model(&messageRow{}).Select("COALESCE(MAX(timestamp), 0)").Scan(&last).Error; err != nil {
			return err
		}
		row.Timestamp = max(time.Now().UnixNano(), last)
		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	msg := row.model()
	return &msg, nil
}

func (s *MessageStore) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	var row messageRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	msg := row.model()
	return &msg, nil
}

func (s *MessageStore) ListBetween(ctx context.Context, a, b int64) ([]models.Message, error) {
	var rows []messageRow
	err := s.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Order("timestamp, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	messages := make([]models.Message, 0, len(rows))
	for i := range rows {
		messages = append(messages, rows[i].model())
	}
	return messages, nil
}

func (s *MessageStore) MarkDelivered(ctx context.Context, id int64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&messageRow{}).
		Where("id = ? AND is_delivered = ?", id, false).
		Update("is_delivered", true)
	if res.Error != nil {
		return false, fmt.Errorf("mark delivered: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *MessageStore) MarkRead(ctx context.Context, senderID, receiverID int64) (int64, error) {
	res := s.db.WithContext(ctx).Model(&messageRow{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", senderID, receiverID, false).
		Updates(map[string]any{"is_read": true, "is_delivered": true})
	if res.Error != nil {
		return 0, fmt.Errorf("mark read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *MessageStore) DeleteBetween(ctx context.Context, a, b int64) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Delete(&messageRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete conversation: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *MessageStore) Stats(ctx context.Context, since time.Time) (models.MessageStats, error) {
	var st models.MessageStats
	db := s.db.WithContext(ctx).Model(&messageRow{})

	if err := db.Count(&st.Total).Error; err != nil {
		return st, fmt.Errorf("count messages: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&messageRow{}).
		Where("timestamp >= ?", since.UnixNano()).Count(&st.Today).Error; err != nil {
		return st, fmt.Errorf("count messages today: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&messageRow{}).
		Where("content_type = ?", string(models.ContentFinancial)).Count(&st.Financial).Error; err != nil {
		return st, fmt.Errorf("count financial messages: %w", err)
	}
	return st, nil
}
