package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/hostchat/internal/apperr"
	"github.com/lalith-99/hostchat/internal/models"
)

const notificationColumns = `id, user_id, title, content, type, is_read, timestamp, metadata`

type NotificationStore struct {
	pool *pgxpool.Pool
}

func NewNotificationStore(pool *pgxpool.Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

func scanNotification(row pgx.Row) (*models.Notification, error) {
	var (
		n   models.Notification
		raw []byte
	)
	err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.Type, &n.IsRead, &n.Timestamp, &raw)
	if err != nil {
		return nil, err
	}
	if n.Metadata, err = decodeMetadata(raw); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *NotificationStore) Create(ctx context.Context, in models.NewNotification) (*models.Notification, error) {
	meta, err := encodeMetadata(in.Metadata)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO notifications (user_id, title, content, type, metadata, timestamp)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING ` + notificationColumns

	n, err := scanNotification(s.pool.QueryRow(ctx, query, in.UserID, in.Title, in.Content, in.Type, meta))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: user %d", apperr.ErrNotFound, in.UserID)
		}
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

func (s *NotificationStore) GetByID(ctx context.Context, id int64) (*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	n, err := scanNotification(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

func (s *NotificationStore) ListByUser(ctx context.Context, userID int64) ([]models.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1
		ORDER BY timestamp DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]models.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE notifications SET is_read = true WHERE id = $1 AND NOT is_read`, id)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
