package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/hostchat/internal/apperr"
	"github.com/lalith-99/hostchat/internal/models"
)

const messageColumns = `id, sender_id, receiver_id, content, content_type, media_url,
	timestamp, is_read, is_delivered, metadata`

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var (
		msg models.Message
		raw []byte
	)
	err := row.Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.ReceiverID,
		&msg.Content,
		&msg.ContentType,
		&msg.MediaURL,
		&msg.Timestamp,
		&msg.IsRead,
		&msg.IsDelivered,
		&raw,
	)
	if err != nil {
		return nil, err
	}
	if msg.Metadata, err = decodeMetadata(raw); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Create uses clock_timestamp() rather than now(): now() is frozen for the
// whole transaction, clock_timestamp() is the actual insert time. Ties are
// broken by the bigserial id when reading.
func (s *MessageStore) Create(ctx context.Context, in models.NewMessage) (*models.Message, error) {
	meta, err := encodeMetadata(in.Metadata)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO messages (sender_id, receiver_id, content, content_type, media_url, metadata, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, clock_timestamp())
		RETURNING ` + messageColumns

	msg, err := scanMessage(s.pool.QueryRow(ctx, query,
		in.SenderID,
		in.ReceiverID,
		in.Content,
		in.ContentType,
		in.MediaURL,
		meta,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: sender %d or receiver %d", apperr.ErrNotFound, in.SenderID, in.ReceiverID)
		}
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	msg, err := scanMessage(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) ListBetween(ctx context.Context, a, b int64) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY timestamp, id`

	rows, err := s.pool.Query(ctx, query, a, b)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// MarkDelivered only touches undelivered rows, so calling it twice changes
// nothing the second time.
func (s *MessageStore) MarkDelivered(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE messages SET is_delivered = true WHERE id = $1 AND NOT is_delivered`, id)
	if err != nil {
		return false, fmt.Errorf("mark delivered: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkRead is a single UPDATE, so a concurrent reader sees either none or
// all of the affected rows flipped.
func (s *MessageStore) MarkRead(ctx context.Context, senderID, receiverID int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages SET is_read = true, is_delivered = true
		WHERE sender_id = $1 AND receiver_id = $2 AND NOT is_read`,
		senderID, receiverID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *MessageStore) DeleteBetween(ctx context.Context, a, b int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)`,
		a, b)
	if err != nil {
		return 0, fmt.Errorf("delete conversation: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *MessageStore) Stats(ctx context.Context, since time.Time) (models.MessageStats, error) {
	query := `
		SELECT count(*),
		       count(*) FILTER (WHERE timestamp >= $1),
		       count(*) FILTER (WHERE content_type = 'financial')
		FROM messages`

	var st models.MessageStats
	if err := s.pool.QueryRow(ctx, query, since).Scan(&st.Total, &st.Today, &st.Financial); err != nil {
		return models.MessageStats{}, fmt.Errorf("message stats: %w", err)
	}
	return st, nil
}
