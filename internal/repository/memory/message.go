package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/lalith-99/hostchat/internal/apperr"
	"github.com/lalith-99/hostchat/internal/models"
)

type MessageStore struct {
	db *DB
}

func (s *MessageStore) Create(ctx context.Context, in models.NewMessage) (*models.Message, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.users[in.SenderID]; !ok {
		return nil, fmt.Errorf("%w: sender %d", apperr.ErrNotFound, in.SenderID)
	}
	if _, ok := s.db.users[in.ReceiverID]; !ok {
		return nil, fmt.Errorf("%w: receiver %d", apperr.ErrNotFound, in.ReceiverID)
	}

	now := s.db.now()
	if now.Before(s.db.lastMessageAt) {
		now = s.db.lastMessageAt
	}
	s.db.lastMessageAt = now
	s.db.nextMessageID++

	msg := &models.Message{
		ID:          s.db.nextMessageID,
		SenderID:    in.SenderID,
		ReceiverID:  in.ReceiverID,
		Content:     in.Content,
		ContentType: in.ContentType,
		MediaURL:    in.MediaURL,
		Timestamp:   now,
		Metadata:    maps.Clone(in.Metadata),
	}
	s.db.messages[msg.ID] = msg

	out := copyMessage(msg)
	return &out, nil
}

func (s *MessageStore) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	m, ok := s.db.messages[id]
	if !ok {
		return nil, nil
	}
	out := copyMessage(m)
	return &out, nil
}

func (s *MessageStore) ListBetween(ctx context.Context, a, b int64) ([]models.Message, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	messages := make([]models.Message, 0)
	for _, m := range s.db.messages {
		if m.Between(a, b) {
			messages = append(messages, copyMessage(m))
		}
	}
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].Before(&messages[j])
	})
	return messages, nil
}

func (s *MessageStore) MarkDelivered(ctx context.Context, id int64) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	m, ok := s.db.messages[id]
	if !ok || m.IsDelivered {
		return false, nil
	}
	m.IsDelivered = true
	return true, nil
}

func (s *MessageStore) MarkRead(ctx context.Context, senderID, receiverID int64) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var n int64
	for _, m := range s.db.messages {
		if m.SenderID == senderID && m.ReceiverID == receiverID && !m.IsRead {
			m.IsRead = true
			m.IsDelivered = true
			n++
		}
	}
	return n, nil
}

func (s *MessageStore) DeleteBetween(ctx context.Context, a, b int64) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var n int64
	for id, m := range s.db.messages {
		if m.Between(a, b) {
			delete(s.db.messages, id)
			n++
		}
	}
	return n, nil
}

func (s *MessageStore) Stats(ctx context.Context, since time.Time) (models.MessageStats, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var st models.MessageStats
	for _, m := range s.db.messages {
		st.Total++
		if !m.Timestamp.Before(since) {
			st.Today++
		}
		if m.ContentType == models.ContentFinancial {
			st.Financial++
		}
	}
	return st, nil
}
