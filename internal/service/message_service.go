package service

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lalith-99/hostchat/internal/apperr"
	"github.com/lalith-99/hostchat/internal/events"
	"github.com/lalith-99/hostchat/internal/models"
	"github.com/lalith-99/hostchat/internal/repository"
	"go.uber.org/zap"
)

// MessageService is the only owner of message and notification rows. Every
// other component reads and writes them through it.
type MessageService struct {
	users         repository.UserRepository
	messages      repository.MessageRepository
	notifications repository.NotificationRepository
	bus           events.Publisher
	logger        *zap.Logger
}

func NewMessageService(store *repository.Store, bus events.Publisher, logger *zap.Logger) *MessageService {
	return &MessageService{
		users:         store.Users,
		messages:      store.Messages,
		notifications: store.Notifications,
		bus:           bus,
		logger:        logger,
	}
}

// AppendParams describes a new message. ContentType defaults to text.
type AppendParams struct {
	SenderID    int64
	ReceiverID  int64
	ContentType models.ContentType
	Content     string
	MediaURL    string
	Metadata    map[string]any
}

// Append validates and stores one message.
//
// Both users must exist (apperr.ErrNotFound otherwise). A message to
// oneself, an unknown content type, a media type without a URL, an empty
// text message, or a financial message without a numeric amount are
// apperr.ErrInvalidArgument.
func (s *MessageService) Append(ctx context.Context, p AppendParams) (*models.Message, error) {
	in, err := normalizeMessage(p)
	if err != nil {
		return nil, err
	}

	sender, err := s.users.GetByID(ctx, in.SenderID)
	if err != nil {
		return nil, fmt.Errorf("lookup sender: %w", err)
	}
	if sender == nil {
		return nil, fmt.Errorf("%w: sender %d", apperr.ErrNotFound, in.SenderID)
	}
	receiver, err := s.users.GetByID(ctx, in.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("lookup receiver: %w", err)
	}
	if receiver == nil {
		return nil, fmt.Errorf("%w: receiver %d", apperr.ErrNotFound, in.ReceiverID)
	}

	msg, err := s.messages.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	s.publishPair(ctx, events.MessageCreated, msg.SenderID, msg.ReceiverID, msg.ID)
	return msg, nil
}

// normalizeMessage checks everything that does not need the store.
func normalizeMessage(p AppendParams) (models.NewMessage, error) {
	if p.ContentType == "" {
		p.ContentType = models.ContentText
	}
	if !p.ContentType.Valid() {
		return models.NewMessage{}, fmt.Errorf("%w: unknown content type %q", apperr.ErrInvalidArgument, p.ContentType)
	}
	if p.SenderID == p.ReceiverID {
		return models.NewMessage{}, fmt.Errorf("%w: sender and receiver must differ", apperr.ErrInvalidArgument)
	}
	if p.ContentType == models.ContentText && strings.TrimSpace(p.Content) == "" {
		return models.NewMessage{}, fmt.Errorf("%w: text message needs content", apperr.ErrInvalidArgument)
	}
	if p.ContentType.NeedsMedia() && strings.TrimSpace(p.MediaURL) == "" {
		return models.NewMessage{}, fmt.Errorf("%w: %s message needs a media url", apperr.ErrInvalidArgument, p.ContentType)
	}

	meta := maps.Clone(p.Metadata)
	if p.ContentType == models.ContentFinancial {
		raw, ok := meta["amount"]
		if !ok {
			return models.NewMessage{}, fmt.Errorf("%w: financial message needs an amount", apperr.ErrInvalidArgument)
		}
		amount, ok := ParseAmount(raw)
		if !ok {
			return models.NewMessage{}, fmt.Errorf("%w: amount %v is not a number", apperr.ErrInvalidArgument, raw)
		}
		meta["amount"] = amount
	}

	return models.NewMessage{
		SenderID:    p.SenderID,
		ReceiverID:  p.ReceiverID,
		Content:     p.Content,
		ContentType: p.ContentType,
		MediaURL:    p.MediaURL,
		Metadata:    meta,
	}, nil
}

// ParseAmount accepts JSON numbers and numeric strings ("150.5"), which is
// what HTML number inputs send.
func ParseAmount(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Conversation returns every message between a and b, oldest first, ordered
// by (timestamp, id). The result is the same for (a, b) and (b, a).
func (s *MessageService) Conversation(ctx context.Context, a, b int64) ([]models.Message, error) {
	msgs, err := s.messages.ListBetween(ctx, a, b)
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkDelivered moves one message from sent to delivered. Unknown ids and
// already delivered messages are no-ops.
func (s *MessageService) MarkDelivered(ctx context.Context, id int64) error {
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if msg == nil || msg.IsDelivered {
		return nil
	}

	changed, err := s.messages.MarkDelivered(ctx, id)
	if err != nil {
		return err
	}
	if changed {
		s.publishPair(ctx, events.MessageDelivered, msg.SenderID, msg.ReceiverID, msg.ID)
	}
	return nil
}

// MarkDeliveredAs is MarkDelivered on behalf of a client. Only the receiver
// may acknowledge a message.
func (s *MessageService) MarkDeliveredAs(ctx context.Context, viewerID, id int64) error {
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}
	if msg.ReceiverID != viewerID {
		return fmt.Errorf("%w: only the receiver can acknowledge message %d", apperr.ErrForbidden, id)
	}
	return s.MarkDelivered(ctx, id)
}

// AcknowledgeDelivery marks the viewer's undelivered inbound messages in
// msgs as delivered, updating msgs in place. It is called after a thread has
// been handed to the viewer's client. Failures are logged and skipped.
func (s *MessageService) AcknowledgeDelivery(ctx context.Context, viewerID int64, msgs []models.Message) int {
	n := 0
	for i := range msgs {
		m := &msgs[i]
		if m.ReceiverID != viewerID || m.IsDelivered {
			continue
		}
		changed, err := s.messages.MarkDelivered(ctx, m.ID)
		if err != nil {
			s.logger.Warn("mark delivered failed", zap.Int64("message_id", m.ID), zap.Error(err))
			continue
		}
		m.IsDelivered = true
		if changed {
			n++
			s.publishPair(ctx, events.MessageDelivered, m.SenderID, m.ReceiverID, m.ID)
		}
	}
	return n
}

// MarkRead flags every unread message from -> to as read and delivered.
// Calling it again with nothing new to mark changes nothing.
func (s *MessageService) MarkRead(ctx context.Context, fromUserID, toUserID int64) (int64, error) {
	n, err := s.messages.MarkRead(ctx, fromUserID, toUserID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.publishPair(ctx, events.MessageRead, toUserID, fromUserID, 0)
	}
	return n, nil
}

// DeleteConversation removes every message between a and b.
func (s *MessageService) DeleteConversation(ctx context.Context, a, b int64) (int64, error) {
	n, err := s.messages.DeleteBetween(ctx, a, b)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.publishPair(ctx, events.ConversationClosed, a, b, 0)
	}
	return n, nil
}

// DeleteUserCascade removes the user together with all of their messages
// and notifications as one unit. Returns false if the user did not exist.
func (s *MessageService) DeleteUserCascade(ctx context.Context, userID int64) (bool, error) {
	deleted, err := s.users.DeleteCascade(ctx, userID)
	if err != nil {
		return false, err
	}
	if !deleted {
		return false, nil
	}

	remaining, err := s.users.List(ctx, repository.UserFilter{})
	if err != nil {
		s.logger.Warn("list users after delete", zap.Int64("user_id", userID), zap.Error(err))
		return true, nil
	}
	for _, u := range remaining {
		s.publish(ctx, events.Event{Kind: events.UserDeleted, UserID: u.ID, PeerID: userID})
	}
	return true, nil
}

// publishPair notifies both sides of a conversation.
func (s *MessageService) publishPair(ctx context.Context, kind events.Kind, a, b, messageID int64) {
	s.publish(ctx, events.Event{Kind: kind, UserID: a, PeerID: b, MessageID: messageID})
	s.publish(ctx, events.Event{Kind: kind, UserID: b, PeerID: a, MessageID: messageID})
}

// publish is best effort. The write already happened; a lost event only
// delays the next refresh.
func (s *MessageService) publish(ctx context.Context, ev events.Event) {
	if s.bus == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish event failed",
			zap.String("kind", string(ev.Kind)),
			zap.Int64("user_id", ev.UserID),
			zap.Error(err),
		)
	}
}
