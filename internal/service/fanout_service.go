package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/lalith-99/hostchat/internal/apperr"
	"github.com/lalith-99/hostchat/internal/models"
	"github.com/lalith-99/hostchat/internal/repository"
	"go.uber.org/zap"
)

// FanoutService turns one admin action into independent per-recipient
// writes. There is no transaction across recipients: a failure for one host
// is logged and the loop moves on, and callers only learn the success count.
type FanoutService struct {
	users    repository.UserRepository
	messages *MessageService
	logger   *zap.Logger
}

func NewFanoutService(store *repository.Store, messages *MessageService, logger *zap.Logger) *FanoutService {
	return &FanoutService{
		users:    store.Users,
		messages: messages,
		logger:   logger,
	}
}

type BroadcastParams struct {
	SenderID    int64
	ContentType models.ContentType
	Content     string
	MediaURL    string
}

// Broadcast sends the same message to every host that exists right now and
// returns how many messages were created.
func (s *FanoutService) Broadcast(ctx context.Context, p BroadcastParams) (int, error) {
	if _, err := s.requireAdmin(ctx, p.SenderID); err != nil {
		return 0, err
	}

	// Validate once against a placeholder receiver so a bad payload fails the
	// request instead of failing N times inside the loop.
	probe := AppendParams{
		SenderID:    p.SenderID,
		ReceiverID:  p.SenderID + 1,
		ContentType: p.ContentType,
		Content:     p.Content,
		MediaURL:    p.MediaURL,
	}
	if _, err := normalizeMessage(probe); err != nil {
		return 0, err
	}

	hosts, err := s.users.List(ctx, repository.UserFilter{Role: models.RoleHost})
	if err != nil {
		return 0, fmt.Errorf("list hosts: %w", err)
	}

	sent := 0
	for _, host := range hosts {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if host.ID == p.SenderID {
			continue
		}

		_, err := s.messages.Append(ctx, AppendParams{
			SenderID:    p.SenderID,
			ReceiverID:  host.ID,
			ContentType: p.ContentType,
			Content:     p.Content,
			MediaURL:    p.MediaURL,
		})
		if err != nil {
			s.logger.Warn("broadcast to host failed",
				zap.Int64("sender_id", p.SenderID),
				zap.Int64("host_id", host.ID),
				zap.Error(err),
			)
			continue
		}
		sent++
	}

	s.logger.Info("broadcast sent",
		zap.Int64("sender_id", p.SenderID),
		zap.Int("recipients", len(hosts)),
		zap.Int("sent", sent),
	)
	return sent, nil
}

// FinancialParams describes a financial notice. A nil RecipientID sends it
// to every host.
type FinancialParams struct {
	SenderID    int64
	RecipientID *int64
	Title       string
	Content     string
	Amount      float64
	MediaURL    string
}

// SendFinancial writes a financial notification and a financial chat
// message for each recipient and returns the number of recipients that got
// both.
func (s *FanoutService) SendFinancial(ctx context.Context, p FinancialParams) (int, error) {
	if _, err := s.requireAdmin(ctx, p.SenderID); err != nil {
		return 0, err
	}
	if strings.TrimSpace(p.Title) == "" {
		return 0, fmt.Errorf("%w: title is required", apperr.ErrInvalidArgument)
	}
	if _, ok := ParseAmount(p.Amount); !ok {
		return 0, fmt.Errorf("%w: amount must be a number", apperr.ErrInvalidArgument)
	}

	recipients, err := s.financialRecipients(ctx, p)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, r := range recipients {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if s.sendFinancialTo(ctx, p, r.ID) {
			sent++
		}
	}

	s.logger.Info("financial notice sent",
		zap.Int64("sender_id", p.SenderID),
		zap.Int("recipients", len(recipients)),
		zap.Int("sent", sent),
	)
	return sent, nil
}

func (s *FanoutService) financialRecipients(ctx context.Context, p FinancialParams) ([]models.User, error) {
	if p.RecipientID == nil {
		hosts, err := s.users.List(ctx, repository.UserFilter{Role: models.RoleHost})
		if err != nil {
			return nil, fmt.Errorf("list hosts: %w", err)
		}
		return hosts, nil
	}

	if *p.RecipientID == p.SenderID {
		return nil, fmt.Errorf("%w: cannot send a financial notice to yourself", apperr.ErrInvalidArgument)
	}
	u, err := s.users.GetByID(ctx, *p.RecipientID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: recipient %d", apperr.ErrNotFound, *p.RecipientID)
	}
	return []models.User{*u}, nil
}

// sendFinancialTo writes the notification first, then the message. A
// recipient whose notification failed gets no message; a failed message
// leaves the notification in place.
func (s *FanoutService) sendFinancialTo(ctx context.Context, p FinancialParams, recipientID int64) bool {
	log := s.logger.With(zap.Int64("sender_id", p.SenderID), zap.Int64("recipient_id", recipientID))

	noteMeta := map[string]any{"amount": p.Amount}
	if p.MediaURL != "" {
		noteMeta["media_url"] = p.MediaURL
	}
	_, err := s.messages.Notify(ctx, models.NewNotification{
		UserID:   recipientID,
		Title:    p.Title,
		Content:  p.Content,
		Type:     models.NotificationFinancial,
		Metadata: noteMeta,
	})
	if err != nil {
		log.Warn("financial notification failed", zap.Error(err))
		return false
	}

	_, err = s.messages.Append(ctx, AppendParams{
		SenderID:    p.SenderID,
		ReceiverID:  recipientID,
		ContentType: models.ContentFinancial,
		Content:     p.Content,
		MediaURL:    p.MediaURL,
		Metadata:    map[string]any{"title": p.Title, "amount": p.Amount},
	})
	if err != nil {
		log.Warn("financial message failed", zap.Error(err))
		return false
	}
	return true
}

func (s *FanoutService) requireAdmin(ctx context.Context, userID int64) (*models.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins can fan out", apperr.ErrForbidden)
	}
	return u, nil
}
