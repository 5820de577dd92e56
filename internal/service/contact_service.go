package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lalith-99/hostchat/internal/apperr"
	"github.com/lalith-99/hostchat/internal/events"
	"github.com/lalith-99/hostchat/internal/models"
	"github.com/lalith-99/hostchat/internal/repository"
	"go.uber.org/zap"
)

// ContactService derives a viewer's inbox. Nothing here is stored: every
// call recomputes the whole list from the message store.
type ContactService struct {
	users    repository.UserRepository
	messages *MessageService
	bus      events.Subscriber
	logger   *zap.Logger
}

func NewContactService(store *repository.Store, messages *MessageService, bus events.Subscriber, logger *zap.Logger) *ContactService {
	return &ContactService{
		users:    store.Users,
		messages: messages,
		bus:      bus,
		logger:   logger,
	}
}

// Contacts returns the viewer's contact list, unread conversations first and
// most recent activity first within each group.
//
// An admin sees every host. A host sees the admins and every other host.
func (s *ContactService) Contacts(ctx context.Context, viewerID int64) ([]models.ChatContact, error) {
	viewer, err := s.users.GetByID(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if viewer == nil {
		return nil, fmt.Errorf("%w: user %d", apperr.ErrNotFound, viewerID)
	}

	candidates, err := s.candidates(ctx, viewer)
	if err != nil {
		return nil, err
	}

	contacts := make([]models.ChatContact, 0, len(candidates))
	for _, c := range candidates {
		contact := models.ChatContact{User: c}

		conv, err := s.messages.Conversation(ctx, viewer.ID, c.ID)
		if err != nil {
			// One broken thread should not blank the whole sidebar.
			s.logger.Warn("load conversation for contact",
				zap.Int64("viewer_id", viewer.ID),
				zap.Int64("contact_id", c.ID),
				zap.Error(err),
			)
			contacts = append(contacts, contact)
			continue
		}

		if len(conv) > 0 {
			last := conv[len(conv)-1]
			contact.LastMessage = &last
		}
		contact.UnreadCount = unreadFrom(conv, c.ID, viewer.ID)
		contacts = append(contacts, contact)
	}

	SortContacts(contacts)
	return contacts, nil
}

func (s *ContactService) candidates(ctx context.Context, viewer *models.User) ([]models.User, error) {
	if viewer.IsAdmin() {
		return s.users.List(ctx, repository.UserFilter{Role: models.RoleHost})
	}

	all, err := s.users.List(ctx, repository.UserFilter{})
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(all))
	for _, u := range all {
		if u.ID != viewer.ID {
			out = append(out, u)
		}
	}
	return out, nil
}

func unreadFrom(conv []models.Message, senderID, receiverID int64) int {
	n := 0
	for i := range conv {
		m := &conv[i]
		if m.SenderID == senderID && m.ReceiverID == receiverID && !m.IsRead {
			n++
		}
	}
	return n
}

// SortContacts orders contacts in place. Contacts with unread messages come
// before all others; within each group the newest preview comes first and a
// contact without messages sorts as if its last message were at the epoch.
// Equal keys fall back to user id so repeated refreshes render identically.
func SortContacts(contacts []models.ChatContact) {
	sort.SliceStable(contacts, func(i, j int) bool {
		ui, uj := contacts[i].UnreadCount > 0, contacts[j].UnreadCount > 0
		if ui != uj {
			return ui
		}
		ti, tj := previewTime(contacts[i]), previewTime(contacts[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return contacts[i].User.ID < contacts[j].User.ID
	})
}

func previewTime(c models.ChatContact) time.Time {
	if c.LastMessage == nil {
		return time.Unix(0, 0).UTC()
	}
	return c.LastMessage.Timestamp
}

// OpenResult is what a client needs after selecting a contact.
type OpenResult struct {
	Contacts []models.ChatContact `json:"contacts"`
	Messages []models.Message     `json:"messages"`
	Marked   int64                `json:"marked_read"`
}

// Open marks everything the contact sent to the viewer as read and returns
// the refreshed contact list together with the thread, so the sidebar and
// the open conversation agree after a single round trip.
func (s *ContactService) Open(ctx context.Context, viewerID, contactID int64) (*OpenResult, error) {
	if viewerID == contactID {
		return nil, fmt.Errorf("%w: cannot open a conversation with yourself", apperr.ErrInvalidArgument)
	}
	contact, err := s.users.GetByID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, fmt.Errorf("%w: user %d", apperr.ErrNotFound, contactID)
	}

	marked, err := s.messages.MarkRead(ctx, contactID, viewerID)
	if err != nil {
		return nil, err
	}

	thread, err := s.messages.Conversation(ctx, viewerID, contactID)
	if err != nil {
		return nil, err
	}
	contacts, err := s.Contacts(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	return &OpenResult{Contacts: contacts, Messages: thread, Marked: marked}, nil
}

// Wait blocks until an event for the viewer arrives, the timeout elapses or
// ctx is done, and then returns the current contact list. It returns the
// list either way; the event only decides how early.
func (s *ContactService) Wait(ctx context.Context, viewerID int64, timeout time.Duration) ([]models.ChatContact, error) {
	if s.bus != nil && timeout > 0 {
		s.waitForEvent(ctx, viewerID, timeout)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Contacts(ctx, viewerID)
}

func (s *ContactService) waitForEvent(ctx context.Context, viewerID int64, timeout time.Duration) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch, unsubscribe, err := s.bus.Subscribe(waitCtx, viewerID)
	if err != nil {
		s.logger.Warn("subscribe for long poll", zap.Int64("user_id", viewerID), zap.Error(err))
		return
	}
	defer unsubscribe()

	select {
	case <-ch:
	case <-waitCtx.Done():
	}
}
