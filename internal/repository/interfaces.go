package repository

import (
	"context"
	"time"

	"github.com/lalith-99/hostchat/internal/models"
)

// Every method takes a context.Context first: all of them may hit the
// network, and a cancelled HTTP request should cancel its queries too.
//
// Lookups return (nil, nil) when the row does not exist. Callers decide
// whether a missing row is an error; most status updates treat it as a no-op
// because a polling client may race with a deletion.

// UserFilter narrows ListUsers. The zero value lists everyone.
type UserFilter struct {
	Role models.Role
}

// UserUpdate carries the mutable profile fields. Nil pointers are left alone.
type UserUpdate struct {
	Username       *string
	PasswordHash   *string
	FirstName      *string
	LastName       *string
	Email          *string
	ProfilePicture *string
	IsOnline       *bool
}

// UserRepository handles user rows.
type UserRepository interface {
	// Create inserts a user and returns it with ID and CreatedAt populated.
	// Returns apperr.ErrConflict when the username is taken.
	Create(ctx context.Context, u models.User) (*models.User, error)

	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// List returns users online first, then by last seen descending, then by id.
	List(ctx context.Context, filter UserFilter) ([]models.User, error)

	// Update applies the non-nil fields. Returns nil, nil if the user is gone.
	Update(ctx context.Context, id int64, upd UserUpdate) (*models.User, error)

	// SetPresence sets the online flag and last seen time. No-op if missing.
	SetPresence(ctx context.Context, id int64, online bool, at time.Time) error

	// DeleteCascade removes every message the user sent or received, every
	// notification of the user and then the user, in one transaction.
	// Returns false if the user did not exist.
	DeleteCascade(ctx context.Context, id int64) (bool, error)
}

// MessageRepository handles 1:1 message rows.
type MessageRepository interface {
	// Create assigns ID and Timestamp. Timestamps come from the store clock,
	// never from the client. The existence of both users is checked in the
	// same step as the insert; a missing one is apperr.ErrNotFound.
	Create(ctx context.Context, msg models.NewMessage) (*models.Message, error)

	GetByID(ctx context.Context, id int64) (*models.Message, error)

	// ListBetween returns every message between a and b in either direction,
	// ordered by timestamp then id, oldest first. Never nil.
	ListBetween(ctx context.Context, a, b int64) ([]models.Message, error)

	// MarkDelivered sets is_delivered on one message. Returns whether a row
	// changed.
	MarkDelivered(ctx context.Context, id int64) (bool, error)

	// MarkRead sets is_read and is_delivered on every unread message from
	// sender to receiver. Returns the number of rows changed.
	MarkRead(ctx context.Context, senderID, receiverID int64) (int64, error)

	// DeleteBetween removes the whole conversation of a and b.
	DeleteBetween(ctx context.Context, a, b int64) (int64, error)

	// Stats counts all messages, those created at or after since, and
	// financial ones.
	Stats(ctx context.Context, since time.Time) (models.MessageStats, error)
}

// NotificationRepository handles dashboard notifications.
type NotificationRepository interface {
	// Create fails with apperr.ErrNotFound when the user does not exist.
	Create(ctx context.Context, n models.NewNotification) (*models.Notification, error)

	GetByID(ctx context.Context, id int64) (*models.Notification, error)

	// ListByUser returns the user's notifications, newest first. Never nil.
	ListByUser(ctx context.Context, userID int64) ([]models.Notification, error)

	// MarkRead flags one notification as read. Returns whether a row changed.
	MarkRead(ctx context.Context, id int64) (bool, error)
}

// Store bundles the repositories of one backend.
type Store struct {
	Users         UserRepository
	Messages      MessageRepository
	Notifications NotificationRepository

	// Close releases the backend. May be nil.
	Close func()
}
