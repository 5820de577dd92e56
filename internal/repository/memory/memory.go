// Package memory keeps every record in process memory. It backs the test
// suites and STORE_DRIVER=memory for local runs; nothing survives a restart.
package memory

import (
	"maps"
	"sync"
	"time"

	"github.com/lalith-99/hostchat/internal/models"
	"github.com/lalith-99/hostchat/internal/repository"
)

type Option func(*DB)

// WithClock replaces time.Now as the source of timestamps.
func WithClock(clock func() time.Time) Option {
	return func(db *DB) {
		db.clock = clock
	}
}

// DB is the shared state behind the three repositories. A single RWMutex
// guards all of it, so every method is atomic with respect to the others.
type DB struct {
	mu    sync.RWMutex
	clock func() time.Time

	users         map[int64]*models.User
	messages      map[int64]*models.Message
	notifications map[int64]*models.Notification

	nextUserID         int64
	nextMessageID      int64
	nextNotificationID int64

	// lastMessageAt keeps message timestamps non-decreasing even if the
	// wall clock steps backwards.
	lastMessageAt time.Time
}

func New(opts ...Option) *DB {
	db := &DB{
		clock:         time.Now,
		users:         make(map[int64]*models.User),
		messages:      make(map[int64]*models.Message),
		notifications: make(map[int64]*models.Notification),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Store exposes the DB through the repository interfaces.
func (db *DB) Store() *repository.Store {
	return &repository.Store{
		Users:         &UserStore{db: db},
		Messages:      &MessageStore{db: db},
		Notifications: &NotificationStore{db: db},
	}
}

func (db *DB) now() time.Time {
	return db.clock().UTC()
}

func copyUser(u *models.User) *models.User {
	out := *u
	return &out
}

func copyMessage(m *models.Message) models.Message {
	out := *m
	out.Metadata = maps.Clone(m.Metadata)
	return out
}

func copyNotification(n *models.Notification) models.Notification {
	out := *n
	out.Metadata = maps.Clone(n.Metadata)
	return out
}
