package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lalith-99/hostchat/internal/events"
	"github.com/lalith-99/hostchat/internal/models"
	"github.com/lalith-99/hostchat/internal/repository"
	"github.com/lalith-99/hostchat/internal/repository/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errStoreDown = errors.New("store down")

// stepClock returns a strictly increasing time on every call.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), step: time.Minute}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

type fixture struct {
	store    *repository.Store
	bus      *events.LocalBus
	messages *MessageService
	contacts *ContactService
	fanout   *FanoutService
	users    *UserService
	notes    *NotificationService
	stats    *StatsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memory.New(memory.WithClock(newStepClock().Now)).Store())
}

func newFixtureWithStore(t *testing.T, store *repository.Store) *fixture {
	t.Helper()

	logger := zap.NewNop()
	bus := events.NewLocalBus()
	t.Cleanup(func() { _ = bus.Close() })

	messages := NewMessageService(store, bus, logger)
	return &fixture{
		store:    store,
		bus:      bus,
		messages: messages,
		contacts: NewContactService(store, messages, bus, logger),
		fanout:   NewFanoutService(store, messages, logger),
		users:    NewUserService(store, messages, logger),
		notes:    NewNotificationService(messages),
		stats:    NewStatsService(store),
	}
}

func (f *fixture) addUser(t *testing.T, username string, role models.Role) *models.User {
	t.Helper()
	u, err := f.store.Users.Create(context.Background(), models.User{
		Username:     username,
		PasswordHash: "x",
		Role:         role,
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) send(t *testing.T, from, to int64, text string) *models.Message {
	t.Helper()
	m, err := f.messages.Append(context.Background(), AppendParams{
		SenderID:   from,
		ReceiverID: to,
		Content:    text,
	})
	require.NoError(t, err)
	return m
}

// flakyMessages fails Create for one receiver and delegates everything else.
type flakyMessages struct {
	repository.MessageRepository
	failFor int64
}

func (r *flakyMessages) Create(ctx context.Context, in models.NewMessage) (*models.Message, error) {
	if in.ReceiverID == r.failFor {
		return nil, errStoreDown
	}
	return r.MessageRepository.Create(ctx, in)
}

// flakyNotifications fails Create for one user.
type flakyNotifications struct {
	repository.NotificationRepository
	failFor int64
}

func (r *flakyNotifications) Create(ctx context.Context, in models.NewNotification) (*models.Notification, error) {
	if in.UserID == r.failFor {
		return nil, errStoreDown
	}
	return r.NotificationRepository.Create(ctx, in)
}

// deleteBeforeInsert deletes one user right before each message insert, so
// the insert always runs after the service's existence check passed.
type deleteBeforeInsert struct {
	repository.MessageRepository
	users  repository.UserRepository
	victim int64
}

func (r *deleteBeforeInsert) Create(ctx context.Context, in models.NewMessage) (*models.Message, error) {
	if _, err := r.users.DeleteCascade(ctx, r.victim); err != nil {
		return nil, err
	}
	return r.MessageRepository.Create(ctx, in)
}

// recordingNotifications remembers every user a notification was written for.
type recordingNotifications struct {
	repository.NotificationRepository
	mu      sync.Mutex
	written []int64
}

func (r *recordingNotifications) Create(ctx context.Context, in models.NewNotification) (*models.Notification, error) {
	r.mu.Lock()
	r.written = append(r.written, in.UserID)
	r.mu.Unlock()
	return r.NotificationRepository.Create(ctx, in)
}
