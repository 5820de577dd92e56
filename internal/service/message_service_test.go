package service

import (
	"context"
	"testing"
	"time"

	"github.com/lalith-99/hostchat/internal/apperr"
	"github.com/lalith-99/hostchat/internal/events"
	"github.com/lalith-99/hostchat/internal/models"
	"github.com/lalith-99/hostchat/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConversationOrderAndSymmetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin := f.addUser(t, "admin", models.RoleAdmin)
	sara := f.addUser(t, "sara", models.RoleHost)

	m1 := f.send(t, sara.ID, admin.ID, "hello")
	m2 := f.send(t, admin.ID, sara.ID, "hi sara")
	m3 := f.send(t, sara.ID, admin.ID, "question")

	conv, err := f.messages.Conversation(ctx, admin.ID, sara.ID)
	require.NoError(t, err)
	require.Len(t, conv, 3)
	assert.Equal(t, []int64{m1.ID, m2.ID, m3.ID}, []int64{conv[0].ID, conv[1].ID, conv[2].ID})
	assert.True(t, conv[0].Timestamp.Before(conv[1].Timestamp))

	reversed, err := f.messages.Conversation(ctx, sara.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, conv, reversed)

	unread, err := f.contacts.Contacts(ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, 2, unread[0].UnreadCount)

	n, err := f.messages.MarkRead(ctx, sara.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	after, err := f.contacts.Contacts(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after[0].UnreadCount)
}

func TestAppendValidation(t *testing.T) {
	f := newFixture(t)
	admin := f.addUser(t, "admin", models.RoleAdmin)
	host := f.addUser(t, "host1", models.RoleHost)

	tcases := []struct {
		name   string
		params AppendParams
		want   error
	}{
		{
			name:   "unknown receiver",
			params: AppendParams{SenderID: admin.ID, ReceiverID: 999, Content: "hi"},
			want:   apperr.ErrNotFound,
		},
		{
			name:   "unknown sender",
			params: AppendParams{SenderID: 999, ReceiverID: host.ID, Content: "hi"},
			want:   apperr.ErrNotFound,
		},
		{
			name:   "to self",
			params: AppendParams{SenderID: admin.ID, ReceiverID: admin.ID, Content: "hi"},
			want:   apperr.ErrInvalidArgument,
		},
		{
			name:   "unknown content type",
			params: AppendParams{SenderID: admin.ID, ReceiverID: host.ID, ContentType: "gif", Content: "hi"},
			want:   apperr.ErrInvalidArgument,
		},
		{
			name:   "empty text",
			params: AppendParams{SenderID: admin.ID, ReceiverID: host.ID, Content: "  "},
			want:   apperr.ErrInvalidArgument,
		},
		{
			name:   "image without url",
			params: AppendParams{SenderID: admin.ID, ReceiverID: host.ID, ContentType: models.ContentImage},
			want:   apperr.ErrInvalidArgument,
		},
		{
			name: "financial without amount",
			params: AppendParams{
				SenderID: admin.ID, ReceiverID: host.ID, ContentType: models.ContentFinancial,
				Metadata: map[string]any{"title": "Payout"},
			},
			want: apperr.ErrInvalidArgument,
		},
		{
			name: "financial with text amount",
			params: AppendParams{
				SenderID: admin.ID, ReceiverID: host.ID, ContentType: models.ContentFinancial,
				Metadata: map[string]any{"title": "Payout", "amount": "lots"},
			},
			want: apperr.ErrInvalidArgument,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.messages.Append(context.Background(), tc.params)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAppendFinancialNormalizesAmount(t *testing.T) {
	f := newFixture(t)
	admin := f.addUser(t, "admin", models.RoleAdmin)
	host := f.addUser(t, "host1", models.RoleHost)

	m, err := f.messages.Append(context.Background(), AppendParams{
		SenderID:    admin.ID,
		ReceiverID:  host.ID,
		ContentType: models.ContentFinancial,
		Content:     "March payout",
		Metadata:    map[string]any{"title": "Payout", "amount": "150.50"},
	})
	require.NoError(t, err)
	assert.Equal(t, 150.5, m.Metadata["amount"])
	assert.Equal(t, "Payout", m.Metadata["title"])
	assert.Equal(t, models.StatusSent, m.Status())
}

func TestMessageStatusIsMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.addUser(t, "admin", models.RoleAdmin)
	host := f.addUser(t, "host1", models.RoleHost)

	m := f.send(t, admin.ID, host.ID, "hello")

	require.NoError(t, f.messages.MarkDelivered(ctx, m.ID))
	require.NoError(t, f.messages.MarkDelivered(ctx, m.ID))
	require.NoError(t, f.messages.MarkDelivered(ctx, 12345))

	got, err := f.store.Messages.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, got.Status())

	n, err := f.messages.MarkRead(ctx, admin.ID, host.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = f.messages.MarkRead(ctx, admin.ID, host.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, f.messages.MarkDelivered(ctx, m.ID))
	got, err = f.store.Messages.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, got.Status())
}

func TestMarkReadImpliesDelivered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.addUser(t, "admin", models.RoleAdmin)
	host := f.addUser(t, "host1", models.RoleHost)

	m := f.send(t, host.ID, admin.ID, "skip delivered")
	reply := f.send(t, admin.ID, host.ID, "other direction")

	_, err := f.messages.MarkRead(ctx, host.ID, admin.ID)
	require.NoError(t, err)

	got, err := f.store.Messages.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
	assert.True(t, got.IsDelivered)

	other, err := f.store.Messages.GetByID(ctx, reply.ID)
	require.NoError(t, err)
	assert.False(t, other.IsRead)
}

func TestAcknowledgeDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.addUser(t, "admin", models.RoleAdmin)
	host := f.addUser(t, "host1", models.RoleHost)

	f.send(t, admin.ID, host.ID, "one")
	f.send(t, host.ID, admin.ID, "two")
	f.send(t, admin.ID, host.ID, "three")

	conv, err := f.messages.Conversation(ctx, host.ID, admin.ID)
	require.NoError(t, err)

	n := f.messages.AcknowledgeDelivery(ctx, host.ID, conv)
	assert.Equal(t, 2, n)
	assert.True(t, conv[0].IsDelivered)
	assert.False(t, conv[1].IsDelivered)
	assert.True(t, conv[2].IsDelivered)

	again, err := f.messages.Conversation(ctx, host.ID, admin.ID)
	require.NoError(t, err)
	assert.Zero(t, f.messages.AcknowledgeDelivery(ctx, host.ID, again))
}

func TestDeleteConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.addUser(t, "admin", models.RoleAdmin)
	a := f.addUser(t, "host1", models.RoleHost)
	b := f.addUser(t, "host2", models.RoleHost)

	f.send(t, admin.ID, a.ID, "to a")
	f.send(t, a.ID, admin.ID, "from a")
	f.send(t, admin.ID, b.ID, "to b")

	n, err := f.messages.DeleteConversation(ctx, a.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	conv, err := f.messages.Conversation(ctx, admin.ID, a.ID)
	require.NoError(t, err)
	assert.Empty(t, conv)

	conv, err = f.messages.Conversation(ctx, admin.ID, b.ID)
	require.NoError(t, err)
	assert.Len(t, conv, 1)
}

func TestDeleteUserCascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.addUser(t, "admin", models.RoleAdmin)
	gone := f.addUser(t, "host1", models.RoleHost)
	stays := f.addUser(t, "host2", models.RoleHost)

	f.send(t, admin.ID, gone.ID, "to gone")
	f.send(t, gone.ID, stays.ID, "gone to stays")
	f.send(t, admin.ID, stays.ID, "to stays")
	_, err := f.store.Notifications.Create(ctx, models.NewNotification{UserID: gone.ID, Title: "t", Type: models.NotificationGeneral})
	require.NoError(t, err)

	deleted, err := f.messages.DeleteUserCascade(ctx, gone.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	for _, other := range []int64{admin.ID, stays.ID, 999} {
		conv, err := f.messages.Conversation(ctx, gone.ID, other)
		require.NoError(t, err)
		assert.Empty(t, conv)
	}

	notes, err := f.store.Notifications.ListByUser(ctx, gone.ID)
	require.NoError(t, err)
	assert.Empty(t, notes)

	conv, err := f.messages.Conversation(ctx, admin.ID, stays.ID)
	require.NoError(t, err)
	assert.Len(t, conv, 1)

	deleted, err = f.messages.DeleteUserCascade(ctx, gone.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestAppendPublishesToBothSides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.addUser(t, "admin", models.RoleAdmin)
	host := f.addUser(t, "host1", models.RoleHost)

	ch, cancel, err := f.bus.Subscribe(ctx, host.ID)
	require.NoError(t, err)
	defer cancel()

	m := f.send(t, admin.ID, host.ID, "ping")

	select {
	case ev := <-ch:
		assert.Equal(t, events.MessageCreated, ev.Kind)
		assert.Equal(t, admin.ID, ev.PeerID)
		assert.Equal(t, m.ID, ev.MessageID)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestParseAmount(t *testing.T) {
	tcases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{in: 12.5, want: 12.5, ok: true},
		{in: 3, want: 3, ok: true},
		{in: " 42 ", want: 42, ok: true},
		{in: "1e3", want: 1000, ok: true},
		{in: "abc", ok: false},
		{in: "NaN", ok: false},
		{in: true, ok: false},
		{in: nil, ok: false},
	}
	for _, tc := range tcases {
		got, ok := ParseAmount(tc.in)
		assert.Equal(t, tc.ok, ok, "input %v", tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, got)
		}
	}
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, ev events.Event) error {
	return m.Called(ctx, ev).Error(0)
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	admin := f.addUser(t, "admin", models.RoleAdmin)
	host := f.addUser(t, "host1", models.RoleHost)

	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(ev events.Event) bool {
		return ev.Kind == events.MessageCreated
	})).Return(errStoreDown).Twice()

	svc := NewMessageService(f.store, pub, zap.NewNop())
	m, err := svc.Append(context.Background(), AppendParams{SenderID: admin.ID, ReceiverID: host.ID, Content: "hi"})
	require.NoError(t, err)
	assert.NotZero(t, m.ID)
	pub.AssertExpectations(t)
}

func TestAppendRacingUserDelete(t *testing.T) {
	store := memory.New(memory.WithClock(newStepClock().Now)).Store()
	seed := newFixtureWithStore(t, store)
	admin := seed.addUser(t, "admin", models.RoleAdmin)
	host := seed.addUser(t, "sara", models.RoleHost)

	store.Messages = &deleteBeforeInsert{MessageRepository: store.Messages, users: store.Users, victim: host.ID}
	f := newFixtureWithStore(t, store)
	ctx := context.Background()

	msg, err := f.messages.Append(ctx, AppendParams{SenderID: admin.ID, ReceiverID: host.ID, Content: "hi"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Nil(t, msg)

	u, err := store.Users.GetByID(ctx, host.ID)
	require.NoError(t, err)
	assert.Nil(t, u)

	conv, err := f.messages.Conversation(ctx, host.ID, admin.ID)
	require.NoError(t, err)
	assert.Empty(t, conv)
}
