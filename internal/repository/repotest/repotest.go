// Package repotest holds the behavior every repository backend must share.
// Backend packages call Run from their own tests.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/lalith-99/hostchat/internal/apperr"
	"github.com/lalith-99/hostchat/internal/models"
	"github.com/lalith-99/hostchat/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a backend. newStore must return an empty store each call.
func Run(t *testing.T, newStore func(t *testing.T) *repository.Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("messages", func(t *testing.T) { testMessages(t, newStore(t)) })
	t.Run("notifications", func(t *testing.T) { testNotifications(t, newStore(t)) })
	t.Run("cascade", func(t *testing.T) { testCascade(t, newStore(t)) })
}

func mustUser(t *testing.T, s *repository.Store, name string, role models.Role) *models.User {
	t.Helper()
	u, err := s.Users.Create(context.Background(), models.User{Username: name, PasswordHash: "h", Role: role})
	require.NoError(t, err)
	return u
}

func mustMessage(t *testing.T, s *repository.Store, from, to int64, text string) *models.Message {
	t.Helper()
	m, err := s.Messages.Create(context.Background(), models.NewMessage{
		SenderID: from, ReceiverID: to, Content: text, ContentType: models.ContentText,
	})
	require.NoError(t, err)
	return m
}

func testUsers(t *testing.T, s *repository.Store) {
	ctx := context.Background()

	admin := mustUser(t, s, "admin", models.RoleAdmin)
	host := mustUser(t, s, "sara", models.RoleHost)
	assert.NotZero(t, admin.ID)
	assert.NotEqual(t, admin.ID, host.ID)
	assert.False(t, host.CreatedAt.IsZero())

	_, err := s.Users.Create(ctx, models.User{Username: "sara", PasswordHash: "h", Role: models.RoleHost})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	got, err := s.Users.GetByUsername(ctx, "sara")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, host.ID, got.ID)

	missing, err := s.Users.GetByID(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.Users.SetPresence(ctx, host.ID, true, time.Now()))
	require.NoError(t, s.Users.SetPresence(ctx, 9999, true, time.Now()))

	all, err := s.Users.List(ctx, repository.UserFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, host.ID, all[0].ID, "online users first")

	hosts, err := s.Users.List(ctx, repository.UserFilter{Role: models.RoleHost})
	require.NoError(t, err)
	require.Len(t, hosts, 1)

	first := "Sara"
	updated, err := s.Users.Update(ctx, host.ID, repository.UserUpdate{FirstName: &first})
	require.NoError(t, err)
	assert.Equal(t, "Sara", updated.FirstName)
	assert.Equal(t, "sara", updated.Username)

	taken := "admin"
	_, err = s.Users.Update(ctx, host.ID, repository.UserUpdate{Username: &taken})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	gone, err := s.Users.Update(ctx, 9999, repository.UserUpdate{FirstName: &first})
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func testMessages(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	a := mustUser(t, s, "admin", models.RoleAdmin)
	b := mustUser(t, s, "sara", models.RoleHost)
	c := mustUser(t, s, "omar", models.RoleHost)

	m1 := mustMessage(t, s, b.ID, a.ID, "t1")
	m2 := mustMessage(t, s, a.ID, b.ID, "t2")
	m3 := mustMessage(t, s, b.ID, a.ID, "t3")
	mustMessage(t, s, a.ID, c.ID, "elsewhere")

	assert.False(t, m1.IsRead)
	assert.False(t, m1.IsDelivered)
	assert.False(t, m2.Timestamp.Before(m1.Timestamp))

	conv, err := s.Messages.ListBetween(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, conv, 3)
	assert.Equal(t, []int64{m1.ID, m2.ID, m3.ID}, []int64{conv[0].ID, conv[1].ID, conv[2].ID})

	rev, err := s.Messages.ListBetween(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, conv, rev)

	empty, err := s.Messages.ListBetween(ctx, b.ID, c.ID)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	changed, err := s.Messages.MarkDelivered(ctx, m2.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = s.Messages.MarkDelivered(ctx, m2.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	changed, err = s.Messages.MarkDelivered(ctx, 9999)
	require.NoError(t, err)
	assert.False(t, changed)

	n, err := s.Messages.MarkRead(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	n, err = s.Messages.MarkRead(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := s.Messages.GetByID(ctx, m3.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
	assert.True(t, got.IsDelivered)

	fin, err := s.Messages.Create(ctx, models.NewMessage{
		SenderID: a.ID, ReceiverID: b.ID, ContentType: models.ContentFinancial,
		Content: "payout", Metadata: map[string]any{"title": "Payout", "amount": 12.5},
	})
	require.NoError(t, err)
	stored, err := s.Messages.GetByID(ctx, fin.ID)
	require.NoError(t, err)
	assert.Equal(t, 12.5, stored.Metadata["amount"])

	st, err := s.Messages.Stats(ctx, time.Unix(0, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(5), st.Total)
	assert.Equal(t, int64(5), st.Today)
	assert.Equal(t, int64(1), st.Financial)

	deleted, err := s.Messages.DeleteBetween(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)

	left, err := s.Messages.ListBetween(ctx, a.ID, c.ID)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func testNotifications(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "sara", models.RoleHost)

	first, err := s.Notifications.Create(ctx, models.NewNotification{
		UserID: u.ID, Title: "Payout", Content: "March", Type: models.NotificationFinancial,
		Metadata: map[string]any{"amount": 10.0},
	})
	require.NoError(t, err)
	second, err := s.Notifications.Create(ctx, models.NewNotification{
		UserID: u.ID, Title: "Hello", Type: models.NotificationGeneral,
	})
	require.NoError(t, err)

	list, err := s.Notifications.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, 10.0, list[1].Metadata["amount"])

	got, err := s.Notifications.GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.NotificationFinancial, got.Type)

	changed, err := s.Notifications.MarkRead(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = s.Notifications.MarkRead(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	none, err := s.Notifications.ListByUser(ctx, 9999)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func testCascade(t *testing.T, s *repository.Store) {
	ctx := context.Background()
	admin := mustUser(t, s, "admin", models.RoleAdmin)
	gone := mustUser(t, s, "gone", models.RoleHost)
	stays := mustUser(t, s, "stays", models.RoleHost)

	mustMessage(t, s, admin.ID, gone.ID, "a")
	mustMessage(t, s, gone.ID, stays.ID, "b")
	mustMessage(t, s, admin.ID, stays.ID, "c")
	_, err := s.Notifications.Create(ctx, models.NewNotification{UserID: gone.ID, Title: "x", Type: models.NotificationGeneral})
	require.NoError(t, err)

	deleted, err := s.Users.DeleteCascade(ctx, gone.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	u, err := s.Users.GetByID(ctx, gone.ID)
	require.NoError(t, err)
	assert.Nil(t, u)

	for _, other := range []int64{admin.ID, stays.ID} {
		conv, err := s.Messages.ListBetween(ctx, gone.ID, other)
		require.NoError(t, err)
		assert.Empty(t, conv)
	}
	notes, err := s.Notifications.ListByUser(ctx, gone.ID)
	require.NoError(t, err)
	assert.Empty(t, notes)

	conv, err := s.Messages.ListBetween(ctx, admin.ID, stays.ID)
	require.NoError(t, err)
	assert.Len(t, conv, 1)

	deleted, err = s.Users.DeleteCascade(ctx, gone.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	// A writer that looked the user up before the delete must not leave an
	// orphan behind.
	_, err = s.Messages.Create(ctx, models.NewMessage{
		SenderID: admin.ID, ReceiverID: gone.ID, Content: "late", ContentType: models.ContentText,
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = s.Messages.Create(ctx, models.NewMessage{
		SenderID: gone.ID, ReceiverID: stays.ID, Content: "late", ContentType: models.ContentText,
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = s.Notifications.Create(ctx, models.NewNotification{UserID: gone.ID, Title: "late", Type: models.NotificationGeneral})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	conv, err = s.Messages.ListBetween(ctx, gone.ID, admin.ID)
	require.NoError(t, err)
	assert.Empty(t, conv)
	notes, err = s.Notifications.ListByUser(ctx, gone.ID)
	require.NoError(t, err)
	assert.Empty(t, notes)
}
