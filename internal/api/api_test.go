package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/hostchat/internal/auth"
	"github.com/lalith-99/hostchat/internal/events"
	"github.com/lalith-99/hostchat/internal/models"
	"github.com/lalith-99/hostchat/internal/repository/memory"
	"github.com/lalith-99/hostchat/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "api-test-secret"

type testServer struct {
	router   *gin.Engine
	services Services
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	store := memory.New().Store()
	bus := events.NewLocalBus()
	t.Cleanup(func() { _ = bus.Close() })

	messages := service.NewMessageService(store, bus, logger)
	svcs := Services{
		Users:         service.NewUserService(store, messages, logger),
		Messages:      messages,
		Contacts:      service.NewContactService(store, messages, bus, logger),
		Fanout:        service.NewFanoutService(store, messages, logger),
		Notifications: service.NewNotificationService(messages),
		Stats:         service.NewStatsService(store),
	}

	r := NewRouter(RouterConfig{
		Services:        svcs,
		JWTSecret:       testSecret,
		TokenTTL:        time.Hour,
		PollInterval:    3 * time.Second,
		LongPollTimeout: 50 * time.Millisecond,
		Logger:          logger,
	})
	return &testServer{router: r, services: svcs}
}

func (s *testServer) user(t *testing.T, username string, role models.Role) (*models.User, string) {
	t.Helper()
	u, err := s.services.Users.Create(context.Background(), service.CreateUserParams{
		Username: username,
		Password: "secret1",
		Role:     role,
	})
	require.NoError(t, err)
	token, err := auth.GenerateToken(u, testSecret, time.Hour)
	require.NoError(t, err)
	return u, token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterLoginLogout(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/v1/auth/register", "", gin.H{"username": "sara", "password": "secret1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reg := decode[authResponse](t, w)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, models.RoleHost, reg.User.Role)
	assert.NotContains(t, w.Body.String(), "password")

	w = s.do(t, http.MethodPost, "/v1/auth/register", "", gin.H{"username": "sara", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"username": "sara", "password": "nope!!"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"username": "sara", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[authResponse](t, w)

	w = s.do(t, http.MethodGet, "/v1/users/me", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sara", decode[models.User](t, w).Username)

	w = s.do(t, http.MethodPost, "/v1/auth/logout", login.Token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMessageFlow(t *testing.T) {
	s := newTestServer(t)
	admin, adminToken := s.user(t, "admin", models.RoleAdmin)
	sara, saraToken := s.user(t, "sara", models.RoleHost)
	_, otherToken := s.user(t, "omar", models.RoleHost)

	w := s.do(t, http.MethodPost, "/v1/messages", saraToken, gin.H{"receiver_id": admin.ID, "content": "hello"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sent := decode[models.Message](t, w)
	assert.Equal(t, sara.ID, sent.SenderID)
	assert.False(t, sent.IsDelivered)

	w = s.do(t, http.MethodPost, "/v1/messages", saraToken, gin.H{"receiver_id": 999, "content": "hello"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/v1/messages", saraToken, gin.H{"receiver_id": admin.ID, "content_type": "financial", "metadata": gin.H{"amount": "x"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	convPath := fmt.Sprintf("/v1/messages/%d/%d", admin.ID, sara.ID)
	w = s.do(t, http.MethodGet, convPath, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Admin fetching the thread counts as delivery of sara's message.
	w = s.do(t, http.MethodGet, convPath, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	conv := decode[[]models.Message](t, w)
	require.Len(t, conv, 1)
	assert.True(t, conv[0].IsDelivered)
	assert.False(t, conv[0].IsRead)

	readPath := fmt.Sprintf("/v1/messages/read/%d/%d", sara.ID, admin.ID)
	w = s.do(t, http.MethodPut, readPath, saraToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPut, readPath, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"updated":1}`, w.Body.String())

	w = s.do(t, http.MethodPut, readPath, adminToken, nil)
	assert.JSONEq(t, `{"updated":0}`, w.Body.String())

	w = s.do(t, http.MethodPut, fmt.Sprintf("/v1/messages/delivered/%d", sent.ID), saraToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, http.MethodPut, "/v1/messages/delivered/424242", saraToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodDelete, convPath, saraToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":1}`, w.Body.String())
}

func TestContactsAndOpen(t *testing.T) {
	s := newTestServer(t)
	admin, adminToken := s.user(t, "admin", models.RoleAdmin)
	sara, saraToken := s.user(t, "sara", models.RoleHost)
	s.user(t, "omar", models.RoleHost)

	for _, text := range []string{"one", "two"} {
		w := s.do(t, http.MethodPost, "/v1/messages", saraToken, gin.H{"receiver_id": admin.ID, "content": text})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := s.do(t, http.MethodGet, "/v1/contacts", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Header().Get("X-Poll-Interval"))
	contacts := decode[[]models.ChatContact](t, w)
	require.Len(t, contacts, 2)
	assert.Equal(t, sara.ID, contacts[0].User.ID)
	assert.Equal(t, 2, contacts[0].UnreadCount)
	require.NotNil(t, contacts[0].LastMessage)
	assert.Equal(t, "two", contacts[0].LastMessage.Content)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/v1/contacts/%d/open", sara.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	opened := decode[service.OpenResult](t, w)
	assert.Equal(t, int64(2), opened.Marked)
	assert.Len(t, opened.Messages, 2)
	assert.Zero(t, opened.Contacts[0].UnreadCount)

	// Long poll with nothing happening returns the list after the timeout.
	w = s.do(t, http.MethodGet, "/v1/contacts?wait=true", saraToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.ChatContact](t, w), 2)
}

func TestFanoutEndpoints(t *testing.T) {
	s := newTestServer(t)
	_, adminToken := s.user(t, "admin", models.RoleAdmin)
	h1, hostToken := s.user(t, "host1", models.RoleHost)
	s.user(t, "host2", models.RoleHost)

	w := s.do(t, http.MethodPost, "/v1/broadcast", hostToken, gin.H{"content": "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/v1/broadcast", adminToken, gin.H{"content": "hi"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{"sent":2}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/v1/financial-notifications", adminToken, gin.H{
		"recipient_id": h1.ID, "title": "Payout", "content": "March", "amount": "120.5",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{"sent":1}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/v1/financial-notifications", adminToken, gin.H{"title": "Payout", "amount": "lots"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/v1/notifications", hostToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	feed := decode[service.Feed](t, w)
	require.Len(t, feed.Notifications, 1)
	assert.Equal(t, 1, feed.Unread)
	assert.Equal(t, 120.5, feed.Notifications[0].Metadata["amount"])

	w = s.do(t, http.MethodPut, fmt.Sprintf("/v1/notifications/%d/read", feed.Notifications[0].ID), hostToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/v1/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[models.DashboardStats](t, w)
	assert.Equal(t, 2, st.Hosts)
	assert.Equal(t, int64(3), st.Messages.Total)
	assert.Equal(t, int64(1), st.Messages.Financial)

	w = s.do(t, http.MethodGet, "/v1/stats", hostToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUserAdministration(t *testing.T) {
	s := newTestServer(t)
	admin, adminToken := s.user(t, "admin", models.RoleAdmin)
	host, hostToken := s.user(t, "host1", models.RoleHost)

	w := s.do(t, http.MethodPost, "/v1/users", hostToken, gin.H{"username": "newbie", "password": "secret1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/v1/users", adminToken, gin.H{"username": "newbie", "password": "secret1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	newbie := decode[models.User](t, w)

	w = s.do(t, http.MethodGet, "/v1/users?role=host", hostToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.User](t, w), 2)

	w = s.do(t, http.MethodPut, fmt.Sprintf("/v1/users/%d", admin.ID), hostToken, gin.H{"first_name": "x"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPut, fmt.Sprintf("/v1/users/%d", host.ID), hostToken, gin.H{"first_name": "Sara"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Sara", decode[models.User](t, w).FirstName)

	w = s.do(t, http.MethodPut, fmt.Sprintf("/v1/users/%d", host.ID), adminToken, gin.H{"is_online": true})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[models.User](t, w)
	assert.True(t, updated.IsOnline)
	assert.Equal(t, "Sara", updated.FirstName)

	w = s.do(t, http.MethodPut, fmt.Sprintf("/v1/users/%d", host.ID), hostToken, gin.H{"username": "newbie"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodDelete, fmt.Sprintf("/v1/users/%d", newbie.ID), adminToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodDelete, fmt.Sprintf("/v1/users/%d", newbie.ID), adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/v1/users/abc", hostToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
