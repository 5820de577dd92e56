package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/hostchat/internal/auth"
	"github.com/lalith-99/hostchat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()))

	authed := r.Group("/", AuthMiddleware(testSecret))
	authed.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": GetUserID(c), "role": GetRole(c), "username": GetUsername(c)})
	})
	authed.GET("/admin", RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func bearer(t *testing.T, u *models.User) string {
	t.Helper()
	token, err := auth.GenerateToken(u, testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter()
	host := &models.User{ID: 5, Username: "sara", Role: models.RoleHost}

	tcases := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer abc", want: http.StatusUnauthorized},
		{name: "valid", header: bearer(t, host), want: http.StatusOK},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
			assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
		})
	}
}

func TestAuthMiddlewareSetsClaims(t *testing.T) {
	r := newRouter()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", bearer(t, &models.User{ID: 5, Username: "sara", Role: models.RoleHost}))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":5,"role":"host","username":"sara"}`, w.Body.String())
}

func TestRequireRole(t *testing.T) {
	r := newRouter()

	for _, tc := range []struct {
		user *models.User
		want int
	}{
		{user: &models.User{ID: 1, Username: "admin", Role: models.RoleAdmin}, want: http.StatusNoContent},
		{user: &models.User{ID: 2, Username: "sara", Role: models.RoleHost}, want: http.StatusForbidden},
	} {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", bearer(t, tc.user))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.want, w.Code, tc.user.Username)
	}
}

func TestRequestLoggerKeepsClientID(t *testing.T) {
	r := newRouter()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))
}
