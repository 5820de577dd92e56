package auth

import (
	"testing"
	"time"

	"github.com/lalith-99/hostchat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	user := &models.User{ID: 7, Username: "sara", Role: models.RoleHost}

	token, err := GenerateToken(user, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "sara", claims.Username)
	assert.Equal(t, models.RoleHost, claims.Role)
	assert.Equal(t, "7", claims.Subject)
}

func TestParseTokenRejects(t *testing.T) {
	user := &models.User{ID: 1, Username: "admin", Role: models.RoleAdmin}

	tcases := []struct {
		name   string
		secret string
		ttl    time.Duration
	}{
		{name: "wrong secret", secret: "other", ttl: time.Hour},
		{name: "expired", secret: "secret", ttl: -time.Minute},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := GenerateToken(user, "secret", tc.ttl)
			require.NoError(t, err)

			_, err = ParseToken(token, tc.secret)
			assert.Error(t, err)
		})
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("password123")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", hash)

	ok, err := CheckPassword(hash, "password123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = CheckPassword("not-a-hash", "password123")
	assert.Error(t, err)
}
