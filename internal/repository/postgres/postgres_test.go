package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/lalith-99/hostchat/internal/db"
	"github.com/lalith-99/hostchat/internal/repository"
	"github.com/lalith-99/hostchat/internal/repository/repotest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Set TEST_DATABASE_URL to a throwaway database to run these. Every subtest
// truncates the tables.
func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	database, err := db.New(ctx, url, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(database.Close)
	require.NoError(t, database.Migrate(ctx))

	repotest.Run(t, func(t *testing.T) *repository.Store {
		_, err := database.Pool().Exec(ctx,
			`TRUNCATE notifications, messages, users RESTART IDENTITY CASCADE`)
		require.NoError(t, err)
		return NewStore(database.Pool())
	})
}
