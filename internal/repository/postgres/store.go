package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/hostchat/internal/repository"
)

// NewStore wires every Postgres repository onto one shared pool. The pool
// is goroutine-safe; its owner (db.DB) closes it.
func NewStore(pool *pgxpool.Pool) *repository.Store {
	return &repository.Store{
		Users:         NewUserStore(pool),
		Messages:      NewMessageStore(pool),
		Notifications: NewNotificationStore(pool),
	}
}
