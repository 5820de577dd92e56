package db

import (
	"context"
	"fmt"
)

// schema is applied on every start. Each statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id              BIGSERIAL PRIMARY KEY,
		username        TEXT NOT NULL UNIQUE,
		password_hash   TEXT NOT NULL,
		first_name      TEXT NOT NULL DEFAULT '',
		last_name       TEXT NOT NULL DEFAULT '',
		email           TEXT NOT NULL DEFAULT '',
		role            TEXT NOT NULL DEFAULT 'host' CHECK (role IN ('admin', 'host')),
		is_online       BOOLEAN NOT NULL DEFAULT false,
		last_seen       TIMESTAMPTZ NOT NULL DEFAULT now(),
		profile_picture TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id           BIGSERIAL PRIMARY KEY,
		sender_id    BIGINT NOT NULL REFERENCES users(id),
		receiver_id  BIGINT NOT NULL REFERENCES users(id),
		content      TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT 'text',
		media_url    TEXT NOT NULL DEFAULT '',
		timestamp    TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
		is_read      BOOLEAN NOT NULL DEFAULT false,
		is_delivered BOOLEAN NOT NULL DEFAULT false,
		metadata     JSONB,
		CHECK (sender_id <> receiver_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_messages_pair
		ON messages (sender_id, receiver_id, timestamp, id)`,

	`CREATE INDEX IF NOT EXISTS idx_messages_receiver_unread
		ON messages (receiver_id, sender_id) WHERE NOT is_read`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id        BIGSERIAL PRIMARY KEY,
		user_id   BIGINT NOT NULL REFERENCES users(id),
		title     TEXT NOT NULL,
		content   TEXT NOT NULL,
		type      TEXT NOT NULL DEFAULT 'general',
		is_read   BOOLEAN NOT NULL DEFAULT false,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
		metadata  JSONB
	)`,

	`CREATE INDEX IF NOT EXISTS idx_notifications_user
		ON notifications (user_id, timestamp DESC)`,
}

// Migrate creates the tables and indexes if they are missing.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	db.logger.Info("database schema ready")
	return nil
}
