// Package sqlite is the single-file backend, for deployments that do not
// run a Postgres server. It goes through gorm with the sqlite driver.
package sqlite

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lalith-99/hostchat/internal/apperr"
	"github.com/lalith-99/hostchat/internal/repository"
)

type userRow struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	Username       string `gorm:"uniqueIndex;not null"`
	PasswordHash   string `gorm:"not null"`
	FirstName      string
	LastName       string
	Email          string
	Role           string `gorm:"not null;default:host"`
	IsOnline       bool
	LastSeen       time.Time
	ProfilePicture string
	CreatedAt      time.Time
}

func (userRow) TableName() string { return "users" }

// messageRow keeps the timestamp as unix nanoseconds so ordering in SQL is
// a plain integer comparison.
type messageRow struct {
	ID          int64 `gorm:"primaryKey;autoIncrement"`
	SenderID    int64 `gorm:"index:idx_messages_pair,priority:1;not null"`
	ReceiverID  int64 `gorm:"index:idx_messages_pair,priority:2;not null"`
	Content     string
	ContentType string `gorm:"not null;default:text"`
	MediaURL    string
	Timestamp   int64 `gorm:"index:idx_messages_pair,priority:3;not null"`
	IsRead      bool
	IsDelivered bool
	Metadata    string
}

func (messageRow) TableName() string { return "messages" }

type notificationRow struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	UserID    int64  `gorm:"index;not null"`
	Title     string `gorm:"not null"`
	Content   string `gorm:"not null"`
	Type      string `gorm:"not null;default:general"`
	IsRead    bool
	Timestamp time.Time
	Metadata  string
}

func (notificationRow) TableName() string { return "notifications" }

// requireUsers must run inside the transaction that writes rows referencing
// ids. With a single connection that transaction cannot interleave with
// DeleteCascade.
func requireUsers(tx *gorm.DB, ids ...int64) error {
	for _, id := range ids {
		var n int64
		if err := tx.Model(&userRow{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: user %d", apperr.ErrNotFound, id)
		}
	}
	return nil
}

// Open creates (or reuses) the database file at path and migrates it.
func Open(path string, logger *zap.Logger) (*repository.Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.AutoMigrate(&userRow{}, &messageRow{}, &notificationRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// SQLite allows one writer at a time; a single connection avoids
	// "database is locked" errors under concurrent requests.
	sqlDB.SetMaxOpenConns(1)

	logger.Info("sqlite store ready", zap.String("path", path))

	return &repository.Store{
		Users:         &UserStore{db: db},
		Messages:      &MessageStore{db: db},
		Notifications: &NotificationStore{db: db},
		Close: func() {
			if err := sqlDB.Close(); err != nil {
				logger.Warn("close sqlite", zap.Error(err))
			}
		},
	}, nil
}
