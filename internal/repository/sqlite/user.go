package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/lalith-99/hostchat/internal/apperr"
	"github.com/lalith-99/hostchat/internal/models"
	"github.com/lalith-99/hostchat/internal/repository"
)

type UserStore struct {
	db *gorm.DB
}

func (r *userRow) model() *models.User {
	return &models.User{
		ID:             r.ID,
		Username:       r.Username,
		PasswordHash:   r.PasswordHash,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Email:          r.Email,
		Role:           models.Role(r.Role),
		IsOnline:       r.IsOnline,
		LastSeen:       r.LastSeen,
		ProfilePicture: r.ProfilePicture,
		CreatedAt:      r.CreatedAt,
	}
}

func (s *UserStore) Create(ctx context.Context, u models.User) (*models.User, error) {
	now := time.Now().UTC()
	row := userRow{
		Username:       u.Username,
		PasswordHash:   u.PasswordHash,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Email:          u.Email,
		Role:           string(u.Role),
		IsOnline:       u.IsOnline,
		LastSeen:       now,
		ProfilePicture: u.ProfilePicture,
		CreatedAt:      now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: username %q already exists", apperr.ErrConflict, u.Username)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return row.model(), nil
}

func (s *UserStore) first(ctx context.Context, query string, arg any) (*models.User, error) {
	var row userRow
	err := s.db.WithContext(ctx).Where(query, arg).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return row.model(), nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.first(ctx, "username = ?", username)
}

func (s *UserStore) List(ctx context.Context, filter repository.UserFilter) ([]models.User, error) {
	q := s.db.WithContext(ctx).Order("is_online DESC, last_seen DESC, id")
	if filter.Role != "" {
		q = q.Where("role = ?", string(filter.Role))
	}

	var rows []userRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := make([]models.User, 0, len(rows))
	for i := range rows {
		users = append(users, *rows[i].model())
	}
	return users, nil
}

func (s *UserStore) Update(ctx context.Context, id int64, upd repository.UserUpdate) (*models.User, error) {
	changes := map[string]any{}
	if upd.Username != nil {
		changes["username"] = *upd.Username
	}
	if upd.PasswordHash != nil {
		changes["password_hash"] = *upd.PasswordHash
	}
	if upd.FirstName != nil {
		changes["first_name"] = *upd.FirstName
	}
	if upd.LastName != nil {
		changes["last_name"] = *upd.LastName
	}
	if upd.Email != nil {
		changes["email"] = *upd.Email
	}
	if upd.ProfilePicture != nil {
		changes["profile_picture"] = *upd.ProfilePicture
	}
	if upd.IsOnline != nil {
		changes["is_online"] = *upd.IsOnline
	}

	if len(changes) > 0 {
		err := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", id).Updates(changes).Error
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, fmt.Errorf("%w: username already exists", apperr.ErrConflict)
			}
			return nil, fmt.Errorf("update user: %w", err)
		}
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) SetPresence(ctx context.Context, id int64, online bool, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", id).
		Updates(map[string]any{"is_online": online, "last_seen": at.UTC()}).Error
	if err != nil {
		return fmt.Errorf("set presence: %w", err)
	}
	return nil
}

func (s *UserStore) DeleteCascade(ctx context.Context, id int64) (bool, error) {
	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("sender_id = ? OR receiver_id = ?", id, id).Delete(&messageRow{}).Error; err != nil {
			return fmt.Errorf("delete user messages: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&notificationRow{}).Error; err != nil {
			return fmt.Errorf("delete user notifications: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&userRow{})
		if res.Error != nil {
			return fmt.Errorf("delete user: %w", res.Error)
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}
