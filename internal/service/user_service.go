package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lalith-99/hostchat/internal/apperr"
	"github.com/lalith-99/hostchat/internal/auth"
	"github.com/lalith-99/hostchat/internal/models"
	"github.com/lalith-99/hostchat/internal/repository"
	"go.uber.org/zap"
)

const (
	minUsernameLen = 3
	minPasswordLen = 6
)

// UserService owns accounts and presence. Deleting a user goes through the
// message service so the cascade stays in one place.
type UserService struct {
	users    repository.UserRepository
	messages *MessageService
	logger   *zap.Logger
	now      func() time.Time
}

func NewUserService(store *repository.Store, messages *MessageService, logger *zap.Logger) *UserService {
	return &UserService{
		users:    store.Users,
		messages: messages,
		logger:   logger,
		now:      time.Now,
	}
}

type CreateUserParams struct {
	Username       string
	Password       string
	FirstName      string
	LastName       string
	Email          string
	Role           models.Role
	ProfilePicture string
}

// Register creates a host account and marks it online, the way a fresh
// sign-up lands straight in the chat.
func (s *UserService) Register(ctx context.Context, p CreateUserParams) (*models.User, error) {
	p.Role = models.RoleHost
	return s.create(ctx, p, true)
}

// Create is the admin path: any role, offline until the user logs in.
func (s *UserService) Create(ctx context.Context, p CreateUserParams) (*models.User, error) {
	if p.Role == "" {
		p.Role = models.RoleHost
	}
	return s.create(ctx, p, false)
}

func (s *UserService) create(ctx context.Context, p CreateUserParams, online bool) (*models.User, error) {
	p.Username = strings.TrimSpace(p.Username)
	if len(p.Username) < minUsernameLen {
		return nil, fmt.Errorf("%w: username must be at least %d characters", apperr.ErrInvalidArgument, minUsernameLen)
	}
	if len(p.Password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", apperr.ErrInvalidArgument, minPasswordLen)
	}
	if !p.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", apperr.ErrInvalidArgument, p.Role)
	}

	hash, err := auth.HashPassword(p.Password)
	if err != nil {
		return nil, err
	}

	picture := p.ProfilePicture
	if picture == "" {
		picture = defaultAvatar(p.Username)
	}

	u, err := s.users.Create(ctx, models.User{
		Username:       p.Username,
		PasswordHash:   hash,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Email:          p.Email,
		Role:           p.Role,
		IsOnline:       online,
		LastSeen:       s.now().UTC(),
		ProfilePicture: picture,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user created", zap.Int64("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

func defaultAvatar(username string) string {
	return "https://ui-avatars.com/api/?background=random&name=" + url.QueryEscape(username)
}

// Login checks the credentials and marks the user online. Unknown users and
// wrong passwords both return apperr.ErrUnauthorized with the same message.
func (s *UserService) Login(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: invalid username or password", apperr.ErrUnauthorized)
	}

	ok, err := auth.CheckPassword(u.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: invalid username or password", apperr.ErrUnauthorized)
	}

	now := s.now().UTC()
	if err := s.users.SetPresence(ctx, u.ID, true, now); err != nil {
		return nil, err
	}
	u.IsOnline = true
	u.LastSeen = now
	return u, nil
}

// Logout marks the user offline.
func (s *UserService) Logout(ctx context.Context, userID int64) error {
	return s.users.SetPresence(ctx, userID, false, s.now().UTC())
}

func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %d", apperr.ErrNotFound, id)
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context, role models.Role) ([]models.User, error) {
	if role != "" && !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", apperr.ErrInvalidArgument, role)
	}
	return s.users.List(ctx, repository.UserFilter{Role: role})
}

type UpdateUserParams struct {
	Username       *string
	Password       *string
	FirstName      *string
	LastName       *string
	Email          *string
	ProfilePicture *string
	IsOnline       *bool
}

func (s *UserService) Update(ctx context.Context, id int64, p UpdateUserParams) (*models.User, error) {
	upd := repository.UserUpdate{
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Email:          p.Email,
		ProfilePicture: p.ProfilePicture,
		IsOnline:       p.IsOnline,
	}
	if p.Username != nil {
		name := strings.TrimSpace(*p.Username)
		if len(name) < minUsernameLen {
			return nil, fmt.Errorf("%w: username must be at least %d characters", apperr.ErrInvalidArgument, minUsernameLen)
		}
		upd.Username = &name
	}
	if p.Password != nil {
		if len(*p.Password) < minPasswordLen {
			return nil, fmt.Errorf("%w: password must be at least %d characters", apperr.ErrInvalidArgument, minPasswordLen)
		}
		hash, err := auth.HashPassword(*p.Password)
		if err != nil {
			return nil, err
		}
		upd.PasswordHash = &hash
	}

	u, err := s.users.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %d", apperr.ErrNotFound, id)
	}
	return u, nil
}

// Delete removes the user with all of their messages and notifications.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	deleted, err := s.messages.DeleteUserCascade(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: user %d", apperr.ErrNotFound, id)
	}
	s.logger.Info("user deleted", zap.Int64("user_id", id))
	return nil
}

// EnsureAdmin creates the admin account if no user with that name exists.
// An existing account is left untouched.
func (s *UserService) EnsureAdmin(ctx context.Context, username, password string) (*models.User, error) {
	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !existing.IsAdmin() {
			s.logger.Warn("seed admin name belongs to a host", zap.String("username", username))
		}
		return existing, nil
	}
	return s.Create(ctx, CreateUserParams{
		Username:  username,
		Password:  password,
		FirstName: "Admin",
		Role:      models.RoleAdmin,
	})
}
