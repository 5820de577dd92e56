package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/hostchat/internal/apperr"
	"github.com/lalith-99/hostchat/internal/models"
	"github.com/lalith-99/hostchat/internal/repository"
)

const userColumns = `id, username, password_hash, first_name, last_name, email, role,
	is_online, last_seen, profile_picture, created_at`

// Postgres SQLSTATE codes.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.Role,
		&u.IsOnline,
		&u.LastSeen,
		&u.ProfilePicture,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// isForeignKeyViolation reports an insert that referenced a user row which
// does not exist, typically one deleted a moment earlier.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

// Create inserts a new user row. Postgres generates the ID and created_at.
func (s *UserStore) Create(ctx context.Context, u models.User) (*models.User, error) {
	query := `
		INSERT INTO users (username, password_hash, first_name, last_name, email, role,
			is_online, last_seen, profile_picture, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), $8, now())
		RETURNING ` + userColumns

	created, err := scanUser(s.pool.QueryRow(ctx, query,
		u.Username,
		u.PasswordHash,
		u.FirstName,
		u.LastName,
		u.Email,
		u.Role,
		u.IsOnline,
		u.ProfilePicture,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username %q already exists", apperr.ErrConflict, u.Username)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByUsername is the login lookup.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

func (s *UserStore) List(ctx context.Context, filter repository.UserFilter) ([]models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE ($1::text = '' OR role = $1::text)
		ORDER BY is_online DESC, last_seen DESC, id`

	rows, err := s.pool.Query(ctx, query, string(filter.Role))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// Update relies on COALESCE: a nil pointer is sent as NULL and keeps the
// current column value.
func (s *UserStore) Update(ctx context.Context, id int64, upd repository.UserUpdate) (*models.User, error) {
	query := `
		UPDATE users SET
			username        = COALESCE($2, username),
			password_hash   = COALESCE($3, password_hash),
			first_name      = COALESCE($4, first_name),
			last_name       = COALESCE($5, last_name),
			email           = COALESCE($6, email),
			profile_picture = COALESCE($7, profile_picture),
			is_online       = COALESCE($8, is_online)
		WHERE id = $1
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, query,
		id,
		upd.Username,
		upd.PasswordHash,
		upd.FirstName,
		upd.LastName,
		upd.Email,
		upd.ProfilePicture,
		upd.IsOnline,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username already exists", apperr.ErrConflict)
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func (s *UserStore) SetPresence(ctx context.Context, id int64, online bool, at time.Time) error {
	query := `UPDATE users SET is_online = $2, last_seen = $3 WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, id, online, at); err != nil {
		return fmt.Errorf("set presence: %w", err)
	}
	return nil
}

// DeleteCascade runs in one transaction. The user row is locked first so a
// concurrent message insert (whose foreign key check needs that row) waits
// for the delete instead of slipping in between.
func (s *UserStore) DeleteCascade(ctx context.Context, id int64) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin delete user: %w", err)
	}
	// Rollback after Commit is a no-op, so this is safe on every path.
	defer tx.Rollback(ctx)

	var locked int64
	err = tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lock user: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE sender_id = $1 OR receiver_id = $1`, id); err != nil {
		return false, fmt.Errorf("delete user messages: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1`, id); err != nil {
		return false, fmt.Errorf("delete user notifications: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit delete user: %w", err)
	}
	return true, nil
}
