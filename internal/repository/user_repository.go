package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"library-catalog/internal/domain"
	"library-catalog/internal/errors"
)

const constraintUsersUsername = "users_username_key"

type userRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewUserRepository(db SQLExecutor, logger *slog.Logger) domain.UserRepository {
	return &userRepository{
		db:     db,
		logger: logger,
	}
}

func (r *userRepository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users
		(username, email, password_hash, role, is_active, email_notifications, date_of_membership, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	now := time.Now().UTC()
	if user.DateOfMembership.IsZero() {
		user.DateOfMembership = now
	}

	err := r.db.QueryRowContext(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.IsActive,
		user.EmailNotifications,
		user.DateOfMembership,
		now,
		now,
	).Scan(&user.ID)

	if err != nil {
		if isUniqueViolation(err, constraintUsersUsername) {
			r.logger.Warn("Duplicate username", "username", user.Username)
			return errors.ErrDuplicateUser
		}
		r.logger.Error("Failed to create user", "username", user.Username, "error", err)
		return internalError("failed to create user", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	r.logger.Info("User created successfully", "user_id", user.ID)
	return nil
}

func (r *userRepository) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	query := `
		SELECT id, username, email, password_hash, role, is_active, email_notifications,
		       date_of_membership, created_at, updated_at
		FROM users WHERE id = $1
	`

	return r.scanUser(ctx, query, id)
}

func (r *userRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `
		SELECT id, username, email, password_hash, role, is_active, email_notifications,
		       date_of_membership, created_at, updated_at
		FROM users WHERE username = $1
	`

	return r.scanUser(ctx, query, username)
}

func (r *userRepository) scanUser(ctx context.Context, query string, arg interface{}) (*domain.User, error) {
	var user domain.User
	var role string

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.IsActive,
		&user.EmailNotifications,
		&user.DateOfMembership,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrUserNotFound
		}
		r.logger.Error("Failed to get user", "arg", arg, "error", err)
		return nil, internalError("failed to get user", err)
	}

	user.Role = domain.Role(role)
	return &user, nil
}
