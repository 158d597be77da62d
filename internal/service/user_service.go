package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"library-catalog/internal/auth"
	"library-catalog/internal/domain"
	"library-catalog/internal/errors"
)

// Column widths of users.username and users.email.
const (
	MaxUsernameLength = 150
	MaxEmailLength    = 254
)

type UserService struct {
	store  domain.UnitOfWork
	issuer *auth.Issuer
	logger *slog.Logger
}

func NewUserService(store domain.UnitOfWork, issuer *auth.Issuer, logger *slog.Logger) *UserService {
	return &UserService{
		store:  store,
		issuer: issuer,
		logger: logger,
	}
}

type RegisterRequest struct {
	Username           string
	Email              string
	Password           string
	EmailNotifications *bool
}

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

// Register creates a member account.
func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*domain.User, error) {
	return s.createUser(ctx, req, domain.RoleMember)
}

// CreateAdmin creates an administrator account. It is only reachable from the
// command line.
func (s *UserService) CreateAdmin(ctx context.Context, req *RegisterRequest) (*domain.User, error) {
	return s.createUser(ctx, req, domain.RoleAdmin)
}

func (s *UserService) createUser(ctx context.Context, req *RegisterRequest, role domain.Role) (*domain.User, error) {
	username := strings.TrimSpace(req.Username)
	s.logger.Info("Registering user", "username", username, "role", role)

	if username == "" || utf8.RuneCountInString(username) > MaxUsernameLength {
		return nil, errors.ErrInvalidInput.WithDetails(fmt.Sprintf("username must be between 1 and %d characters", MaxUsernameLength))
	}
	if utf8.RuneCountInString(req.Email) > MaxEmailLength {
		return nil, errors.ErrInvalidInput.WithDetails(fmt.Sprintf("email must be at most %d characters", MaxEmailLength))
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, errors.ErrInvalidInput.WithDetails("email address is invalid")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	notifications := true
	if req.EmailNotifications != nil {
		notifications = *req.EmailNotifications
	}

	user := &domain.User{
		Username:           username,
		Email:              req.Email,
		PasswordHash:       hash,
		Role:               role,
		IsActive:           true,
		EmailNotifications: notifications,
		DateOfMembership:   time.Now().UTC(),
	}
	if err := s.store.Users().CreateUser(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Authenticate checks the credentials and issues a bearer token.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.store.Users().GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			return nil, errors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		s.logger.Warn("Login rejected", "username", user.Username)
		return nil, errors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, errors.ErrForbidden.WithDetails("account is inactive")
	}

	token, expiresAt, err := s.issuer.Issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User logged in", "user_id", user.ID)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// VerifyToken returns the claims of a valid bearer token.
func (s *UserService) VerifyToken(token string) (*auth.Claims, error) {
	return s.issuer.Verify(token)
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.store.Users().GetUser(ctx, id)
}

func (s *UserService) Notifications(ctx context.Context, actor *domain.User) ([]domain.Notification, error) {
	if actor == nil {
		return nil, errors.ErrUnauthorized
	}
	return s.store.Notifications().ListNotificationsByUser(ctx, actor.ID)
}

func (s *UserService) MarkNotificationRead(ctx context.Context, actor *domain.User, id uuid.UUID) error {
	if actor == nil {
		return errors.ErrUnauthorized
	}
	return s.store.Notifications().MarkNotificationRead(ctx, id, actor.ID)
}
