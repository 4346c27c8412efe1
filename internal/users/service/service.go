package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"venuly/internal/apperr"
	"venuly/internal/auth"
	"venuly/internal/email"
	"venuly/internal/logger"
	"venuly/internal/models"
	userdb "venuly/internal/users/db"
	"venuly/internal/validation"
)

const ResetRequestedMessage = "If that email exists, a password reset link has been sent"

type UserDBLayer interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User, columns ...string) error
	UpdatePassword(ctx context.Context, userID, hash string) error
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
	ListUsers(ctx context.Context, f userdb.UserFilter) ([]models.User, int, error)
}

type ResetStore interface {
	Save(ctx context.Context, token, userID string) error
	Consume(ctx context.Context, token string) (string, error)
}

type RegisterRequest struct {
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=8,max=128"`
	Name     string      `json:"name" validate:"required,min=2,max=80"`
	Phone    string      `json:"phone" validate:"omitempty,max=32"`
	Role     models.Role `json:"role" validate:"required,oneof=CLIENT ORGANIZER"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetConfirmRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=128"`
}

type AdminUpdateRequest struct {
	IsActive *bool       `json:"isActive"`
	Role     models.Role `json:"role" validate:"omitempty,oneof=CLIENT ORGANIZER ADMIN"`
}

type AdminResetRequest struct {
	Password string `json:"password" validate:"omitempty,min=8,max=128"`
}

type Session struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

type UserPage struct {
	Users []models.User `json:"users"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

type UserService struct {
	DB      UserDBLayer
	Tokens  *auth.TokenManager
	Resets  ResetStore
	Mailer  email.Sender
	BaseURL string
	Logger  *logger.Logger
}

func NewUserService(db UserDBLayer, tokens *auth.TokenManager, resets ResetStore, mailer email.Sender, baseURL string, log *logger.Logger) *UserService {
	return &UserService{DB: db, Tokens: tokens, Resets: resets, Mailer: mailer, BaseURL: baseURL, Logger: log}
}

func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		Phone:        req.Phone,
		Role:         req.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.DB.CreateUser(ctx, user); err != nil {
		return nil, apperr.FromStore(err, "User", "Email is already registered")
	}

	s.Logger.Info("AUTH", fmt.Sprintf("Registered %s user %s", user.Role, user.ID))
	return user, nil
}

// Login verifies credentials. Unknown email, wrong password and a deactivated
// account all answer the same 401.
func (s *UserService) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.DB.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.Logger.LogSecurity("LOGIN_FAILED", "unknown email")
			return nil, apperr.ErrUnauthorized
		}
		return nil, err
	}
	if !user.IsActive || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		s.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("user %s", user.ID))
		return nil, apperr.ErrUnauthorized
	}

	token, exp, err := s.Tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.DB.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.Logger.Warn("AUTH", fmt.Sprintf("Failed to record login for %s: %v", user.ID, err))
	} else {
		user.LastLoginAt = &now
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}

func (s *UserService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.DB.GetUserByID(ctx, userID)
	if err != nil {
		return nil, apperr.FromStore(err, "User", "")
	}
	return user, nil
}

// RequestPasswordReset never reveals whether the email is registered.
func (s *UserService) RequestPasswordReset(ctx context.Context, req ResetRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		return err
	}

	user, err := s.DB.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if !user.IsActive {
		return nil
	}

	token, err := auth.NewResetToken()
	if err != nil {
		return err
	}
	if err := s.Resets.Save(ctx, token, user.ID); err != nil {
		return err
	}

	if s.Mailer == nil || !s.Mailer.Configured() {
		s.Logger.Warn("EMAIL", fmt.Sprintf("Reset token issued for %s but email is not configured", user.ID))
		return nil
	}
	link := fmt.Sprintf("%s/reset-password?token=%s", s.BaseURL, token)
	if err := s.Mailer.Send(ctx, email.PasswordReset(user.Email, user.Name, link)); err != nil {
		s.Logger.Error("EMAIL", fmt.Sprintf("Failed to send reset email to %s: %v", user.ID, err))
	}
	return nil
}

func (s *UserService) ConfirmPasswordReset(ctx context.Context, req ResetConfirmRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}

	userID, err := s.Resets.Consume(ctx, req.Token)
	if err != nil {
		if errors.Is(err, auth.ErrResetTokenNotFound) {
			return apperr.BadRequest("Invalid or expired reset token")
		}
		return err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return err
	}
	if err := s.DB.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	s.Logger.LogSecurity("PASSWORD_RESET", fmt.Sprintf("user %s", userID))
	return nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}

	user, err := s.DB.GetUserByID(ctx, userID)
	if err != nil {
		return apperr.FromStore(err, "User", "")
	}
	if !auth.CheckPasswordHash(req.CurrentPassword, user.PasswordHash) {
		return apperr.BadRequest("Current password is incorrect")
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.DB.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	s.Logger.LogSecurity("PASSWORD_CHANGED", fmt.Sprintf("user %s", userID))
	return nil
}

func (s *UserService) ListUsers(ctx context.Context, role models.Role, query string, page, limit int) (*UserPage, error) {
	if role != "" && !role.Valid() {
		return nil, apperr.Validation(map[string]string{"role": "must be one of: CLIENT ORGANIZER ADMIN"})
	}
	page, limit = clampPage(page, limit)

	users, total, err := s.DB.ListUsers(ctx, userdb.UserFilter{
		Role:   role,
		Query:  strings.TrimSpace(query),
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return nil, err
	}
	return &UserPage{Users: users, Total: total, Page: page, Limit: limit}, nil
}

func (s *UserService) AdminUpdate(ctx context.Context, adminID, userID string, req AdminUpdateRequest) (*models.User, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.DB.GetUserByID(ctx, userID)
	if err != nil {
		return nil, apperr.FromStore(err, "User", "")
	}

	var columns []string
	if req.IsActive != nil {
		if userID == adminID && !*req.IsActive {
			return nil, apperr.BadRequest("You cannot deactivate your own account")
		}
		user.IsActive = *req.IsActive
		columns = append(columns, "is_active")
	}
	if req.Role != "" {
		user.Role = req.Role
		columns = append(columns, "role")
	}
	if len(columns) == 0 {
		return user, nil
	}

	if err := s.DB.UpdateUser(ctx, user, columns...); err != nil {
		return nil, err
	}
	s.Logger.LogSecurity("ADMIN_UPDATE", fmt.Sprintf("admin %s updated %s (%s)", adminID, userID, strings.Join(columns, ",")))
	return user, nil
}

// AdminResetPassword sets the supplied password, or a generated one that is
// returned exactly once.
func (s *UserService) AdminResetPassword(ctx context.Context, adminID, userID string, req AdminResetRequest) (string, error) {
	if err := validation.Struct(req); err != nil {
		return "", err
	}
	if _, err := s.DB.GetUserByID(ctx, userID); err != nil {
		return "", apperr.FromStore(err, "User", "")
	}

	password := req.Password
	if password == "" {
		generated, err := auth.GenerateTempPassword()
		if err != nil {
			return "", err
		}
		password = generated
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}
	if err := s.DB.UpdatePassword(ctx, userID, hash); err != nil {
		return "", err
	}
	s.Logger.LogSecurity("ADMIN_PASSWORD_RESET", fmt.Sprintf("admin %s reset password of %s", adminID, userID))
	return password, nil
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
