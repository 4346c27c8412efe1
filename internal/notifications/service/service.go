package notifications

import (
	"context"
	"fmt"
	"time"

	"venuly/internal/apperr"
	"venuly/internal/auth"
	"venuly/internal/logger"
	"venuly/internal/models"
	"venuly/internal/validation"
)

type NotificationDBLayer interface {
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID string, ids []string, at time.Time) (int64, error)
	DeleteNotification(ctx context.Context, userID, id string) (int64, error)
	DeleteRead(ctx context.Context, userID string) (int64, error)
}

type MarkReadRequest struct {
	NotificationIDs []string `json:"notificationIds" validate:"omitempty,max=500,dive,required"`
	MarkAll         bool     `json:"markAll"`
}

type Inbox struct {
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unreadCount"`
	Total         int                   `json:"total"`
	Page          int                   `json:"page"`
	Limit         int                   `json:"limit"`
}

type NotificationService struct {
	DB     NotificationDBLayer
	Logger *logger.Logger
}

func NewNotificationService(db NotificationDBLayer, log *logger.Logger) *NotificationService {
	return &NotificationService{DB: db, Logger: log}
}

func (s *NotificationService) List(ctx context.Context, caller *auth.Identity, unreadOnly bool, page, limit int) (*Inbox, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	list, total, err := s.DB.ListNotifications(ctx, caller.UserID, unreadOnly, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	unread, err := s.DB.CountUnread(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}
	return &Inbox{Notifications: list, UnreadCount: unread, Total: total, Page: page, Limit: limit}, nil
}

// MarkRead returns how many notifications changed state.
func (s *NotificationService) MarkRead(ctx context.Context, caller *auth.Identity, req MarkReadRequest) (int64, error) {
	if err := validation.Struct(req); err != nil {
		return 0, err
	}
	if !req.MarkAll && len(req.NotificationIDs) == 0 {
		return 0, apperr.BadRequest("Provide notificationIds or markAll")
	}

	ids := req.NotificationIDs
	if req.MarkAll {
		ids = nil
	}
	n, err := s.DB.MarkRead(ctx, caller.UserID, ids, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return n, nil
}

// Delete removes one notification, or every read one when id is empty.
func (s *NotificationService) Delete(ctx context.Context, caller *auth.Identity, id string) (int64, error) {
	if id == "" {
		n, err := s.DB.DeleteRead(ctx, caller.UserID)
		if err != nil {
			return 0, fmt.Errorf("delete read notifications: %w", err)
		}
		s.Logger.Debug("API", fmt.Sprintf("Cleared %d read notifications for %s", n, caller.UserID))
		return n, nil
	}

	n, err := s.DB.DeleteNotification(ctx, caller.UserID, id)
	if err != nil {
		return 0, fmt.Errorf("delete notification: %w", err)
	}
	if n == 0 {
		return 0, apperr.NotFound("Notification")
	}
	return n, nil
}
