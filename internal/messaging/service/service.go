package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"venuly/internal/apperr"
	"venuly/internal/auth"
	"venuly/internal/logger"
	"venuly/internal/models"
	"venuly/internal/notify"
	"venuly/internal/validation"
)

const previewLength = 100

type MessagingDBLayer interface {
	GetOrCreateConversation(ctx context.Context, conv *models.Conversation) (*models.Conversation, bool, error)
	GetConversationByID(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	CreateMessage(ctx context.Context, msg *models.Message, preview string) error
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, int, error)
	MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error)
	CountUnread(ctx context.Context, conversationID, readerID string) (int, error)
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type EventLookup interface {
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
}

type StartConversationRequest struct {
	ParticipantID string `json:"participantId" validate:"required"`
	EventID       string `json:"eventId"`
	Message       string `json:"message" validate:"omitempty,max=5000"`
}

type SendMessageRequest struct {
	Content string `json:"content" validate:"required,min=1,max=5000"`
}

type ConversationSummary struct {
	models.Conversation
	UnreadCount int `json:"unreadCount"`
}

type MessagePage struct {
	Messages []models.Message `json:"messages"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
}

type MessagingService struct {
	DB        MessagingDBLayer
	Users     UserLookup
	Events    EventLookup
	Publisher *notify.Publisher
	Logger    *logger.Logger
}

func NewMessagingService(db MessagingDBLayer, users UserLookup, events EventLookup, publisher *notify.Publisher, log *logger.Logger) *MessagingService {
	return &MessagingService{DB: db, Users: users, Events: events, Publisher: publisher, Logger: log}
}

// StartConversation returns the existing conversation for the pair and event
// or opens a new one, optionally sending a first message.
func (s *MessagingService) StartConversation(ctx context.Context, caller *auth.Identity, req StartConversationRequest) (*models.Conversation, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if req.ParticipantID == caller.UserID {
		return nil, apperr.BadRequest("You cannot message yourself")
	}

	other, err := s.Users.GetUserByID(ctx, req.ParticipantID)
	if err != nil {
		return nil, apperr.FromStore(err, "User", "")
	}
	if !other.IsActive {
		return nil, apperr.BadRequest("User is not available")
	}

	if req.EventID != "" {
		event, err := s.Events.GetEventByID(ctx, req.EventID)
		if err != nil {
			return nil, apperr.FromStore(err, "Event", "")
		}
		if event.ClientID != caller.UserID && event.ClientID != other.ID {
			return nil, apperr.Forbidden("conversations about an event must include its client")
		}
	}

	conv := &models.Conversation{
		ID:        uuid.New().String(),
		EventID:   req.EventID,
		CreatedAt: time.Now().UTC(),
	}
	conv.SetParticipants(caller.UserID, other.ID)

	conv, created, err := s.DB.GetOrCreateConversation(ctx, conv)
	if err != nil {
		return nil, fmt.Errorf("start conversation: %w", err)
	}
	if created {
		s.Logger.Info("API", fmt.Sprintf("Conversation %s opened between %s and %s", conv.ID, caller.UserID, other.ID))
	}

	if strings.TrimSpace(req.Message) != "" {
		if _, err := s.send(ctx, caller, conv, req.Message); err != nil {
			return nil, err
		}
		return s.DB.GetConversationByID(ctx, conv.ID)
	}
	return conv, nil
}

func (s *MessagingService) ListConversations(ctx context.Context, caller *auth.Identity) ([]ConversationSummary, error) {
	list, err := s.DB.ListConversations(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	out := make([]ConversationSummary, 0, len(list))
	for _, c := range list {
		unread, err := s.DB.CountUnread(ctx, c.ID, caller.UserID)
		if err != nil {
			return nil, fmt.Errorf("count unread: %w", err)
		}
		out = append(out, ConversationSummary{Conversation: c, UnreadCount: unread})
	}
	return out, nil
}

// ListMessages pages through a conversation oldest first and marks the other
// participant's messages read.
func (s *MessagingService) ListMessages(ctx context.Context, caller *auth.Identity, conversationID string, page, limit int) (*MessagePage, error) {
	if _, err := s.participantOf(ctx, caller, conversationID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	msgs, total, err := s.DB.ListMessages(ctx, conversationID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if _, err := s.DB.MarkConversationRead(ctx, conversationID, caller.UserID); err != nil {
		s.Logger.Warn("DATABASE", fmt.Sprintf("Failed to mark conversation %s read: %v", conversationID, err))
	}
	return &MessagePage{Messages: msgs, Total: total, Page: page, Limit: limit}, nil
}

func (s *MessagingService) SendMessage(ctx context.Context, caller *auth.Identity, conversationID string, req SendMessageRequest) (*models.Message, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperr.Validation(map[string]string{"content": "is required"})
	}

	conv, err := s.participantOf(ctx, caller, conversationID)
	if err != nil {
		return nil, err
	}
	return s.send(ctx, caller, conv, req.Content)
}

func (s *MessagingService) send(ctx context.Context, caller *auth.Identity, conv *models.Conversation, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	msg := &models.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       caller.UserID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.DB.CreateMessage(ctx, msg, preview(content)); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	s.Publisher.Publish(ctx, models.DomainEvent{
		Type:        models.NotifyNewMessage,
		RecipientID: conv.Other(caller.UserID),
		ActorID:     caller.UserID,
		EntityID:    conv.ID,
		Title:       "New message",
		Message:     preview(content),
		Link:        "/messages/" + conv.ID,
	})
	return msg, nil
}

func (s *MessagingService) participantOf(ctx context.Context, caller *auth.Identity, conversationID string) (*models.Conversation, error) {
	conv, err := s.DB.GetConversationByID(ctx, conversationID)
	if err != nil {
		return nil, apperr.FromStore(err, "Conversation", "")
	}
	if !conv.Has(caller.UserID) {
		return nil, apperr.Forbidden("you are not part of this conversation")
	}
	return conv, nil
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= previewLength {
		return content
	}
	return string([]rune(content)[:previewLength]) + "..."
}
