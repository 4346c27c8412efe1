package models

import (
	"time"

	"github.com/uptrace/bun"
)

type NotificationType string

const (
	NotifyProposalReceived NotificationType = "PROPOSAL_RECEIVED"
	NotifyProposalAccepted NotificationType = "PROPOSAL_ACCEPTED"
	NotifyProposalRejected NotificationType = "PROPOSAL_REJECTED"
	NotifyEventPublished   NotificationType = "EVENT_PUBLISHED"
	NotifyReviewReceived   NotificationType = "REVIEW_RECEIVED"
	NotifyNewMessage       NotificationType = "NEW_MESSAGE"
	NotifyPaymentReceived  NotificationType = "PAYMENT_RECEIVED"
	NotifyPaymentReleased  NotificationType = "PAYMENT_RELEASED"
	NotifySystem           NotificationType = "SYSTEM"
)

type Notification struct {
	bun.BaseModel `bun:"table:notifications,alias:n"`

	ID        string           `bun:"id,pk" json:"id"`
	UserID    string           `bun:"user_id,notnull" json:"userId"`
	Type      NotificationType `bun:"type,notnull" json:"type"`
	Title     string           `bun:"title,notnull" json:"title"`
	Message   string           `bun:"message,notnull" json:"message"`
	Link      string           `bun:"link,nullzero" json:"link,omitempty"`
	EntityID  string           `bun:"entity_id,nullzero" json:"entityId,omitempty"`
	IsRead    bool             `bun:"is_read,notnull" json:"isRead"`
	ReadAt    *time.Time       `bun:"read_at" json:"readAt,omitempty"`
	CreatedAt time.Time        `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// DomainEvent is the envelope carried on the notifications topic.
type DomainEvent struct {
	ID          string           `json:"id"`
	Type        NotificationType `json:"type"`
	RecipientID string           `json:"recipientId"`
	ActorID     string           `json:"actorId,omitempty"`
	EntityID    string           `json:"entityId,omitempty"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Link        string           `json:"link,omitempty"`
	OccurredAt  time.Time        `json:"occurredAt"`
}
