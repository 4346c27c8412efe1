package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

type Conversation struct {
	bun.BaseModel `bun:"table:conversations,alias:c"`

	ID string `bun:"id,pk" json:"id"`
	// ParticipantA < ParticipantB; the pair plus EventID is unique.
	ParticipantA       string     `bun:"participant_a,notnull" json:"-"`
	ParticipantB       string     `bun:"participant_b,notnull" json:"-"`
	ParticipantIDs     []string   `bun:"-" json:"participantIds"`
	EventID            string     `bun:"event_id,notnull" json:"eventId,omitempty"`
	LastMessageAt      *time.Time `bun:"last_message_at" json:"lastMessageAt,omitempty"`
	LastMessagePreview string     `bun:"last_message_preview" json:"lastMessagePreview,omitempty"`
	CreatedAt          time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// SetParticipants stores the pair in canonical order.
func (c *Conversation) SetParticipants(a, b string) {
	if b < a {
		a, b = b, a
	}
	c.ParticipantA, c.ParticipantB = a, b
	c.ParticipantIDs = []string{a, b}
}

func (c *Conversation) Has(userID string) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID string) string {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

var _ bun.AfterScanRowHook = (*Conversation)(nil)

func (c *Conversation) AfterScanRow(ctx context.Context) error {
	c.ParticipantIDs = []string{c.ParticipantA, c.ParticipantB}
	return nil
}

type Message struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID             string    `bun:"id,pk" json:"id"`
	ConversationID string    `bun:"conversation_id,notnull" json:"conversationId"`
	SenderID       string    `bun:"sender_id,notnull" json:"senderId"`
	Content        string    `bun:"content,notnull" json:"content"`
	IsRead         bool      `bun:"is_read,notnull" json:"isRead"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}
