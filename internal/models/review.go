package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ReviewType string

const (
	ReviewClientToOrganizer ReviewType = "CLIENT_TO_ORGANIZER"
	ReviewOrganizerToClient ReviewType = "ORGANIZER_TO_CLIENT"
)

type ReviewCategories struct {
	Communication   int `bun:"communication" json:"communication,omitempty"`
	Professionalism int `bun:"professionalism" json:"professionalism,omitempty"`
	Quality         int `bun:"quality" json:"quality,omitempty"`
	Value           int `bun:"value" json:"value,omitempty"`
}

type Review struct {
	bun.BaseModel `bun:"table:reviews,alias:r"`

	ID          string           `bun:"id,pk" json:"id"`
	EventID     string           `bun:"event_id,notnull" json:"eventId"`
	ReviewerID  string           `bun:"reviewer_id,notnull" json:"reviewerId"`
	RevieweeID  string           `bun:"reviewee_id,notnull" json:"revieweeId"`
	Type        ReviewType       `bun:"type,notnull" json:"type"`
	Rating      int              `bun:"rating,notnull" json:"rating"`
	Categories  ReviewCategories `bun:"embed:category_" json:"categories"`
	Comment     string           `bun:"comment,notnull" json:"comment"`
	IsPublic    bool             `bun:"is_public,notnull" json:"isPublic"`
	Response    string           `bun:"response,nullzero" json:"response,omitempty"`
	RespondedAt *time.Time       `bun:"responded_at" json:"respondedAt,omitempty"`
	CreatedAt   time.Time        `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time        `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}
