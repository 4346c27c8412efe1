package models

import (
	"time"

	"github.com/uptrace/bun"
)

type EventStatus string

const (
	EventDraft        EventStatus = "DRAFT"
	EventOpen         EventStatus = "OPEN"
	EventInDiscussion EventStatus = "IN_DISCUSSION"
	EventBooked       EventStatus = "BOOKED"
	EventCompleted    EventStatus = "COMPLETED"
	EventCancelled    EventStatus = "CANCELLED"
)

type EventType string

const (
	EventTypeWedding    EventType = "WEDDING"
	EventTypeCorporate  EventType = "CORPORATE"
	EventTypeBirthday   EventType = "BIRTHDAY"
	EventTypeConference EventType = "CONFERENCE"
	EventTypeParty      EventType = "PARTY"
	EventTypeConcert    EventType = "CONCERT"
	EventTypeFestival   EventType = "FESTIVAL"
	EventTypeOther      EventType = "OTHER"
)

type DateRange struct {
	Start time.Time `bun:"start,notnull" json:"start"`
	End   time.Time `bun:"end,notnull" json:"end"`
}

type Location struct {
	Venue   string `bun:"venue" json:"venue,omitempty"`
	Address string `bun:"address" json:"address,omitempty"`
	City    string `bun:"city,notnull" json:"city"`
	Country string `bun:"country,notnull" json:"country"`
}

type Budget struct {
	Min      float64 `bun:"min,notnull" json:"min"`
	Max      float64 `bun:"max,notnull" json:"max"`
	Currency string  `bun:"currency,notnull" json:"currency"`
}

type GuestCount struct {
	Min int `bun:"min,notnull" json:"min"`
	Max int `bun:"max,notnull" json:"max"`
}

type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	ID                string      `bun:"id,pk" json:"id"`
	ClientID          string      `bun:"client_id,notnull" json:"clientId"`
	Title             string      `bun:"title,notnull" json:"title"`
	Description       string      `bun:"description,notnull" json:"description"`
	EventType         EventType   `bun:"event_type,notnull" json:"eventType"`
	Status            EventStatus `bun:"status,notnull" json:"status"`
	EventDate         DateRange   `bun:"embed:event_date_" json:"eventDate"`
	Location          Location    `bun:"embed:location_" json:"location"`
	Budget            Budget      `bun:"embed:budget_" json:"budget"`
	GuestCount        GuestCount  `bun:"embed:guest_count_" json:"guestCount"`
	Requirements      []string    `bun:"requirements" json:"requirements"`
	Images            []string    `bun:"images" json:"images"`
	IsPublished       bool        `bun:"is_published,notnull" json:"isPublished"`
	PublishedAt       *time.Time  `bun:"published_at" json:"publishedAt,omitempty"`
	ProposalIDs       []string    `bun:"proposal_ids" json:"proposalIds"`
	BookedProposalID  string      `bun:"booked_proposal_id,nullzero" json:"bookedProposalId,omitempty"`
	BookedOrganizerID string      `bun:"booked_organizer_id,nullzero" json:"bookedOrganizerId,omitempty"`
	ViewCount         int         `bun:"view_count,notnull" json:"viewCount"`
	CreatedAt         time.Time   `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt         time.Time   `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// Normalize replaces nil slices so they serialize as [] rather than null.
func (e *Event) Normalize() {
	if e.Requirements == nil {
		e.Requirements = []string{}
	}
	if e.Images == nil {
		e.Images = []string{}
	}
	if e.ProposalIDs == nil {
		e.ProposalIDs = []string{}
	}
}
