package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ProposalStatus string

const (
	ProposalPending     ProposalStatus = "PENDING"
	ProposalNegotiating ProposalStatus = "NEGOTIATING"
	ProposalAccepted    ProposalStatus = "ACCEPTED"
	ProposalRejected    ProposalStatus = "REJECTED"
	ProposalWithdrawn   ProposalStatus = "WITHDRAWN"
	ProposalExpired     ProposalStatus = "EXPIRED"
)

// Active statuses are covered by the one-per-(event, organizer) index.
func (s ProposalStatus) Active() bool {
	return s == ProposalPending || s == ProposalNegotiating
}

type ProposalService struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Cost        float64 `json:"cost"`
}

type Proposal struct {
	bun.BaseModel `bun:"table:proposals,alias:p"`

	ID          string            `bun:"id,pk" json:"id"`
	EventID     string            `bun:"event_id,notnull" json:"eventId"`
	OrganizerID string            `bun:"organizer_id,notnull" json:"organizerId"`
	ClientID    string            `bun:"client_id,notnull" json:"clientId"`
	Status      ProposalStatus    `bun:"status,notnull" json:"status"`
	CoverLetter string            `bun:"cover_letter,notnull" json:"coverLetter"`
	Services    []ProposalService `bun:"services" json:"services"`
	TotalCost   float64           `bun:"total_cost,notnull" json:"totalCost"`
	Currency    string            `bun:"currency,notnull" json:"currency"`
	ValidUntil  time.Time         `bun:"valid_until,notnull" json:"validUntil"`
	AcceptedAt  *time.Time        `bun:"accepted_at" json:"acceptedAt,omitempty"`
	RespondedAt *time.Time        `bun:"responded_at" json:"respondedAt,omitempty"`
	CreatedAt   time.Time         `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time         `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// SumServices is the only source of TotalCost.
func SumServices(services []ProposalService) float64 {
	var total float64
	for _, s := range services {
		total += s.Cost
	}
	return total
}
