package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)

type EscrowStatus string

const (
	EscrowNotFunded         EscrowStatus = "NOT_FUNDED"
	EscrowHeld              EscrowStatus = "HELD"
	EscrowPartiallyReleased EscrowStatus = "PARTIALLY_RELEASED"
	EscrowReleased          EscrowStatus = "RELEASED"
)

type MilestoneStatus string

const (
	MilestonePending  MilestoneStatus = "PENDING"
	MilestoneReleased MilestoneStatus = "RELEASED"
)

type Milestone struct {
	Title      string          `json:"title"`
	Percentage float64         `json:"percentage"`
	Amount     float64         `json:"amount"`
	Status     MilestoneStatus `json:"status"`
	ReleasedAt *time.Time      `json:"releasedAt,omitempty"`
}

type Payment struct {
	bun.BaseModel `bun:"table:payments,alias:pay"`

	ID                    string        `bun:"id,pk" json:"id"`
	ProposalID            string        `bun:"proposal_id,notnull,unique" json:"proposalId"`
	EventID               string        `bun:"event_id,notnull" json:"eventId"`
	ClientID              string        `bun:"client_id,notnull" json:"clientId"`
	OrganizerID           string        `bun:"organizer_id,notnull" json:"organizerId"`
	Amount                float64       `bun:"amount,notnull" json:"amount"`
	Currency              string        `bun:"currency,notnull" json:"currency"`
	PlatformFee           float64       `bun:"platform_fee,notnull" json:"platformFee"`
	NetAmount             float64       `bun:"net_amount,notnull" json:"netAmount"`
	Status                PaymentStatus `bun:"status,notnull" json:"status"`
	EscrowStatus          EscrowStatus  `bun:"escrow_status,notnull" json:"escrowStatus"`
	Milestones            []Milestone   `bun:"milestones" json:"milestones"`
	StripePaymentIntentID string        `bun:"stripe_payment_intent_id,nullzero" json:"stripePaymentIntentId,omitempty"`
	CreatedAt             time.Time     `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt             time.Time     `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// Participant reports whether userID is the paying client or the paid organizer.
func (p *Payment) Participant(userID string) bool {
	return p.ClientID == userID || p.OrganizerID == userID
}
