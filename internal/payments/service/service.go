package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"venuly/internal/apperr"
	"venuly/internal/auth"
	"venuly/internal/logger"
	"venuly/internal/models"
	"venuly/internal/notify"
	paymentdb "venuly/internal/payments/db"
	"venuly/internal/validation"
)

type PaymentDBLayer interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPaymentByID(ctx context.Context, id string) (*models.Payment, error)
	GetPaymentByProposalID(ctx context.Context, proposalID string) (*models.Payment, error)
	GetPaymentByIntentID(ctx context.Context, intentID string) (*models.Payment, error)
	ListPayments(ctx context.Context, f paymentdb.PaymentFilter) ([]models.Payment, error)
	ModifyPayment(ctx context.Context, id string, mutate paymentdb.PaymentCheck, columns ...string) (*models.Payment, error)
}

type ProposalLookup interface {
	GetProposalByID(ctx context.Context, id string) (*models.Proposal, error)
}

// Locker serializes payment creation per proposal.
type Locker interface {
	Acquire(ctx context.Context, resource, owner string) (bool, error)
	Release(ctx context.Context, resource, owner string) error
}

type MilestoneInput struct {
	Title      string  `json:"title" validate:"required,max=120"`
	Percentage float64 `json:"percentage" validate:"gt=0,lte=100"`
}

type CreatePaymentRequest struct {
	ProposalID string           `json:"proposalId" validate:"required"`
	Milestones []MilestoneInput `json:"milestones" validate:"omitempty,max=10,dive"`
}

type Checkout struct {
	Payment      *models.Payment `json:"payment"`
	ClientSecret string          `json:"clientSecret"`
}

type PaymentService struct {
	DB         PaymentDBLayer
	Proposals  ProposalLookup
	Gateway    Gateway
	Locks      Locker
	Publisher  *notify.Publisher
	FeePercent float64
	Logger     *logger.Logger
}

func NewPaymentService(db PaymentDBLayer, proposals ProposalLookup, gateway Gateway, locks Locker, publisher *notify.Publisher, feePercent float64, log *logger.Logger) *PaymentService {
	return &PaymentService{
		DB:         db,
		Proposals:  proposals,
		Gateway:    gateway,
		Locks:      locks,
		Publisher:  publisher,
		FeePercent: feePercent,
		Logger:     log,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Fee splits amount into the platform fee and the organizer's net.
func (s *PaymentService) Fee(amount float64) (fee, net float64) {
	fee = round2(amount * s.FeePercent / 100)
	return fee, round2(amount - fee)
}

// buildMilestones turns percentages into amounts. The last milestone absorbs
// rounding so the amounts always add up to the total.
func buildMilestones(in []MilestoneInput, amount float64) ([]models.Milestone, error) {
	if len(in) == 0 {
		in = []MilestoneInput{{Title: "Full payment", Percentage: 100}}
	}

	var pct float64
	for _, m := range in {
		pct += m.Percentage
	}
	if math.Abs(pct-100) > 0.001 {
		return nil, apperr.Validation(map[string]string{"milestones": "percentages must add up to 100"})
	}

	out := make([]models.Milestone, len(in))
	var allocated float64
	for i, m := range in {
		share := round2(amount * m.Percentage / 100)
		if i == len(in)-1 {
			share = round2(amount - allocated)
		}
		allocated += share
		out[i] = models.Milestone{
			Title:      strings.TrimSpace(m.Title),
			Percentage: m.Percentage,
			Amount:     share,
			Status:     models.MilestonePending,
		}
	}
	return out, nil
}

// CreatePayment opens escrow for an accepted proposal and returns the Stripe
// client secret the browser confirms the card with.
func (s *PaymentService) CreatePayment(ctx context.Context, caller *auth.Identity, req CreatePaymentRequest) (*Checkout, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if s.Gateway == nil {
		return nil, apperr.BadRequest("Payments are not configured")
	}

	proposal, err := s.Proposals.GetProposalByID(ctx, req.ProposalID)
	if err != nil {
		return nil, apperr.FromStore(err, "Proposal", "")
	}
	if proposal.ClientID != caller.UserID {
		return nil, apperr.Forbidden("you do not own this booking")
	}
	if proposal.Status != models.ProposalAccepted {
		return nil, apperr.BadRequest("Only accepted proposals can be paid")
	}

	milestones, err := buildMilestones(req.Milestones, proposal.TotalCost)
	if err != nil {
		return nil, err
	}

	owner := uuid.New().String()
	if s.Locks != nil {
		ok, err := s.Locks.Acquire(ctx, proposal.ID, owner)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.BadRequest("Payment is already being processed")
		}
		defer func() {
			if err := s.Locks.Release(context.WithoutCancel(ctx), proposal.ID, owner); err != nil {
				s.Logger.Warn("REDIS", err.Error())
			}
		}()
	}

	if _, err := s.DB.GetPaymentByProposalID(ctx, proposal.ID); err == nil {
		return nil, apperr.BadRequest("Payment already exists for this proposal")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check existing payment: %w", err)
	}

	now := time.Now().UTC()
	fee, net := s.Fee(proposal.TotalCost)
	payment := &models.Payment{
		ID:           uuid.New().String(),
		ProposalID:   proposal.ID,
		EventID:      proposal.EventID,
		ClientID:     proposal.ClientID,
		OrganizerID:  proposal.OrganizerID,
		Amount:       round2(proposal.TotalCost),
		Currency:     proposal.Currency,
		PlatformFee:  fee,
		NetAmount:    net,
		Status:       models.PaymentPending,
		EscrowStatus: models.EscrowNotFunded,
		Milestones:   milestones,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	intent, err := s.Gateway.CreatePaymentIntent(ctx, IntentRequest{
		AmountCents:    int64(math.Round(payment.Amount * 100)),
		Currency:       payment.Currency,
		Description:    "Venuly booking " + proposal.ID,
		IdempotencyKey: "venuly-payment-" + proposal.ID,
		Metadata: map[string]string{
			"payment_id":  payment.ID,
			"proposal_id": proposal.ID,
			"event_id":    proposal.EventID,
		},
	})
	if err != nil {
		return nil, err
	}
	payment.StripePaymentIntentID = intent.ID

	if err := s.DB.CreatePayment(ctx, payment); err != nil {
		return nil, apperr.FromStore(err, "Payment", "Payment already exists for this proposal")
	}
	s.Logger.Info("API", fmt.Sprintf("Payment %s opened for proposal %s: %.2f %s (fee %.2f)",
		payment.ID, proposal.ID, payment.Amount, payment.Currency, payment.PlatformFee))
	return &Checkout{Payment: payment, ClientSecret: intent.ClientSecret}, nil
}

// HandleWebhook applies a signed Stripe event. Unknown event types and
// unknown intents are acknowledged and ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.Gateway == nil {
		return apperr.BadRequest("Payments are not configured")
	}
	event, err := s.Gateway.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) || errors.Is(err, ErrStripeNotConfigured) {
			return apperr.BadRequest("Invalid webhook signature")
		}
		return apperr.BadRequest("Invalid webhook payload")
	}

	var status models.PaymentStatus
	switch event.Type {
	case EventIntentSucceeded:
		status = models.PaymentCompleted
	case EventIntentFailed:
		status = models.PaymentFailed
	default:
		s.Logger.Debug("STRIPE", fmt.Sprintf("Ignoring webhook %s", event.Type))
		return nil
	}

	existing, err := s.DB.GetPaymentByIntentID(ctx, event.IntentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.Logger.Warn("STRIPE", fmt.Sprintf("Webhook %s for unknown intent %s", event.Type, event.IntentID))
			return nil
		}
		return fmt.Errorf("find payment for intent: %w", err)
	}

	changed := false
	payment, err := s.DB.ModifyPayment(ctx, existing.ID, func(p *models.Payment) error {
		if p.Status == models.PaymentCompleted {
			// already settled; Stripe redelivers
			return nil
		}
		changed = true
		p.Status = status
		if status == models.PaymentCompleted {
			p.EscrowStatus = models.EscrowHeld
		}
		return nil
	}, "status", "escrow_status")
	if err != nil {
		return fmt.Errorf("apply webhook: %w", err)
	}
	if !changed {
		return nil
	}

	s.Logger.Info("STRIPE", fmt.Sprintf("Payment %s is now %s", payment.ID, payment.Status))
	if payment.Status == models.PaymentCompleted {
		s.Publisher.Publish(ctx, models.DomainEvent{
			Type:        models.NotifyPaymentReceived,
			RecipientID: payment.OrganizerID,
			ActorID:     payment.ClientID,
			EntityID:    payment.ID,
			Title:       "Payment received",
			Message:     fmt.Sprintf("%.2f %s is now held in escrow for your booking.", payment.Amount, payment.Currency),
			Link:        "/payments/" + payment.ID,
		})
	}
	return nil
}

// ReleaseMilestone releases one milestone from escrow to the organizer.
func (s *PaymentService) ReleaseMilestone(ctx context.Context, caller *auth.Identity, id string, index int) (*models.Payment, error) {
	var released models.Milestone
	payment, err := s.DB.ModifyPayment(ctx, id, func(p *models.Payment) error {
		if p.ClientID != caller.UserID {
			return apperr.Forbidden("only the paying client can release funds")
		}
		if p.EscrowStatus != models.EscrowHeld && p.EscrowStatus != models.EscrowPartiallyReleased {
			return apperr.BadRequest("Funds are not held in escrow")
		}
		if index < 0 || index >= len(p.Milestones) {
			return apperr.NotFound("Milestone")
		}
		if p.Milestones[index].Status == models.MilestoneReleased {
			return apperr.BadRequest("Milestone already released")
		}

		now := time.Now().UTC()
		p.Milestones[index].Status = models.MilestoneReleased
		p.Milestones[index].ReleasedAt = &now
		released = p.Milestones[index]

		p.EscrowStatus = models.EscrowReleased
		for _, m := range p.Milestones {
			if m.Status != models.MilestoneReleased {
				p.EscrowStatus = models.EscrowPartiallyReleased
				break
			}
		}
		return nil
	}, "milestones", "escrow_status")
	if err != nil {
		return nil, apperr.FromStore(err, "Payment", "")
	}

	s.Logger.Info("API", fmt.Sprintf("Payment %s milestone %d released (%.2f); escrow %s", payment.ID, index, released.Amount, payment.EscrowStatus))
	s.Publisher.Publish(ctx, models.DomainEvent{
		Type:        models.NotifyPaymentReleased,
		RecipientID: payment.OrganizerID,
		ActorID:     caller.UserID,
		EntityID:    payment.ID,
		Title:       "Funds released",
		Message:     fmt.Sprintf("%.2f %s was released for %q.", released.Amount, payment.Currency, released.Title),
		Link:        "/payments/" + payment.ID,
	})
	return payment, nil
}

func (s *PaymentService) ListPayments(ctx context.Context, caller *auth.Identity, status models.PaymentStatus) ([]models.Payment, error) {
	filter := paymentdb.PaymentFilter{Status: status}
	if !caller.IsAdmin() {
		filter.ParticipantID = caller.UserID
	}
	list, err := s.DB.ListPayments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return list, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, caller *auth.Identity, id string) (*models.Payment, error) {
	payment, err := s.DB.GetPaymentByID(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "Payment", "")
	}
	if !caller.IsAdmin() && !payment.Participant(caller.UserID) {
		return nil, apperr.Forbidden("you are not a party to this payment")
	}
	return payment, nil
}
