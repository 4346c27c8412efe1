package proposals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"venuly/internal/apperr"
	"venuly/internal/auth"
	"venuly/internal/logger"
	"venuly/internal/models"
	"venuly/internal/notify"
	proposaldb "venuly/internal/proposals/db"
	"venuly/internal/qr"
	"venuly/internal/validation"
)

const duplicateProposalMessage = "You already have an active proposal for this event"

type ProposalDBLayer interface {
	CreateProposal(ctx context.Context, proposal *models.Proposal, check proposaldb.EventCheck) error
	GetProposalByID(ctx context.Context, id string) (*models.Proposal, error)
	ListProposals(ctx context.Context, f proposaldb.ProposalFilter) ([]models.Proposal, error)
	UpdateProposal(ctx context.Context, proposal *models.Proposal, columns ...string) error
	AcceptProposal(ctx context.Context, proposalID string, check proposaldb.AcceptCheck) (*proposaldb.Acceptance, error)
}

// EventLookup is satisfied by the events store.
type EventLookup interface {
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
}

type ServiceInput struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Description string  `json:"description" validate:"max=1000"`
	Cost        float64 `json:"cost" validate:"gte=0"`
}

type CreateProposalRequest struct {
	EventID     string         `json:"eventId" validate:"required"`
	CoverLetter string         `json:"coverLetter" validate:"required,min=20,max=5000"`
	Services    []ServiceInput `json:"services" validate:"required,min=1,max=30,dive"`
	Currency    string         `json:"currency" validate:"omitempty,len=3"`
	ValidUntil  time.Time      `json:"validUntil" validate:"required"`
	// TotalCost is accepted for compatibility and ignored.
	TotalCost *float64 `json:"totalCost,omitempty"`
}

// UpdateProposalRequest carries either a status response (client or
// withdrawing organizer) or a revision (organizer).
type UpdateProposalRequest struct {
	Status      *models.ProposalStatus `json:"status" validate:"omitempty,oneof=NEGOTIATING ACCEPTED REJECTED WITHDRAWN"`
	CoverLetter *string                `json:"coverLetter" validate:"omitempty,min=20,max=5000"`
	Services    []ServiceInput         `json:"services" validate:"omitempty,min=1,max=30,dive"`
	ValidUntil  *time.Time             `json:"validUntil"`
}

func (r UpdateProposalRequest) isRevision() bool {
	return r.CoverLetter != nil || r.Services != nil || r.ValidUntil != nil
}

type VerifyPassRequest struct {
	Token string `json:"token" validate:"required"`
}

type PassVerification struct {
	Valid       bool                  `json:"valid"`
	ProposalID  string                `json:"proposalId"`
	EventID     string                `json:"eventId"`
	EventTitle  string                `json:"eventTitle"`
	EventDate   models.DateRange      `json:"eventDate"`
	ClientID    string                `json:"clientId"`
	OrganizerID string                `json:"organizerId"`
	Status      models.ProposalStatus `json:"status"`
	IssuedAt    time.Time             `json:"issuedAt"`
}

type ProposalService struct {
	DB        ProposalDBLayer
	Events    EventLookup
	Publisher *notify.Publisher
	QR        *qr.QRGenerator
	Logger    *logger.Logger
	now       func() time.Time
}

func NewProposalService(db ProposalDBLayer, events EventLookup, publisher *notify.Publisher, qrGen *qr.QRGenerator, log *logger.Logger) *ProposalService {
	return &ProposalService{DB: db, Events: events, Publisher: publisher, QR: qrGen, Logger: log, now: time.Now}
}

func (s *ProposalService) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

func (s *ProposalService) CreateProposal(ctx context.Context, caller *auth.Identity, req CreateProposalRequest) (*models.Proposal, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	now := s.clock()
	if !req.ValidUntil.After(now) {
		return nil, apperr.Validation(map[string]string{"validUntil": "must be in the future"})
	}

	services := toServices(req.Services)
	proposal := &models.Proposal{
		ID:          uuid.New().String(),
		EventID:     req.EventID,
		OrganizerID: caller.UserID,
		Status:      models.ProposalPending,
		CoverLetter: strings.TrimSpace(req.CoverLetter),
		Services:    services,
		TotalCost:   models.SumServices(services),
		ValidUntil:  req.ValidUntil.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var event *models.Event
	err := s.DB.CreateProposal(ctx, proposal, func(e *models.Event) error {
		if !e.IsPublished {
			return apperr.BadRequest("Event is not accepting proposals")
		}
		switch e.Status {
		case models.EventBooked, models.EventCompleted, models.EventCancelled:
			return apperr.BadRequest("Event is not accepting proposals")
		}
		if e.ClientID == caller.UserID {
			return apperr.BadRequest("You cannot propose on your own event")
		}
		proposal.ClientID = e.ClientID
		proposal.Currency = currencyOr(req.Currency, e.Budget.Currency)
		event = e
		return nil
	})
	if err != nil {
		return nil, mapStoreErr(err, "Event")
	}

	s.Logger.Info("API", fmt.Sprintf("Proposal %s submitted by %s for event %s (total %.2f)", proposal.ID, caller.UserID, proposal.EventID, proposal.TotalCost))
	s.Publisher.Publish(ctx, models.DomainEvent{
		Type:        models.NotifyProposalReceived,
		RecipientID: proposal.ClientID,
		ActorID:     caller.UserID,
		EntityID:    proposal.ID,
		Title:       "New proposal received",
		Message:     fmt.Sprintf("An organizer sent a proposal of %.2f %s for %q.", proposal.TotalCost, proposal.Currency, event.Title),
		Link:        "/proposals/" + proposal.ID,
	})
	return proposal, nil
}

func (s *ProposalService) ListProposals(ctx context.Context, caller *auth.Identity, eventID string, status models.ProposalStatus) ([]models.Proposal, error) {
	filter := proposaldb.ProposalFilter{EventID: eventID, Status: status}
	switch caller.Role {
	case models.RoleAdmin:
	case models.RoleOrganizer:
		filter.OrganizerID = caller.UserID
	case models.RoleClient:
		if eventID != "" {
			event, err := s.Events.GetEventByID(ctx, eventID)
			if err != nil {
				return nil, apperr.FromStore(err, "Event", "")
			}
			if event.ClientID != caller.UserID {
				return nil, apperr.Forbidden("you do not own this event")
			}
		}
		filter.ClientID = caller.UserID
	default:
		return nil, apperr.Forbidden("insufficient role")
	}

	proposals, err := s.DB.ListProposals(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	for i := range proposals {
		s.expireIfStale(ctx, &proposals[i])
	}
	return proposals, nil
}

func (s *ProposalService) GetProposal(ctx context.Context, caller *auth.Identity, id string) (*models.Proposal, error) {
	proposal, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(caller, proposal) {
		return nil, apperr.Forbidden("you are not a party to this proposal")
	}
	return proposal, nil
}

func (s *ProposalService) UpdateProposal(ctx context.Context, caller *auth.Identity, id string, req UpdateProposalRequest) (*models.Proposal, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if req.Status == nil && !req.isRevision() {
		return nil, apperr.BadRequest("Nothing to update")
	}

	proposal, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch caller.UserID {
	case proposal.ClientID:
		return s.respond(ctx, caller, proposal, req)
	case proposal.OrganizerID:
		if req.Status != nil {
			return s.withdraw(ctx, proposal, req)
		}
		return s.revise(ctx, proposal, req)
	default:
		if caller.IsAdmin() {
			return s.moderate(ctx, caller, proposal, req)
		}
		return nil, apperr.Forbidden("you are not a party to this proposal")
	}
}

// moderate lets an admin reject or withdraw an active proposal. Accepting
// books the client's event, so it stays with the client.
func (s *ProposalService) moderate(ctx context.Context, caller *auth.Identity, proposal *models.Proposal, req UpdateProposalRequest) (*models.Proposal, error) {
	if req.isRevision() || req.Status == nil ||
		(*req.Status != models.ProposalRejected && *req.Status != models.ProposalWithdrawn) {
		return nil, apperr.Forbidden("admins may only reject or withdraw a proposal")
	}
	if !proposal.Status.Active() {
		return nil, apperr.BadRequest("Proposal is no longer active")
	}

	now := s.clock()
	proposal.Status = *req.Status
	columns := []string{"status"}
	if proposal.Status == models.ProposalRejected {
		proposal.RespondedAt = &now
		columns = append(columns, "responded_at")
	}
	if err := s.DB.UpdateProposal(ctx, proposal, columns...); err != nil {
		return nil, fmt.Errorf("moderate proposal: %w", err)
	}
	s.Logger.Info("API", fmt.Sprintf("Admin %s set proposal %s to %s", caller.UserID, proposal.ID, proposal.Status))

	s.Publisher.Publish(ctx, models.DomainEvent{
		Type:        models.NotifyProposalRejected,
		RecipientID: proposal.OrganizerID,
		ActorID:     caller.UserID,
		EntityID:    proposal.ID,
		Title:       "Proposal closed",
		Message:     "An administrator closed your proposal.",
		Link:        "/proposals/" + proposal.ID,
	})
	return proposal, nil
}

func (s *ProposalService) respond(ctx context.Context, caller *auth.Identity, proposal *models.Proposal, req UpdateProposalRequest) (*models.Proposal, error) {
	if req.isRevision() {
		return nil, apperr.Forbidden("only the organizer can revise a proposal")
	}
	if *req.Status == models.ProposalWithdrawn {
		return nil, apperr.Forbidden("only the organizer can withdraw a proposal")
	}
	if !proposal.Status.Active() {
		return nil, apperr.BadRequest("Proposal is no longer active")
	}

	if *req.Status == models.ProposalAccepted {
		return s.accept(ctx, caller, proposal.ID)
	}

	now := s.clock()
	proposal.Status = *req.Status
	proposal.RespondedAt = &now
	if err := s.DB.UpdateProposal(ctx, proposal, "status", "responded_at"); err != nil {
		return nil, fmt.Errorf("update proposal: %w", err)
	}

	if proposal.Status == models.ProposalRejected {
		s.Publisher.Publish(ctx, models.DomainEvent{
			Type:        models.NotifyProposalRejected,
			RecipientID: proposal.OrganizerID,
			ActorID:     caller.UserID,
			EntityID:    proposal.ID,
			Title:       "Proposal declined",
			Message:     "The client declined your proposal.",
			Link:        "/proposals/" + proposal.ID,
		})
	}
	return proposal, nil
}

func (s *ProposalService) accept(ctx context.Context, caller *auth.Identity, proposalID string) (*models.Proposal, error) {
	now := s.clock()
	result, err := s.DB.AcceptProposal(ctx, proposalID, func(p *models.Proposal, e *models.Event) error {
		if !p.Status.Active() {
			return apperr.BadRequest("Proposal is no longer active")
		}
		if !p.ValidUntil.After(now) {
			return apperr.BadRequest("Proposal has expired")
		}
		if e.ClientID != caller.UserID {
			return apperr.Forbidden("you do not own this event")
		}
		if e.Status == models.EventBooked || e.Status == models.EventCompleted || e.Status == models.EventCancelled {
			return apperr.BadRequest("Event can no longer be booked")
		}
		return nil
	})
	if err != nil {
		return nil, mapStoreErr(err, "Proposal")
	}

	s.Logger.Info("API", fmt.Sprintf("Proposal %s accepted; event %s booked, %d other proposals rejected",
		result.Proposal.ID, result.Event.ID, len(result.Rejected)))

	s.Publisher.Publish(ctx, models.DomainEvent{
		Type:        models.NotifyProposalAccepted,
		RecipientID: result.Proposal.OrganizerID,
		ActorID:     caller.UserID,
		EntityID:    result.Proposal.ID,
		Title:       "Proposal accepted",
		Message:     fmt.Sprintf("Your proposal for %q was accepted.", result.Event.Title),
		Link:        "/proposals/" + result.Proposal.ID,
	})
	for _, other := range result.Rejected {
		s.Publisher.Publish(ctx, models.DomainEvent{
			Type:        models.NotifyProposalRejected,
			RecipientID: other.OrganizerID,
			ActorID:     caller.UserID,
			EntityID:    other.ID,
			Title:       "Proposal declined",
			Message:     fmt.Sprintf("The client booked another organizer for %q.", result.Event.Title),
			Link:        "/proposals/" + other.ID,
		})
	}
	return result.Proposal, nil
}

func (s *ProposalService) withdraw(ctx context.Context, proposal *models.Proposal, req UpdateProposalRequest) (*models.Proposal, error) {
	if *req.Status != models.ProposalWithdrawn || req.isRevision() {
		return nil, apperr.Forbidden("organizers may only withdraw or revise")
	}
	if !proposal.Status.Active() {
		return nil, apperr.BadRequest("Proposal is no longer active")
	}

	proposal.Status = models.ProposalWithdrawn
	if err := s.DB.UpdateProposal(ctx, proposal, "status"); err != nil {
		return nil, fmt.Errorf("withdraw proposal: %w", err)
	}
	return proposal, nil
}

func (s *ProposalService) revise(ctx context.Context, proposal *models.Proposal, req UpdateProposalRequest) (*models.Proposal, error) {
	if !proposal.Status.Active() {
		return nil, apperr.BadRequest("Proposal is no longer active")
	}

	var columns []string
	if req.CoverLetter != nil {
		proposal.CoverLetter = strings.TrimSpace(*req.CoverLetter)
		columns = append(columns, "cover_letter")
	}
	if req.Services != nil {
		proposal.Services = toServices(req.Services)
		proposal.TotalCost = models.SumServices(proposal.Services)
		columns = append(columns, "services", "total_cost")
	}
	if req.ValidUntil != nil {
		if !req.ValidUntil.After(s.clock()) {
			return nil, apperr.Validation(map[string]string{"validUntil": "must be in the future"})
		}
		proposal.ValidUntil = req.ValidUntil.UTC()
		columns = append(columns, "valid_until")
	}

	if err := s.DB.UpdateProposal(ctx, proposal, columns...); err != nil {
		return nil, fmt.Errorf("revise proposal: %w", err)
	}
	return proposal, nil
}

// BookingPass renders an encrypted QR pass for an accepted proposal.
func (s *ProposalService) BookingPass(ctx context.Context, caller *auth.Identity, id string) ([]byte, error) {
	proposal, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.UserID != proposal.ClientID && caller.UserID != proposal.OrganizerID {
		return nil, apperr.Forbidden("you are not a party to this booking")
	}
	if proposal.Status != models.ProposalAccepted {
		return nil, apperr.BadRequest("Only accepted proposals have a booking pass")
	}

	png, _, err := s.QR.GenerateEncryptedQR(qr.BookingPass{
		ProposalID:  proposal.ID,
		EventID:     proposal.EventID,
		ClientID:    proposal.ClientID,
		OrganizerID: proposal.OrganizerID,
		IssuedAt:    s.clock(),
	})
	if err != nil {
		return nil, fmt.Errorf("generate booking pass: %w", err)
	}
	return png, nil
}

// VerifyPass checks a scanned pass against the current booking.
func (s *ProposalService) VerifyPass(ctx context.Context, req VerifyPassRequest) (*PassVerification, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	pass, err := s.QR.DecryptPass(strings.TrimSpace(req.Token))
	if err != nil {
		s.Logger.LogSecurity("PASS_REJECTED", err.Error())
		return nil, apperr.BadRequest("Invalid booking pass")
	}

	proposal, err := s.load(ctx, pass.ProposalID)
	if err != nil {
		return nil, err
	}
	event, err := s.Events.GetEventByID(ctx, proposal.EventID)
	if err != nil {
		return nil, apperr.FromStore(err, "Event", "")
	}

	return &PassVerification{
		Valid:       proposal.Status == models.ProposalAccepted && event.BookedProposalID == proposal.ID,
		ProposalID:  proposal.ID,
		EventID:     event.ID,
		EventTitle:  event.Title,
		EventDate:   event.EventDate,
		ClientID:    proposal.ClientID,
		OrganizerID: proposal.OrganizerID,
		Status:      proposal.Status,
		IssuedAt:    pass.IssuedAt,
	}, nil
}

func (s *ProposalService) load(ctx context.Context, id string) (*models.Proposal, error) {
	proposal, err := s.DB.GetProposalByID(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "Proposal", "")
	}
	s.expireIfStale(ctx, proposal)
	return proposal, nil
}

// expireIfStale moves an active proposal past its validUntil to EXPIRED,
// which also frees the organizer's active slot on the event.
func (s *ProposalService) expireIfStale(ctx context.Context, p *models.Proposal) {
	if !p.Status.Active() || p.ValidUntil.After(s.clock()) {
		return
	}
	p.Status = models.ProposalExpired
	if err := s.DB.UpdateProposal(ctx, p, "status"); err != nil {
		s.Logger.Warn("DATABASE", fmt.Sprintf("Failed to expire proposal %s: %v", p.ID, err))
	}
}

func canView(caller *auth.Identity, p *models.Proposal) bool {
	return caller.IsAdmin() || caller.UserID == p.OrganizerID || caller.UserID == p.ClientID
}

func mapStoreErr(err error, entity string) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.FromStore(err, entity, duplicateProposalMessage)
}

func toServices(in []ServiceInput) []models.ProposalService {
	out := make([]models.ProposalService, len(in))
	for i, svc := range in {
		out[i] = models.ProposalService{
			Name:        strings.TrimSpace(svc.Name),
			Description: strings.TrimSpace(svc.Description),
			Cost:        svc.Cost,
		}
	}
	return out
}

func currencyOr(requested, fallback string) string {
	if requested != "" {
		return strings.ToUpper(requested)
	}
	if fallback != "" {
		return fallback
	}
	return "USD"
}
