package events

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"venuly/internal/apperr"
	"venuly/internal/auth"
	eventdb "venuly/internal/events/db"
	"venuly/internal/logger"
	"venuly/internal/models"
	"venuly/internal/notify"
	"venuly/internal/qr"
	"venuly/internal/validation"
)

const (
	defaultPageSize = 12
	maxPageSize     = 50
)

type EventDBLayer interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
	UpdateEvent(ctx context.Context, event *models.Event, columns ...string) error
	DeleteEvent(ctx context.Context, id string) error
	IncrementViewCount(ctx context.Context, id string) error
	ListEvents(ctx context.Context, f eventdb.EventFilter) ([]models.Event, int, error)
}

type DateRangeInput struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required"`
}

type LocationInput struct {
	Venue   string `json:"venue" validate:"max=200"`
	Address string `json:"address" validate:"max=300"`
	City    string `json:"city" validate:"required,max=100"`
	Country string `json:"country" validate:"required,max=100"`
}

type BudgetInput struct {
	Min      float64 `json:"min" validate:"gte=0"`
	Max      float64 `json:"max" validate:"gte=0"`
	Currency string  `json:"currency" validate:"omitempty,len=3"`
}

type GuestCountInput struct {
	Min int `json:"min" validate:"gte=1"`
	Max int `json:"max" validate:"gte=1"`
}

type CreateEventRequest struct {
	Title        string           `json:"title" validate:"required,min=3,max=120"`
	Description  string           `json:"description" validate:"required,min=10,max=5000"`
	EventType    models.EventType `json:"eventType" validate:"required,oneof=WEDDING CORPORATE BIRTHDAY CONFERENCE PARTY CONCERT FESTIVAL OTHER"`
	EventDate    DateRangeInput   `json:"eventDate"`
	Location     LocationInput    `json:"location"`
	Budget       BudgetInput      `json:"budget"`
	GuestCount   GuestCountInput  `json:"guestCount"`
	Requirements []string         `json:"requirements" validate:"max=50,dive,max=300"`
	Images       []string         `json:"images" validate:"max=20,dive,url"`
}

// UpdateEventRequest is a partial update; nil fields are left alone.
type UpdateEventRequest struct {
	Title        *string             `json:"title" validate:"omitempty,min=3,max=120"`
	Description  *string             `json:"description" validate:"omitempty,min=10,max=5000"`
	EventType    *models.EventType   `json:"eventType" validate:"omitempty,oneof=WEDDING CORPORATE BIRTHDAY CONFERENCE PARTY CONCERT FESTIVAL OTHER"`
	Status       *models.EventStatus `json:"status" validate:"omitempty,oneof=DRAFT OPEN IN_DISCUSSION BOOKED COMPLETED CANCELLED"`
	EventDate    *DateRangeInput     `json:"eventDate"`
	Location     *LocationInput      `json:"location"`
	Budget       *BudgetInput        `json:"budget"`
	GuestCount   *GuestCountInput    `json:"guestCount"`
	Requirements []string            `json:"requirements" validate:"omitempty,max=50,dive,max=300"`
	Images       []string            `json:"images" validate:"omitempty,max=20,dive,url"`
}

type ListParams struct {
	Mine      bool
	Type      models.EventType
	Status    models.EventStatus
	City      string
	MinBudget *float64
	MaxBudget *float64
	Query     string
	Page      int
	Limit     int
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type EventPage struct {
	Events     []models.Event `json:"events"`
	Pagination Pagination     `json:"pagination"`
}

type EventService struct {
	DB        EventDBLayer
	Publisher *notify.Publisher
	QR        *qr.QRGenerator
	BaseURL   string
	Logger    *logger.Logger
}

func NewEventService(db EventDBLayer, publisher *notify.Publisher, qrGen *qr.QRGenerator, baseURL string, log *logger.Logger) *EventService {
	return &EventService{DB: db, Publisher: publisher, QR: qrGen, BaseURL: baseURL, Logger: log}
}

func (s *EventService) CreateEvent(ctx context.Context, id *auth.Identity, req CreateEventRequest) (*models.Event, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	event := &models.Event{
		ID:           uuid.New().String(),
		ClientID:     id.UserID,
		Title:        strings.TrimSpace(req.Title),
		Description:  strings.TrimSpace(req.Description),
		EventType:    req.EventType,
		Status:       models.EventDraft,
		Requirements: req.Requirements,
		Images:       req.Images,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	applyDate(event, req.EventDate)
	applyLocation(event, req.Location)
	applyBudget(event, req.Budget)
	applyGuests(event, req.GuestCount)
	event.Normalize()

	if err := checkRanges(event); err != nil {
		return nil, err
	}
	if err := s.DB.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.Logger.Info("API", fmt.Sprintf("Event %s created by %s", event.ID, id.UserID))
	return event, nil
}

func (s *EventService) ListEvents(ctx context.Context, caller *auth.Identity, p ListParams) (*EventPage, error) {
	page, limit := clampPage(p.Page, p.Limit)
	filter := eventdb.EventFilter{
		Type:      p.Type,
		Status:    p.Status,
		City:      p.City,
		MinBudget: p.MinBudget,
		MaxBudget: p.MaxBudget,
		Query:     strings.TrimSpace(p.Query),
		Limit:     limit,
		Offset:    (page - 1) * limit,
	}
	if p.Mine {
		if caller == nil {
			return nil, apperr.ErrUnauthorized
		}
		if caller.Role != models.RoleClient {
			return nil, apperr.Forbidden("clients only")
		}
		filter.ClientID = caller.UserID
	} else {
		filter.PublishedOnly = true
	}

	events, total, err := s.DB.ListEvents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return &EventPage{
		Events: events,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: int(math.Ceil(float64(total) / float64(limit))),
		},
	}, nil
}

// GetEvent counts a view for everyone except the owner. A failed increment is
// logged and never fails the read.
func (s *EventService) GetEvent(ctx context.Context, caller *auth.Identity, eventID string) (*models.Event, error) {
	event, err := s.load(ctx, eventID)
	if err != nil {
		return nil, err
	}

	isOwner := caller != nil && caller.UserID == event.ClientID
	if !event.IsPublished && !isOwner && !caller.IsAdmin() {
		return nil, apperr.NotFound("Event")
	}

	if !isOwner {
		if err := s.DB.IncrementViewCount(ctx, event.ID); err != nil {
			s.Logger.Warn("DATABASE", fmt.Sprintf("Failed to count view of event %s: %v", event.ID, err))
		} else {
			event.ViewCount++
		}
	}
	return event, nil
}

func (s *EventService) UpdateEvent(ctx context.Context, caller *auth.Identity, eventID string, req UpdateEventRequest) (*models.Event, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	event, err := s.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireOwnerOrAdmin(caller, event.ClientID); err != nil {
		return nil, err
	}

	var columns []string
	if req.Title != nil {
		event.Title = strings.TrimSpace(*req.Title)
		columns = append(columns, "title")
	}
	if req.Description != nil {
		event.Description = strings.TrimSpace(*req.Description)
		columns = append(columns, "description")
	}
	if req.EventType != nil {
		event.EventType = *req.EventType
		columns = append(columns, "event_type")
	}
	if req.Status != nil {
		event.Status = *req.Status
		columns = append(columns, "status")
	}
	if req.EventDate != nil {
		applyDate(event, *req.EventDate)
		columns = append(columns, "event_date_start", "event_date_end")
	}
	if req.Location != nil {
		applyLocation(event, *req.Location)
		columns = append(columns, "location_venue", "location_address", "location_city", "location_country")
	}
	if req.Budget != nil {
		applyBudget(event, *req.Budget)
		columns = append(columns, "budget_min", "budget_max", "budget_currency")
	}
	if req.GuestCount != nil {
		applyGuests(event, *req.GuestCount)
		columns = append(columns, "guest_count_min", "guest_count_max")
	}
	if req.Requirements != nil {
		event.Requirements = req.Requirements
		columns = append(columns, "requirements")
	}
	if req.Images != nil {
		event.Images = req.Images
		columns = append(columns, "images")
	}
	if len(columns) == 0 {
		return event, nil
	}

	// the merged event must still satisfy every range
	if err := checkRanges(event); err != nil {
		return nil, err
	}
	if err := s.DB.UpdateEvent(ctx, event, columns...); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return event, nil
}

func (s *EventService) PublishEvent(ctx context.Context, caller *auth.Identity, eventID string) (*models.Event, error) {
	event, err := s.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if caller == nil {
		return nil, apperr.ErrUnauthorized
	}
	if caller.UserID != event.ClientID {
		return nil, apperr.Forbidden("you do not own this event")
	}
	if event.IsPublished {
		return nil, apperr.BadRequest("Event is already published")
	}

	now := time.Now().UTC()
	event.IsPublished = true
	event.Status = models.EventOpen
	event.PublishedAt = &now
	if err := s.DB.UpdateEvent(ctx, event, "is_published", "status", "published_at"); err != nil {
		return nil, fmt.Errorf("publish event: %w", err)
	}

	s.Logger.Info("API", fmt.Sprintf("Event %s published", event.ID))
	s.Publisher.Publish(ctx, models.DomainEvent{
		Type:        models.NotifyEventPublished,
		RecipientID: event.ClientID,
		EntityID:    event.ID,
		Title:       "Your event is live",
		Message:     fmt.Sprintf("%q is now visible to organizers.", event.Title),
		Link:        "/events/" + event.ID,
	})
	return event, nil
}

func (s *EventService) DeleteEvent(ctx context.Context, caller *auth.Identity, eventID string) error {
	event, err := s.load(ctx, eventID)
	if err != nil {
		return err
	}
	if err := auth.RequireOwnerOrAdmin(caller, event.ClientID); err != nil {
		return err
	}
	if event.Status == models.EventBooked || event.Status == models.EventCompleted {
		return apperr.BadRequest("Cannot delete a booked or completed event")
	}

	if err := s.DB.DeleteEvent(ctx, event.ID); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	s.Logger.Info("API", fmt.Sprintf("Event %s deleted by %s", event.ID, caller.UserID))
	return nil
}

// ShareQR renders the public URL of a published event.
func (s *EventService) ShareQR(ctx context.Context, eventID string) ([]byte, error) {
	event, err := s.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsPublished {
		return nil, apperr.NotFound("Event")
	}
	return s.QR.ShareQR(fmt.Sprintf("%s/events/%s", s.BaseURL, event.ID))
}

func (s *EventService) load(ctx context.Context, eventID string) (*models.Event, error) {
	event, err := s.DB.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, apperr.FromStore(err, "Event", "")
	}
	return event, nil
}

func checkRanges(e *models.Event) error {
	details := map[string]string{}
	if e.EventDate.End.Before(e.EventDate.Start) {
		details["eventDate.end"] = "must be on or after eventDate.start"
	}
	if e.Budget.Max < e.Budget.Min {
		details["budget.max"] = "must be greater than or equal to budget.min"
	}
	if e.GuestCount.Max < e.GuestCount.Min {
		details["guestCount.max"] = "must be greater than or equal to guestCount.min"
	}
	if len(details) > 0 {
		return apperr.Validation(details)
	}
	return nil
}

func applyDate(e *models.Event, in DateRangeInput) {
	e.EventDate = models.DateRange{Start: in.Start.UTC(), End: in.End.UTC()}
}

func applyLocation(e *models.Event, in LocationInput) {
	e.Location = models.Location{
		Venue:   strings.TrimSpace(in.Venue),
		Address: strings.TrimSpace(in.Address),
		City:    strings.TrimSpace(in.City),
		Country: strings.TrimSpace(in.Country),
	}
}

func applyBudget(e *models.Event, in BudgetInput) {
	currency := strings.ToUpper(in.Currency)
	if currency == "" {
		currency = "USD"
	}
	e.Budget = models.Budget{Min: in.Min, Max: in.Max, Currency: currency}
}

func applyGuests(e *models.Event, in GuestCountInput) {
	e.GuestCount = models.GuestCount{Min: in.Min, Max: in.Max}
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}
