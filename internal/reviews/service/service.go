package reviews

import (
	"context"
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
	reviewdb "venuly/internal/reviews/db"
	"venuly/internal/validation"
)

const duplicateReviewMessage = "You have already reviewed this event"

type ReviewDBLayer interface {
	CreateReview(ctx context.Context, review *models.Review) (*reviewdb.Rating, error)
	ReviewExists(ctx context.Context, eventID, reviewerID string) (bool, error)
	GetReviewByID(ctx context.Context, id string) (*models.Review, error)
	ListReviews(ctx context.Context, f reviewdb.ReviewFilter) ([]models.Review, error)
	UpdateReview(ctx context.Context, review *models.Review, columns ...string) error
}

type EventLookup interface {
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
}

type CategoriesInput struct {
	Communication   int `json:"communication" validate:"omitempty,min=1,max=5"`
	Professionalism int `json:"professionalism" validate:"omitempty,min=1,max=5"`
	Quality         int `json:"quality" validate:"omitempty,min=1,max=5"`
	Value           int `json:"value" validate:"omitempty,min=1,max=5"`
}

type CreateReviewRequest struct {
	EventID string `json:"eventId" validate:"required"`
	// RevieweeID is optional; the other party of the booking is implied.
	RevieweeID string          `json:"revieweeId"`
	Rating     int             `json:"rating" validate:"required,min=1,max=5"`
	Categories CategoriesInput `json:"categories"`
	Comment    string          `json:"comment" validate:"required,min=10,max=2000"`
	IsPublic   *bool           `json:"isPublic"`
}

type RespondRequest struct {
	Response string `json:"response" validate:"required,min=2,max=1000"`
}

type CategoryAverages struct {
	Communication   float64 `json:"communication"`
	Professionalism float64 `json:"professionalism"`
	Quality         float64 `json:"quality"`
	Value           float64 `json:"value"`
}

type Aggregate struct {
	AverageRating float64          `json:"averageRating"`
	TotalReviews  int              `json:"totalReviews"`
	Categories    CategoryAverages `json:"categories"`
}

type ReviewList struct {
	Reviews   []models.Review `json:"reviews"`
	Aggregate Aggregate       `json:"aggregate"`
}

type ReviewService struct {
	DB        ReviewDBLayer
	Events    EventLookup
	Publisher *notify.Publisher
	Logger    *logger.Logger
}

func NewReviewService(db ReviewDBLayer, events EventLookup, publisher *notify.Publisher, log *logger.Logger) *ReviewService {
	return &ReviewService{DB: db, Events: events, Publisher: publisher, Logger: log}
}

func (s *ReviewService) CreateReview(ctx context.Context, caller *auth.Identity, req CreateReviewRequest) (*models.Review, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	event, err := s.Events.GetEventByID(ctx, req.EventID)
	if err != nil {
		return nil, apperr.FromStore(err, "Event", "")
	}
	if event.Status != models.EventCompleted {
		return nil, apperr.BadRequest("Can only review completed events")
	}

	var reviewType models.ReviewType
	var revieweeID string
	switch caller.UserID {
	case event.ClientID:
		reviewType, revieweeID = models.ReviewClientToOrganizer, event.BookedOrganizerID
	case event.BookedOrganizerID:
		reviewType, revieweeID = models.ReviewOrganizerToClient, event.ClientID
	default:
		return nil, apperr.Forbidden("only the client and the booked organizer can review this event")
	}
	if revieweeID == "" {
		return nil, apperr.BadRequest("Event has no booked organizer")
	}
	if req.RevieweeID == caller.UserID || revieweeID == caller.UserID {
		return nil, apperr.BadRequest("You cannot review yourself")
	}
	if req.RevieweeID != "" && req.RevieweeID != revieweeID {
		return nil, apperr.BadRequest("Reviewee did not take part in this event")
	}

	exists, err := s.DB.ReviewExists(ctx, event.ID, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("check existing review: %w", err)
	}
	if exists {
		return nil, apperr.BadRequest(duplicateReviewMessage)
	}

	now := time.Now().UTC()
	review := &models.Review{
		ID:         uuid.New().String(),
		EventID:    event.ID,
		ReviewerID: caller.UserID,
		RevieweeID: revieweeID,
		Type:       reviewType,
		Rating:     req.Rating,
		Categories: models.ReviewCategories(req.Categories),
		Comment:    strings.TrimSpace(req.Comment),
		IsPublic:   req.IsPublic == nil || *req.IsPublic,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	rating, err := s.DB.CreateReview(ctx, review)
	if err != nil {
		// the unique index catches a concurrent duplicate the pre-check missed
		if apperr.IsUniqueViolation(err) {
			return nil, apperr.BadRequest(duplicateReviewMessage)
		}
		return nil, fmt.Errorf("create review: %w", err)
	}
	if rating != nil {
		s.Logger.Info("API", fmt.Sprintf("Organizer %s rating now %.1f over %d reviews", revieweeID, rating.Average, rating.Count))
	}

	s.Publisher.Publish(ctx, models.DomainEvent{
		Type:        models.NotifyReviewReceived,
		RecipientID: revieweeID,
		ActorID:     caller.UserID,
		EntityID:    review.ID,
		Title:       "New review",
		Message:     fmt.Sprintf("You received a %d-star review for %q.", review.Rating, event.Title),
		Link:        "/reviews/" + review.ID,
	})
	return review, nil
}

// ListReviews returns public reviews and their aggregate.
func (s *ReviewService) ListReviews(ctx context.Context, revieweeID, eventID string) (*ReviewList, error) {
	list, err := s.DB.ListReviews(ctx, reviewdb.ReviewFilter{RevieweeID: revieweeID, EventID: eventID, PublicOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return &ReviewList{Reviews: list, Aggregate: aggregate(list)}, nil
}

func (s *ReviewService) Respond(ctx context.Context, caller *auth.Identity, id string, req RespondRequest) (*models.Review, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	review, err := s.DB.GetReviewByID(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "Review", "")
	}
	if review.RevieweeID != caller.UserID {
		return nil, apperr.Forbidden("only the reviewee can respond")
	}
	if review.Response != "" {
		return nil, apperr.BadRequest("Review already has a response")
	}

	now := time.Now().UTC()
	review.Response = strings.TrimSpace(req.Response)
	review.RespondedAt = &now
	if err := s.DB.UpdateReview(ctx, review, "response", "responded_at"); err != nil {
		return nil, fmt.Errorf("respond to review: %w", err)
	}
	return review, nil
}

func aggregate(list []models.Review) Aggregate {
	var agg Aggregate
	if len(list) == 0 {
		return agg
	}

	var total int
	var comm, prof, qual, val categorySum
	for _, r := range list {
		total += r.Rating
		comm.add(r.Categories.Communication)
		prof.add(r.Categories.Professionalism)
		qual.add(r.Categories.Quality)
		val.add(r.Categories.Value)
	}
	agg.TotalReviews = len(list)
	agg.AverageRating = round1(float64(total) / float64(len(list)))
	agg.Categories = CategoryAverages{
		Communication:   comm.avg(),
		Professionalism: prof.avg(),
		Quality:         qual.avg(),
		Value:           val.avg(),
	}
	return agg
}

// categorySum skips unrated (zero) categories.
type categorySum struct {
	sum, n int
}

func (c *categorySum) add(v int) {
	if v > 0 {
		c.sum += v
		c.n++
	}
}

func (c categorySum) avg() float64 {
	if c.n == 0 {
		return 0
	}
	return round1(float64(c.sum) / float64(c.n))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
