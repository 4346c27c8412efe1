package organizers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"venuly/internal/apperr"
	"venuly/internal/auth"
	"venuly/internal/logger"
	"venuly/internal/models"
	organizerdb "venuly/internal/organizers/db"
	"venuly/internal/validation"
)

type ProfileDBLayer interface {
	CreateProfile(ctx context.Context, profile *models.OrganizerProfile) error
	GetProfileByUserID(ctx context.Context, userID string) (*models.OrganizerProfile, error)
	UpdateProfile(ctx context.Context, profile *models.OrganizerProfile, columns ...string) error
	ListProfiles(ctx context.Context, f organizerdb.ProfileFilter) ([]models.OrganizerProfile, error)
}

type ServiceInput struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Description string  `json:"description" validate:"max=1000"`
	PriceFrom   float64 `json:"priceFrom" validate:"gte=0"`
}

type PortfolioInput struct {
	Title       string `json:"title" validate:"required,max=120"`
	ImageURL    string `json:"imageUrl" validate:"required,url"`
	Description string `json:"description" validate:"max=1000"`
}

type PricingInput struct {
	Minimum  float64 `json:"minimum" validate:"gte=0"`
	Maximum  float64 `json:"maximum" validate:"gte=0"`
	Currency string  `json:"currency" validate:"omitempty,len=3"`
}

// ProfileRequest has no stats or isVerified: those are never client-writable.
type ProfileRequest struct {
	BusinessName    *string          `json:"businessName" validate:"omitempty,min=2,max=120"`
	Bio             *string          `json:"bio" validate:"omitempty,max=2000"`
	Services        []ServiceInput   `json:"services" validate:"omitempty,max=50,dive"`
	Specializations []string         `json:"specializations" validate:"omitempty,max=20,dive,required,max=60"`
	ServiceAreas    []string         `json:"serviceAreas" validate:"omitempty,max=50,dive,required,max=80"`
	Pricing         *PricingInput    `json:"pricing"`
	Portfolio       []PortfolioInput `json:"portfolio" validate:"omitempty,max=50,dive"`
	YearsExperience *int             `json:"yearsExperience" validate:"omitempty,gte=0,lte=80"`
	Website         *string          `json:"website" validate:"omitempty,url"`
}

type DirectoryParams struct {
	City           string
	Specialization string
	MinRating      *float64
	Page           int
	Limit          int
}

type Directory struct {
	Organizers []models.OrganizerProfile `json:"organizers"`
	Total      int                       `json:"total"`
	Page       int                       `json:"page"`
	Limit      int                       `json:"limit"`
}

type OrganizerService struct {
	DB     ProfileDBLayer
	Logger *logger.Logger
}

func NewOrganizerService(db ProfileDBLayer, log *logger.Logger) *OrganizerService {
	return &OrganizerService{DB: db, Logger: log}
}

func (s *OrganizerService) GetOwnProfile(ctx context.Context, caller *auth.Identity) (*models.OrganizerProfile, error) {
	return s.GetProfile(ctx, caller.UserID)
}

func (s *OrganizerService) GetProfile(ctx context.Context, userID string) (*models.OrganizerProfile, error) {
	profile, err := s.DB.GetProfileByUserID(ctx, userID)
	if err != nil {
		return nil, apperr.FromStore(err, "Profile", "")
	}
	return profile, nil
}

func (s *OrganizerService) CreateProfile(ctx context.Context, caller *auth.Identity, req ProfileRequest) (*models.OrganizerProfile, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if req.BusinessName == nil {
		return nil, apperr.Validation(map[string]string{"businessName": "is required"})
	}
	if err := checkPricing(req.Pricing); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	profile := &models.OrganizerProfile{
		ID:        uuid.New().String(),
		UserID:    caller.UserID,
		Pricing:   models.Pricing{Currency: "USD"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	apply(profile, req)
	profile.Normalize()

	if err := s.DB.CreateProfile(ctx, profile); err != nil {
		return nil, apperr.FromStore(err, "Profile", "Profile already exists")
	}
	s.Logger.Info("API", fmt.Sprintf("Organizer %s created profile %q", caller.UserID, profile.BusinessName))
	return profile, nil
}

func (s *OrganizerService) UpdateProfile(ctx context.Context, caller *auth.Identity, req ProfileRequest) (*models.OrganizerProfile, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if err := checkPricing(req.Pricing); err != nil {
		return nil, err
	}

	profile, err := s.GetOwnProfile(ctx, caller)
	if err != nil {
		return nil, err
	}
	columns := apply(profile, req)
	if len(columns) == 0 {
		return profile, nil
	}
	if err := s.DB.UpdateProfile(ctx, profile, columns...); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return profile, nil
}

// ListProfiles is the public organizer directory.
func (s *OrganizerService) ListProfiles(ctx context.Context, p DirectoryParams) (*Directory, error) {
	profiles, err := s.DB.ListProfiles(ctx, organizerdb.ProfileFilter{MinRating: p.MinRating})
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	matched := profiles[:0]
	for _, profile := range profiles {
		if p.City != "" && !containsFold(profile.ServiceAreas, p.City) {
			continue
		}
		if p.Specialization != "" && !containsFold(profile.Specializations, p.Specialization) {
			continue
		}
		matched = append(matched, profile)
	}

	page, limit := p.Page, p.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 12
	}
	if limit > 50 {
		limit = 50
	}
	start := (page - 1) * limit
	end := start + limit
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}

	return &Directory{Organizers: matched[start:end], Total: len(matched), Page: page, Limit: limit}, nil
}

func checkPricing(p *PricingInput) error {
	if p != nil && p.Maximum > 0 && p.Maximum < p.Minimum {
		return apperr.Validation(map[string]string{"pricing.maximum": "must be greater than or equal to pricing.minimum"})
	}
	return nil
}

// apply copies the set fields of req onto profile and returns the touched columns.
func apply(profile *models.OrganizerProfile, req ProfileRequest) []string {
	var columns []string
	if req.BusinessName != nil {
		profile.BusinessName = strings.TrimSpace(*req.BusinessName)
		columns = append(columns, "business_name")
	}
	if req.Bio != nil {
		profile.Bio = strings.TrimSpace(*req.Bio)
		columns = append(columns, "bio")
	}
	if req.Services != nil {
		profile.Services = make([]models.OrganizerService, len(req.Services))
		for i, svc := range req.Services {
			profile.Services[i] = models.OrganizerService(svc)
		}
		columns = append(columns, "services")
	}
	if req.Specializations != nil {
		profile.Specializations = trimAll(req.Specializations)
		columns = append(columns, "specializations")
	}
	if req.ServiceAreas != nil {
		profile.ServiceAreas = trimAll(req.ServiceAreas)
		columns = append(columns, "service_areas")
	}
	if req.Pricing != nil {
		currency := strings.ToUpper(req.Pricing.Currency)
		if currency == "" {
			currency = profile.Pricing.Currency
		}
		profile.Pricing = models.Pricing{Minimum: req.Pricing.Minimum, Maximum: req.Pricing.Maximum, Currency: currency}
		columns = append(columns, "pricing_minimum", "pricing_maximum", "pricing_currency")
	}
	if req.Portfolio != nil {
		profile.Portfolio = make([]models.PortfolioItem, len(req.Portfolio))
		for i, item := range req.Portfolio {
			profile.Portfolio[i] = models.PortfolioItem(item)
		}
		columns = append(columns, "portfolio")
	}
	if req.YearsExperience != nil {
		profile.YearsExperience = *req.YearsExperience
		columns = append(columns, "years_experience")
	}
	if req.Website != nil {
		profile.Website = strings.TrimSpace(*req.Website)
		columns = append(columns, "website")
	}
	return columns
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
