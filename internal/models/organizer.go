package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrganizerService struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	PriceFrom   float64 `json:"priceFrom"`
}

type PortfolioItem struct {
	Title       string `json:"title"`
	ImageURL    string `json:"imageUrl"`
	Description string `json:"description,omitempty"`
}

type Pricing struct {
	Minimum  float64 `bun:"minimum" json:"minimum"`
	Maximum  float64 `bun:"maximum" json:"maximum"`
	Currency string  `bun:"currency" json:"currency"`
}

type OrganizerStats struct {
	AverageRating   float64 `bun:"average_rating,notnull" json:"averageRating"`
	TotalReviews    int     `bun:"total_reviews,notnull" json:"totalReviews"`
	CompletedEvents int     `bun:"completed_events,notnull" json:"completedEvents"`
}

type OrganizerProfile struct {
	bun.BaseModel `bun:"table:organizer_profiles,alias:op"`

	ID              string             `bun:"id,pk" json:"id"`
	UserID          string             `bun:"user_id,notnull,unique" json:"userId"`
	BusinessName    string             `bun:"business_name,notnull" json:"businessName"`
	Bio             string             `bun:"bio" json:"bio"`
	Services        []OrganizerService `bun:"services" json:"services"`
	Specializations []string           `bun:"specializations" json:"specializations"`
	ServiceAreas    []string           `bun:"service_areas" json:"serviceAreas"`
	Pricing         Pricing            `bun:"embed:pricing_" json:"pricing"`
	Portfolio       []PortfolioItem    `bun:"portfolio" json:"portfolio"`
	YearsExperience int                `bun:"years_experience,notnull" json:"yearsExperience"`
	Website         string             `bun:"website,nullzero" json:"website,omitempty"`
	IsVerified      bool               `bun:"is_verified,notnull" json:"isVerified"`
	Stats           OrganizerStats     `bun:"embed:stats_" json:"stats"`
	CreatedAt       time.Time          `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt       time.Time          `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

func (p *OrganizerProfile) Normalize() {
	if p.Services == nil {
		p.Services = []OrganizerService{}
	}
	if p.Specializations == nil {
		p.Specializations = []string{}
	}
	if p.ServiceAreas == nil {
		p.ServiceAreas = []string{}
	}
	if p.Portfolio == nil {
		p.Portfolio = []PortfolioItem{}
	}
}
