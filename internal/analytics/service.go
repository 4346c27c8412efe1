package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"

	"venuly/internal/auth"
	"venuly/internal/logger"
	"venuly/internal/models"
)

type AnalyticsDBLayer interface {
	ProposalCounts(ctx context.Context, organizerID string) ([]Bucket, error)
	EventCounts(ctx context.Context) ([]Bucket, error)
	UserCounts(ctx context.Context) ([]Bucket, error)
	FundedPayments(ctx context.Context, organizerID string) ([]models.Payment, error)
	OrganizerStats(ctx context.Context, organizerID string) (models.OrganizerStats, error)
}

type Service struct {
	DB     AnalyticsDBLayer
	Logger *logger.Logger
}

func NewService(db AnalyticsDBLayer, log *logger.Logger) *Service {
	return &Service{DB: db, Logger: log}
}

// Earnings are kept per currency; amounts in different currencies are never summed.
type Earnings struct {
	Gross        float64 `json:"gross"`
	PlatformFees float64 `json:"platformFees"`
	Net          float64 `json:"net"`
	Released     float64 `json:"released"`
	Held         float64 `json:"held"`
	Payments     int     `json:"payments"`
}

type DailyEarnings struct {
	Date     string  `json:"date"`
	Currency string  `json:"currency"`
	Gross    float64 `json:"gross"`
	Payments int     `json:"payments"`
}

type OrganizerDashboard struct {
	Proposals      map[string]int        `json:"proposals"`
	TotalProposals int                   `json:"totalProposals"`
	AcceptanceRate float64               `json:"acceptanceRate"`
	Earnings       map[string]*Earnings  `json:"earnings"`
	Daily          []DailyEarnings       `json:"daily"`
	Stats          models.OrganizerStats `json:"stats"`
}

type PlatformDashboard struct {
	Users     map[string]int       `json:"users"`
	Events    map[string]int       `json:"events"`
	Proposals map[string]int       `json:"proposals"`
	Volume    map[string]*Earnings `json:"volume"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func toMap(rows []Bucket) (map[string]int, int) {
	out := make(map[string]int, len(rows))
	total := 0
	for _, r := range rows {
		out[r.Key] = r.Total
		total += r.Total
	}
	return out, total
}

// summarize folds funded payments into per-currency totals. Released counts
// milestone amounts already paid out of escrow.
func summarize(payments []models.Payment) map[string]*Earnings {
	out := map[string]*Earnings{}
	for _, p := range payments {
		e, ok := out[p.Currency]
		if !ok {
			e = &Earnings{}
			out[p.Currency] = e
		}
		e.Payments++
		e.Gross += p.Amount
		e.PlatformFees += p.PlatformFee
		e.Net += p.NetAmount
		for _, m := range p.Milestones {
			if m.Status == models.MilestoneReleased {
				e.Released += m.Amount
			}
		}
	}
	for _, e := range out {
		e.Gross = round2(e.Gross)
		e.PlatformFees = round2(e.PlatformFees)
		e.Net = round2(e.Net)
		e.Released = round2(e.Released)
		e.Held = round2(e.Gross - e.Released)
	}
	return out
}

func daily(payments []models.Payment) []DailyEarnings {
	type key struct{ date, currency string }
	buckets := map[key]*DailyEarnings{}
	for _, p := range payments {
		k := key{p.CreatedAt.UTC().Format("2006-01-02"), p.Currency}
		d, ok := buckets[k]
		if !ok {
			d = &DailyEarnings{Date: k.date, Currency: k.currency}
			buckets[k] = d
		}
		d.Gross += p.Amount
		d.Payments++
	}

	out := make([]DailyEarnings, 0, len(buckets))
	for _, d := range buckets {
		d.Gross = round2(d.Gross)
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Currency < out[j].Currency
	})
	return out
}

// OrganizerDashboard summarizes the caller's proposals, escrow and rating.
func (s *Service) OrganizerDashboard(ctx context.Context, caller *auth.Identity) (*OrganizerDashboard, error) {
	rows, err := s.DB.ProposalCounts(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("count proposals: %w", err)
	}
	proposals, total := toMap(rows)

	payments, err := s.DB.FundedPayments(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}

	stats, err := s.DB.OrganizerStats(ctx, caller.UserID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load profile stats: %w", err)
	}

	dash := &OrganizerDashboard{
		Proposals:      proposals,
		TotalProposals: total,
		Earnings:       summarize(payments),
		Daily:          daily(payments),
		Stats:          stats,
	}
	if total > 0 {
		dash.AcceptanceRate = math.Round(float64(proposals[string(models.ProposalAccepted)])/float64(total)*1000) / 10
	}
	return dash, nil
}

// PlatformDashboard is the admin overview across all users.
func (s *Service) PlatformDashboard(ctx context.Context) (*PlatformDashboard, error) {
	userRows, err := s.DB.UserCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	eventRows, err := s.DB.EventCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	proposalRows, err := s.DB.ProposalCounts(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("count proposals: %w", err)
	}
	payments, err := s.DB.FundedPayments(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}

	users, _ := toMap(userRows)
	events, _ := toMap(eventRows)
	proposals, _ := toMap(proposalRows)
	return &PlatformDashboard{
		Users:     users,
		Events:    events,
		Proposals: proposals,
		Volume:    summarize(payments),
	}, nil
}
