package db

import (
	"context"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"venuly/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// EventFilter drives the listing. Nil budget bounds and empty strings mean "any".
type EventFilter struct {
	ClientID      string // set for "mine" listings, which include drafts
	PublishedOnly bool
	Type          models.EventType
	Status        models.EventStatus
	City          string
	MinBudget     *float64
	MaxBudget     *float64
	Query         string
	Limit         int
	Offset        int
}

// likeEscaper makes user input match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func (d *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	_, err := d.Bun.NewInsert().Model(event).Exec(ctx)
	return err
}

func (d *DB) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	event.Normalize()
	return &event, nil
}

// UpdateEvent writes the named columns and bumps updated_at.
func (d *DB) UpdateEvent(ctx context.Context, event *models.Event, columns ...string) error {
	event.UpdatedAt = time.Now().UTC()
	_, err := d.Bun.NewUpdate().
		Model(event).
		Column(append(columns, "updated_at")...).
		WherePK().
		Exec(ctx)
	return err
}

func (d *DB) DeleteEvent(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Event)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// IncrementViewCount is a single atomic statement; concurrent readers never lose counts.
func (d *DB) IncrementViewCount(ctx context.Context, id string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("view_count = view_count + 1").
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// ListEvents returns one page, newest first, plus the total matching count.
func (d *DB) ListEvents(ctx context.Context, f EventFilter) ([]models.Event, int, error) {
	events := []models.Event{}
	q := d.Bun.NewSelect().Model(&events)

	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.PublishedOnly {
		q = q.Where("is_published = ?", true)
	}
	if f.Type != "" {
		q = q.Where("event_type = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.City != "" {
		q = q.Where("LOWER(location_city) = ?", strings.ToLower(strings.TrimSpace(f.City)))
	}
	// budget ranges overlap the requested window
	if f.MinBudget != nil {
		q = q.Where("budget_max >= ?", *f.MinBudget)
	}
	if f.MaxBudget != nil {
		q = q.Where("budget_min <= ?", *f.MaxBudget)
	}
	if f.Query != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(f.Query)) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(title) LIKE ? ESCAPE '!'", like).WhereOr("LOWER(description) LIKE ? ESCAPE '!'", like)
		})
	}

	total, err := q.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	for i := range events {
		events[i].Normalize()
	}
	return events, total, nil
}
