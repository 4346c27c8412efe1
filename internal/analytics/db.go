package analytics

import (
	"context"

	"github.com/uptrace/bun"

	"venuly/internal/models"
)

// DB runs the aggregate queries behind the dashboards.
type DB struct {
	Bun *bun.DB
}

// Bucket is one GROUP BY row: a status or role and how many rows carry it.
type Bucket struct {
	Key   string `bun:"bucket"`
	Total int    `bun:"total"`
}

func (d *DB) countBy(ctx context.Context, table, column string, where func(*bun.SelectQuery) *bun.SelectQuery) ([]Bucket, error) {
	var rows []Bucket
	q := d.Bun.NewSelect().
		TableExpr("?", bun.Ident(table)).
		ColumnExpr("? AS bucket", bun.Ident(column)).
		ColumnExpr("COUNT(*) AS total").
		GroupExpr("?", bun.Ident(column))
	if where != nil {
		q = where(q)
	}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ProposalCounts groups proposals by status; an empty organizerID counts all.
func (d *DB) ProposalCounts(ctx context.Context, organizerID string) ([]Bucket, error) {
	return d.countBy(ctx, "proposals", "status", func(q *bun.SelectQuery) *bun.SelectQuery {
		if organizerID != "" {
			q = q.Where("organizer_id = ?", organizerID)
		}
		return q
	})
}

func (d *DB) EventCounts(ctx context.Context) ([]Bucket, error) {
	return d.countBy(ctx, "events", "status", nil)
}

func (d *DB) UserCounts(ctx context.Context) ([]Bucket, error) {
	return d.countBy(ctx, "users", "role", nil)
}

// FundedPayments returns payments whose card charge succeeded, oldest first.
func (d *DB) FundedPayments(ctx context.Context, organizerID string) ([]models.Payment, error) {
	list := []models.Payment{}
	q := d.Bun.NewSelect().Model(&list).Where("status = ?", models.PaymentCompleted)
	if organizerID != "" {
		q = q.Where("organizer_id = ?", organizerID)
	}
	if err := q.Order("created_at ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return list, nil
}

// OrganizerStats reads the rating cache kept on the profile. A missing
// profile yields zero stats.
func (d *DB) OrganizerStats(ctx context.Context, organizerID string) (models.OrganizerStats, error) {
	var profile models.OrganizerProfile
	err := d.Bun.NewSelect().
		Model(&profile).
		Where("user_id = ?", organizerID).
		Limit(1).
		Scan(ctx)
	return profile.Stats, err
}
