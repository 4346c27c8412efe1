package db

import (
	"context"
	"math"
	"time"

	"github.com/uptrace/bun"

	"venuly/internal/models"
)

type DB struct {
	Bun *bun.DB
}

type ReviewFilter struct {
	RevieweeID string
	EventID    string
	PublicOnly bool
}

// Rating is an organizer's aggregate over public client reviews.
type Rating struct {
	Average float64
	Count   int
}

// CreateReview inserts the review. A client review of an organizer also
// refreshes the organizer profile's rating stats in the same transaction.
func (d *DB) CreateReview(ctx context.Context, review *models.Review) (*Rating, error) {
	var rating *Rating
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(review).Exec(ctx); err != nil {
			return err
		}
		if review.Type != models.ReviewClientToOrganizer {
			return nil
		}

		r, err := organizerRating(ctx, tx, review.RevieweeID)
		if err != nil {
			return err
		}
		_, err = tx.NewUpdate().
			Model((*models.OrganizerProfile)(nil)).
			Set("stats_average_rating = ?", r.Average).
			Set("stats_total_reviews = ?", r.Count).
			Set("updated_at = ?", time.Now().UTC()).
			Where("user_id = ?", review.RevieweeID).
			Exec(ctx)
		if err != nil {
			return err
		}
		rating = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rating, nil
}

func organizerRating(ctx context.Context, tx bun.IDB, organizerID string) (*Rating, error) {
	var avg float64
	var count int
	err := tx.NewSelect().
		Model((*models.Review)(nil)).
		ColumnExpr("COALESCE(AVG(rating), 0)").
		ColumnExpr("COUNT(*)").
		Where("reviewee_id = ?", organizerID).
		Where("type = ?", models.ReviewClientToOrganizer).
		Where("is_public = ?", true).
		Scan(ctx, &avg, &count)
	if err != nil {
		return nil, err
	}
	return &Rating{Average: math.Round(avg*10) / 10, Count: count}, nil
}

func (d *DB) ReviewExists(ctx context.Context, eventID, reviewerID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Review)(nil)).
		Where("event_id = ?", eventID).
		Where("reviewer_id = ?", reviewerID).
		Exists(ctx)
}

func (d *DB) GetReviewByID(ctx context.Context, id string) (*models.Review, error) {
	var review models.Review
	err := d.Bun.NewSelect().
		Model(&review).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (d *DB) ListReviews(ctx context.Context, f ReviewFilter) ([]models.Review, error) {
	reviews := []models.Review{}
	q := d.Bun.NewSelect().Model(&reviews)
	if f.RevieweeID != "" {
		q = q.Where("reviewee_id = ?", f.RevieweeID)
	}
	if f.EventID != "" {
		q = q.Where("event_id = ?", f.EventID)
	}
	if f.PublicOnly {
		q = q.Where("is_public = ?", true)
	}
	if err := q.Order("created_at DESC").Scan(ctx); err != nil {
		return nil, err
	}
	return reviews, nil
}

func (d *DB) UpdateReview(ctx context.Context, review *models.Review, columns ...string) error {
	review.UpdatedAt = time.Now().UTC()
	_, err := d.Bun.NewUpdate().
		Model(review).
		Column(append(columns, "updated_at")...).
		WherePK().
		Exec(ctx)
	return err
}
