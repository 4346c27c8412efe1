package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"venuly/internal/models"
)

type DB struct {
	Bun *bun.DB
}

type ProfileFilter struct {
	MinRating *float64
	Verified  bool
}

func (d *DB) CreateProfile(ctx context.Context, profile *models.OrganizerProfile) error {
	_, err := d.Bun.NewInsert().Model(profile).Exec(ctx)
	return err
}

func (d *DB) GetProfileByUserID(ctx context.Context, userID string) (*models.OrganizerProfile, error) {
	var profile models.OrganizerProfile
	err := d.Bun.NewSelect().
		Model(&profile).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	profile.Normalize()
	return &profile, nil
}

// UpdateProfile writes the named columns and bumps updated_at.
func (d *DB) UpdateProfile(ctx context.Context, profile *models.OrganizerProfile, columns ...string) error {
	profile.UpdatedAt = time.Now().UTC()
	_, err := d.Bun.NewUpdate().
		Model(profile).
		Column(append(columns, "updated_at")...).
		WherePK().
		Exec(ctx)
	return err
}

// ListProfiles orders by rating, best first. Array filters (service areas,
// specializations) are applied by the caller.
func (d *DB) ListProfiles(ctx context.Context, f ProfileFilter) ([]models.OrganizerProfile, error) {
	profiles := []models.OrganizerProfile{}
	q := d.Bun.NewSelect().Model(&profiles)
	if f.MinRating != nil {
		q = q.Where("stats_average_rating >= ?", *f.MinRating)
	}
	if f.Verified {
		q = q.Where("is_verified = ?", true)
	}
	err := q.
		Order("stats_average_rating DESC", "stats_total_reviews DESC", "created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	for i := range profiles {
		profiles[i].Normalize()
	}
	return profiles, nil
}
