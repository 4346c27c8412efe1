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

// UserFilter narrows the admin listing. Zero values mean "any".
type UserFilter struct {
	Role   models.Role
	Query  string
	Limit  int
	Offset int
}

func (d *DB) CreateUser(ctx context.Context, user *models.User) error {
	_, err := d.Bun.NewInsert().Model(user).Exec(ctx)
	return err
}

func (d *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail matches case-insensitively; emails are stored lower-cased.
func (d *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser writes the named columns and bumps updated_at.
func (d *DB) UpdateUser(ctx context.Context, user *models.User, columns ...string) error {
	user.UpdatedAt = time.Now().UTC()
	_, err := d.Bun.NewUpdate().
		Model(user).
		Column(append(columns, "updated_at")...).
		WherePK().
		Exec(ctx)
	return err
}

func (d *DB) UpdatePassword(ctx context.Context, userID, hash string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.User)(nil)).
		Set("password_hash = ?", hash).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", userID).
		Exec(ctx)
	return err
}

func (d *DB) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.User)(nil)).
		Set("last_login_at = ?", at).
		Where("id = ?", userID).
		Exec(ctx)
	return err
}

// ListUsers returns one page plus the total matching count.
func (d *DB) ListUsers(ctx context.Context, f UserFilter) ([]models.User, int, error) {
	users := []models.User{}
	q := d.Bun.NewSelect().Model(&users)
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.Query != "" {
		like := "%" + strings.ToLower(f.Query) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(email) LIKE ?", like).WhereOr("LOWER(name) LIKE ?", like)
		})
	}
	total, err := q.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
