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

func (d *DB) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := d.Bun.NewInsert().Model(n).Exec(ctx)
	return err
}

// ListNotifications returns the user's notifications newest first.
func (d *DB) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, int, error) {
	list := []models.Notification{}
	q := d.Bun.NewSelect().
		Model(&list).
		Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	total, err := q.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (d *DB) CountUnread(ctx context.Context, userID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Notification)(nil)).
		Where("user_id = ?", userID).
		Where("is_read = ?", false).
		Count(ctx)
}

// MarkRead marks the given ids read; with no ids it marks every unread
// notification of the user. Ids belonging to other users are ignored.
func (d *DB) MarkRead(ctx context.Context, userID string, ids []string, at time.Time) (int64, error) {
	q := d.Bun.NewUpdate().
		Model((*models.Notification)(nil)).
		Set("is_read = ?", true).
		Set("read_at = ?", at).
		Where("user_id = ?", userID).
		Where("is_read = ?", false)
	if len(ids) > 0 {
		q = q.Where("id IN (?)", bun.In(ids))
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) DeleteNotification(ctx context.Context, userID, id string) (int64, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.Notification)(nil)).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) DeleteRead(ctx context.Context, userID string) (int64, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.Notification)(nil)).
		Where("user_id = ?", userID).
		Where("is_read = ?", true).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
