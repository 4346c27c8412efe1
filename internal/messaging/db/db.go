package db

import (
	"context"

	"github.com/uptrace/bun"

	"venuly/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// GetOrCreateConversation returns the conversation for the pair and event,
// inserting conv when none exists yet. Concurrent starts converge on one row.
func (d *DB) GetOrCreateConversation(ctx context.Context, conv *models.Conversation) (*models.Conversation, bool, error) {
	res, err := d.Bun.NewInsert().
		Model(conv).
		On("CONFLICT (participant_a, participant_b, event_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, false, err
	}
	created := false
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		created = true
	}

	var existing models.Conversation
	err = d.Bun.NewSelect().
		Model(&existing).
		Where("participant_a = ?", conv.ParticipantA).
		Where("participant_b = ?", conv.ParticipantB).
		Where("event_id = ?", conv.EventID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, false, err
	}
	return &existing, created, nil
}

func (d *DB) GetConversationByID(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := d.Bun.NewSelect().
		Model(&conv).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations orders by latest activity.
func (d *DB) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	list := []models.Conversation{}
	err := d.Bun.NewSelect().
		Model(&list).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("participant_a = ?", userID).WhereOr("participant_b = ?", userID)
		}).
		OrderExpr("COALESCE(last_message_at, created_at) DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return list, nil
}

// CreateMessage stores msg and moves the conversation's last-message marker.
func (d *DB) CreateMessage(ctx context.Context, msg *models.Message, preview string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(msg).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewUpdate().
			Model((*models.Conversation)(nil)).
			Set("last_message_at = ?", msg.CreatedAt).
			Set("last_message_preview = ?", preview).
			Where("id = ?", msg.ConversationID).
			Exec(ctx)
		return err
	})
}

func (d *DB) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, int, error) {
	list := []models.Message{}
	total, err := d.Bun.NewSelect().
		Model(&list).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// MarkConversationRead marks messages sent by anyone but readerID as read.
func (d *DB) MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Message)(nil)).
		Set("is_read = ?", true).
		Where("conversation_id = ?", conversationID).
		Where("sender_id <> ?", readerID).
		Where("is_read = ?", false).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) CountUnread(ctx context.Context, conversationID, readerID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Message)(nil)).
		Where("conversation_id = ?", conversationID).
		Where("sender_id <> ?", readerID).
		Where("is_read = ?", false).
		Count(ctx)
}

