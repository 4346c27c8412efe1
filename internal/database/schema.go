package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"venuly/internal/models"
)

// Models lists every table owned by the API.
var Models = []any{
	(*models.User)(nil),
	(*models.Event)(nil),
	(*models.Proposal)(nil),
	(*models.Review)(nil),
	(*models.OrganizerProfile)(nil),
	(*models.Payment)(nil),
	(*models.Notification)(nil),
	(*models.Conversation)(nil),
	(*models.Message)(nil),
}

type index struct {
	model   any
	name    string
	unique  bool
	columns []string
	where   string
}

var indexes = []index{
	{model: (*models.Event)(nil), name: "events_published_idx", columns: []string{"is_published", "created_at"}},
	{model: (*models.Event)(nil), name: "events_client_idx", columns: []string{"client_id"}},
	{
		model:   (*models.Proposal)(nil),
		name:    "proposals_active_event_organizer_uniq",
		unique:  true,
		columns: []string{"event_id", "organizer_id"},
		where:   "status IN ('PENDING', 'NEGOTIATING')",
	},
	{model: (*models.Proposal)(nil), name: "proposals_organizer_idx", columns: []string{"organizer_id"}},
	{model: (*models.Review)(nil), name: "reviews_event_reviewer_uniq", unique: true, columns: []string{"event_id", "reviewer_id"}},
	{model: (*models.Review)(nil), name: "reviews_reviewee_idx", columns: []string{"reviewee_id"}},
	{model: (*models.Notification)(nil), name: "notifications_user_idx", columns: []string{"user_id", "created_at"}},
	{
		model:   (*models.Conversation)(nil),
		name:    "conversations_pair_event_uniq",
		unique:  true,
		columns: []string{"participant_a", "participant_b", "event_id"},
	},
	{model: (*models.Message)(nil), name: "messages_conversation_idx", columns: []string{"conversation_id", "created_at"}},
}

// CreateSchema creates tables and indexes from the bun models. Postgres
// deployments use the SQL migrations instead; this serves SQLite.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, m := range Models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}
	for _, idx := range indexes {
		q := db.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.columns...).IfNotExists()
		if idx.unique {
			q = q.Unique()
		}
		if idx.where != "" {
			q = q.Where(idx.where)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}
