package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"venuly/internal/database"
	"venuly/internal/models"
)

type DB struct {
	Bun *bun.DB
}

type PaymentFilter struct {
	// ParticipantID matches either the client or the organizer.
	ParticipantID string
	Status        models.PaymentStatus
}

// PaymentCheck inspects the locked payment row; a non-nil error aborts the
// transaction and is returned as is.
type PaymentCheck func(p *models.Payment) error

func (d *DB) CreatePayment(ctx context.Context, p *models.Payment) error {
	_, err := d.Bun.NewInsert().Model(p).Exec(ctx)
	return err
}

func (d *DB) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	return d.getBy(ctx, "id", id)
}

func (d *DB) GetPaymentByProposalID(ctx context.Context, proposalID string) (*models.Payment, error) {
	return d.getBy(ctx, "proposal_id", proposalID)
}

func (d *DB) GetPaymentByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	return d.getBy(ctx, "stripe_payment_intent_id", intentID)
}

func (d *DB) getBy(ctx context.Context, column, value string) (*models.Payment, error) {
	var p models.Payment
	err := d.Bun.NewSelect().
		Model(&p).
		Where("? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DB) ListPayments(ctx context.Context, f PaymentFilter) ([]models.Payment, error) {
	list := []models.Payment{}
	q := d.Bun.NewSelect().Model(&list)
	if f.ParticipantID != "" {
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("client_id = ?", f.ParticipantID).WhereOr("organizer_id = ?", f.ParticipantID)
		})
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if err := q.Order("created_at DESC").Scan(ctx); err != nil {
		return nil, err
	}
	return list, nil
}

// UpdatePayment writes the named columns and bumps updated_at.
func (d *DB) UpdatePayment(ctx context.Context, p *models.Payment, columns ...string) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := d.Bun.NewUpdate().
		Model(p).
		Column(append(columns, "updated_at")...).
		WherePK().
		Exec(ctx)
	return err
}

// ModifyPayment loads the payment under a row lock, lets mutate change it
// and writes the named columns back, all in one transaction.
func (d *DB) ModifyPayment(ctx context.Context, id string, mutate PaymentCheck, columns ...string) (*models.Payment, error) {
	var out models.Payment
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().Model(&out).Where("id = ?", id).Limit(1)
		if database.IsPostgres(tx) {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			return err
		}
		if err := mutate(&out); err != nil {
			return err
		}

		out.UpdatedAt = time.Now().UTC()
		_, err := tx.NewUpdate().
			Model(&out).
			Column(append(columns, "updated_at")...).
			WherePK().
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
