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

type ProposalFilter struct {
	OrganizerID string
	ClientID    string
	EventID     string
	Status      models.ProposalStatus
}

// EventCheck inspects the locked event row before a transactional write; a
// non-nil error aborts the transaction and is returned as is.
type EventCheck func(event *models.Event) error

// AcceptCheck inspects the locked proposal and its event before acceptance.
type AcceptCheck func(proposal *models.Proposal, event *models.Event) error

// Acceptance is the outcome of AcceptProposal.
type Acceptance struct {
	Proposal *models.Proposal
	Event    *models.Event
	Rejected []models.Proposal
}

func lockEvent(ctx context.Context, tx bun.Tx, eventID string) (*models.Event, error) {
	var event models.Event
	q := tx.NewSelect().Model(&event).Where("id = ?", eventID).Limit(1)
	if database.IsPostgres(tx) {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	event.Normalize()
	return &event, nil
}

// CreateProposal inserts the proposal and appends its id to the event's
// proposal list in one transaction. The organizer's lapsed active proposal on
// the event is expired first; a second live one fails on the partial unique index.
func (d *DB) CreateProposal(ctx context.Context, proposal *models.Proposal, check EventCheck) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		event, err := lockEvent(ctx, tx, proposal.EventID)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(event); err != nil {
				return err
			}
		}

		if err := expireLapsed(ctx, tx, proposal.EventID, proposal.OrganizerID, proposal.CreatedAt); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(proposal).Exec(ctx); err != nil {
			return err
		}

		event.ProposalIDs = append(event.ProposalIDs, proposal.ID)
		event.UpdatedAt = time.Now().UTC()
		_, err = tx.NewUpdate().
			Model(event).
			Column("proposal_ids", "updated_at").
			WherePK().
			Exec(ctx)
		return err
	})
}

func expireLapsed(ctx context.Context, tx bun.Tx, eventID, organizerID string, now time.Time) error {
	_, err := tx.NewUpdate().
		Model((*models.Proposal)(nil)).
		Set("status = ?", models.ProposalExpired).
		Set("updated_at = ?", now).
		Where("event_id = ?", eventID).
		Where("organizer_id = ?", organizerID).
		Where("status IN (?)", bun.In([]models.ProposalStatus{models.ProposalPending, models.ProposalNegotiating})).
		Where("valid_until <= ?", now).
		Exec(ctx)
	return err
}

func (d *DB) GetProposalByID(ctx context.Context, id string) (*models.Proposal, error) {
	var proposal models.Proposal
	err := d.Bun.NewSelect().
		Model(&proposal).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

func (d *DB) ListProposals(ctx context.Context, f ProposalFilter) ([]models.Proposal, error) {
	proposals := []models.Proposal{}
	q := d.Bun.NewSelect().Model(&proposals)
	if f.OrganizerID != "" {
		q = q.Where("organizer_id = ?", f.OrganizerID)
	}
	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.EventID != "" {
		q = q.Where("event_id = ?", f.EventID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if err := q.Order("created_at DESC").Scan(ctx); err != nil {
		return nil, err
	}
	return proposals, nil
}

// UpdateProposal writes the named columns and bumps updated_at.
func (d *DB) UpdateProposal(ctx context.Context, proposal *models.Proposal, columns ...string) error {
	proposal.UpdatedAt = time.Now().UTC()
	_, err := d.Bun.NewUpdate().
		Model(proposal).
		Column(append(columns, "updated_at")...).
		WherePK().
		Exec(ctx)
	return err
}

// AcceptProposal accepts one proposal, rejects every other active proposal on
// the event and books the event, all in one transaction.
func (d *DB) AcceptProposal(ctx context.Context, proposalID string, check AcceptCheck) (*Acceptance, error) {
	var out *Acceptance
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var proposal models.Proposal
		q := tx.NewSelect().Model(&proposal).Where("id = ?", proposalID).Limit(1)
		if database.IsPostgres(tx) {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			return err
		}

		event, err := lockEvent(ctx, tx, proposal.EventID)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(&proposal, event); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		proposal.Status = models.ProposalAccepted
		proposal.AcceptedAt = &now
		proposal.RespondedAt = &now
		proposal.UpdatedAt = now
		if _, err := tx.NewUpdate().
			Model(&proposal).
			Column("status", "accepted_at", "responded_at", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return err
		}

		var rejected []models.Proposal
		if err := tx.NewSelect().
			Model(&rejected).
			Where("event_id = ?", event.ID).
			Where("id <> ?", proposal.ID).
			Where("status IN (?)", bun.In([]models.ProposalStatus{models.ProposalPending, models.ProposalNegotiating})).
			Scan(ctx); err != nil {
			return err
		}
		if len(rejected) > 0 {
			ids := make([]string, len(rejected))
			for i := range rejected {
				ids[i] = rejected[i].ID
				rejected[i].Status = models.ProposalRejected
				rejected[i].RespondedAt = &now
				rejected[i].UpdatedAt = now
			}
			if _, err := tx.NewUpdate().
				Model((*models.Proposal)(nil)).
				Set("status = ?", models.ProposalRejected).
				Set("responded_at = ?", now).
				Set("updated_at = ?", now).
				Where("id IN (?)", bun.In(ids)).
				Exec(ctx); err != nil {
				return err
			}
		}

		event.Status = models.EventBooked
		event.BookedProposalID = proposal.ID
		event.BookedOrganizerID = proposal.OrganizerID
		event.UpdatedAt = now
		if _, err := tx.NewUpdate().
			Model(event).
			Column("status", "booked_proposal_id", "booked_organizer_id", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return err
		}

		out = &Acceptance{Proposal: &proposal, Event: event, Rejected: rejected}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
